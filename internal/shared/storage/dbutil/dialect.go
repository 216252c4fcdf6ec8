// Package dbutil 提供数据库方言抽象和工具函数
//
// 通过 Dialect 接口屏蔽不同数据库（PostgreSQL、SQLite）的 SQL 差异，
// 使 repository 层可以编写与数据库无关的业务逻辑。
package dbutil

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// DriverType 数据库驱动类型
type DriverType string

const (
	DriverPostgres DriverType = "postgres"
	DriverSQLite   DriverType = "sqlite"
	DriverMongoDB  DriverType = "mongodb"
)

// Dialect 数据库方言接口
//
// 不同数据库的 SQL 语法差异通过该接口屏蔽：
//   - 占位符：PostgreSQL 用 $1, $2；SQLite 用 ?
//   - 时间函数：PostgreSQL 用 NOW()；SQLite 用 datetime('now')
//   - 类型转换：PostgreSQL 有 ::type 语法
//   - 唯一键冲突：错误类型各不相同
type Dialect interface {
	// DriverType 返回驱动类型标识
	DriverType() DriverType

	// Rebind 将 PostgreSQL 风格的占位符 ($1, $2, ...) 转换为目标数据库的占位符格式
	Rebind(query string) string

	// CurrentTimestamp 返回当前时间戳的 SQL 表达式
	CurrentTimestamp() string

	// UniqueViolation 判断错误是否为唯一键冲突，返回冲突的约束/列描述
	UniqueViolation(err error) (constraint string, ok bool)

	// AutoMigrate 自动创建/迁移数据库 Schema
	AutoMigrate(db *sql.DB) error
}

// pgPlaceholderRe 匹配 PostgreSQL 风格占位符 $1, $2, ...
var pgPlaceholderRe = regexp.MustCompile(`\$(\d+)`)

// pgCastRe 匹配 PostgreSQL 类型转换 ::type
var pgCastRe = regexp.MustCompile(`::(\w+)`)

// RebindToPositional 保持 $N 占位符不变（PostgreSQL 专用）
func RebindToPositional(query string) string {
	return query
}

// RebindToQuestion 将 $N 占位符转换为 ?（SQLite 专用）
func RebindToQuestion(query string) string {
	return pgPlaceholderRe.ReplaceAllString(query, "?")
}

// StripPgCasts 去除 PostgreSQL 类型转换 (::date, ::text 等)
func StripPgCasts(query string) string {
	return pgCastRe.ReplaceAllString(query, "")
}

// likeEscaper 转义 LIKE 通配符，配合 ESCAPE '\'
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern 生成大小写无关子串匹配的 LIKE 参数
// 调用方需使用 LOWER(col) LIKE $n ESCAPE '\'；SQLite 驱动注册了按 Unicode 折叠的 LOWER
func ContainsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

// Where 动态 WHERE 条件构建器
//
// 条件以 PostgreSQL 风格占位符书写，$? 会被替换为下一个参数序号。
type Where struct {
	conds []string
	args  []interface{}
}

// Add 追加条件，cond 中的每个 $? 依次绑定 args
func (w *Where) Add(cond string, args ...interface{}) {
	for _, a := range args {
		w.args = append(w.args, a)
		cond = strings.Replace(cond, "$?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

// Arg 追加一个不带条件的参数，返回其占位符（用于 LIMIT/OFFSET）
func (w *Where) Arg(v interface{}) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

// Clause 返回 " WHERE ..." 子句，无条件时返回空字符串
func (w *Where) Clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// Args 返回已绑定的参数
func (w *Where) Args() []interface{} {
	return w.args
}

// MaxPageSize 仅指定 offset 时使用的上限
const MaxPageSize = 1<<31 - 1

// Paginate 生成 LIMIT/OFFSET 子句
func (w *Where) Paginate(limit, offset int) string {
	if limit <= 0 && offset <= 0 {
		return ""
	}
	if limit <= 0 {
		limit = MaxPageSize
	}
	clause := " LIMIT " + w.Arg(limit)
	if offset > 0 {
		clause += " OFFSET " + w.Arg(offset)
	}
	return clause
}
