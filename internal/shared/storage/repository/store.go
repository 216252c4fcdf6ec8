// Package repository 数据库无关的业务逻辑存储层
//
// 通过 dbutil.Dialect 接口屏蔽不同数据库的 SQL 差异，
// 所有 SQL 以 PostgreSQL 风格编写，运行时由 Dialect.Rebind() 转换。
package repository

import (
	"context"
	"database/sql"
	"strings"

	"library-admin/internal/shared/storage"
	"library-admin/internal/shared/storage/dbutil"
)

// Store 通用存储实现
// 实现了 storage.PersistentStore 接口
type Store struct {
	db      *sql.DB
	dialect dbutil.Dialect
}

var _ storage.PersistentStore = (*Store)(nil)

// NewStore 创建通用存储
func NewStore(db *sql.DB, dialect dbutil.Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	return s.db.Close()
}

// DB 返回底层数据库连接（仅用于测试）
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect 返回当前方言
func (s *Store) Dialect() dbutil.Dialect {
	return s.dialect
}

// Ping 检查数据库连接
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind 快捷方法：将 PG 风格 SQL 转换为当前方言
func (s *Store) rebind(query string) string {
	return s.dialect.Rebind(query)
}

// now 返回当前时间戳 SQL 表达式
func (s *Store) now() string {
	return s.dialect.CurrentTimestamp()
}

// duplicate 将唯一键冲突转换为 *storage.DuplicateError
// fields 为该表的唯一列，按约束描述中出现的列名匹配
func (s *Store) duplicate(err error, fields ...string) error {
	constraint, ok := s.dialect.UniqueViolation(err)
	if !ok {
		return err
	}
	for _, f := range fields {
		if strings.Contains(constraint, f) {
			return &storage.DuplicateError{Field: f}
		}
	}
	return storage.ErrDuplicate
}

// orderBy 生成 ORDER BY 子句，field 必须已通过白名单校验
func orderBy(field string, desc bool, fallback string) string {
	if field == "" {
		return " ORDER BY " + fallback
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	return " ORDER BY " + field + " " + dir + ", " + fallback
}
