// Package sqlite SQLite 数据库驱动
//
// 提供 SQLite 连接管理、方言实现和自动 Schema 迁移。
// 适用于开发、测试和轻量级部署场景。
package sqlite

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"library-admin/internal/shared/storage/dbutil"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const uniqueFailedPrefix = "UNIQUE constraint failed: "

// 内置 LOWER 只折叠 ASCII，子串过滤的 LOWER(col) LIKE 需要与 strings.ToLower 一致
func init() {
	sqlite.MustRegisterDeterministicScalarFunction("lower", 1, unicodeLower)
}

func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// Dialect SQLite 方言实现
type Dialect struct{}

var _ dbutil.Dialect = (*Dialect)(nil)

func (d *Dialect) DriverType() dbutil.DriverType {
	return dbutil.DriverSQLite
}

func (d *Dialect) Rebind(query string) string {
	return dbutil.StripPgCasts(dbutil.RebindToQuestion(query))
}

func (d *Dialect) CurrentTimestamp() string {
	return "datetime('now')"
}

// UniqueViolation 返回 "表.列"，如 "borrows.resource_id"
func (d *Dialect) UniqueViolation(err error) (string, bool) {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return "", false
	}
	// 扩展错误码的低 8 位为主错误码
	if se.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return "", false
	}
	msg := se.Error()
	i := strings.LastIndex(msg, uniqueFailedPrefix)
	if i < 0 {
		return "", false
	}
	msg = msg[i+len(uniqueFailedPrefix):]
	if j := strings.Index(msg, " ("); j >= 0 {
		msg = msg[:j]
	}
	return msg, true
}

func (d *Dialect) AutoMigrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// Open 创建 SQLite 数据库连接
// dsn 示例: "file:library.db?mode=rwc" 或 ":memory:"
//
// SQLite 只允许单写者，连接池限制为 1，事务天然串行化。
func Open(dsn string) (*sql.DB, error) {
	if err := ensureDir(dsn); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", p, err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	return db, nil
}

// NewDialect 创建 SQLite 方言
func NewDialect() *Dialect {
	return &Dialect{}
}

// schema SQLite 完整建表语句（与 postgres 驱动保持一致）
//
// borrows 上的两个部分唯一索引保证同一资源、同一学生最多一条 ACTIVE 借阅。
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id VARCHAR(64) PRIMARY KEY,
    username VARCHAR(150) NOT NULL UNIQUE,
    email VARCHAR(254) NOT NULL DEFAULT '',
    first_name VARCHAR(150) NOT NULL DEFAULT '',
    last_name VARCHAR(150) NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    role VARCHAR(16) NOT NULL,
    is_elevated BOOLEAN NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS students (
    id VARCHAR(64) PRIMARY KEY,
    student_id VARCHAR(11) NOT NULL UNIQUE,
    first_name VARCHAR(100) NOT NULL,
    last_name VARCHAR(100) NOT NULL,
    phone VARCHAR(11) NOT NULL DEFAULT '',
    email VARCHAR(254) NOT NULL UNIQUE,
    created_at DATETIME DEFAULT (datetime('now')),
    updated_at DATETIME DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS resources (
    resource_id VARCHAR(20) PRIMARY KEY,
    title VARCHAR(200) NOT NULL,
    resource_type VARCHAR(16) NOT NULL,
    author VARCHAR(100) NOT NULL,
    publication_year INTEGER NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'AVAILABLE',
    created_at DATETIME DEFAULT (datetime('now')),
    updated_at DATETIME DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS resources_status_idx ON resources(status);

CREATE TABLE IF NOT EXISTS borrows (
    id VARCHAR(64) PRIMARY KEY,
    student_ref VARCHAR(64) NOT NULL REFERENCES students(id),
    resource_id VARCHAR(20) NOT NULL REFERENCES resources(resource_id),
    borrow_date DATE NOT NULL,
    due_date DATE NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'ACTIVE'
);
CREATE UNIQUE INDEX IF NOT EXISTS borrows_active_resource_idx ON borrows(resource_id) WHERE status = 'ACTIVE';
CREATE UNIQUE INDEX IF NOT EXISTS borrows_active_student_idx ON borrows(student_ref) WHERE status = 'ACTIVE';
CREATE INDEX IF NOT EXISTS borrows_borrow_date_idx ON borrows(borrow_date);

CREATE TABLE IF NOT EXISTS returns (
    id VARCHAR(64) PRIMARY KEY,
    borrow_id VARCHAR(64) NOT NULL UNIQUE REFERENCES borrows(id),
    return_date DATE NOT NULL,
    condition_notes TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS returns_return_date_idx ON returns(return_date);

CREATE TABLE IF NOT EXISTS reports (
    id VARCHAR(64) PRIMARY KEY,
    report_type VARCHAR(16) NOT NULL,
    generated_at DATETIME NOT NULL,
    start_date DATE NOT NULL,
    end_date DATE NOT NULL,
    file TEXT NOT NULL DEFAULT '',
    row_count INTEGER NOT NULL DEFAULT 0,
    created_by VARCHAR(64) NOT NULL DEFAULT '',
    content BLOB
);
`

// ensureDir 文件库所在目录不存在时创建
func ensureDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || strings.HasPrefix(path, ":memory:") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sqlite dir %s: %w", dir, err)
	}
	return nil
}
