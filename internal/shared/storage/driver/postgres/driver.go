// Package postgres PostgreSQL 数据库驱动
//
// 提供 PostgreSQL 连接管理、方言实现和自动 Schema 迁移。
package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"library-admin/internal/shared/storage/dbutil"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// uniqueViolationCode SQLSTATE unique_violation
const uniqueViolationCode = "23505"

// Dialect PostgreSQL 方言实现
type Dialect struct{}

var _ dbutil.Dialect = (*Dialect)(nil)

func (d *Dialect) DriverType() dbutil.DriverType {
	return dbutil.DriverPostgres
}

func (d *Dialect) Rebind(query string) string {
	return dbutil.RebindToPositional(query)
}

func (d *Dialect) CurrentTimestamp() string {
	return "NOW()"
}

// UniqueViolation 返回约束名，如 "borrows_active_resource_idx"
func (d *Dialect) UniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return pgErr.ConstraintName, true
	}
	return "", false
}

func (d *Dialect) AutoMigrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// Open 创建 PostgreSQL 数据库连接
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return db, nil
}

// NewDialect 创建 PostgreSQL 方言
func NewDialect() *Dialect {
	return &Dialect{}
}

// schema PostgreSQL 建表语句（幂等）
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id VARCHAR(64) PRIMARY KEY,
    username VARCHAR(150) NOT NULL,
    email VARCHAR(254) NOT NULL DEFAULT '',
    first_name VARCHAR(150) NOT NULL DEFAULT '',
    last_name VARCHAR(150) NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    role VARCHAR(16) NOT NULL,
    is_elevated BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT users_username_key UNIQUE (username)
);

CREATE TABLE IF NOT EXISTS students (
    id VARCHAR(64) PRIMARY KEY,
    student_id VARCHAR(11) NOT NULL,
    first_name VARCHAR(100) NOT NULL,
    last_name VARCHAR(100) NOT NULL,
    phone VARCHAR(11) NOT NULL DEFAULT '',
    email VARCHAR(254) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT students_student_id_key UNIQUE (student_id),
    CONSTRAINT students_email_key UNIQUE (email)
);

CREATE TABLE IF NOT EXISTS resources (
    resource_id VARCHAR(20) PRIMARY KEY,
    title VARCHAR(200) NOT NULL,
    resource_type VARCHAR(16) NOT NULL,
    author VARCHAR(100) NOT NULL,
    publication_year INTEGER NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'AVAILABLE',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    borrow_id VARCHAR(64) NOT NULL REFERENCES borrows(id),
    return_date DATE NOT NULL,
    condition_notes TEXT NOT NULL DEFAULT '',
    CONSTRAINT returns_borrow_id_key UNIQUE (borrow_id)
);
CREATE INDEX IF NOT EXISTS returns_return_date_idx ON returns(return_date);

CREATE TABLE IF NOT EXISTS reports (
    id VARCHAR(64) PRIMARY KEY,
    report_type VARCHAR(16) NOT NULL,
    generated_at TIMESTAMPTZ NOT NULL,
    start_date DATE NOT NULL,
    end_date DATE NOT NULL,
    file TEXT NOT NULL DEFAULT '',
    row_count INTEGER NOT NULL DEFAULT 0,
    created_by VARCHAR(64) NOT NULL DEFAULT '',
    content BYTEA
);
`
