// Package factory 根据配置选择存储驱动
//
// 与 storage 包分离，避免 storage ↔ 驱动实现之间的循环依赖。
package factory

import (
	"fmt"

	"library-admin/internal/shared/storage"
	"library-admin/internal/shared/storage/dbutil"
	postgresdriver "library-admin/internal/shared/storage/driver/postgres"
	sqlitedriver "library-admin/internal/shared/storage/driver/sqlite"
	"library-admin/internal/shared/storage/mongostore"
	"library-admin/internal/shared/storage/repository"
)

// RepositoryStore 是 repository.Store 的类型别名
type RepositoryStore = repository.Store

// NewSQLiteStore 创建 SQLite 存储（含自动建表）
func NewSQLiteStore(dsn string) (*RepositoryStore, error) {
	db, err := sqlitedriver.Open(dsn)
	if err != nil {
		return nil, err
	}
	dialect := sqlitedriver.NewDialect()
	if err := dialect.AutoMigrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite auto-migrate failed: %w", err)
	}
	return repository.NewStore(db, dialect), nil
}

// NewPostgresStore 创建 PostgreSQL 存储（含自动建表）
func NewPostgresStore(dsn string) (*RepositoryStore, error) {
	db, err := postgresdriver.Open(dsn)
	if err != nil {
		return nil, err
	}
	dialect := postgresdriver.NewDialect()
	if err := dialect.AutoMigrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres auto-migrate failed: %w", err)
	}
	return repository.NewStore(db, dialect), nil
}

// NewPersistentStore 根据驱动类型创建持久化存储
// 支持的驱动类型：postgres, sqlite, mongodb（dbName 仅 mongodb 使用）
func NewPersistentStore(driver dbutil.DriverType, dsn, dbName string) (storage.PersistentStore, error) {
	switch driver {
	case dbutil.DriverPostgres:
		return NewPostgresStore(dsn)
	case dbutil.DriverSQLite:
		return NewSQLiteStore(dsn)
	case dbutil.DriverMongoDB:
		return mongostore.NewStore(dsn, dbName)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}
