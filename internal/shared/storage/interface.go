// Package storage 定义持久化存储层抽象接口
//
// 设计原则：依赖倒置 (DIP)
//   - 调用方只依赖接口，不知道具体实现
//   - 具体实现在子包中：repository/（SQL）、mongostore/
//   - 初始化时通过依赖注入传入实现
//
// Get 方法在实体不存在时返回 (nil, nil)；Update 方法返回 ErrNotFound。
package storage

import (
	"context"

	"library-admin/internal/shared/model"
)

// UserStore 用户存储接口
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error
	ListUsers(ctx context.Context) ([]*model.User, error)
}

// StudentStore 学生存储接口
type StudentStore interface {
	CreateStudent(ctx context.Context, s *model.Student) error
	GetStudent(ctx context.Context, id string) (*model.Student, error)
	GetStudentByStudentID(ctx context.Context, studentID string) (*model.Student, error)
	UpdateStudent(ctx context.Context, s *model.Student) error
	ListStudents(ctx context.Context, q model.ListQuery) ([]*model.Student, error)
}

// ResourceStore 资源存储接口
//
// UpdateResource 不写 status，资源状态只能通过 LedgerStore 修改。
type ResourceStore interface {
	CreateResource(ctx context.Context, r *model.Resource) error
	GetResource(ctx context.Context, resourceID string) (*model.Resource, error)
	UpdateResource(ctx context.Context, r *model.Resource) error
	ListResources(ctx context.Context, q model.ListQuery) ([]*model.Resource, error)
}

// LedgerStore 借还存储接口
//
// 写方法在单个事务内完成校验与所有状态变更：
//   - CreateBorrow：资源或学生已有 ACTIVE 借阅时返回 ErrResourceBorrowed / ErrStudentHasActiveLoan，
//     成功时写入借阅并将资源置为 BORROWED
//   - CreateReturn：借阅不存在返回 ErrNotFound，非 ACTIVE 返回 ErrBorrowNotActive，
//     成功时写入归还、借阅置为 RETURNED、资源置为 AVAILABLE
//   - ExtendBorrow：仅修改 ACTIVE 借阅的 due_date，冲突检查排除自身
type LedgerStore interface {
	CreateBorrow(ctx context.Context, b *model.Borrow) error
	ExtendBorrow(ctx context.Context, id string, due model.Date) error
	CreateReturn(ctx context.Context, r *model.Return) error

	GetBorrow(ctx context.Context, id string) (*model.Borrow, error)
	ListBorrows(ctx context.Context, f model.BorrowFilter) ([]*model.Borrow, error)
	GetReturn(ctx context.Context, id string) (*model.Return, error)
	ListReturns(ctx context.Context, f model.ReturnFilter) ([]*model.Return, error)
}

// ReportStore 报表存储接口（只追加）
type ReportStore interface {
	CreateReport(ctx context.Context, r *model.Report) error
	GetReport(ctx context.Context, id string) (*model.Report, error)
	ListReports(ctx context.Context) ([]*model.Report, error)
}

// PersistentStore 持久化存储组合接口
type PersistentStore interface {
	UserStore
	StudentStore
	ResourceStore
	LedgerStore
	ReportStore
	Close() error
}
