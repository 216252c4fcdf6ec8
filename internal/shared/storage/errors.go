// Package storage 定义存储层领域错误
//
// 这些错误用于隔离业务层与底层存储引擎的错误类型，
// 各驱动实现（repository/mongostore）负责将底层错误转换为这些领域错误。
package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound 实体不存在
	// 替代 sql.ErrNoRows / mongo.ErrNoDocuments
	ErrNotFound = errors.New("entity not found")

	// ErrConflict 并发冲突
	ErrConflict = errors.New("conflict: concurrent modification detected")

	// ErrDuplicate 唯一键冲突
	ErrDuplicate = errors.New("duplicate: entity already exists")

	// ErrResourceBorrowed 资源已有 ACTIVE 借阅
	ErrResourceBorrowed = errors.New("resource already borrowed")

	// ErrStudentHasActiveLoan 学生已有 ACTIVE 借阅
	ErrStudentHasActiveLoan = errors.New("student has unreturned item")

	// ErrBorrowNotActive 借阅记录不是 ACTIVE
	ErrBorrowNotActive = errors.New("borrow record is not active")
)

// DuplicateError 唯一键冲突，携带冲突字段名
// errors.Is(err, ErrDuplicate) 为 true
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate: %s already exists", e.Field)
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// DuplicateField 提取冲突字段，非唯一键冲突返回空字符串
func DuplicateField(err error) string {
	var dup *DuplicateError
	if errors.As(err, &dup) {
		return dup.Field
	}
	return ""
}
