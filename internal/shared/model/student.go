package model

import "time"

// Student 学生，validate 标签为写入时的字段规则
type Student struct {
	ID        string    `json:"id" bson:"_id" db:"id"`
	StudentID string    `json:"student_id" bson:"student_id" db:"student_id" validate:"required,max=11"`
	FirstName string    `json:"first_name" bson:"first_name" db:"first_name" validate:"required"`
	LastName  string    `json:"last_name" bson:"last_name" db:"last_name" validate:"required"`
	Phone     string    `json:"phone" bson:"phone" db:"phone" validate:"max=11"`
	Email     string    `json:"email" bson:"email" db:"email" validate:"required,email"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// FullName 姓名
func (s *Student) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// StudentPatch 学生部分更新，nil 字段保持不变
type StudentPatch struct {
	StudentID *string `json:"student_id"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
	Email     *string `json:"email"`
}

// Apply 将补丁应用到学生
func (p *StudentPatch) Apply(s *Student) {
	if p.StudentID != nil {
		s.StudentID = *p.StudentID
	}
	if p.FirstName != nil {
		s.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		s.LastName = *p.LastName
	}
	if p.Phone != nil {
		s.Phone = *p.Phone
	}
	if p.Email != nil {
		s.Email = *p.Email
	}
}

// 学生列表可用的过滤、搜索、排序字段
var (
	StudentExactFields    = []string{"student_id", "first_name", "last_name", "email", "phone"}
	StudentContainsFields = []string{"student_id", "first_name", "last_name", "email", "phone"}
	StudentSearchFields   = []string{"first_name", "last_name", "email", "student_id"}
	StudentOrderingFields = []string{"first_name", "last_name", "email", "student_id"}
)
