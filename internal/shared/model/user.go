package model

import "time"

// UserRole 用户角色
type UserRole string

const (
	UserRoleAdmin     UserRole = "admin"
	UserRoleLibrarian UserRole = "librarian"
	UserRoleStudent   UserRole = "student"
)

// Valid 是否为已知角色
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleAdmin, UserRoleLibrarian, UserRoleStudent:
		return true
	}
	return false
}

// Privileges 由角色派生的权限标记
type Privileges struct {
	IsElevated bool `json:"is_elevated"`
}

// DerivePrivileges 根据角色派生权限
//
// 每次给用户赋予角色时都必须调用，IsElevated 不允许单独设置。
// admin / librarian 为提升权限角色。
func DerivePrivileges(role UserRole) Privileges {
	return Privileges{IsElevated: role == UserRoleAdmin || role == UserRoleLibrarian}
}

// User 用户
type User struct {
	ID           string    `json:"id" bson:"_id" db:"id"`
	Username     string    `json:"username" bson:"username" db:"username"`
	Email        string    `json:"email" bson:"email" db:"email"`
	FirstName    string    `json:"first_name" bson:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" bson:"last_name" db:"last_name"`
	PasswordHash string    `json:"-" bson:"password_hash" db:"password_hash"` // never expose in JSON
	Role         UserRole  `json:"role" bson:"role" db:"role"`
	IsElevated   bool      `json:"is_elevated" bson:"is_elevated" db:"is_elevated"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}

// AssignRole 设置角色并同步派生权限
func (u *User) AssignRole(role UserRole) {
	u.Role = role
	u.IsElevated = DerivePrivileges(role).IsElevated
}
