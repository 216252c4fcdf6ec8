// Package access 基于角色的访问控制
//
// 三个谓词都是 (是否已认证, 角色) 的纯函数，不读取任何持久化数据。
// 路由分组通过 Policy 组合谓词，由 Require 中间件在分发前检查。
package access

import (
	"encoding/json"
	"fmt"
	"net/http"

	"library-admin/internal/apiserver/auth"
	"library-admin/internal/config"
	"library-admin/internal/shared/model"
)

// IsLibrarian 已认证且角色为 librarian 或 admin
func IsLibrarian(authenticated bool, role model.UserRole) bool {
	return authenticated && (role == model.UserRoleLibrarian || role == model.UserRoleAdmin)
}

// IsStudent 已认证且角色为 student 或 admin
func IsStudent(authenticated bool, role model.UserRole) bool {
	return authenticated && (role == model.UserRoleStudent || role == model.UserRoleAdmin)
}

// ReadOnlyOrElevated 读操作对任意已认证用户开放，写操作仅限 librarian / admin
func ReadOnlyOrElevated(authenticated bool, role model.UserRole, write bool) bool {
	if !authenticated {
		return false
	}
	if !write {
		return true
	}
	return role == model.UserRoleLibrarian || role == model.UserRoleAdmin
}

// IsWrite 非安全方法视为写操作
func IsWrite(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// ============================================================================
// Policy
// ============================================================================

// Policy 路由分组的授权规则
type Policy struct {
	Name  string
	Allow func(authenticated bool, role model.UserRole, method string) bool
}

var (
	// Authenticated 任意已认证用户
	Authenticated = Policy{Name: config.PolicyAuthenticated, Allow: func(authenticated bool, _ model.UserRole, _ string) bool {
		return authenticated
	}}
	// ReadOnlyOrElevatedPolicy 读开放，写需提升权限
	ReadOnlyOrElevatedPolicy = Policy{Name: config.PolicyReadOnlyOrElevated, Allow: func(authenticated bool, role model.UserRole, method string) bool {
		return ReadOnlyOrElevated(authenticated, role, IsWrite(method))
	}}
	// Librarian 读写都要求 librarian / admin
	Librarian = Policy{Name: config.PolicyLibrarian, Allow: func(authenticated bool, role model.UserRole, _ string) bool {
		return IsLibrarian(authenticated, role)
	}}
	// Student 读写都要求 student / admin
	Student = Policy{Name: config.PolicyStudent, Allow: func(authenticated bool, role model.UserRole, _ string) bool {
		return IsStudent(authenticated, role)
	}}
)

var policies = map[string]Policy{
	Authenticated.Name:            Authenticated,
	ReadOnlyOrElevatedPolicy.Name: ReadOnlyOrElevatedPolicy,
	Librarian.Name:                Librarian,
	Student.Name:                  Student,
}

// PolicyByName 按配置名称查找策略
func PolicyByName(name string) (Policy, error) {
	p, ok := policies[name]
	if !ok {
		return Policy{}, fmt.Errorf("unknown access policy %q", name)
	}
	return p, nil
}

// ForGroup 返回路由分组在当前配置下的策略
func ForGroup(cfg *config.Config, group string) (Policy, error) {
	return PolicyByName(cfg.WritePolicy(group))
}

// Require 授权中间件
// 未认证返回 401，策略拒绝返回 403
func Require(p Policy) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			user := auth.GetAuthUser(r.Context())
			if user == nil {
				writeError(w, http.StatusUnauthorized, "authentication credentials were not provided")
				return
			}
			if !p.Allow(true, user.Role, r.Method) {
				writeError(w, http.StatusForbidden, "you do not have permission to perform this action")
				return
			}
			next(w, r)
		}
	}
}

// Capabilities 当前用户在三个谓词下的结果，供前端选择视图
type Capabilities struct {
	IsLibrarian bool `json:"is_librarian"`
	IsStudent   bool `json:"is_student"`
	CanWrite    bool `json:"can_write"`
}

// CapabilitiesOf 计算用户能力
func CapabilitiesOf(user *auth.AuthUser) Capabilities {
	if user == nil {
		return Capabilities{}
	}
	return Capabilities{
		IsLibrarian: IsLibrarian(true, user.Role),
		IsStudent:   IsStudent(true, user.Role),
		CanWrite:    ReadOnlyOrElevated(true, user.Role, true),
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
