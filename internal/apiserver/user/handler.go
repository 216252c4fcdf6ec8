// Package user 用户管理与当前用户信息 HTTP 处理器
package user

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"library-admin/internal/apiserver/access"
	"library-admin/internal/apiserver/auth"
	"library-admin/internal/apiserver/httputil"
	"library-admin/internal/shared/apperr"
	"library-admin/internal/shared/model"
	"library-admin/internal/shared/storage"
)

// Handler 用户 HTTP 处理器
type Handler struct {
	store storage.UserStore
}

// NewHandler 创建用户处理器
func NewHandler(store storage.UserStore) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes 注册用户路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	authed := access.Require(access.Authenticated)
	mux.HandleFunc("GET /api/users/{$}", authed(h.List))
	mux.HandleFunc("POST /api/users/{$}", auth.AdminOnly(h.Create))
	mux.HandleFunc("GET /api/users/{id}/{$}", authed(h.Get))
	mux.HandleFunc("GET /api/me/{$}", authed(h.Me))
}

// NewUser 创建用户的输入
type NewUser struct {
	Username  string         `json:"username" validate:"required,max=150"`
	Email     string         `json:"email" validate:"omitempty,email"`
	FirstName string         `json:"first_name" validate:"max=150"`
	LastName  string         `json:"last_name" validate:"max=150"`
	Password  string         `json:"password" validate:"min=8"`
	Role      model.UserRole `json:"role" validate:"oneof=admin librarian student"`
}

// meResponse 当前用户及其能力
type meResponse struct {
	User         *model.User         `json:"user"`
	Capabilities access.Capabilities `json:"capabilities"`
}

// ============================================================================
// Handlers
// ============================================================================

// List 用户列表
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, apperr.Internal("failed to list users", err))
		return
	}
	if users == nil {
		users = []*model.User{}
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}

// Get 用户详情
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.load(r.Context(), r.PathValue("id"))
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

// Create 新建用户（仅管理员）
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req NewUser
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	u, err := Create(r.Context(), h.store, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	log.Printf("[user] Created: %s (%s) by %s", u.Username, u.Role, auth.GetAuthUser(r.Context()).Username)
	httputil.WriteJSON(w, http.StatusCreated, u)
}

// Me 当前用户与三个访问谓词的结果
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	authUser := auth.GetAuthUser(r.Context())
	u, err := h.load(r.Context(), authUser.ID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, meResponse{User: u, Capabilities: access.CapabilitiesOf(authUser)})
}

func (h *Handler) load(ctx context.Context, id string) (*model.User, error) {
	u, err := h.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("failed to load user", err)
	}
	if u == nil {
		return nil, apperr.NotFound("user %q not found", id)
	}
	return u, nil
}

// ============================================================================
// 创建
// ============================================================================

// Create 校验输入并创建用户，角色只在这里赋值一次
func Create(ctx context.Context, store storage.UserStore, in NewUser) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if in.Role == "" {
		in.Role = model.UserRoleStudent
	}
	if err := httputil.Validate(&in); err != nil {
		return nil, err
	}

	existing, err := store.GetUserByUsername(ctx, in.Username)
	if err != nil {
		return nil, apperr.Internal("failed to check username", err)
	}
	if existing != nil {
		return nil, apperr.Validation("a user with that username already exists")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal("failed to hash password", err)
	}
	u := &model.User{
		ID:           auth.GenerateUserID(),
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	u.AssignRole(in.Role)
	if err := store.CreateUser(ctx, u); err != nil {
		return nil, httputil.StoreError("user", err)
	}
	return u, nil
}
