package auth

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"library-admin/internal/apiserver/httputil"
	"library-admin/internal/shared/apperr"
	"library-admin/internal/shared/cache"
	"library-admin/internal/shared/model"
	"library-admin/internal/shared/storage"
)

// MinPasswordLen 密码最小长度，与请求结构体的 min=8 标签一致
const MinPasswordLen = 8

// Handler 认证 HTTP 处理器
type Handler struct {
	store     storage.UserStore
	cfg       Config
	blacklist cache.TokenBlacklist
}

// NewHandler 创建认证处理器
func NewHandler(store storage.UserStore, cfg Config, blacklist cache.TokenBlacklist) *Handler {
	return &Handler{store: store, cfg: cfg, blacklist: blacklist}
}

// RegisterRoutes 注册认证相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/login/{$}", h.Login)
	mux.HandleFunc("POST /api/token/refresh/{$}", h.Refresh)
	mux.HandleFunc("POST /api/token/blacklist/{$}", h.Blacklist)
	mux.HandleFunc("PUT /api/me/password/{$}", h.ChangePassword)
}

// ============================================================================
// 请求/响应类型
// ============================================================================

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

type loginResponse struct {
	Access  string      `json:"access"`
	Refresh string      `json:"refresh"`
	User    *model.User `json:"user"`
}

// ============================================================================
// Handlers
// ============================================================================

// Login 用户登录，签发访问令牌与刷新令牌
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := httputil.Validate(&req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	user, err := h.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		httputil.WriteAppError(w, r, apperr.Internal("failed to look up user", err))
		return
	}
	if user == nil || !CheckPassword(req.Password, user.PasswordHash) {
		httputil.WriteAppError(w, r, apperr.Unauthenticated("no active account found with the given credentials"))
		return
	}

	resp, err := h.issue(user)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	log.Printf("[auth] User logged in: %s (%s)", user.Username, user.Role)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// issue 为用户签发一对令牌
func (h *Handler) issue(user *model.User) (*loginResponse, error) {
	access, err := GenerateAccessToken(h.cfg, user)
	if err != nil {
		return nil, apperr.Internal("failed to sign access token", err)
	}
	refresh, err := GenerateRefreshToken(h.cfg, user)
	if err != nil {
		return nil, apperr.Internal("failed to sign refresh token", err)
	}
	return &loginResponse{Access: access, Refresh: refresh, User: user}, nil
}

// parseRefresh 校验刷新令牌：签名、类型、黑名单
func (h *Handler) parseRefresh(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, apperr.Validation("refresh is required")
	}
	claims, err := ParseToken(h.cfg, token)
	if err != nil {
		return nil, apperr.Unauthenticated("token is invalid or expired")
	}
	if claims.Type != TokenTypeRefresh {
		return nil, apperr.Unauthenticated("invalid token type")
	}
	blacklisted, err := h.blacklist.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, apperr.Internal("blacklist lookup failed", err)
	}
	if blacklisted {
		return nil, apperr.Unauthenticated("token is blacklisted")
	}
	return claims, nil
}

// Refresh 刷新访问令牌
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	claims, err := h.parseRefresh(r.Context(), req.Refresh)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	// 角色以库中为准
	user, err := h.store.GetUserByID(r.Context(), claims.Subject)
	if err != nil {
		httputil.WriteAppError(w, r, apperr.Internal("failed to look up user", err))
		return
	}
	if user == nil {
		httputil.WriteAppError(w, r, apperr.Unauthenticated("user not found"))
		return
	}

	access, err := GenerateAccessToken(h.cfg, user)
	if err != nil {
		httputil.WriteAppError(w, r, apperr.Internal("failed to sign access token", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"access": access})
}

// Blacklist 注销刷新令牌，直到其自然过期
func (h *Handler) Blacklist(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	claims, err := h.parseRefresh(r.Context(), req.Refresh)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := h.blacklist.Add(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
		httputil.WriteAppError(w, r, apperr.Internal("failed to blacklist token", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{})
}

// ChangePassword 修改当前用户密码
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	authUser := GetAuthUser(r.Context())
	if authUser == nil {
		httputil.WriteAppError(w, r, apperr.Unauthenticated("not authenticated"))
		return
	}

	var req changePasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := h.changePassword(r.Context(), authUser.ID, req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (h *Handler) changePassword(ctx context.Context, userID string, req changePasswordRequest) error {
	if err := httputil.Validate(&req); err != nil {
		return err
	}

	user, err := h.store.GetUserByID(ctx, userID)
	if err != nil {
		return apperr.Internal("failed to look up user", err)
	}
	if user == nil {
		return apperr.NotFound("user not found")
	}
	if !CheckPassword(req.OldPassword, user.PasswordHash) {
		return apperr.Validation("incorrect old password")
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		return apperr.Internal("failed to hash password", err)
	}
	if err := h.store.UpdateUserPassword(ctx, user.ID, hash); err != nil {
		return httputil.StoreError("user", err)
	}
	return nil
}

// ============================================================================
// Admin Bootstrap
// ============================================================================

// EnsureAdminUser 确保管理员用户存在（启动时调用）
// 未配置用户名或密码时跳过；用户已存在时不做修改
func EnsureAdminUser(ctx context.Context, store storage.UserStore, username, email, password string) (*model.User, error) {
	if username == "" || password == "" {
		return nil, nil
	}

	existing, err := store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check admin user: %w", err)
	}
	if existing != nil {
		if existing.Role != model.UserRoleAdmin {
			log.Printf("[auth] WARNING: user %s exists with role %s, not admin", username, existing.Role)
		}
		return existing, nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}

	user := &model.User{
		ID:           GenerateUserID(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	user.AssignRole(model.UserRoleAdmin)
	if err := store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create admin user: %w", err)
	}
	log.Printf("[auth] Created admin user: %s (%s)", username, user.ID)
	return user, nil
}

// GenerateUserID 生成用户 ID：usr-xxxxxxxxxxxx
func GenerateUserID() string {
	return httputil.GenerateID("usr")
}
