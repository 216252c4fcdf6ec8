package auth

import (
	"log"
	"net/http"
	"strings"

	"library-admin/internal/apiserver/httputil"
	"library-admin/internal/shared/model"
	"library-admin/pkg/logging"
)

// 免认证路由精确匹配（路径）
var publicPaths = map[string]bool{
	"/api/login/":           true,
	"/api/token/refresh/":   true,
	"/api/token/blacklist/": true,
	"/api/openapi.yaml":     true,
	"/health":               true,
	"/metrics":              true,
}

func isPublicRoute(method, path string) bool {
	if method == http.MethodOptions {
		return true
	}
	return publicPaths[path]
}

// Middleware 创建 JWT 认证中间件
// 除公开路由外都要求有效的访问令牌
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicRoute(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			// 提取 Bearer Token
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.WriteError(w, http.StatusUnauthorized, "authentication credentials were not provided")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				httputil.WriteError(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}

			claims, err := ParseToken(cfg, parts[1])
			if err != nil {
				log.Printf("[auth] token parse error: %v", err)
				httputil.WriteError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			if claims.Type != TokenTypeAccess {
				httputil.WriteError(w, http.StatusUnauthorized, "invalid token type")
				return
			}

			user := &AuthUser{
				ID:         claims.Subject,
				Username:   claims.Username,
				Role:       claims.Role,
				IsElevated: claims.IsElevated,
			}
			ctx := WithAuthUser(r.Context(), user)
			ctx = logging.ContextWithUserID(ctx, user.ID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminOnly 管理员专属路由中间件
func AdminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := GetAuthUser(r.Context())
		if user == nil {
			httputil.WriteError(w, http.StatusUnauthorized, "authentication credentials were not provided")
			return
		}
		if user.Role != model.UserRoleAdmin {
			httputil.WriteError(w, http.StatusForbidden, "admin access required")
			return
		}
		next(w, r)
	}
}
