package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"library-admin/internal/apiserver/auth"
	"library-admin/internal/apiserver/borrow"
	"library-admin/internal/apiserver/report"
	"library-admin/internal/apiserver/resource"
	"library-admin/internal/apiserver/returns"
	"library-admin/internal/apiserver/student"
	"library-admin/internal/apiserver/user"
	"library-admin/internal/config"
	"library-admin/pkg/logging"
)

// Router 返回配置好的 HTTP 路由
//
// 路由规则：
//
// 公开：
//   - GET  /health、GET /metrics、GET /api/openapi.yaml
//   - POST /api/login/、/api/token/refresh/、/api/token/blacklist/
//
// 目录与账本（按路由分组的访问策略）：
//   - /api/students/、/api/students/{id}/
//   - /api/resources/、/api/resources/{id}/
//   - /api/borrows/、/api/borrows/{id}/
//   - /api/returns/、/api/returns/{id}/
//   - /api/reports/、/api/reports/{id}/、/api/reports/{id}/file
//
// 用户：
//   - GET /api/users/、/api/users/{id}/、/api/me/（任意已认证用户）
//   - POST /api/users/（仅管理员）
//   - PUT /api/me/password/
//
// 中间件顺序（外到内）：CORS → 请求日志 → 指标 → 认证 → OpenAPI 校验 → 路由
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /api/openapi.yaml", h.OpenAPISpec)

	auth.NewHandler(h.store, h.authCfg, h.blacklist).RegisterRoutes(mux)
	user.NewHandler(h.store).RegisterRoutes(mux)

	student.NewHandler(h.store, h.policies[config.GroupStudents]).RegisterRoutes(mux)
	resource.NewHandler(h.store, h.policies[config.GroupResources]).RegisterRoutes(mux)
	borrow.NewHandler(h.ledger, h.policies[config.GroupBorrows]).RegisterRoutes(mux)
	returns.NewHandler(h.ledger, h.policies[config.GroupReturns]).RegisterRoutes(mux)
	report.NewHandler(h.store, h.ledger, h.files, h.policies[config.GroupReports]).RegisterRoutes(mux)

	var handler http.Handler = mux
	if h.validator != nil {
		handler = h.validator.Middleware(handler)
	}
	handler = auth.Middleware(h.authCfg)(handler)
	handler = h.metrics.MetricsMiddleware(handler)
	handler = logging.Middleware(h.log.Component("http"))(handler)
	return corsMiddleware(h.cfg.Server.CORSOrigins, handler)
}

// corsMiddleware 添加 CORS 头支持跨域请求
// origins 为空时不返回 CORS 头，包含 "*" 时允许任意来源
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	if len(origins) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := allowedOrigin(origins, r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func allowedOrigin(origins []string, origin string) string {
	for _, o := range origins {
		if o == "*" {
			return "*"
		}
		if origin != "" && o == origin {
			return origin
		}
	}
	return ""
}
