// Package server 路由配置与核心基础设施
//
// 文件组织：
//   - common.go: Handler 定义与依赖
//   - handler.go: 路由与中间件链
//   - metrics.go: Prometheus 指标
//   - validate.go: OpenAPI 请求校验
package server

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"library-admin/api"
	"library-admin/internal/apiserver/access"
	"library-admin/internal/apiserver/auth"
	"library-admin/internal/apiserver/httputil"
	"library-admin/internal/apiserver/ledger"
	"library-admin/internal/apiserver/report"
	"library-admin/internal/config"
	"library-admin/internal/shared/cache"
	"library-admin/internal/shared/storage"
	"library-admin/pkg/logging"
)

// Deps 构造 Handler 所需的依赖
type Deps struct {
	Store     storage.PersistentStore
	Config    *config.Config
	Blacklist cache.TokenBlacklist
	// Files 为 nil 时报表不上传对象存储
	Files    report.FileStore
	Logger   *logging.Logger
	Registry *prometheus.Registry
}

// Handler API 处理器
//
// Handler 是所有 HTTP API 的入口，负责：
//   - 按路由分组解析访问策略
//   - 组装各领域处理器
//   - 串联日志、指标、认证、请求校验中间件
type Handler struct {
	store     storage.PersistentStore
	cfg       *config.Config
	authCfg   auth.Config
	blacklist cache.TokenBlacklist
	files     report.FileStore
	log       *logging.Logger

	registry  *prometheus.Registry
	metrics   *Metrics
	ledger    *ledger.Service
	validator *Validator
	policies  map[string]access.Policy
}

// NewHandler 创建 Handler 实例
func NewHandler(d Deps) (*Handler, error) {
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}
	if d.Logger == nil {
		d.Logger = logging.Default("api-server")
	}
	if d.Blacklist == nil {
		d.Blacklist = cache.NewMemoryBlacklist()
	}

	h := &Handler{
		store:     d.Store,
		cfg:       d.Config,
		blacklist: d.Blacklist,
		files:     d.Files,
		log:       d.Logger,
		registry:  d.Registry,
		policies:  make(map[string]access.Policy, len(config.RouteGroups)),
		authCfg: auth.Config{
			JWTSecret:       d.Config.Auth.JWTSecret,
			AccessTokenTTL:  d.Config.AccessTokenTTL(),
			RefreshTokenTTL: d.Config.RefreshTokenTTL(),
		},
	}

	for _, group := range config.RouteGroups {
		p, err := access.ForGroup(d.Config, group)
		if err != nil {
			return nil, fmt.Errorf("route group %s: %w", group, err)
		}
		h.policies[group] = p
	}

	h.metrics = NewMetrics(d.Registry, "library")
	h.ledger = ledger.NewService(d.Store, ledger.NewMetrics(d.Registry), d.Logger.Component("ledger"))

	if d.Config.Server.ValidateRequests {
		spec, err := api.Spec()
		if err != nil {
			return nil, fmt.Errorf("read openapi spec: %w", err)
		}
		v, err := NewValidator(spec)
		if err != nil {
			return nil, err
		}
		h.validator = v
	}
	return h, nil
}

// Ledger 返回账本服务
func (h *Handler) Ledger() *ledger.Service {
	return h.ledger
}

// Health 健康检查接口
//
// 路由: GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// OpenAPISpec 返回内嵌的 OpenAPI 文档
//
// 路由: GET /api/openapi.yaml
func (h *Handler) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	data, err := api.Spec()
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "openapi spec unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
