// Package resource 馆藏资源目录 HTTP 处理器
//
// 资源状态只由借还流程修改，这里的创建与更新都不接受 status 变更。
package resource

import (
	"log"
	"net/http"
	"strings"
	"time"

	"library-admin/internal/apiserver/access"
	"library-admin/internal/apiserver/httputil"
	"library-admin/internal/shared/apperr"
	"library-admin/internal/shared/model"
	"library-admin/internal/shared/storage"
)

// Handler 资源 HTTP 处理器
type Handler struct {
	store  storage.ResourceStore
	policy access.Policy
}

// NewHandler 创建资源处理器
func NewHandler(store storage.ResourceStore, policy access.Policy) *Handler {
	return &Handler{store: store, policy: policy}
}

// RegisterRoutes 注册资源路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	guard := access.Require(h.policy)
	mux.HandleFunc("GET /api/resources/{$}", guard(h.List))
	mux.HandleFunc("POST /api/resources/{$}", guard(h.Create))
	mux.HandleFunc("GET /api/resources/{id}/{$}", guard(h.Get))
	mux.HandleFunc("PATCH /api/resources/{id}/{$}", guard(h.Update))
	mux.HandleFunc("PUT /api/resources/{id}/{$}", guard(h.Update))
}

// List 资源列表
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q, err := httputil.BindListQuery(r.URL.Query(), model.ResourceExactFields, model.ResourceContainsFields)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	resources, err := h.store.ListResources(r.Context(), q)
	if err != nil {
		httputil.WriteAppError(w, r, apperr.Internal("failed to list resources", err))
		return
	}
	if resources == nil {
		resources = []*model.Resource{}
	}
	httputil.WriteJSON(w, http.StatusOK, resources)
}

// Get 资源详情
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	res, err := h.load(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// Create 新建资源，状态固定为 AVAILABLE
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var res model.Resource
	if err := httputil.DecodeJSON(r, &res); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if res.Status != "" && res.Status != model.ResourceStatusAvailable {
		httputil.WriteAppError(w, r, apperr.Validation("new resources must be AVAILABLE"))
		return
	}
	normalize(&res)
	if err := Validate(&res); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	now := time.Now().UTC()
	res.Status = model.ResourceStatusAvailable
	res.CreatedAt = now
	res.UpdatedAt = now
	if err := h.store.CreateResource(r.Context(), &res); err != nil {
		httputil.WriteAppError(w, r, httputil.StoreError("resource", err))
		return
	}

	log.Printf("[resource] Created: %s (%s)", res.ResourceID, res.ResourceType)
	httputil.WriteJSON(w, http.StatusCreated, &res)
}

// Update 部分更新资源，PUT 与 PATCH 行为一致
// resource_id 与 status 只允许原样回传
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	res, err := h.load(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	var patch model.ResourcePatch
	if err := httputil.DecodeJSON(r, &patch); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if patch.ResourceID != nil && *patch.ResourceID != res.ResourceID {
		httputil.WriteAppError(w, r, apperr.Validation("resource_id cannot be changed"))
		return
	}
	if patch.Status != nil && *patch.Status != res.Status {
		httputil.WriteAppError(w, r, apperr.Validation("status is managed by borrow and return records"))
		return
	}
	patch.Apply(res)
	normalize(res)
	if err := Validate(res); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	res.UpdatedAt = time.Now().UTC()
	if err := h.store.UpdateResource(r.Context(), res); err != nil {
		httputil.WriteAppError(w, r, httputil.StoreError("resource", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) load(r *http.Request) (*model.Resource, error) {
	id := r.PathValue("id")
	res, err := h.store.GetResource(r.Context(), id)
	if err != nil {
		return nil, apperr.Internal("failed to load resource", err)
	}
	if res == nil {
		return nil, apperr.NotFound("resource %q not found", id)
	}
	return res, nil
}

func normalize(res *model.Resource) {
	res.ResourceID = strings.TrimSpace(res.ResourceID)
	res.Title = strings.TrimSpace(res.Title)
	res.Author = strings.TrimSpace(res.Author)
}

// Validate 校验资源字段，规则见 model.Resource 的 validate 标签
func Validate(res *model.Resource) error {
	return httputil.Validate(res)
}
