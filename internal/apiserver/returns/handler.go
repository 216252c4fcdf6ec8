// Package returns 归还记录 HTTP 处理器
package returns

import (
	"net/http"
	"net/url"

	"library-admin/internal/apiserver/access"
	"library-admin/internal/apiserver/httputil"
	"library-admin/internal/apiserver/ledger"
	"library-admin/internal/shared/model"
)

// Handler 归还 HTTP 处理器
type Handler struct {
	ledger *ledger.Service
	policy access.Policy
}

// NewHandler 创建归还处理器
func NewHandler(svc *ledger.Service, policy access.Policy) *Handler {
	return &Handler{ledger: svc, policy: policy}
}

// RegisterRoutes 注册归还路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	guard := access.Require(h.policy)
	mux.HandleFunc("GET /api/returns/{$}", guard(h.List))
	mux.HandleFunc("POST /api/returns/{$}", guard(h.Create))
	mux.HandleFunc("GET /api/returns/{id}/{$}", guard(h.Get))
}

// List 归还列表
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	f, err := bindFilter(r.URL.Query())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	returns, err := h.ledger.ListReturns(r.Context(), f)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if returns == nil {
		returns = []*model.Return{}
	}
	httputil.WriteJSON(w, http.StatusOK, returns)
}

// Get 归还详情
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	rt, err := h.ledger.GetReturn(r.Context(), r.PathValue("id"))
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rt)
}

// Create 归还资源
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req ledger.ReturnRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	rt, err := h.ledger.CreateReturn(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, rt)
}

func bindFilter(q url.Values) (model.ReturnFilter, error) {
	var f model.ReturnFilter
	var err error
	if f.BorrowID, err = httputil.QueryString(q, "borrow_record_id"); err != nil {
		return f, err
	}
	if f.ReturnFrom, err = httputil.QueryDate(q, "return_date_from"); err != nil {
		return f, err
	}
	if f.ReturnTo, err = httputil.QueryDate(q, "return_date_to"); err != nil {
		return f, err
	}
	f.Limit, f.Offset, err = httputil.Page(q)
	return f, err
}
