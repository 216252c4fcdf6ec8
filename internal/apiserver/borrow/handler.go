// Package borrow 借阅记录 HTTP 处理器
//
// 写操作全部委托给 ledger.Service。
package borrow

import (
	"net/http"
	"net/url"
	"strings"

	"library-admin/internal/apiserver/access"
	"library-admin/internal/apiserver/httputil"
	"library-admin/internal/apiserver/ledger"
	"library-admin/internal/shared/apperr"
	"library-admin/internal/shared/model"
)

// Handler 借阅 HTTP 处理器
type Handler struct {
	ledger *ledger.Service
	policy access.Policy
}

// NewHandler 创建借阅处理器
func NewHandler(svc *ledger.Service, policy access.Policy) *Handler {
	return &Handler{ledger: svc, policy: policy}
}

// RegisterRoutes 注册借阅路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	guard := access.Require(h.policy)
	mux.HandleFunc("GET /api/borrows/{$}", guard(h.List))
	mux.HandleFunc("POST /api/borrows/{$}", guard(h.Create))
	mux.HandleFunc("GET /api/borrows/{id}/{$}", guard(h.Get))
	mux.HandleFunc("PATCH /api/borrows/{id}/{$}", guard(h.Extend))
}

type extendRequest struct {
	DueDate string `json:"due_date"`
}

// List 借阅列表
//
// 过滤参数：student_id（学号）、resource_id、status（含 OVERDUE）、
// borrow_date_from/to、due_date_from/to、limit、offset。
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	studentID, f, err := bindFilter(r.URL.Query())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	borrows, err := h.ledger.ListBorrows(r.Context(), studentID, f)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if borrows == nil {
		borrows = []*model.Borrow{}
	}
	httputil.WriteJSON(w, http.StatusOK, borrows)
}

// Get 借阅详情
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.ledger.GetBorrow(r.Context(), r.PathValue("id"))
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b)
}

// Create 借出资源
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req ledger.BorrowRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	b, err := h.ledger.CreateBorrow(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, b)
}

// Extend 续借，只允许修改 due_date
func (h *Handler) Extend(w http.ResponseWriter, r *http.Request) {
	var req extendRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	b, err := h.ledger.ExtendBorrow(r.Context(), r.PathValue("id"), req.DueDate)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b)
}

func bindFilter(q url.Values) (string, model.BorrowFilter, error) {
	var f model.BorrowFilter
	studentID, err := httputil.QueryString(q, "student_id")
	if err != nil {
		return "", f, err
	}
	if f.ResourceID, err = httputil.QueryString(q, "resource_id"); err != nil {
		return "", f, err
	}
	status, err := httputil.QueryString(q, "status")
	if err != nil {
		return "", f, err
	}
	if status != "" {
		f.Status = model.BorrowStatus(strings.ToUpper(status))
		if !f.Status.Valid() {
			return "", f, apperr.Validation("%q is not a valid status", status)
		}
	}

	dates := []struct {
		name string
		dst  *model.Date
	}{
		{"borrow_date_from", &f.BorrowFrom},
		{"borrow_date_to", &f.BorrowTo},
		{"due_date_from", &f.DueFrom},
		{"due_date_to", &f.DueTo},
	}
	for _, d := range dates {
		if *d.dst, err = httputil.QueryDate(q, d.name); err != nil {
			return "", f, err
		}
	}
	f.Limit, f.Offset, err = httputil.Page(q)
	return strings.TrimSpace(studentID), f, err
}
