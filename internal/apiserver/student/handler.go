// Package student 学生目录 HTTP 处理器
package student

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

// Handler 学生 HTTP 处理器
type Handler struct {
	store  storage.StudentStore
	policy access.Policy
}

// NewHandler 创建学生处理器
func NewHandler(store storage.StudentStore, policy access.Policy) *Handler {
	return &Handler{store: store, policy: policy}
}

// RegisterRoutes 注册学生路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	guard := access.Require(h.policy)
	mux.HandleFunc("GET /api/students/{$}", guard(h.List))
	mux.HandleFunc("POST /api/students/{$}", guard(h.Create))
	mux.HandleFunc("GET /api/students/{id}/{$}", guard(h.Get))
	mux.HandleFunc("PATCH /api/students/{id}/{$}", guard(h.Update))
	mux.HandleFunc("PUT /api/students/{id}/{$}", guard(h.Update))
}

// ============================================================================
// Handlers
// ============================================================================

// List 学生列表
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q, err := httputil.BindListQuery(r.URL.Query(), model.StudentExactFields, model.StudentContainsFields)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	students, err := h.store.ListStudents(r.Context(), q)
	if err != nil {
		httputil.WriteAppError(w, r, apperr.Internal("failed to list students", err))
		return
	}
	if students == nil {
		students = []*model.Student{}
	}
	httputil.WriteJSON(w, http.StatusOK, students)
}

// Get 学生详情
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.load(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s)
}

// Create 新建学生
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var s model.Student
	if err := httputil.DecodeJSON(r, &s); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	normalize(&s)
	if err := Validate(&s); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	now := time.Now().UTC()
	s.ID = httputil.GenerateID("stu")
	s.CreatedAt = now
	s.UpdatedAt = now
	if err := h.store.CreateStudent(r.Context(), &s); err != nil {
		httputil.WriteAppError(w, r, httputil.StoreError("student", err))
		return
	}

	log.Printf("[student] Created: %s (%s)", s.StudentID, s.ID)
	httputil.WriteJSON(w, http.StatusCreated, &s)
}

// Update 部分更新学生，PUT 与 PATCH 行为一致
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	s, err := h.load(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	var patch model.StudentPatch
	if err := httputil.DecodeJSON(r, &patch); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	patch.Apply(s)
	normalize(s)
	if err := Validate(s); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	s.UpdatedAt = time.Now().UTC()
	if err := h.store.UpdateStudent(r.Context(), s); err != nil {
		httputil.WriteAppError(w, r, httputil.StoreError("student", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s)
}

func (h *Handler) load(r *http.Request) (*model.Student, error) {
	id := r.PathValue("id")
	s, err := h.store.GetStudent(r.Context(), id)
	if err != nil {
		return nil, apperr.Internal("failed to load student", err)
	}
	if s == nil {
		return nil, apperr.NotFound("student %q not found", id)
	}
	return s, nil
}

// ============================================================================
// 校验
// ============================================================================

func normalize(s *model.Student) {
	s.StudentID = strings.TrimSpace(s.StudentID)
	s.FirstName = strings.TrimSpace(s.FirstName)
	s.LastName = strings.TrimSpace(s.LastName)
	s.Email = strings.TrimSpace(s.Email)
	s.Phone = strings.TrimSpace(s.Phone)
}

// Validate 校验学生字段，规则见 model.Student 的 validate 标签
func Validate(s *model.Student) error {
	return httputil.Validate(s)
}
