// Package report 报表生成与下载
//
// 报表写入后不可修改；CSV 在配置了对象存储时上传到 reports/<id>.csv，
// 否则随元数据一起保存。下载只返回生成时的内容，不会重新查询账本。
package report

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"library-admin/internal/apiserver/access"
	"library-admin/internal/apiserver/auth"
	"library-admin/internal/apiserver/httputil"
	"library-admin/internal/shared/apperr"
	"library-admin/internal/shared/model"
	"library-admin/internal/shared/objstore"
	"library-admin/internal/shared/storage"
)

const contentTypeCSV = "text/csv"

// FileStore 报表文件存储，由 objstore.Client 实现
type FileStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Handler 报表 HTTP 处理器
type Handler struct {
	store  storage.ReportStore
	source Source
	files  FileStore
	policy access.Policy
	now    func() time.Time
}

// NewHandler 创建报表处理器，files 为 nil 时不上传文件
func NewHandler(store storage.ReportStore, source Source, files FileStore, policy access.Policy) *Handler {
	return &Handler{store: store, source: source, files: files, policy: policy, now: time.Now}
}

// RegisterRoutes 注册报表路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	guard := access.Require(h.policy)
	mux.HandleFunc("GET /api/reports/{$}", guard(h.List))
	mux.HandleFunc("POST /api/reports/{$}", guard(h.Create))
	mux.HandleFunc("GET /api/reports/{id}/{$}", guard(h.Get))
	mux.HandleFunc("GET /api/reports/{id}/file", guard(h.File))
}

type createRequest struct {
	ReportType string `json:"report_type"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

// List 报表列表
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	reports, err := h.store.ListReports(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, apperr.Internal("failed to list reports", err))
		return
	}
	if reports == nil {
		reports = []*model.Report{}
	}
	httputil.WriteJSON(w, http.StatusOK, reports)
}

// Get 报表元数据
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	rep, err := h.load(r.Context(), r.PathValue("id"))
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rep)
}

// Create 生成报表
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	rep, err := parseRequest(req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	ctx := r.Context()
	rows, err := Collect(ctx, h.source, rep.ReportType, rep.StartDate, rep.EndDate)
	if err != nil {
		httputil.WriteAppError(w, r, asAppError(err, "failed to collect report rows"))
		return
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		httputil.WriteAppError(w, r, apperr.Internal("failed to render report", err))
		return
	}

	rep.ID = httputil.GenerateID("rpt")
	rep.GeneratedAt = h.now().UTC()
	rep.RowCount = len(rows)
	if u := auth.GetAuthUser(ctx); u != nil {
		rep.CreatedBy = u.ID
	}

	if h.files != nil {
		key := objstore.ReportKey(rep.ID)
		if err := h.files.Upload(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), contentTypeCSV); err != nil {
			httputil.WriteAppError(w, r, apperr.Internal("failed to store report file", err))
			return
		}
		rep.File = key
	} else {
		rep.Content = buf.Bytes()
	}

	if err := h.store.CreateReport(ctx, rep); err != nil {
		if rep.File != "" {
			if delErr := h.files.Delete(context.WithoutCancel(ctx), rep.File); delErr != nil {
				log.Printf("[report] cleanup %s failed: %v", rep.File, delErr)
			}
		}
		httputil.WriteAppError(w, r, httputil.StoreError("report", err))
		return
	}

	log.Printf("[report] Generated %s %s..%s rows=%d (%s)", rep.ReportType, rep.StartDate, rep.EndDate, rep.RowCount, rep.ID)
	httputil.WriteJSON(w, http.StatusCreated, rep)
}

// File 下载报表 CSV
func (h *Handler) File(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rep, err := h.load(ctx, r.PathValue("id"))
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	var body io.Reader
	switch {
	case rep.File != "" && h.files != nil:
		rc, err := h.files.Download(ctx, rep.File)
		if errors.Is(err, objstore.ErrObjectNotFound) {
			httputil.WriteAppError(w, r, apperr.NotFound("report file %s not found", rep.File))
			return
		}
		if err != nil {
			httputil.WriteAppError(w, r, apperr.Internal("failed to download report file", err))
			return
		}
		defer rc.Close()
		body = rc
	case len(rep.Content) > 0:
		body = bytes.NewReader(rep.Content)
	default:
		httputil.WriteAppError(w, r, apperr.NotFound("report file not stored"))
		return
	}

	w.Header().Set("Content-Type", contentTypeCSV)
	w.Header().Set("Content-Disposition", `attachment; filename="`+rep.ID+`.csv"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		log.Printf("[report] stream %s: %v", rep.ID, err)
	}
}

func (h *Handler) load(ctx context.Context, id string) (*model.Report, error) {
	rep, err := h.store.GetReport(ctx, id)
	if err != nil {
		return nil, apperr.Internal("failed to load report", err)
	}
	if rep == nil {
		return nil, apperr.NotFound("report %q not found", id)
	}
	return rep, nil
}

func parseRequest(req createRequest) (*model.Report, error) {
	typ := model.ReportType(strings.ToUpper(strings.TrimSpace(req.ReportType)))
	if typ == "" {
		return nil, apperr.Validation("report_type is required")
	}
	if !typ.Valid() {
		return nil, apperr.Validation("%q is not a valid report_type", req.ReportType)
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, apperr.Validation("end_date must not be before start_date")
	}
	return &model.Report{ReportType: typ, StartDate: start, EndDate: end}, nil
}

func parseDate(field, v string) (model.Date, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return model.Date{}, apperr.Validation("%s is required", field)
	}
	d, err := model.ParseDate(v)
	if err != nil {
		return model.Date{}, apperr.Validation("%s: %v", field, err)
	}
	return d, nil
}

// asAppError 已分类的错误原样返回
func asAppError(err error, msg string) error {
	var e *apperr.Error
	if errors.As(err, &e) {
		return err
	}
	return apperr.Internal(msg, err)
}
