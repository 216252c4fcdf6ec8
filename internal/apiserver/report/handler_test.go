package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-admin/internal/apiserver/access"
	"library-admin/internal/apiserver/auth"
	"library-admin/internal/apiserver/ledger"
	"library-admin/internal/shared/model"
	"library-admin/internal/shared/objstore"
	"library-admin/internal/shared/storage"
	"library-admin/internal/shared/storage/factory"
	"library-admin/pkg/logging"
)

// memFiles 内存文件存储
type memFiles struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newMemFiles() *memFiles {
	return &memFiles{objects: map[string][]byte{}}
}

func (m *memFiles) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memFiles) Download(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, objstore.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memFiles) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

// failingReports CreateReport 总是失败
type failingReports struct {
	storage.ReportStore
}

func (failingReports) CreateReport(context.Context, *model.Report) error {
	return errors.New("disk full")
}

type fixture struct {
	store *factory.RepositoryStore
	svc   *ledger.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := factory.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.CreateStudent(ctx, &model.Student{ID: "stu-1", StudentID: "S1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}))
	require.NoError(t, store.CreateStudent(ctx, &model.Student{ID: "stu-2", StudentID: "S2", FirstName: "Alan", LastName: "Turing", Email: "alan@example.com"}))
	for _, id := range []string{"R1", "R2"} {
		require.NoError(t, store.CreateResource(ctx, &model.Resource{
			ResourceID: id, Title: "Title " + id, ResourceType: model.ResourceTypeBook,
			Author: "A", PublicationYear: 2000, Status: model.ResourceStatusAvailable,
		}))
	}

	logger := logging.NewWithWriter(logging.Config{}, io.Discard)
	svc := ledger.NewService(store, ledger.NewMetrics(prometheus.NewRegistry()), logger)
	return &fixture{store: store, svc: svc}
}

// seed S1 借 R1 并已归还；S2 借 R2 且 3 天前已到期
func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	today := model.Today()

	b, err := f.svc.CreateBorrow(ctx, ledger.BorrowRequest{StudentID: "S1", ResourceID: "R1", DueDate: today.AddDays(7).String()})
	require.NoError(t, err)
	_, err = f.svc.CreateReturn(ctx, ledger.ReturnRequest{BorrowRecordID: b.ID})
	require.NoError(t, err)

	require.NoError(t, f.store.CreateBorrow(ctx, &model.Borrow{
		ID: "brw-overdue", StudentRef: "stu-2", ResourceID: "R2",
		BorrowDate: today.AddDays(-20), DueDate: today.AddDays(-3),
	}))
}

func (f *fixture) mux(store storage.ReportStore, files FileStore) *http.ServeMux {
	mux := http.NewServeMux()
	NewHandler(store, f.svc, files, access.ReadOnlyOrElevatedPolicy).RegisterRoutes(mux)
	return mux
}

func do(t *testing.T, mux *http.ServeMux, role model.UserRole, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req = req.WithContext(auth.WithAuthUser(context.Background(), &auth.AuthUser{ID: "usr-lib", Role: role}))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func rangeBody(typ string, from, to model.Date) map[string]string {
	return map[string]string{"report_type": typ, "start_date": from.String(), "end_date": to.String()}
}

func parseCSV(t *testing.T, data string) [][]string {
	t.Helper()
	records, err := csv.NewReader(strings.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestCollect(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()
	today := model.Today()

	rows, err := Collect(ctx, f.svc, model.ReportTypeBorrow, today.AddDays(-30), today)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = Collect(ctx, f.svc, model.ReportTypeBorrow, today, today)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, today.String(), rows[0].Date.String())
	assert.Equal(t, "Ada Lovelace", rows[0].Name)
	assert.Equal(t, "Title R1", rows[0].Title)

	rows, err = Collect(ctx, f.svc, model.ReportTypeReturn, today, today)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "S1", rows[0].StudentID)

	rows, err = Collect(ctx, f.svc, model.ReportTypeOverdue, today.AddDays(-30), today)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "S2", rows[0].StudentID)
	assert.Equal(t, today.AddDays(-3).String(), rows[0].Date.String())

	rows, err = Collect(ctx, f.svc, model.ReportTypeOverdue, today.AddDays(-2), today)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = Collect(ctx, f.svc, model.ReportType("WEEKLY"), today, today)
	assert.Error(t, err)
}

func TestCreateWithObjectStore(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	files := newMemFiles()
	mux := f.mux(f.store, files)
	today := model.Today()

	w := do(t, mux, model.UserRoleLibrarian, http.MethodPost, "/api/reports/", rangeBody("borrow", today.AddDays(-30), today))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rep model.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	assert.Equal(t, model.ReportTypeBorrow, rep.ReportType)
	assert.Equal(t, 2, rep.RowCount)
	assert.Equal(t, objstore.ReportKey(rep.ID), rep.File)
	assert.Equal(t, "usr-lib", rep.CreatedBy)
	require.Contains(t, files.objects, rep.File)

	w = do(t, mux, model.UserRoleStudent, http.MethodGet, "/api/reports/"+rep.ID+"/file", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	records := parseCSV(t, w.Body.String())
	require.Len(t, records, 3)
	assert.Equal(t, csvHeader, records[0])

	delete(files.objects, rep.File)
	w = do(t, mux, model.UserRoleStudent, http.MethodGet, "/api/reports/"+rep.ID+"/file", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateWithoutObjectStore(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	mux := f.mux(f.store, nil)
	today := model.Today()

	w := do(t, mux, model.UserRoleAdmin, http.MethodPost, "/api/reports/", rangeBody("OVERDUE", today.AddDays(-30), today))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rep model.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	assert.Empty(t, rep.File)
	assert.Equal(t, 1, rep.RowCount)

	w = do(t, mux, model.UserRoleStudent, http.MethodGet, "/api/reports/"+rep.ID+"/file", nil)
	require.Equal(t, http.StatusOK, w.Code)
	records := parseCSV(t, w.Body.String())
	require.Len(t, records, 2)
	assert.Equal(t, []string{"OVERDUE", today.AddDays(-3).String(), "S2", "Alan Turing", "R2", "Title R2"}, records[1])
}

func TestStoredFileSurvivesLedgerChanges(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	mux := f.mux(f.store, nil)
	today := model.Today()
	ctx := context.Background()

	w := do(t, mux, model.UserRoleLibrarian, http.MethodPost, "/api/reports/", rangeBody("OVERDUE", today.AddDays(-30), today))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rep model.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))

	w = do(t, mux, model.UserRoleStudent, http.MethodGet, "/api/reports/"+rep.ID+"/file", nil)
	require.Equal(t, http.StatusOK, w.Code)
	before := w.Body.String()

	_, err := f.svc.CreateReturn(ctx, ledger.ReturnRequest{BorrowRecordID: "brw-overdue"})
	require.NoError(t, err)
	rows, err := Collect(ctx, f.svc, model.ReportTypeOverdue, today.AddDays(-30), today)
	require.NoError(t, err)
	require.Empty(t, rows)

	w = do(t, mux, model.UserRoleStudent, http.MethodGet, "/api/reports/"+rep.ID+"/file", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, before, w.Body.String())
	assert.Len(t, parseCSV(t, w.Body.String()), 2)

	// 列表不携带 CSV 内容
	list, err := f.store.ListReports(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Content)
}

func TestFileNotStored(t *testing.T) {
	f := newFixture(t)
	today := model.Today()
	require.NoError(t, f.store.CreateReport(context.Background(), &model.Report{
		ID: "rpt-remote", ReportType: model.ReportTypeBorrow, GeneratedAt: time.Now().UTC(), StartDate: today, EndDate: today,
		File: objstore.ReportKey("rpt-remote"),
	}))

	// 文件在对象存储中，但当前未配置对象存储
	w := do(t, f.mux(f.store, nil), model.UserRoleStudent, http.MethodGet, "/api/reports/rpt-remote/file", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "report file not stored")
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	mux := f.mux(f.store, nil)
	today := model.Today()

	tests := []struct {
		name   string
		role   model.UserRole
		body   map[string]string
		status int
	}{
		{"student cannot generate", model.UserRoleStudent, rangeBody("BORROW", today, today), http.StatusForbidden},
		{"unknown type", model.UserRoleLibrarian, rangeBody("WEEKLY", today, today), http.StatusBadRequest},
		{"end before start", model.UserRoleLibrarian, rangeBody("BORROW", today, today.AddDays(-1)), http.StatusBadRequest},
		{"missing dates", model.UserRoleLibrarian, map[string]string{"report_type": "BORROW"}, http.StatusBadRequest},
		{"bad date", model.UserRoleLibrarian, map[string]string{"report_type": "BORROW", "start_date": "yesterday", "end_date": today.String()}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, mux, tt.role, http.MethodPost, "/api/reports/", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestCreateCleansUpFileOnStoreFailure(t *testing.T) {
	f := newFixture(t)
	files := newMemFiles()
	mux := f.mux(failingReports{f.store}, files)
	today := model.Today()

	w := do(t, mux, model.UserRoleLibrarian, http.MethodPost, "/api/reports/", rangeBody("RETURN", today, today))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, files.objects)
	require.Len(t, files.deleted, 1)
	assert.True(t, strings.HasPrefix(files.deleted[0], "reports/rpt-"))
}

func TestListAndGet(t *testing.T) {
	f := newFixture(t)
	mux := f.mux(f.store, nil)
	today := model.Today()

	for _, typ := range []string{"BORROW", "RETURN"} {
		w := do(t, mux, model.UserRoleLibrarian, http.MethodPost, "/api/reports/", rangeBody(typ, today, today))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := do(t, mux, model.UserRoleStudent, http.MethodGet, "/api/reports/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var reports []model.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reports))
	require.Len(t, reports, 2)

	w = do(t, mux, model.UserRoleStudent, http.MethodGet, "/api/reports/"+reports[0].ID+"/", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, mux, model.UserRoleStudent, http.MethodGet, "/api/reports/rpt-missing/", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, mux, model.UserRoleStudent, http.MethodGet, "/api/reports/rpt-missing/file", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
