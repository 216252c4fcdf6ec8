package returns

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-admin/internal/apiserver/access"
	"library-admin/internal/apiserver/auth"
	"library-admin/internal/apiserver/ledger"
	"library-admin/internal/shared/model"
	"library-admin/internal/shared/storage/factory"
	"library-admin/pkg/logging"
)

type testEnv struct {
	mux   *http.ServeMux
	store *factory.RepositoryStore
	svc   *ledger.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := factory.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.CreateStudent(ctx, &model.Student{ID: "stu-1", StudentID: "S1", FirstName: "Ada", Email: "ada@example.com"}))
	require.NoError(t, store.CreateResource(ctx, &model.Resource{
		ResourceID: "R1", Title: "Go", ResourceType: model.ResourceTypeBook,
		Author: "A", PublicationYear: 2000, Status: model.ResourceStatusAvailable,
	}))

	logger := logging.NewWithWriter(logging.Config{}, io.Discard)
	svc := ledger.NewService(store, ledger.NewMetrics(prometheus.NewRegistry()), logger)

	mux := http.NewServeMux()
	NewHandler(svc, access.ReadOnlyOrElevatedPolicy).RegisterRoutes(mux)
	return &testEnv{mux: mux, store: store, svc: svc}
}

func (e *testEnv) do(t *testing.T, role model.UserRole, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req = req.WithContext(auth.WithAuthUser(context.Background(), &auth.AuthUser{ID: "usr-1", Role: role}))
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func (e *testEnv) borrow(t *testing.T) *model.Borrow {
	t.Helper()
	b, err := e.svc.CreateBorrow(context.Background(), ledger.BorrowRequest{
		StudentID: "S1", ResourceID: "R1", DueDate: model.Today().AddDays(7).String(),
	})
	require.NoError(t, err)
	return b
}

func TestCreateReturn(t *testing.T) {
	e := newTestEnv(t)
	b := e.borrow(t)

	w := e.do(t, model.UserRoleLibrarian, http.MethodPost, "/api/returns/",
		map[string]string{"borrow_record_id": b.ID, "condition_notes": "cover scratched"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rt model.Return
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rt))
	assert.Regexp(t, `^ret-[0-9a-f]{12}$`, rt.ID)
	assert.Equal(t, model.Today().String(), rt.ReturnDate.String())
	require.NotNil(t, rt.Borrow)
	assert.Equal(t, model.BorrowStatusReturned, rt.Borrow.Status)

	res, err := e.store.GetResource(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, model.ResourceStatusAvailable, res.Status)

	// 同一借阅不能归还两次
	w = e.do(t, model.UserRoleLibrarian, http.MethodPost, "/api/returns/", map[string]string{"borrow_record_id": b.ID})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"borrow record is not active"}`, w.Body.String())
}

func TestCreateReturnErrors(t *testing.T) {
	e := newTestEnv(t)
	b := e.borrow(t)

	w := e.do(t, model.UserRoleStudent, http.MethodPost, "/api/returns/", map[string]string{"borrow_record_id": b.ID})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, model.UserRoleLibrarian, http.MethodPost, "/api/returns/", map[string]string{"borrow_record_id": "brw-missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, model.UserRoleLibrarian, http.MethodPost, "/api/returns/", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAndGet(t *testing.T) {
	e := newTestEnv(t)
	b := e.borrow(t)
	rt, err := e.svc.CreateReturn(context.Background(), ledger.ReturnRequest{BorrowRecordID: b.ID})
	require.NoError(t, err)

	list := func(query string) []model.Return {
		w := e.do(t, model.UserRoleStudent, http.MethodGet, "/api/returns/"+query, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got []model.Return
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		return got
	}

	assert.Len(t, list(""), 1)
	assert.Len(t, list("?borrow_record_id="+b.ID), 1)
	assert.Empty(t, list("?borrow_record_id=brw-other"))
	assert.Empty(t, list("?return_date_from="+model.Today().AddDays(1).String()))

	w := e.do(t, model.UserRoleStudent, http.MethodGet, "/api/returns/"+rt.ID+"/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got model.Return
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, b.ID, got.BorrowID)

	w = e.do(t, model.UserRoleStudent, http.MethodGet, "/api/returns/ret-missing/", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
