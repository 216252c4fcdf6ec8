package student

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-admin/internal/apiserver/access"
	"library-admin/internal/apiserver/auth"
	"library-admin/internal/shared/model"
	"library-admin/internal/shared/storage/factory"
)

type testEnv struct {
	mux *http.ServeMux
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := factory.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	mux := http.NewServeMux()
	NewHandler(store, access.ReadOnlyOrElevatedPolicy).RegisterRoutes(mux)
	return &testEnv{mux: mux}
}

func (e *testEnv) do(t *testing.T, role model.UserRole, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if role != "" {
		req = req.WithContext(auth.WithAuthUser(context.Background(), &auth.AuthUser{ID: "usr-1", Username: "u", Role: role}))
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func (e *testEnv) create(t *testing.T, body map[string]string) model.Student {
	t.Helper()
	w := e.do(t, model.UserRoleLibrarian, http.MethodPost, "/api/students/", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var s model.Student
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	return s
}

func student(id, first, last, email string) map[string]string {
	return map[string]string{"student_id": id, "first_name": first, "last_name": last, "email": email, "phone": "0911000000"}
}

func TestCreateAndGet(t *testing.T) {
	e := newTestEnv(t)
	s := e.create(t, student("S1", "Ada", "Lovelace", "ada@example.com"))
	assert.Regexp(t, `^stu-[0-9a-f]{12}$`, s.ID)

	w := e.do(t, model.UserRoleStudent, http.MethodGet, "/api/students/"+s.ID+"/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got model.Student
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "S1", got.StudentID)
	assert.Equal(t, "Ada Lovelace", got.FullName())

	w = e.do(t, model.UserRoleStudent, http.MethodGet, "/api/students/stu-missing/", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateValidation(t *testing.T) {
	e := newTestEnv(t)
	e.create(t, student("S1", "Ada", "Lovelace", "ada@example.com"))

	tests := []struct {
		name string
		body map[string]string
		msg  string
	}{
		{"missing first name", student("S2", "", "X", "x@example.com"), "first_name is required"},
		{"bad email", student("S2", "X", "Y", "not-an-email"), "enter a valid email address"},
		{"long student id", student("S2345678901X", "X", "Y", "x@example.com"), "student_id must be at most 11 characters"},
		{"duplicate student id", student("S1", "X", "Y", "x@example.com"), "student with this student_id already exists"},
		{"duplicate email", student("S3", "X", "Y", "ada@example.com"), "student with this email already exists"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(t, model.UserRoleLibrarian, http.MethodPost, "/api/students/", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.JSONEq(t, `{"error":"`+tt.msg+`"}`, w.Body.String())
		})
	}

	long := student("S9", "X", "Y", "y@example.com")
	long["phone"] = "123456789012"
	w := e.do(t, model.UserRoleLibrarian, http.MethodPost, "/api/students/", long)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAccess(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, "", http.MethodGet, "/api/students/", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, model.UserRoleStudent, http.MethodPost, "/api/students/", student("S1", "A", "B", "a@example.com"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, model.UserRoleAdmin, http.MethodPost, "/api/students/", student("S1", "A", "B", "a@example.com"))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestUpdate(t *testing.T) {
	e := newTestEnv(t)
	s := e.create(t, student("S1", "Ada", "Lovelace", "ada@example.com"))
	e.create(t, student("S2", "Alan", "Turing", "alan@example.com"))

	for _, method := range []string{http.MethodPatch, http.MethodPut} {
		w := e.do(t, model.UserRoleLibrarian, method, "/api/students/"+s.ID+"/", map[string]string{"phone": "0922"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got model.Student
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "0922", got.Phone)
		assert.Equal(t, "ada@example.com", got.Email)
	}

	w := e.do(t, model.UserRoleLibrarian, http.MethodPatch, "/api/students/"+s.ID+"/", map[string]string{"email": "alan@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, model.UserRoleLibrarian, http.MethodPatch, "/api/students/"+s.ID+"/", map[string]string{"first_name": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, model.UserRoleLibrarian, http.MethodPatch, "/api/students/stu-missing/", map[string]string{"phone": "1"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestList(t *testing.T) {
	e := newTestEnv(t)
	e.create(t, student("S1", "Ada", "Lovelace", "ada@example.com"))
	e.create(t, student("S2", "Alan", "Turing", "alan@example.com"))
	e.create(t, student("S3", "Grace", "Hopper", "grace@example.com"))

	list := func(query string) []string {
		w := e.do(t, model.UserRoleStudent, http.MethodGet, "/api/students/"+query, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got []model.Student
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		ids := make([]string, 0, len(got))
		for _, s := range got {
			ids = append(ids, s.StudentID)
		}
		return ids
	}

	assert.Len(t, list(""), 3)
	assert.Equal(t, []string{"S2"}, list("?student_id=S2"))
	assert.ElementsMatch(t, []string{"S1", "S3"}, list("?last_name__icontains=O"))
	assert.Equal(t, []string{"S3"}, list("?name=hop"))
	assert.Equal(t, []string{"S2"}, list("?search=alan@"))
	assert.Equal(t, []string{"S3", "S2", "S1"}, list("?ordering=-student_id"))
	assert.Equal(t, []string{"S2"}, list("?ordering=student_id&limit=1&offset=1"))
	assert.Empty(t, list("?email=nobody@example.com"))

	w := e.do(t, model.UserRoleStudent, http.MethodGet, "/api/students/?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidEmail(t *testing.T) {
	assert.True(t, validEmail("a.b@example.org"))
	assert.False(t, validEmail("Ada <ada@example.com>"))
	assert.False(t, validEmail("ada@localhost"))
	assert.False(t, validEmail("@example.com"))
}
