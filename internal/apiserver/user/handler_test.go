package user

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
	"library-admin/internal/shared/apperr"
	"library-admin/internal/shared/model"
	"library-admin/internal/shared/storage/factory"
)

type testEnv struct {
	mux   *http.ServeMux
	store *factory.RepositoryStore
	admin *model.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := factory.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	admin, err := auth.EnsureAdminUser(context.Background(), store, "admin", "admin@example.com", "admin-pass")
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewHandler(store).RegisterRoutes(mux)
	return &testEnv{mux: mux, store: store, admin: admin}
}

func (e *testEnv) do(t *testing.T, as *auth.AuthUser, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if as != nil {
		req = req.WithContext(auth.WithAuthUser(context.Background(), as))
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func (e *testEnv) adminUser() *auth.AuthUser {
	return &auth.AuthUser{ID: e.admin.ID, Username: e.admin.Username, Role: model.UserRoleAdmin, IsElevated: true}
}

func TestCreateUser(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, e.adminUser(), http.MethodPost, "/api/users/", map[string]string{
		"username": "libby", "email": "libby@example.com", "password": "long-enough", "role": "librarian",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var u model.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
	assert.Equal(t, model.UserRoleLibrarian, u.Role)
	assert.True(t, u.IsElevated)
	assert.NotContains(t, w.Body.String(), "password")

	stored, err := e.store.GetUserByUsername(context.Background(), "libby")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword("long-enough", stored.PasswordHash))
}

func TestCreateUserValidation(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name string
		body map[string]string
		msg  string
	}{
		{"short password", map[string]string{"username": "x", "password": "short", "role": "student"}, "password must be at least 8 characters"},
		{"bad role", map[string]string{"username": "x", "password": "long-enough", "role": "root"}, `"root" is not a valid role`},
		{"duplicate username", map[string]string{"username": "admin", "password": "long-enough"}, "a user with that username already exists"},
		{"missing username", map[string]string{"password": "long-enough"}, "username is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(t, e.adminUser(), http.MethodPost, "/api/users/", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.msg, body["error"])
		})
	}
}

func TestCreateUserRequiresAdmin(t *testing.T) {
	e := newTestEnv(t)
	body := map[string]string{"username": "x", "password": "long-enough"}

	w := e.do(t, &auth.AuthUser{ID: "usr-2", Role: model.UserRoleLibrarian}, http.MethodPost, "/api/users/", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, nil, http.MethodPost, "/api/users/", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDefaultRoleIsStudent(t *testing.T) {
	e := newTestEnv(t)
	u, err := Create(context.Background(), e.store, NewUser{Username: "sam", Password: "long-enough"})
	require.NoError(t, err)
	assert.Equal(t, model.UserRoleStudent, u.Role)
	assert.False(t, u.IsElevated)

	_, err = Create(context.Background(), e.store, NewUser{Username: "sam", Password: "long-enough"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestListAndGet(t *testing.T) {
	e := newTestEnv(t)
	student := &auth.AuthUser{ID: "usr-x", Role: model.UserRoleStudent}

	w := e.do(t, student, http.MethodGet, "/api/users/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users []model.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Equal(t, "admin", users[0].Username)

	w = e.do(t, student, http.MethodGet, "/api/users/"+e.admin.ID+"/", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, student, http.MethodGet, "/api/users/usr-missing/", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, nil, http.MethodGet, "/api/users/", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMe(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, e.adminUser(), http.MethodGet, "/api/me/", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp meResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "admin", resp.User.Username)
	assert.Equal(t, access.Capabilities{IsLibrarian: true, IsStudent: true, CanWrite: true}, resp.Capabilities)

	u, err := Create(context.Background(), e.store, NewUser{Username: "sam", Password: "long-enough", Role: model.UserRoleStudent})
	require.NoError(t, err)
	w = e.do(t, &auth.AuthUser{ID: u.ID, Username: u.Username, Role: u.Role}, http.MethodGet, "/api/me/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, access.Capabilities{IsStudent: true}, resp.Capabilities)
}
