package access

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-admin/internal/apiserver/auth"
	"library-admin/internal/config"
	"library-admin/internal/shared/model"
)

var roles = []model.UserRole{model.UserRoleAdmin, model.UserRoleLibrarian, model.UserRoleStudent}

func TestPredicates(t *testing.T) {
	tests := []struct {
		role      model.UserRole
		librarian bool
		student   bool
		write     bool
	}{
		{model.UserRoleAdmin, true, true, true},
		{model.UserRoleLibrarian, true, false, true},
		{model.UserRoleStudent, false, true, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.librarian, IsLibrarian(true, tt.role))
			assert.Equal(t, tt.student, IsStudent(true, tt.role))
			assert.True(t, ReadOnlyOrElevated(true, tt.role, false))
			assert.Equal(t, tt.write, ReadOnlyOrElevated(true, tt.role, true))
		})
	}

	// 未认证时全部为 false
	for _, r := range roles {
		assert.False(t, IsLibrarian(false, r))
		assert.False(t, IsStudent(false, r))
		assert.False(t, ReadOnlyOrElevated(false, r, false))
		assert.False(t, ReadOnlyOrElevated(false, r, true))
	}
}

func TestIsWrite(t *testing.T) {
	assert.False(t, IsWrite(http.MethodGet))
	assert.False(t, IsWrite(http.MethodHead))
	assert.False(t, IsWrite(http.MethodOptions))
	assert.True(t, IsWrite(http.MethodPost))
	assert.True(t, IsWrite(http.MethodPatch))
	assert.True(t, IsWrite(http.MethodPut))
}

func TestPolicyByName(t *testing.T) {
	for _, name := range config.PolicyNames {
		p, err := PolicyByName(name)
		require.NoError(t, err)
		assert.Equal(t, name, p.Name)
	}
	_, err := PolicyByName("nobody")
	assert.Error(t, err)
}

func TestForGroup(t *testing.T) {
	cfg := &config.Config{Auth: config.AuthConfig{EnforceElevatedWrites: true, Policies: map[string]string{"reports": config.PolicyLibrarian}}}

	p, err := ForGroup(cfg, "borrows")
	require.NoError(t, err)
	assert.Equal(t, config.PolicyReadOnlyOrElevated, p.Name)

	p, err = ForGroup(cfg, "reports")
	require.NoError(t, err)
	assert.Equal(t, config.PolicyLibrarian, p.Name)

	cfg.Auth.EnforceElevatedWrites = false
	p, err = ForGroup(cfg, "borrows")
	require.NoError(t, err)
	assert.Equal(t, config.PolicyAuthenticated, p.Name)
}

func TestRequire(t *testing.T) {
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

	tests := []struct {
		name   string
		policy Policy
		role   model.UserRole
		method string
		status int
	}{
		{"student reads", ReadOnlyOrElevatedPolicy, model.UserRoleStudent, http.MethodGet, http.StatusOK},
		{"student creates borrow", ReadOnlyOrElevatedPolicy, model.UserRoleStudent, http.MethodPost, http.StatusForbidden},
		{"librarian creates borrow", ReadOnlyOrElevatedPolicy, model.UserRoleLibrarian, http.MethodPost, http.StatusOK},
		{"student writes when not enforced", Authenticated, model.UserRoleStudent, http.MethodPost, http.StatusOK},
		{"student reads librarian group", Librarian, model.UserRoleStudent, http.MethodGet, http.StatusForbidden},
		{"librarian student group", Student, model.UserRoleLibrarian, http.MethodGet, http.StatusForbidden},
		{"admin student group", Student, model.UserRoleAdmin, http.MethodPost, http.StatusOK},
		{"anonymous", Authenticated, "", http.MethodGet, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/borrows/", nil)
			if tt.role != "" {
				req = req.WithContext(auth.WithAuthUser(req.Context(), &auth.AuthUser{ID: "u", Role: tt.role}))
			}
			w := httptest.NewRecorder()
			Require(tt.policy)(ok)(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestCapabilitiesOf(t *testing.T) {
	assert.Equal(t, Capabilities{}, CapabilitiesOf(nil))
	assert.Equal(t, Capabilities{IsLibrarian: true, CanWrite: true},
		CapabilitiesOf(&auth.AuthUser{Role: model.UserRoleLibrarian}))
	assert.Equal(t, Capabilities{IsStudent: true},
		CapabilitiesOf(&auth.AuthUser{Role: model.UserRoleStudent}))
}
