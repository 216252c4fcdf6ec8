package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-admin/internal/shared/model"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWTSecret = "test-secret"
	return cfg
}

func testUser(role model.UserRole) *model.User {
	u := &model.User{ID: "usr-000000000001", Username: "alice"}
	u.AssignRole(role)
	return u
}

func TestIsPublicRoute(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		expected bool
	}{
		{"login", "POST", "/api/login/", true},
		{"refresh", "POST", "/api/token/refresh/", true},
		{"blacklist", "POST", "/api/token/blacklist/", true},
		{"health", "GET", "/health", true},
		{"metrics", "GET", "/metrics", true},
		{"openapi", "GET", "/api/openapi.yaml", true},
		{"preflight", "OPTIONS", "/api/students/", true},

		{"students", "GET", "/api/students/", false},
		{"create borrow", "POST", "/api/borrows/", false},
		{"me", "GET", "/api/me/", false},
		{"login prefix trick", "POST", "/api/login/../students/", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isPublicRoute(tt.method, tt.path))
		})
	}
}

func TestMiddleware(t *testing.T) {
	cfg := testConfig()
	var got *AuthUser
	h := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetAuthUser(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	access, err := GenerateAccessToken(cfg, testUser(model.UserRoleLibrarian))
	require.NoError(t, err)
	refresh, err := GenerateRefreshToken(cfg, testUser(model.UserRoleLibrarian))
	require.NoError(t, err)

	other := cfg
	other.JWTSecret = "other"
	forged, err := GenerateAccessToken(other, testUser(model.UserRoleAdmin))
	require.NoError(t, err)

	expiredCfg := cfg
	expiredCfg.AccessTokenTTL = -time.Minute
	expired, err := GenerateAccessToken(expiredCfg, testUser(model.UserRoleAdmin))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + forged, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"refresh token", "Bearer " + refresh, http.StatusUnauthorized},
		{"valid", "Bearer " + access, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = nil
			req := httptest.NewRequest(http.MethodGet, "/api/students/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				require.NotNil(t, got)
				assert.Equal(t, "usr-000000000001", got.ID)
				assert.Equal(t, model.UserRoleLibrarian, got.Role)
				assert.True(t, got.IsElevated)
			} else {
				assert.Nil(t, got)
				assert.Contains(t, w.Body.String(), `"error"`)
			}
		})
	}
}

func TestAdminOnly(t *testing.T) {
	h := AdminOnly(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	for _, tt := range []struct {
		user   *AuthUser
		status int
	}{
		{nil, http.StatusUnauthorized},
		{&AuthUser{ID: "u", Role: model.UserRoleLibrarian, IsElevated: true}, http.StatusForbidden},
		{&AuthUser{ID: "u", Role: model.UserRoleAdmin, IsElevated: true}, http.StatusNoContent},
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/users/", nil)
		if tt.user != nil {
			req = req.WithContext(WithAuthUser(req.Context(), tt.user))
		}
		w := httptest.NewRecorder()
		h(w, req)
		assert.Equal(t, tt.status, w.Code)
	}
}

func TestTokenClaims(t *testing.T) {
	cfg := testConfig()
	user := testUser(model.UserRoleStudent)

	access, err := GenerateAccessToken(cfg, user)
	require.NoError(t, err)
	claims, err := ParseToken(cfg, access)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeAccess, claims.Type)
	assert.Equal(t, model.UserRoleStudent, claims.Role)
	assert.False(t, claims.IsElevated)
	assert.NotEmpty(t, claims.ID)

	// 每个令牌 jti 唯一
	again, err := GenerateAccessToken(cfg, user)
	require.NoError(t, err)
	claims2, err := ParseToken(cfg, again)
	require.NoError(t, err)
	assert.NotEqual(t, claims.ID, claims2.ID)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.True(t, CheckPassword("s3cret-pass", hash))
	assert.False(t, CheckPassword("wrong", hash))
}
