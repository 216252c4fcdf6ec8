package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Format: "json", Component: "api"}, &buf)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithUserID(ctx, "usr-1")
	l.WithContext(ctx).WithError(errors.New("boom")).Info("hello")

	m := decodeLine(t, &buf)
	assert.Equal(t, "hello", m["msg"])
	assert.Equal(t, "api", m["component"])
	assert.Equal(t, "req-1", m["request_id"])
	assert.Equal(t, "usr-1", m["user_id"])
	assert.Equal(t, "boom", m["error"])
}

func TestLogger_LedgerLog(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Format: "json"}, &buf)
	l.LedgerLog("borrow", "brw-1", slog.String("resource_id", "R1"))

	m := decodeLine(t, &buf)
	assert.Equal(t, "Ledger event", m["msg"])
	assert.Equal(t, "borrow", m["action"])
	assert.Equal(t, "brw-1", m["borrow_id"])
	assert.Equal(t, "R1", m["resource_id"])
}

func TestMiddleware_RequestID(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Format: "json"}, &buf)

	var seen string
	h := Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	// 生成新 ID
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/students/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(HeaderRequestID))

	m := decodeLine(t, &buf)
	assert.Equal(t, float64(http.StatusTeapot), m["status"])
	assert.Equal(t, "/api/students/", m["path"])
	assert.Equal(t, seen, m["request_id"])

	// 沿用客户端 ID
	buf.Reset()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, "client-id")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "client-id", seen)
	assert.Equal(t, "client-id", w.Header().Get(HeaderRequestID))
}
