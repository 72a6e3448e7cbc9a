package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/sitekeeper/internal/server/handlers"
	"github.com/iudanet/sitekeeper/internal/server/jwt"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// syncBuffer потокобезопасный буфер для перехвата логов
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func bufferLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

func forbidden(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})
}

func TestAuthMiddleware_Success(t *testing.T) {
	tokens := jwt.NewService([]byte("test-secret-key"), 15*time.Minute)
	token, _, err := tokens.Issue("op-123", "editor")
	require.NoError(t, err)

	handler := AuthMiddleware(setupTestLogger(), tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operatorID, ok := handlers.GetOperatorID(r.Context())
		require.True(t, ok, "operator_id should be in context")
		assert.Equal(t, "op-123", operatorID)

		username, ok := handlers.GetUsername(r.Context())
		require.True(t, ok, "username should be in context")
		assert.Equal(t, "editor", username)

		_, _ = w.Write([]byte("OK"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/content", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	tokens := jwt.NewService([]byte("test-secret-key"), 15*time.Minute)
	foreign, _, err := jwt.NewService([]byte("other-secret"), 15*time.Minute).Issue("op-1", "editor")
	require.NoError(t, err)
	expired, _, err := jwt.NewService([]byte("test-secret-key"), -time.Minute).Issue("op-1", "editor")
	require.NoError(t, err)

	tests := []struct {
		name        string
		header      string
		wantMessage string
	}{
		{name: "missing header", header: "", wantMessage: "missing token"},
		{name: "no Bearer prefix", header: "token123", wantMessage: "invalid token format"},
		{name: "wrong scheme", header: "Basic token123", wantMessage: "invalid token format"},
		{name: "only Bearer", header: "Bearer", wantMessage: "invalid token format"},
		{name: "malformed token", header: "Bearer invalid.token.here", wantMessage: "invalid token"},
		{name: "empty token", header: "Bearer ", wantMessage: "invalid token"},
		{name: "wrong secret", header: "Bearer " + foreign, wantMessage: "invalid token"},
		{name: "expired", header: "Bearer " + expired, wantMessage: "invalid token"},
	}

	handler := AuthMiddleware(setupTestLogger(), tokens)(forbidden(t))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/content", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Contains(t, w.Body.String(), `"error":"unauthorized"`)
			assert.Contains(t, w.Body.String(), tt.wantMessage)
		})
	}
}
