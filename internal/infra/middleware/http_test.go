package middleware

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	SecurityHeaders(okHandler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "no-referrer", w.Header().Get("Referrer-Policy"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestSecurityHeadersHSTSWithTLS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	w := httptest.NewRecorder()
	SecurityHeaders(okHandler).ServeHTTP(w, req)

	assert.Equal(t, "max-age=31536000; includeSubDomains", w.Header().Get("Strict-Transport-Security"))
}

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = addr
	return req
}

func TestRateLimitPerClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := RateLimit(ctx, 60, 2)(okHandler)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, requestFrom("10.0.0.1:5000"))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, requestFrom("10.0.0.1:5001"))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "RATE_LIMIT", body["code"])

	// Another client has its own bucket.
	w = httptest.NewRecorder()
	h.ServeHTTP(w, requestFrom("10.0.0.2:5000"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitDisabled(t *testing.T) {
	h := RateLimit(context.Background(), 0, 0)(okHandler)
	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, requestFrom("10.0.0.1:5000"))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestPruneDropsIdleClients(t *testing.T) {
	l := &clientLimiter{limit: 1, burst: 1, clients: make(map[string]*limitedClient)}
	now := time.Now()
	l.allow("a", now.Add(-time.Hour))
	l.allow("b", now)

	l.prune(now)
	assert.NotContains(t, l.clients, "a")
	assert.Contains(t, l.clients, "b")
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "10.0.0.1", ClientIP(requestFrom("10.0.0.1:80")))
	assert.Equal(t, "::1", ClientIP(requestFrom("[::1]:80")))
	assert.Equal(t, "pipe", ClientIP(requestFrom("pipe")))
}
