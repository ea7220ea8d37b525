// Package middleware holds HTTP middleware shared by the gateway's routes.
package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"maestro-console/internal/domain"
)

// SecurityHeaders sets response headers for a JSON and WebSocket API that is
// never meant to be framed or cached.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		if r.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// staleAfter is how long an idle client's limiter is kept.
const staleAfter = 3 * time.Minute

// RateLimit applies a token bucket per client IP. perMinute <= 0 disables it.
// The pruning goroutine exits when ctx is cancelled.
func RateLimit(ctx context.Context, perMinute, burst int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst <= 0 {
		burst = 1
	}

	l := &clientLimiter{
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		clients: make(map[string]*limitedClient),
	}
	go l.pruneLoop(ctx)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(ClientIP(r), time.Now()) {
				w.Header().Set("Retry-After", strconv.Itoa(l.retryAfter()))
				writeRateLimited(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type limitedClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type clientLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*limitedClient
}

func (l *clientLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	c, ok := l.clients[ip]
	if !ok {
		c = &limitedClient{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now
	l.mu.Unlock()
	return c.limiter.AllowN(now, 1)
}

// retryAfter is the whole seconds until one token refills.
func (l *clientLimiter) retryAfter() int {
	secs := int(1/float64(l.limit)) + 1
	return max(secs, 1)
}

func (l *clientLimiter) prune(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, c := range l.clients {
		if now.Sub(c.lastSeen) > staleAfter {
			delete(l.clients, ip)
		}
	}
}

func (l *clientLimiter) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			l.prune(now)
		case <-ctx.Done():
			return
		}
	}
}

// ClientIP is the request's direct peer address without its port. Proxy
// headers are ignored; the gateway is expected to be reached directly.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeRateLimited(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(map[string]string{
		"error": domain.ErrRateLimit.Error(),
		"code":  string(domain.CodeRateLimit),
	})
}
