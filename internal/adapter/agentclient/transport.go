package agentclient

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"maestro-console/internal/infra/config"
)

// Default breaker and transport settings.
const (
	defaultCBMaxFailures uint32        = 3
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second

	defaultConnTimeout    = 10 * time.Second
	defaultRequestTimeout = 15 * time.Second

	maxIdleConns        = 8
	maxIdleConnsPerHost = 4
	idleConnTimeout     = 90 * time.Second
)

// newTransport builds the pooled transport shared by both HTTP clients.
// headerTimeout bounds how long the agent may take to start answering a
// command; once headers arrive the body is unbounded.
func newTransport(connTimeout, headerTimeout time.Duration) *http.Transport {
	if connTimeout <= 0 {
		connTimeout = defaultConnTimeout
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: headerTimeout,
		MaxIdleConns:          maxIdleConns,
		MaxIdleConnsPerHost:   maxIdleConnsPerHost,
		IdleConnTimeout:       idleConnTimeout,
		ForceAttemptHTTP2:     true,
	}
}

// newBreaker guards stream initiation. Failures after the response headers
// arrive belong to the session, not the breaker.
func newBreaker(cfg config.CircuitBreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker[*http.Response] {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "agent:run",
		MaxRequests: 1, // one probe in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			// An operator stop is not an agent failure.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}
