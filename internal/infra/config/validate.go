package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"maestro-console/internal/domain"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateAgent(cfg, ve)
	validateStream(cfg, ve)
	validateSession(cfg, ve)
	validateGateway(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateAgent(cfg *Config, ve *ValidationError) {
	a := cfg.Agent
	if a.BaseURL == "" {
		ve.Add("agent.base_url must not be empty")
	} else if u, err := url.Parse(a.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		ve.Add("agent.base_url %q must be an absolute http(s) URL", a.BaseURL)
	}
	if a.Model != "" && !domain.IsKnownModel(a.Model) {
		ve.Add("agent.model %q is invalid (want one of: %s)", a.Model, strings.Join(domain.KnownModels, ", "))
	}
	if a.ConnTimeout <= 0 {
		ve.Add("agent.conn_timeout must be > 0")
	}
	if a.HeaderTimeout < 0 {
		ve.Add("agent.header_timeout must be >= 0")
	}
	if a.RequestTimeout <= 0 {
		ve.Add("agent.request_timeout must be > 0")
	}
	if a.CircuitBreaker.MaxFailures == 0 {
		ve.Add("agent.circuit_breaker.max_failures must be > 0")
	}
	if a.CircuitBreaker.Timeout <= 0 {
		ve.Add("agent.circuit_breaker.timeout must be > 0")
	}
	if a.RateLimit.PerMinute < 0 {
		ve.Add("agent.rate_limit.per_minute must be >= 0")
	}
	if a.RateLimit.PerMinute > 0 && a.RateLimit.Burst <= 0 {
		ve.Add("agent.rate_limit.burst must be > 0 when rate limiting is enabled")
	}
}

func validateStream(cfg *Config, ve *ValidationError) {
	if cfg.Stream.ReadSize <= 0 {
		ve.Add("stream.read_size must be > 0")
	}
	if cfg.Stream.MaxLineBytes < cfg.Stream.ReadSize {
		ve.Add("stream.max_line_bytes must be >= stream.read_size")
	}
	for i, m := range cfg.Stream.EngineMarkers {
		if strings.TrimSpace(m) == "" {
			ve.Add("stream.engine_markers[%d] must not be empty", i)
		}
	}
}

func validateSession(cfg *Config, ve *ValidationError) {
	if cfg.Session.QuiescenceDelay < 0 {
		ve.Add("session.quiescence_delay must be >= 0")
	}
	if cfg.Session.IdleEngineLabel == "" {
		ve.Add("session.idle_engine_label must not be empty")
	}
}

func validateGateway(cfg *Config, ve *ValidationError) {
	if !cfg.Gateway.Enabled {
		return
	}
	if cfg.Gateway.Addr == "" {
		ve.Add("gateway.addr is required when gateway is enabled")
		return
	}
	if _, _, err := net.SplitHostPort(cfg.Gateway.Addr); err != nil {
		ve.Add("gateway.addr %q is not a valid host:port", cfg.Gateway.Addr)
	}
	switch cfg.Gateway.Auth.Type {
	case "", "static":
	default:
		ve.Add("gateway.auth.type %q is invalid (want: static)", cfg.Gateway.Auth.Type)
	}
	if cfg.Gateway.Auth.Type == "static" && len(cfg.Gateway.Auth.Tokens) == 0 {
		ve.Add("gateway.auth.tokens must not be empty when auth type is static")
	}
	for i, tok := range cfg.Gateway.Auth.Tokens {
		if tok.Token == "" {
			ve.Add("gateway.auth.tokens[%d].token must not be empty", i)
		}
	}
	if rl := cfg.Gateway.RateLimit; rl.PerMinute > 0 && rl.Burst <= 0 {
		ve.Add("gateway.rate_limit.burst must be positive when per_minute is set")
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is invalid (want: debug, info, warn, error)", cfg.Logger.Level)
	}
	switch cfg.Logger.Format {
	case "text", "json":
	default:
		ve.Add("logger.format %q is invalid (want: text, json)", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "noop", "stdout":
	default:
		ve.Add("tracer.exporter %q is invalid (want: noop, stdout)", cfg.Tracer.Exporter)
	}
}
