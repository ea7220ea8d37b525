// Package agentclient talks HTTP to the remote browser-automation agent.
package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"maestro-console/internal/domain"
	"maestro-console/internal/infra/config"
	"maestro-console/internal/infra/tracer"
)

// maxErrorBody caps how much of a failed response is quoted in errors.
const maxErrorBody = 512

// Client is the HTTP transport to the agent. Open returns the raw event
// stream body; the remaining methods are plain request/response calls.
type Client struct {
	baseURL string
	model   string

	stream  *http.Client // no overall timeout: bodies live as long as the session
	request *http.Client

	breaker *gobreaker.CircuitBreaker[*http.Response]
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New builds a Client from the agent config section.
func New(cfg config.AgentConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	reqTimeout := cfg.RequestTimeout
	if reqTimeout <= 0 {
		reqTimeout = defaultRequestTimeout
	}
	transport := newTransport(cfg.ConnTimeout, cfg.HeaderTimeout)

	var limiter *rate.Limiter
	if cfg.RateLimit.PerMinute > 0 {
		burst := cfg.RateLimit.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.PerMinute)/60.0, burst)
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		stream:  &http.Client{Transport: transport},
		request: &http.Client{Transport: transport, Timeout: reqTimeout},
		breaker: newBreaker(cfg.CircuitBreaker, logger),
		limiter: limiter,
		logger:  logger,
	}
}

// BaseURL returns the agent address the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// DefaultModel is the model used when a command does not name one.
func (c *Client) DefaultModel() string { return c.model }

// BreakerState reports the run circuit state for status displays.
func (c *Client) BreakerState() string { return c.breaker.State().String() }

// Open submits a command and returns the event stream body. The caller owns
// the body and must close it. Non-2xx responses are transport errors.
func (c *Client) Open(ctx context.Context, req domain.RunRequest) (io.ReadCloser, error) {
	const op = "agentclient.Open"

	if req.Model == "" {
		req.Model = c.model
	}
	if c.limiter != nil && !c.limiter.Allow() {
		return nil, domain.NewDomainError(op, domain.ErrRateLimit, "too many commands")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, err.Error())
	}

	ctx, span := tracer.StartSpan(ctx, "agentclient.open")
	defer span.End()
	span.SetAttributes(tracer.StringAttr(tracer.AttrModel, req.Model))

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run-agent", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "text/event-stream")

		resp, err := c.stream.Do(httpReq)
		if err != nil {
			return nil, err
		}
		if err := checkStatus(resp); err != nil {
			resp.Body.Close()
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		err = c.wrap(op, err)
		tracer.RecordError(span, err)
		return nil, err
	}
	tracer.SetOK(span)

	c.logger.Debug("agent stream opened", "model", req.Model, "status", resp.StatusCode)
	return resp.Body, nil
}

// HealthStatus is the agent's /health answer.
type HealthStatus struct {
	Status string `json:"status"`
}

// Health checks that the agent is reachable.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	err := c.getJSON(ctx, "agentclient.Health", "/health", &hs)
	return hs, err
}

// SaveLogs exports the session log to the agent host.
func (c *Client) SaveLogs(ctx context.Context, entries []domain.LogEntry) error {
	const op = "agentclient.SaveLogs"

	body, err := json.Marshal(map[string]string{"logs": FormatLogs(entries)})
	if err != nil {
		return domain.NewDomainError(op, domain.ErrInvalidInput, err.Error())
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/save-logs", bytes.NewReader(body))
	if err != nil {
		return domain.NewDomainError(op, domain.ErrInvalidInput, err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.request.Do(httpReq)
	if err != nil {
		return c.wrap(op, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return c.wrap(op, err)
	}
	return nil
}

// Reports lists the report files the agent has produced.
func (c *Client) Reports(ctx context.Context) ([]string, error) {
	var out struct {
		Reports []string `json:"reports"`
	}
	if err := c.getJSON(ctx, "agentclient.Reports", "/reports", &out); err != nil {
		return nil, err
	}
	return out.Reports, nil
}

// Report returns the content of one report.
func (c *Client) Report(ctx context.Context, name string) (string, error) {
	const op = "agentclient.Report"
	if strings.TrimSpace(name) == "" {
		return "", domain.NewDomainError(op, domain.ErrInvalidInput, "report name is empty")
	}
	var out struct {
		Content string `json:"content"`
	}
	if err := c.getJSON(ctx, op, "/reports/"+url.PathEscape(name), &out); err != nil {
		return "", err
	}
	return out.Content, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, dst any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return domain.NewDomainError(op, domain.ErrInvalidInput, err.Error())
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.request.Do(httpReq)
	if err != nil {
		return c.wrap(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.NewDomainError(op, domain.ErrNotFound, path)
	}
	if err := checkStatus(resp); err != nil {
		return c.wrap(op, err)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return domain.NewDomainError(op, domain.ErrTransport, "decode response: "+err.Error())
	}
	return nil
}

// statusError is a non-2xx answer from the agent.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

func (e *statusError) Unwrap() error { return domain.ErrAgentStatus }

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &statusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
}

// wrap maps transport and breaker failures onto domain sentinels.
func (c *Client) wrap(op string, err error) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return domain.NewDomainError(op, domain.ErrCircuitOpen, err.Error())
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return domain.NewDomainError(op, fmt.Errorf("%w: %w", domain.ErrTransport, domain.ErrTimeout), err.Error())
	}
	var se *statusError
	if errors.As(err, &se) {
		return domain.NewDomainError(op, fmt.Errorf("%w: %w", domain.ErrTransport, domain.ErrAgentStatus), se.Error())
	}
	return domain.NewDomainError(op, domain.ErrTransport, err.Error())
}

// FormatLogs renders entries as the plain-text export sent to /save-logs,
// one "[HH:MM:SS] [LEVEL] message" line per entry.
func FormatLogs(entries []domain.LogEntry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] [%s] %s\n", e.Timestamp.Format(time.TimeOnly), e.Level, e.Message)
	}
	return b.String()
}
