// Package session runs one agent command at a time: it opens the event stream,
// pulls it chunk by chunk through the decoder, classifier and reducer, and
// commits one coalesced delta per read.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"maestro-console/internal/adapter/agentstream"
	"maestro-console/internal/domain"
	"maestro-console/internal/infra/tracer"
	"maestro-console/internal/usecase/projection"
)

// Defaults applied by NewController.
const (
	DefaultQuiescenceDelay = 3 * time.Second
	DefaultReadSize        = 4096
)

// Transport opens the agent's event stream for a command. The returned body
// is closed by the controller.
type Transport interface {
	Open(ctx context.Context, req domain.RunRequest) (io.ReadCloser, error)
}

// Deps holds injected dependencies for the controller.
type Deps struct {
	Transport Transport
	Store     *projection.Store
	Reducer   *projection.Reducer
	Logger    *slog.Logger
	Bus       domain.EventBus // optional, nil = no events

	DefaultModel string
	// QuiescenceDelay is how long a finished session keeps its final state
	// before the console returns to idle. Zero means DefaultQuiescenceDelay;
	// negative means finalize immediately.
	QuiescenceDelay time.Duration
	ReadSize        int
	MaxLineBytes    int
	NewID           func() string // session ids
}

// Status describes the active session, if any.
type Status struct {
	Active    bool             `json:"active"`
	SessionID string           `json:"session_id,omitempty"`
	Command   string           `json:"command,omitempty"`
	Model     string           `json:"model,omitempty"`
	Token     projection.Token `json:"token,omitempty"`
}

// run is one session from Start until it is finalized or stopped.
type run struct {
	id      string
	token   projection.Token
	command string
	model   string
	cancel  context.CancelFunc

	// ended is set once the stream is over and only finalization remains.
	// Guarded by Controller.mu.
	ended bool
}

// Controller owns the session lifecycle. At most one session is active; it
// stays active through the quiescence delay until finalized or stopped.
type Controller struct {
	deps Deps

	mu     sync.Mutex
	active *run
	wg     sync.WaitGroup
}

// NewController creates a controller with the given dependencies.
func NewController(deps Deps) *Controller {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.QuiescenceDelay == 0 {
		deps.QuiescenceDelay = DefaultQuiescenceDelay
	}
	if deps.ReadSize <= 0 {
		deps.ReadSize = DefaultReadSize
	}
	if deps.DefaultModel == "" {
		deps.DefaultModel = "auto"
	}
	if deps.NewID == nil {
		deps.NewID = projection.NewIDGenerator()
	}
	return &Controller{deps: deps}
}

// Start begins a session for command. It fails with domain.ErrSessionBusy
// while another session is active, without touching the projection.
// The session outlives ctx's cancellation but keeps its values.
func (c *Controller) Start(ctx context.Context, command, model string) (projection.Token, error) {
	const op = "session.Start"

	command = strings.TrimSpace(command)
	if command == "" {
		return 0, domain.NewDomainError(op, domain.ErrInvalidInput, "command is empty")
	}
	if model == "" {
		model = c.deps.DefaultModel
	}
	if !domain.IsKnownModel(model) {
		return 0, domain.NewDomainError(op, domain.ErrInvalidInput, "unknown model "+model)
	}

	c.mu.Lock()
	if c.active != nil {
		busy := c.active.id
		c.mu.Unlock()
		c.publish(domain.EventSessionRejected, busy, domain.SessionPayload{Command: command, Model: model})
		return 0, domain.NewDomainError(op, domain.ErrSessionBusy, "session "+busy+" is running")
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{
		id:      c.deps.NewID(),
		token:   c.deps.Store.Begin(),
		command: command,
		model:   model,
		cancel:  cancel,
	}
	c.active = r
	c.deps.Store.Commit(r.token, c.deps.Reducer.StartDelta(command))
	c.wg.Add(1)
	c.mu.Unlock()

	c.deps.Logger.Info("session started", "session", r.id, "model", model)
	c.publish(domain.EventSessionStarted, r.id, domain.SessionPayload{Command: command, Model: model})

	go c.loop(runCtx, r)
	return r.token, nil
}

// Stop interrupts the active session: reads are cancelled, the session token
// is invalidated and the terminal entry plus idle projection are committed
// immediately. A session whose stream already ended is only finalized, with
// no interruption entry. It reports false when no session was active.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	r := c.active
	if r == nil {
		c.mu.Unlock()
		return false
	}
	c.active = nil
	r.cancel()
	d := c.deps.Reducer.StopDelta()
	if r.ended {
		d = c.deps.Reducer.FinalizeDelta()
	}
	tok := c.deps.Store.Begin()
	c.deps.Store.Commit(tok, d)
	c.mu.Unlock()

	c.deps.Logger.Info("session stopped by operator", "session", r.id)
	c.publish(domain.EventSessionStopped, r.id, domain.SessionPayload{Command: r.command, Model: r.model})
	return true
}

// Active reports whether a session is running or awaiting finalization.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// Status returns the active session's description.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return Status{}
	}
	return Status{
		Active:    true,
		SessionID: c.active.id,
		Command:   c.active.command,
		Model:     c.active.model,
		Token:     c.active.token,
	}
}

// Shutdown stops the active session and waits for its goroutine to exit.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.Stop()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// loop is the single reader of one session's stream.
func (c *Controller) loop(ctx context.Context, r *run) {
	defer c.wg.Done()
	defer r.cancel()

	ctx, span := tracer.StartSession(ctx, r.id, r.command, r.model)
	defer span.End()

	log := c.deps.Logger.With("session", r.id)
	store, reducer := c.deps.Store, c.deps.Reducer

	body, err := c.deps.Transport.Open(ctx, domain.RunRequest{Command: r.command, Model: r.model})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.fail(r, span, log, err)
		c.finalize(ctx, r, log)
		return
	}
	defer body.Close()
	stopClose := context.AfterFunc(ctx, func() { body.Close() })
	defer stopClose()

	if !store.Commit(r.token, reducer.ConnectedDelta(r.model)) {
		return
	}

	dec := agentstream.NewDecoder(agentstream.DecoderOptions{
		MaxLineBytes: c.deps.MaxLineBytes,
		OnMalformed: func(line []byte, err error) {
			log.Warn("malformed stream record", "error", err, "bytes", len(line))
			c.publish(domain.EventRecordMalformed, r.id, domain.SessionPayload{Error: err.Error()})
		},
	})

	var (
		batch       projection.Batch
		events      int
		commits     int
		agentFailed bool
		buf         = make([]byte, c.deps.ReadSize)
	)
	commit := func(recs []agentstream.Record) bool {
		var reported *domain.ErrorEvent
		for _, rec := range recs {
			ev := agentstream.Classify(rec)
			switch e := ev.(type) {
			case domain.UnknownEvent:
				log.Debug("unknown event ignored", "type", e.Type, "seq", rec.Seq)
			case domain.ErrorEvent:
				reported = &e
			}
			batch.Add(reducer.Delta(ev))
			events++
		}
		d := batch.Take()
		if d.Empty() {
			return true
		}
		if !store.Commit(r.token, d) {
			log.Debug("stale commit discarded")
			return false
		}
		commits++
		if reported != nil {
			agentFailed = true
			c.agentError(r, span, log, reported.Message)
		}
		return true
	}
	defer func() {
		st := dec.Stats()
		span.SetAttributes(
			tracer.IntAttr(tracer.AttrEvents, events),
			tracer.IntAttr(tracer.AttrCommits, commits),
			tracer.IntAttr(tracer.AttrMalformed, st.Malformed),
		)
	}()

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if !commit(dec.Feed(buf[:n])) {
				return
			}
		}
		if readErr == nil {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		if !errors.Is(readErr, io.EOF) {
			c.fail(r, span, log, readErr)
			break
		}
		if !commit(dec.Flush()) {
			return
		}
		if !agentFailed {
			tracer.SetOK(span)
		}
		log.Info("stream ended", "events", events, "commits", commits)
		break
	}

	c.finalize(ctx, r, log)
}

// fail commits the transport failure for r.
func (c *Controller) fail(r *run, span trace.Span, log *slog.Logger, err error) {
	tracer.RecordError(span, err)
	log.Error("agent transport failed", "error", err)
	c.deps.Store.Commit(r.token, c.deps.Reducer.TransportErrorDelta(err))
	c.publish(domain.EventSessionFailed, r.id, domain.SessionPayload{
		Command:   r.command,
		Model:     r.model,
		Error:     err.Error(),
		Retryable: domain.IsRetryableError(err),
	})
}

// agentError publishes an error the agent itself reported in the stream.
// The ERROR entry was already committed by the reducer.
func (c *Controller) agentError(r *run, span trace.Span, log *slog.Logger, msg string) {
	if msg == "" {
		msg = "agent reported an error"
	}
	tracer.RecordError(span, errors.New(msg))
	log.Warn("agent reported an error", "message", msg)
	c.publish(domain.EventSessionFailed, r.id, domain.SessionPayload{
		Command: r.command,
		Model:   r.model,
		Error:   msg,
	})
}

// finalize waits out the quiescence delay, then returns the console to idle
// and releases the session slot. A Stop during the wait wins.
func (c *Controller) finalize(ctx context.Context, r *run, log *slog.Logger) {
	c.mu.Lock()
	r.ended = true
	c.mu.Unlock()

	if d := c.deps.QuiescenceDelay; d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return
		}
	}

	c.mu.Lock()
	if c.active != r {
		c.mu.Unlock()
		return
	}
	c.active = nil
	c.deps.Store.Commit(r.token, c.deps.Reducer.FinalizeDelta())
	c.mu.Unlock()

	log.Info("session finalized")
	c.publish(domain.EventSessionFinalized, r.id, domain.SessionPayload{Command: r.command, Model: r.model})
}

func (c *Controller) publish(t domain.EventType, sessionID string, payload domain.SessionPayload) {
	if c.deps.Bus == nil {
		return
	}
	c.deps.Bus.Publish(context.Background(), domain.NewEvent(t, sessionID, payload))
}
