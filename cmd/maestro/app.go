package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"maestro-console/internal/adapter/agentclient"
	"maestro-console/internal/adapter/gateway"
	"maestro-console/internal/domain"
	"maestro-console/internal/infra/config"
	"maestro-console/internal/infra/logger"
	"maestro-console/internal/infra/tracer"
	"maestro-console/internal/usecase/eventbus"
	"maestro-console/internal/usecase/projection"
	"maestro-console/internal/usecase/session"
)

// shutdownTimeout bounds the graceful teardown of an app.
const shutdownTimeout = 5 * time.Second

// appOptions adjust the wiring for a subcommand.
type appOptions struct {
	// interactive keeps logs and spans off the terminal the console draws on.
	interactive bool
	// quiescence overrides cfg.Session.QuiescenceDelay when non-nil.
	quiescence *time.Duration
}

// app is the wired object graph shared by the subcommands.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	bus    *eventbus.Bus
	store  *projection.Store
	client *agentclient.Client
	ctrl   *session.Controller

	closers []func(context.Context) error
}

func loadApp(ctx context.Context, cfgPath string, opts appOptions) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return buildApp(ctx, cfg, opts)
}

// buildApp wires config, logger, tracer, bus, store, agent client and
// session controller.
func buildApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg}

	traceOut := io.Writer(os.Stderr)
	if opts.interactive {
		traceOut = io.Discard
		if isTerminal(cfg.Logger.Output) {
			cfg.Logger.Output = "discard"
		} else if cfg.Tracer.Enabled && !strings.EqualFold(cfg.Logger.Output, "discard") {
			f, err := os.OpenFile(cfg.Logger.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
			if err != nil {
				return nil, fmt.Errorf("trace output: %w", err)
			}
			traceOut = f
			a.closers = append(a.closers, func(context.Context) error { return f.Close() })
		}
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("logger: %w", err)
	}
	a.log = log
	a.closers = append(a.closers, func(context.Context) error { return log.Close() })

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer, traceOut)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("tracer: %w", err)
	}
	a.closers = append(a.closers, shutdownTracer)

	a.bus = eventbus.New(log.Component("eventbus"))
	a.closers = append(a.closers, func(context.Context) error {
		a.bus.Close()
		if n := a.bus.Dropped(); n > 0 {
			log.Warn("event bus dropped events", "count", n)
		}
		return nil
	})

	reducer := projection.NewReducer(projection.ReducerOptions{
		EngineMarkers: cfg.Stream.EngineMarkers,
		IdleEngine:    cfg.Session.IdleEngineLabel,
	})
	a.store = projection.NewStore(domain.NewProjection(cfg.Session.IdleEngineLabel))
	stopForward := eventbus.ForwardStore(a.store, a.bus)
	a.closers = append(a.closers, func(context.Context) error { stopForward(); return nil })

	a.client = agentclient.New(cfg.Agent, log.Component("agentclient"))

	quiescence := cfg.Session.QuiescenceDelay
	if opts.quiescence != nil {
		quiescence = *opts.quiescence
	}
	a.ctrl = session.NewController(session.Deps{
		Transport:       a.client,
		Store:           a.store,
		Reducer:         reducer,
		Logger:          log.Component("session"),
		Bus:             a.bus,
		DefaultModel:    a.client.DefaultModel(),
		QuiescenceDelay: quiescence,
		ReadSize:        cfg.Stream.ReadSize,
		MaxLineBytes:    cfg.Stream.MaxLineBytes,
	})
	a.closers = append(a.closers, a.ctrl.Shutdown)

	return a, nil
}

// newGateway builds the observer gateway over a's bus, store and controller.
func (a *app) newGateway(addr string) *gateway.Server {
	if addr == "" {
		addr = a.cfg.Gateway.Addr
	}
	srv := gateway.NewServer(a.bus, gateway.NewAuthenticator(a.cfg.Gateway.Auth), addr, a.log.Component("gateway"))
	srv.LimitClients(a.cfg.Gateway.RateLimit.PerMinute, a.cfg.Gateway.RateLimit.Burst)
	gateway.RegisterConsoleHandlers(srv, gateway.HandlerDeps{
		Controller: a.ctrl,
		Store:      a.store,
		Saver:      a.client,
		Agent:      a.client,
		Logger:     a.log.Component("gateway"),
	})
	return srv
}

// Close tears the graph down in reverse wiring order.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func isTerminal(output string) bool {
	switch strings.ToLower(output) {
	case "", "stdout", "stderr":
		return true
	}
	return false
}
