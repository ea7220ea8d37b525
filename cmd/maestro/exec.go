package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"maestro-console/internal/adapter/agentclient"
	"maestro-console/internal/domain"
	"maestro-console/internal/usecase/projection"
)

// errSessionFailed marks a headless run whose agent reported a transport failure.
var errSessionFailed = errors.New("session failed")

type execOptions struct {
	model    string
	saveLogs bool
	linger   time.Duration
}

func newExecCmd(flags *globalFlags) *cobra.Command {
	opts := &execOptions{}

	cmd := &cobra.Command{
		Use:   "exec <command...>",
		Short: "Run one agent command headless and print its log",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			linger := opts.linger
			if linger == 0 {
				linger = -1
			}
			a, err := loadApp(ctx, flags.configPath, appOptions{quiescence: &linger})
			if err != nil {
				return err
			}
			defer a.Close()

			return execCommand(ctx, a, cmd.OutOrStdout(), strings.Join(args, " "), *opts)
		},
	}
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "agent model (default agent.model)")
	cmd.Flags().BoolVar(&opts.saveLogs, "save-logs", false, "export the session log to the agent host when done")
	cmd.Flags().DurationVar(&opts.linger, "linger", 0, "keep the final state this long before exiting")
	return cmd
}

// execCommand runs one session to completion, printing log entries as they
// are committed. An interrupt stops the session.
func execCommand(ctx context.Context, a *app, out io.Writer, command string, opts execOptions) error {
	var outMu sync.Mutex
	unsubStore := a.store.Subscribe(func(u projection.Update) {
		if len(u.Appended) == 0 {
			return
		}
		outMu.Lock()
		defer outMu.Unlock()
		io.WriteString(out, agentclient.FormatLogs(u.Appended))
	})
	defer unsubStore()

	type outcome struct {
		event domain.EventType
		err   string
	}
	done := make(chan outcome, 1)
	var failure string
	var failMu sync.Mutex
	unsubBus := a.bus.SubscribeAll(func(_ context.Context, ev domain.Event) {
		switch ev.Type {
		case domain.EventSessionFailed:
			var p domain.SessionPayload
			if json.Unmarshal(ev.Payload, &p) == nil {
				failMu.Lock()
				failure = p.Error
				failMu.Unlock()
			}
		case domain.EventSessionFinalized, domain.EventSessionStopped:
			failMu.Lock()
			o := outcome{event: ev.Type, err: failure}
			failMu.Unlock()
			select {
			case done <- o:
			default:
			}
		}
	})
	defer unsubBus()

	if _, err := a.ctrl.Start(ctx, command, opts.model); err != nil {
		return err
	}

	var res outcome
	select {
	case res = <-done:
	case <-ctx.Done():
		a.ctrl.Stop()
		res = <-done
	}

	if opts.saveLogs {
		saveCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Agent.RequestTimeout)
		defer cancel()
		if err := a.client.SaveLogs(saveCtx, a.store.Snapshot().Logs); err != nil {
			return fmt.Errorf("save logs: %w", err)
		}
	}

	switch {
	case res.event == domain.EventSessionStopped:
		return context.Canceled
	case res.err != "":
		return fmt.Errorf("%w: %s", errSessionFailed, res.err)
	}
	return nil
}
