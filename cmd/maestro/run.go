package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"maestro-console/internal/adapter/tui/console"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the interactive console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd, flags)
		},
	}
}

func runConsole(cmd *cobra.Command, flags *globalFlags) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer cancel()

	a, err := loadApp(ctx, flags.configPath, appOptions{interactive: true})
	if err != nil {
		return err
	}
	defer a.Close()

	// Remote observers can watch the same session while the console runs.
	if a.cfg.Gateway.Enabled {
		srv := a.newGateway("")
		go func() {
			if err := srv.Start(ctx); err != nil {
				a.log.Error("gateway stopped", "error", err)
			}
		}()
		defer srv.Stop(context.Background())
	}

	model := console.New(console.Deps{
		Controller: a.ctrl,
		Store:      a.store,
		Bus:        a.bus,
		Saver:      a.client,
		Model:      a.client.DefaultModel(),
		Logger:     a.log.Component("console"),
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	model.SetProgramSender(func(msg tea.Msg) { p.Send(msg) })

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("console: %w", err)
	}
	return nil
}
