package console

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"maestro-console/internal/domain"
	"maestro-console/internal/usecase/projection"
)

const saveTimeout = 15 * time.Second

// Controller calls happen inside tea.Cmds so the update loop never blocks on
// the controller lock while a commit is being delivered.

func startCmd(c Controller, command, model string) tea.Cmd {
	return func() tea.Msg {
		tok, err := c.Start(context.Background(), command, model)
		return StartResultMsg{Command: command, Token: tok, Err: err}
	}
}

func stopCmd(c Controller) tea.Cmd {
	return func() tea.Msg {
		return StopResultMsg{Stopped: c.Stop()}
	}
}

func clearCmd(store *projection.Store) tea.Cmd {
	return func() tea.Msg {
		store.ClearLogs()
		return ClearedMsg{}
	}
}

func snapshotCmd(store *projection.Store) tea.Cmd {
	return func() tea.Msg {
		return SnapshotMsg{Snapshot: store.Snapshot()}
	}
}

func saveCmd(saver LogSaver, entries []domain.LogEntry) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		err := saver.SaveLogs(ctx, entries)
		return SaveResultMsg{Count: len(entries), Err: err}
	}
}
