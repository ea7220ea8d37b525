package console

import (
	"maestro-console/internal/domain"
	"maestro-console/internal/usecase/projection"
)

// EventBusMsg wraps a domain event for the Bubble Tea update loop.
type EventBusMsg struct {
	Event domain.Event
}

// SnapshotMsg replaces the rendered state with a full store snapshot.
type SnapshotMsg struct {
	Snapshot projection.Snapshot
}

// StartResultMsg is returned after a command submission.
type StartResultMsg struct {
	Command string
	Token   projection.Token
	Err     error
}

// StopResultMsg is returned after an interrupt request.
type StopResultMsg struct {
	Stopped bool
}

// SaveResultMsg is returned after exporting the log.
type SaveResultMsg struct {
	Count int
	Err   error
}

// ClearedMsg is returned after the log was cleared.
type ClearedMsg struct{}
