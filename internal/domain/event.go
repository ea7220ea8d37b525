package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	EventSessionStarted   EventType = "session.started"
	EventSessionRejected  EventType = "session.rejected"
	EventSessionStopped   EventType = "session.stopped"
	EventSessionFailed    EventType = "session.failed"
	EventSessionFinalized EventType = "session.finalized"
	EventStateCommitted   EventType = "state.committed"
	EventLogsCleared      EventType = "logs.cleared"
	EventRecordMalformed  EventType = "record.malformed"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// StateCommittedPayload is the payload for EventStateCommitted.
type StateCommittedPayload struct {
	Seq        uint64     `json:"seq"`
	Projection Projection `json:"projection"`
	Appended   []LogEntry `json:"appended,omitempty"`
}

// SessionPayload is the payload for session lifecycle events.
type SessionPayload struct {
	Command string `json:"command,omitempty"`
	Model   string `json:"model,omitempty"`
	Error   string `json:"error,omitempty"`

	// Retryable marks failures that may succeed if the command is resubmitted.
	Retryable bool `json:"retryable,omitempty"`
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for domain events.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers and prevents new publishes.
	Close()
}

// NewEvent builds an Event with payload marshalled as JSON. A payload that
// cannot be marshalled is dropped.
func NewEvent(t EventType, sessionID string, payload any) Event {
	ev := Event{Type: t, Timestamp: time.Now(), SessionID: sessionID}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			ev.Payload = raw
		}
	}
	return ev
}
