package domain

import "encoding/json"

// EventKind tags an AgentEvent.
type EventKind string

const (
	KindStep    EventKind = "step"
	KindInfo    EventKind = "info"
	KindDone    EventKind = "done"
	KindError   EventKind = "error"
	KindUnknown EventKind = "unknown"
)

// AgentEvent is one classified progress event from the agent stream.
// The set of implementations is closed: StepEvent, InfoEvent, DoneEvent,
// ErrorEvent and UnknownEvent.
type AgentEvent interface {
	Kind() EventKind
	agentEvent()
}

// StepEvent reports one reasoning/acting step. Empty strings mean the field was absent.
type StepEvent struct {
	Thought string
	Goal    string
	Memory  string
	URL     string
	Elapsed *float64
	Step    *int
}

// InfoEvent is a free-form progress message.
type InfoEvent struct {
	Message string
	Elapsed *float64
}

// DoneEvent marks successful completion of the command.
type DoneEvent struct {
	Message   string
	Summary   string
	FinalURL  string
	TotalTime *float64
}

// ErrorEvent marks agent-side failure.
type ErrorEvent struct {
	Message string
}

// UnknownEvent carries a record whose type is not recognized.
type UnknownEvent struct {
	Type string
	Raw  json.RawMessage
}

func (StepEvent) Kind() EventKind    { return KindStep }
func (InfoEvent) Kind() EventKind    { return KindInfo }
func (DoneEvent) Kind() EventKind    { return KindDone }
func (ErrorEvent) Kind() EventKind   { return KindError }
func (UnknownEvent) Kind() EventKind { return KindUnknown }

func (StepEvent) agentEvent()    {}
func (InfoEvent) agentEvent()    {}
func (DoneEvent) agentEvent()    {}
func (ErrorEvent) agentEvent()   {}
func (UnknownEvent) agentEvent() {}

// RunRequest is the body of a command submission to the agent.
type RunRequest struct {
	Command string `json:"command"`
	Model   string `json:"model"`
}

// Models accepted by the agent's model selector.
var KnownModels = []string{"auto", "groq", "vision", "smol", "openrouter", "ollama"}

// IsKnownModel reports whether m is one of KnownModels.
func IsKnownModel(m string) bool {
	for _, k := range KnownModels {
		if k == m {
			return true
		}
	}
	return false
}
