package domain

import "time"

// AgentPhase is the coarse state of the remote agent as shown to the operator.
type AgentPhase string

const (
	PhaseIdle         AgentPhase = "IDLE"
	PhaseObserving    AgentPhase = "OBSERVING"
	PhaseThinking     AgentPhase = "THINKING"
	PhaseActing       AgentPhase = "ACTING"
	PhaseSynthesizing AgentPhase = "SYNTHESIZING"
	PhaseError        AgentPhase = "ERROR"
)

// Busy reports whether the phase belongs to a running session.
func (p AgentPhase) Busy() bool {
	return p != PhaseIdle && p != ""
}

// Default projection values.
const (
	BlankTarget       = "about:blank"
	DefaultIdleEngine = "Groq (llama-3.3-70b)"
)

// ReasoningSnapshot is the latest reasoning the agent reported.
type ReasoningSnapshot struct {
	Thought   string   `json:"thought,omitempty"`
	Goal      string   `json:"goal,omitempty"`
	Memory    string   `json:"memory,omitempty"`
	Elapsed   *float64 `json:"elapsed,omitempty"`
	IsWaiting bool     `json:"is_waiting"`
}

// Projection is the UI-facing state derived from the agent's event stream.
type Projection struct {
	Phase         AgentPhase         `json:"phase"`
	Reasoning     *ReasoningSnapshot `json:"reasoning,omitempty"`
	CurrentTarget string             `json:"current_target"`
	ActiveEngine  string             `json:"active_engine"`
}

// NewProjection returns the idle projection.
func NewProjection(idleEngine string) Projection {
	if idleEngine == "" {
		idleEngine = DefaultIdleEngine
	}
	return Projection{
		Phase:         PhaseIdle,
		CurrentTarget: BlankTarget,
		ActiveEngine:  idleEngine,
	}
}

// LogLevel classifies a console log entry.
type LogLevel string

const (
	LevelInfo   LogLevel = "INFO"
	LevelWarn   LogLevel = "WARN"
	LevelError  LogLevel = "ERROR"
	LevelSystem LogLevel = "SYSTEM"
	LevelLLM    LogLevel = "LLM"
)

// LogEntry is one line of the operator-facing log. Entries are never mutated.
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
}

// Delta is a partial projection update plus the log entries it appends.
// Nil fields are left untouched when applied.
type Delta struct {
	Phase          *AgentPhase        `json:"phase,omitempty"`
	Reasoning      *ReasoningSnapshot `json:"reasoning,omitempty"`
	ClearReasoning bool               `json:"clear_reasoning,omitempty"`
	Target         *string            `json:"target,omitempty"`
	Engine         *string            `json:"engine,omitempty"`
	Entries        []LogEntry         `json:"entries,omitempty"`
}

// Empty reports whether applying d would change nothing.
func (d Delta) Empty() bool {
	return d.Phase == nil && d.Reasoning == nil && !d.ClearReasoning &&
		d.Target == nil && d.Engine == nil && len(d.Entries) == 0
}

// TouchesProjection reports whether d changes any scalar projection field.
func (d Delta) TouchesProjection() bool {
	return d.Phase != nil || d.Reasoning != nil || d.ClearReasoning || d.Target != nil || d.Engine != nil
}

// Apply returns p with d's scalar fields merged in. Entries are not part of the projection.
func (p Projection) Apply(d Delta) Projection {
	if d.Phase != nil {
		p.Phase = *d.Phase
	}
	if d.ClearReasoning {
		p.Reasoning = nil
	}
	if d.Reasoning != nil {
		r := *d.Reasoning
		p.Reasoning = &r
	}
	if d.Target != nil {
		p.CurrentTarget = *d.Target
	}
	if d.Engine != nil {
		p.ActiveEngine = *d.Engine
	}
	return p
}
