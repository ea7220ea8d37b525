// Package projection folds classified agent events into the console's
// observable state: the reducer turns events into deltas, Batch coalesces
// the deltas of one transport read and Store commits them.
package projection

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"maestro-console/internal/domain"
)

// DefaultEngineMarkers are the phrases the agent uses when it announces which
// model backend it is about to use ("Tentativa 1: Usando Groq (Llama 3.3)...").
var DefaultEngineMarkers = []string{"Usando", "Conectando", "Using", "Connecting"}

// connectors may follow a marker before the engine name ("Conectando ao Ollama").
var connectors = map[string]bool{"a": true, "ao": true, "à": true, "com": true, "to": true, "with": true}

// ReducerOptions configures a Reducer.
type ReducerOptions struct {
	EngineMarkers []string
	IdleEngine    string
	// Now and NewID are injected so the reducer stays deterministic under test.
	Now   func() time.Time
	NewID func() string
}

// Reducer is a pure function of (Projection, AgentEvent). It performs no I/O.
type Reducer struct {
	engineRE   *regexp.Regexp
	idleEngine string
	now        func() time.Time
	newID      func() string
}

// NewReducer builds a Reducer. Zero-valued options fall back to defaults.
func NewReducer(opts ReducerOptions) *Reducer {
	markers := opts.EngineMarkers
	if len(markers) == 0 {
		markers = DefaultEngineMarkers
	}
	quoted := make([]string, 0, len(markers))
	for _, m := range markers {
		if m = strings.TrimSpace(m); m != "" {
			quoted = append(quoted, regexp.QuoteMeta(m))
		}
	}
	r := &Reducer{
		engineRE:   regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\s+(.+)`),
		idleEngine: opts.IdleEngine,
		now:        opts.Now,
		newID:      opts.NewID,
	}
	if r.idleEngine == "" {
		r.idleEngine = domain.DefaultIdleEngine
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.newID == nil {
		r.newID = NewIDGenerator()
	}
	return r
}

// IdleEngine returns the engine label shown while no session runs.
func (r *Reducer) IdleEngine() string { return r.idleEngine }

// Reduce returns the next projection and the log entries ev appends.
func (r *Reducer) Reduce(p domain.Projection, ev domain.AgentEvent) (domain.Projection, []domain.LogEntry) {
	d := r.Delta(ev)
	return p.Apply(d), d.Entries
}

// Delta returns the change ev makes, independent of the current projection.
func (r *Reducer) Delta(ev domain.AgentEvent) domain.Delta {
	switch e := ev.(type) {
	case domain.StepEvent:
		return r.step(e)
	case domain.InfoEvent:
		return r.info(e)
	case domain.DoneEvent:
		return r.done(e)
	case domain.ErrorEvent:
		return r.fail(e.Message)
	default:
		return domain.Delta{}
	}
}

func (r *Reducer) step(e domain.StepEvent) domain.Delta {
	d := domain.Delta{
		Phase: phase(domain.PhaseActing),
		Reasoning: &domain.ReasoningSnapshot{
			Thought: e.Thought,
			Goal:    e.Goal,
			Memory:  e.Memory,
			Elapsed: e.Elapsed,
		},
	}
	if e.URL != "" {
		d.Target = str(e.URL)
	}
	if e.Thought != "" {
		stepLabel := "?"
		if e.Step != nil {
			stepLabel = strconv.Itoa(*e.Step)
		}
		d.Entries = append(d.Entries, r.Entry(domain.LevelLLM,
			fmt.Sprintf("[PASSO %s | %ss] %s", stepLabel, seconds(e.Elapsed), e.Thought)))
	}
	return d
}

func (r *Reducer) info(e domain.InfoEvent) domain.Delta {
	d := domain.Delta{
		Entries: []domain.LogEntry{r.Entry(domain.LevelInfo,
			fmt.Sprintf("[%ss] %s", seconds(e.Elapsed), e.Message))},
	}
	if engine, ok := r.ExtractEngine(e.Message); ok {
		d.Engine = str(engine)
	}
	return d
}

func (r *Reducer) done(e domain.DoneEvent) domain.Delta {
	msg := e.Message
	if msg == "" {
		msg = "Tarefa concluída."
	}
	d := domain.Delta{
		Phase:   phase(domain.PhaseSynthesizing),
		Entries: []domain.LogEntry{r.Entry(domain.LevelSystem, fmt.Sprintf("[TOTAL %ss] %s", seconds(e.TotalTime), msg))},
	}
	if e.FinalURL != "" {
		d.Target = str(e.FinalURL)
	}
	if e.Summary != "" {
		d.Entries = append(d.Entries, r.Entry(domain.LevelInfo, "[RESUMO] "+e.Summary))
	}
	return d
}

func (r *Reducer) fail(msg string) domain.Delta {
	if msg == "" {
		msg = "Falha desconhecida no agente."
	}
	return domain.Delta{
		Phase:   phase(domain.PhaseError),
		Entries: []domain.LogEntry{r.Entry(domain.LevelError, msg)},
	}
}

// ExtractEngine recovers the engine name from an engine-selection message.
// This is a heuristic over free text: it only works while the agent keeps
// phrasing these messages the same way.
func (r *Reducer) ExtractEngine(msg string) (string, bool) {
	m := r.engineRE.FindStringSubmatch(msg)
	if m == nil {
		return "", false
	}
	name := strings.TrimSpace(m[1])
	if first, rest, ok := strings.Cut(name, " "); ok && connectors[strings.ToLower(first)] {
		name = strings.TrimSpace(rest)
	}
	name = strings.TrimRight(name, ".…!: ")
	if name == "" {
		return "", false
	}
	return name, true
}

// StartDelta opens a session: the console observes while the command is submitted.
func (r *Reducer) StartDelta(command string) domain.Delta {
	return domain.Delta{
		Phase:          phase(domain.PhaseObserving),
		ClearReasoning: true,
		Entries: []domain.LogEntry{r.Entry(domain.LevelSystem,
			fmt.Sprintf("[MAESTRO] Comando recebido: %q", command))},
	}
}

// ConnectedDelta marks the transport as open and the agent as thinking.
func (r *Reducer) ConnectedDelta(model string) domain.Delta {
	return domain.Delta{
		Phase:     phase(domain.PhaseThinking),
		Reasoning: &domain.ReasoningSnapshot{IsWaiting: true},
		Entries: []domain.LogEntry{r.Entry(domain.LevelInfo,
			fmt.Sprintf("Conectado ao agente (modelo: %s). Aguardando eventos...", model))},
	}
}

// TransportErrorDelta surfaces a failed connection or read.
func (r *Reducer) TransportErrorDelta(err error) domain.Delta {
	return r.fail("Falha de conexão com o agente: " + err.Error())
}

// StopDelta is committed when the operator interrupts a session.
func (r *Reducer) StopDelta() domain.Delta {
	d := r.FinalizeDelta()
	d.Entries = []domain.LogEntry{r.Entry(domain.LevelSystem, "[MAESTRO] Execução interrompida pelo operador.")}
	return d
}

// FinalizeDelta returns the console to idle after a session ends.
func (r *Reducer) FinalizeDelta() domain.Delta {
	return domain.Delta{
		Phase:          phase(domain.PhaseIdle),
		ClearReasoning: true,
		Engine:         str(r.idleEngine),
	}
}

// Entry creates a log entry stamped with the reducer's clock and id source.
func (r *Reducer) Entry(level domain.LogLevel, msg string) domain.LogEntry {
	return domain.LogEntry{
		ID:        r.newID(),
		Timestamp: r.now(),
		Level:     level,
		Message:   msg,
	}
}

func seconds(v *float64) string {
	if v == nil {
		return "..."
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func phase(p domain.AgentPhase) *domain.AgentPhase { return &p }

func str(s string) *string { return &s }
