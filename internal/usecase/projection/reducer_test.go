package projection

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maestro-console/internal/domain"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestReducer() *Reducer {
	n := 0
	return NewReducer(ReducerOptions{
		Now: func() time.Time { return fixedTime },
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	})
}

func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }

func TestReduceStep(t *testing.T) {
	r := newTestReducer()
	p := domain.NewProjection("")

	next, entries := r.Reduce(p, domain.StepEvent{
		Thought: "T1", Goal: "G1", Memory: "M1", URL: "https://ads.google.com",
		Elapsed: f64(1), Step: intp(1),
	})

	assert.Equal(t, domain.PhaseActing, next.Phase)
	require.NotNil(t, next.Reasoning)
	assert.Equal(t, "T1", next.Reasoning.Thought)
	assert.Equal(t, "G1", next.Reasoning.Goal)
	assert.False(t, next.Reasoning.IsWaiting)
	assert.Equal(t, "https://ads.google.com", next.CurrentTarget)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.LogEntry{ID: "id-1", Timestamp: fixedTime, Level: domain.LevelLLM, Message: "[PASSO 1 | 1s] T1"}, entries[0])

	// The input projection is a value and stays untouched.
	assert.Equal(t, domain.PhaseIdle, p.Phase)
}

func TestReduceStepWithoutThoughtOrURL(t *testing.T) {
	r := newTestReducer()
	p := domain.NewProjection("")
	p.CurrentTarget = "https://kept"

	next, entries := r.Reduce(p, domain.StepEvent{Goal: "G"})
	assert.Empty(t, entries)
	assert.Equal(t, "https://kept", next.CurrentTarget)
	assert.Equal(t, "G", next.Reasoning.Goal)
	assert.Nil(t, next.Reasoning.Elapsed)
}

func TestReduceStepReplacesReasoningWholesale(t *testing.T) {
	r := newTestReducer()
	p, _ := r.Reduce(domain.NewProjection(""), domain.StepEvent{Thought: "a", Goal: "g", Memory: "m"})
	p, _ = r.Reduce(p, domain.StepEvent{Thought: "b"})
	assert.Equal(t, &domain.ReasoningSnapshot{Thought: "b"}, p.Reasoning)
}

func TestReduceInfo(t *testing.T) {
	r := newTestReducer()
	next, entries := r.Reduce(domain.NewProjection(""), domain.InfoEvent{Message: "Injetando DOMObserver", Elapsed: f64(2.5)})
	require.Len(t, entries, 1)
	assert.Equal(t, domain.LevelInfo, entries[0].Level)
	assert.Equal(t, "[2.5s] Injetando DOMObserver", entries[0].Message)
	assert.Equal(t, domain.DefaultIdleEngine, next.ActiveEngine)

	_, entries = r.Reduce(domain.NewProjection(""), domain.InfoEvent{Message: "sem tempo"})
	assert.Equal(t, "[...s] sem tempo", entries[0].Message)
}

func TestExtractEngine(t *testing.T) {
	r := newTestReducer()
	tests := []struct {
		msg, want string
		ok        bool
	}{
		{"Usando Groq...", "Groq", true},
		{"Tentativa 1: Usando Groq (Llama 3.3)...", "Groq (Llama 3.3)", true},
		{"Tentativa 2: Usando OpenRouter...", "OpenRouter", true},
		{"Conectando ao Ollama…", "Ollama", true},
		{"Connecting to Mistral", "Mistral", true},
		{"Navegação concluída.", "", false},
		{"Usando", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			got, ok := r.ExtractEngine(tt.msg)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractEngineCustomMarkers(t *testing.T) {
	r := NewReducer(ReducerOptions{EngineMarkers: []string{"Utilisant"}})
	got, ok := r.ExtractEngine("Utilisant Mistral...")
	assert.True(t, ok)
	assert.Equal(t, "Mistral", got)

	_, ok = r.ExtractEngine("Usando Groq...")
	assert.False(t, ok)
}

func TestReduceInfoUpdatesEngine(t *testing.T) {
	r := newTestReducer()
	next, _ := r.Reduce(domain.NewProjection(""), domain.InfoEvent{Message: "Usando Groq...", Elapsed: f64(2)})
	assert.Equal(t, "Groq", next.ActiveEngine)
}

func TestReduceDone(t *testing.T) {
	r := newTestReducer()
	next, entries := r.Reduce(domain.NewProjection(""), domain.DoneEvent{
		Message: "fim", Summary: "S1", FinalURL: "https://final", TotalTime: f64(5),
	})
	assert.Equal(t, domain.PhaseSynthesizing, next.Phase)
	assert.Equal(t, "https://final", next.CurrentTarget)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.LevelSystem, entries[0].Level)
	assert.Equal(t, "[TOTAL 5s] fim", entries[0].Message)
	assert.Equal(t, domain.LevelInfo, entries[1].Level)
	assert.Equal(t, "[RESUMO] S1", entries[1].Message)
}

func TestReduceDoneWithoutSummary(t *testing.T) {
	r := newTestReducer()
	next, entries := r.Reduce(domain.NewProjection(""), domain.DoneEvent{})
	assert.Equal(t, domain.BlankTarget, next.CurrentTarget)
	require.Len(t, entries, 1)
	assert.Equal(t, "[TOTAL ...s] Tarefa concluída.", entries[0].Message)
}

func TestReduceError(t *testing.T) {
	r := newTestReducer()
	next, entries := r.Reduce(domain.NewProjection(""), domain.ErrorEvent{Message: "Nenhuma API Key encontrada"})
	assert.Equal(t, domain.PhaseError, next.Phase)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.LogEntry{ID: "id-1", Timestamp: fixedTime, Level: domain.LevelError, Message: "Nenhuma API Key encontrada"}, entries[0])
}

func TestReduceUnknownIsNoop(t *testing.T) {
	r := newTestReducer()
	p := domain.NewProjection("")
	next, entries := r.Reduce(p, domain.UnknownEvent{Type: "heartbeat"})
	assert.Equal(t, p, next)
	assert.Empty(t, entries)
	assert.True(t, r.Delta(domain.UnknownEvent{}).Empty())
}

func TestLifecycleDeltas(t *testing.T) {
	r := NewReducer(ReducerOptions{IdleEngine: "Auto (Cascata)"})
	p := domain.NewProjection(r.IdleEngine())

	p = p.Apply(r.StartDelta("abrir doctoralia"))
	assert.Equal(t, domain.PhaseObserving, p.Phase)
	assert.Nil(t, p.Reasoning)

	p = p.Apply(r.ConnectedDelta("auto"))
	assert.Equal(t, domain.PhaseThinking, p.Phase)
	require.NotNil(t, p.Reasoning)
	assert.True(t, p.Reasoning.IsWaiting)

	p = p.Apply(domain.Delta{Engine: str("Groq")})
	p = p.Apply(r.FinalizeDelta())
	assert.Equal(t, domain.PhaseIdle, p.Phase)
	assert.Nil(t, p.Reasoning)
	assert.Equal(t, "Auto (Cascata)", p.ActiveEngine)

	stop := r.StopDelta()
	require.Len(t, stop.Entries, 1)
	assert.Equal(t, domain.LevelSystem, stop.Entries[0].Level)
	assert.Equal(t, domain.PhaseIdle, *stop.Phase)
}

func TestIDGeneratorMonotonic(t *testing.T) {
	gen := NewIDGenerator()
	prev := gen()
	for i := 0; i < 100; i++ {
		next := gen()
		require.Less(t, prev, next)
		prev = next
	}
}
