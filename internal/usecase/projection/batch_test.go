package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maestro-console/internal/domain"
)

func TestBatchLastWriteWins(t *testing.T) {
	r := newTestReducer()
	var b Batch
	b.Add(r.Delta(domain.StepEvent{Thought: "first", URL: "https://a", Step: intp(1)}))
	b.Add(r.Delta(domain.InfoEvent{Message: "meio"}))
	b.Add(r.Delta(domain.StepEvent{Thought: "second", Step: intp(2)}))
	assert.Equal(t, 3, b.Events())

	d := b.Take()
	require.NotNil(t, d.Reasoning)
	assert.Equal(t, "second", d.Reasoning.Thought)
	assert.Equal(t, "https://a", *d.Target, "untouched fields keep the last non-nil value")
	assert.Equal(t, domain.PhaseActing, *d.Phase)

	msgs := make([]string, len(d.Entries))
	for i, e := range d.Entries {
		msgs[i] = e.Message
	}
	assert.Equal(t, []string{"[PASSO 1 | ...s] first", "[...s] meio", "[PASSO 2 | ...s] second"}, msgs)

	assert.True(t, b.Empty())
	assert.Equal(t, 0, b.Events())
}

func TestBatchClearThenSetReasoning(t *testing.T) {
	r := newTestReducer()
	var b Batch
	b.Add(r.Delta(domain.StepEvent{Thought: "old"}))
	b.Add(r.FinalizeDelta())
	d := b.Take()
	assert.Nil(t, d.Reasoning)
	assert.True(t, d.ClearReasoning)

	b.Add(r.FinalizeDelta())
	b.Add(r.Delta(domain.StepEvent{Thought: "new"}))
	p := domain.NewProjection("").Apply(b.Take())
	require.NotNil(t, p.Reasoning)
	assert.Equal(t, "new", p.Reasoning.Thought)
}

func TestBatchUnknownOnlyIsEmpty(t *testing.T) {
	r := newTestReducer()
	var b Batch
	b.Add(r.Delta(domain.UnknownEvent{Type: "ping"}))
	assert.True(t, b.Empty())
}
