package projection_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maestro-console/internal/adapter/agentstream"
	"maestro-console/internal/domain"
	"maestro-console/internal/usecase/projection"
)

const scenario = `data: {"type":"step","thought":"T1","goal":"G1","elapsed":1,"step":1}` + "\n\n" +
	`data: {"type":"info","message":"Usando Groq...","elapsed":2}` + "\n\n" +
	`data: {"type":"done","message":"fim","summary":"S1","total_time":5}` + "\n\n"

// run drives raw through decoder, classifier, reducer and one batch per chunk.
func run(t *testing.T, raw string, chunkSize int) (*projection.Store, int) {
	t.Helper()
	store := projection.NewStore(domain.NewProjection(""))
	commits := 0
	store.Subscribe(func(projection.Update) { commits++ })
	tok := store.Begin()
	reducer := projection.NewReducer(projection.ReducerOptions{})
	dec := agentstream.NewDecoder(agentstream.DecoderOptions{})

	flush := func(recs []agentstream.Record) {
		var b projection.Batch
		for _, rec := range recs {
			b.Add(reducer.Delta(agentstream.Classify(rec)))
		}
		store.Commit(tok, b.Take())
	}

	data := []byte(raw)
	for len(data) > 0 {
		n := min(chunkSize, len(data))
		flush(dec.Feed(data[:n]))
		data = data[n:]
	}
	flush(dec.Flush())
	return store, commits
}

func levelsAndMessages(logs []domain.LogEntry) ([]domain.LogLevel, []string) {
	levels := make([]domain.LogLevel, len(logs))
	msgs := make([]string, len(logs))
	for i, l := range logs {
		levels[i] = l.Level
		msgs[i] = l.Message
	}
	return levels, msgs
}

func TestEndToEndScenario(t *testing.T) {
	store, commits := run(t, scenario, len(scenario))
	snap := store.Snapshot()

	assert.Equal(t, domain.PhaseSynthesizing, snap.Projection.Phase)
	assert.Equal(t, "Groq", snap.Projection.ActiveEngine)
	assert.Equal(t, "T1", snap.Projection.Reasoning.Thought)

	levels, msgs := levelsAndMessages(snap.Logs)
	assert.Equal(t, []domain.LogLevel{domain.LevelLLM, domain.LevelInfo, domain.LevelSystem, domain.LevelInfo}, levels)
	assert.Equal(t, []string{
		"[PASSO 1 | 1s] T1",
		"[2s] Usando Groq...",
		"[TOTAL 5s] fim",
		"[RESUMO] S1",
	}, msgs)
	assert.Equal(t, 1, commits)
}

func TestChunkingDoesNotChangeLog(t *testing.T) {
	whole, _ := run(t, scenario, len(scenario))
	_, want := levelsAndMessages(whole.Snapshot().Logs)

	for _, size := range []int{1, 5, 13, 50} {
		store, commits := run(t, scenario, size)
		_, got := levelsAndMessages(store.Snapshot().Logs)
		assert.Equal(t, want, got, "chunk size %d", size)
		assert.LessOrEqual(t, commits, 3, "at most one commit per record-completing read")
	}
}

func TestMalformedRecordResilience(t *testing.T) {
	store, _ := run(t, "data: {bad json}\n\ndata: {\"type\":\"info\",\"message\":\"ok\"}\n\n", 1024)
	logs := store.Snapshot().Logs
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Message, "ok")
	assert.Equal(t, domain.PhaseIdle, store.Projection().Phase)
}
