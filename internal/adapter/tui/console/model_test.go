package console

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maestro-console/internal/adapter/tui/theme"
	"maestro-console/internal/domain"
	"maestro-console/internal/usecase/projection"
	"maestro-console/internal/usecase/session"
)

type fakeController struct {
	mu       sync.Mutex
	starts   []string
	models   []string
	stops    int
	startErr error
}

func (f *fakeController) Start(_ context.Context, command, model string) (projection.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, command)
	f.models = append(f.models, model)
	if f.startErr != nil {
		return 0, f.startErr
	}
	return 1, nil
}

func (f *fakeController) Stop() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return f.stops == 1
}

func (f *fakeController) Status() session.Status { return session.Status{} }

type fakeSaver struct {
	saved []domain.LogEntry
	err   error
}

func (f *fakeSaver) SaveLogs(_ context.Context, entries []domain.LogEntry) error {
	f.saved = entries
	return f.err
}

var reducer = projection.NewReducer(projection.ReducerOptions{})

func newTestModel(t *testing.T, ctrl Controller, saver LogSaver) (*Model, *projection.Store) {
	t.Helper()
	store := projection.NewStore(domain.NewProjection(""))
	m := New(Deps{Controller: ctrl, Store: store, Saver: saver})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m, store
}

func commitEvent(seq uint64, p domain.Projection, entries ...domain.LogEntry) EventBusMsg {
	return EventBusMsg{Event: domain.NewEvent(domain.EventStateCommitted, "", domain.StateCommittedPayload{
		Seq:        seq,
		Projection: p,
		Appended:   entries,
	})}
}

func key(t tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: t} }

func TestNewLoadsStoreSnapshot(t *testing.T) {
	store := projection.NewStore(domain.NewProjection(""))
	tok := store.Begin()
	require.True(t, store.Commit(tok, domain.Delta{Entries: []domain.LogEntry{reducer.Entry(domain.LevelSystem, "hello")}}))

	m := New(Deps{Store: store})
	assert.Equal(t, uint64(1), m.seq)
	require.Len(t, m.entries, 1)
	assert.Equal(t, "hello", m.entries[0].Message)
}

func TestEnterStartsSession(t *testing.T) {
	ctrl := &fakeController{}
	m, _ := newTestModel(t, ctrl, nil)
	m.input.SetValue("open example.com")

	_, cmd := m.Update(key(tea.KeyEnter))
	require.NotNil(t, cmd)
	msg := cmd()
	res, ok := msg.(StartResultMsg)
	require.True(t, ok)
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"open example.com"}, ctrl.starts)
	assert.Equal(t, []string{"auto"}, ctrl.models)

	m.Update(msg)
	assert.Empty(t, m.input.Value())
	assert.False(t, m.flashErr)
}

func TestEnterWithEmptyInputDoesNothing(t *testing.T) {
	ctrl := &fakeController{}
	m, _ := newTestModel(t, ctrl, nil)

	_, cmd := m.Update(key(tea.KeyEnter))
	assert.Nil(t, cmd)
	assert.Empty(t, ctrl.starts)
}

func TestBusyStartShowsError(t *testing.T) {
	ctrl := &fakeController{startErr: domain.NewDomainError("session.start", domain.ErrSessionBusy, "")}
	m, _ := newTestModel(t, ctrl, nil)
	m.input.SetValue("search flights")

	_, cmd := m.Update(key(tea.KeyEnter))
	m.Update(cmd())

	assert.True(t, m.flashErr)
	assert.Contains(t, m.flash, "already running")
	assert.Equal(t, "search flights", m.input.Value())
}

func TestTabCyclesModel(t *testing.T) {
	ctrl := &fakeController{}
	m, _ := newTestModel(t, ctrl, nil)

	m.Update(key(tea.KeyTab))
	assert.Equal(t, domain.KnownModels[1], m.model)

	m.input.SetValue("go")
	_, cmd := m.Update(key(tea.KeyEnter))
	cmd()
	assert.Equal(t, []string{domain.KnownModels[1]}, ctrl.models)
}

func TestNextModelWraps(t *testing.T) {
	last := domain.KnownModels[len(domain.KnownModels)-1]
	assert.Equal(t, domain.KnownModels[0], nextModel(last))
	assert.Equal(t, domain.KnownModels[0], nextModel("bogus"))
}

func TestEscStopsSession(t *testing.T) {
	ctrl := &fakeController{}
	m, _ := newTestModel(t, ctrl, nil)

	_, cmd := m.Update(key(tea.KeyEsc))
	m.Update(cmd())
	assert.Equal(t, 1, ctrl.stops)
	assert.Empty(t, m.flash)

	_, cmd = m.Update(key(tea.KeyCtrlX))
	m.Update(cmd())
	assert.Equal(t, 2, ctrl.stops)
	assert.Equal(t, "No session to interrupt", m.flash)
}

func TestCommitEventsApplyInOrder(t *testing.T) {
	m, _ := newTestModel(t, nil, nil)

	p := domain.NewProjection("")
	p.Phase = domain.PhaseThinking
	p.ActiveEngine = "Groq"
	m.Update(commitEvent(1, p, reducer.Entry(domain.LevelLLM, "thinking about it")))
	m.Update(commitEvent(2, p, reducer.Entry(domain.LevelInfo, "Navigated")))

	assert.Equal(t, uint64(2), m.seq)
	assert.Equal(t, domain.PhaseThinking, m.proj.Phase)
	require.Len(t, m.entries, 2)
	assert.Equal(t, "Navigated", m.entries[1].Message)

	view := m.View()
	assert.Contains(t, view, "THINKING")
	assert.Contains(t, view, "Groq")
	assert.Contains(t, view, "thinking about it")
}

func TestDuplicateCommitIgnored(t *testing.T) {
	m, _ := newTestModel(t, nil, nil)
	p := domain.NewProjection("")

	m.Update(commitEvent(1, p, reducer.Entry(domain.LevelInfo, "one")))
	_, cmd := m.Update(commitEvent(1, p, reducer.Entry(domain.LevelInfo, "one")))
	assert.Nil(t, cmd)
	assert.Len(t, m.entries, 1)
}

func TestSeqGapResyncsFromStore(t *testing.T) {
	m, store := newTestModel(t, nil, nil)
	tok := store.Begin()
	for _, msg := range []string{"a", "b", "c"} {
		require.True(t, store.Commit(tok, domain.Delta{Entries: []domain.LogEntry{reducer.Entry(domain.LevelInfo, msg)}}))
	}

	_, cmd := m.Update(commitEvent(3, store.Projection()))
	require.NotNil(t, cmd)
	snap, ok := cmd().(SnapshotMsg)
	require.True(t, ok)

	m.Update(snap)
	assert.Equal(t, uint64(3), m.seq)
	require.Len(t, m.entries, 3)
	assert.Equal(t, "c", m.entries[2].Message)
}

func TestLogsClearedEvent(t *testing.T) {
	m, _ := newTestModel(t, nil, nil)
	p := domain.NewProjection("")
	m.Update(commitEvent(1, p, reducer.Entry(domain.LevelInfo, "one")))

	m.Update(EventBusMsg{Event: domain.NewEvent(domain.EventLogsCleared, "", domain.StateCommittedPayload{Seq: 2, Projection: p})})
	assert.Empty(t, m.entries)
	assert.Contains(t, m.View(), "No log entries yet")
}

func TestCtrlLClearsStore(t *testing.T) {
	m, store := newTestModel(t, nil, nil)
	tok := store.Begin()
	require.True(t, store.Commit(tok, domain.Delta{Entries: []domain.LogEntry{reducer.Entry(domain.LevelInfo, "x")}}))

	_, cmd := m.Update(key(tea.KeyCtrlL))
	require.NotNil(t, cmd)
	assert.IsType(t, ClearedMsg{}, cmd())
	assert.Empty(t, store.Snapshot().Logs)
}

func TestCtrlSSavesLogs(t *testing.T) {
	saver := &fakeSaver{}
	m, _ := newTestModel(t, nil, saver)
	m.Update(commitEvent(1, domain.NewProjection(""), reducer.Entry(domain.LevelInfo, "one"), reducer.Entry(domain.LevelWarn, "two")))

	_, cmd := m.Update(key(tea.KeyCtrlS))
	require.NotNil(t, cmd)
	m.Update(cmd())

	assert.Len(t, saver.saved, 2)
	assert.Equal(t, "Saved 2 log entries", m.flash)
}

func TestCtrlSReportsFailure(t *testing.T) {
	saver := &fakeSaver{err: errors.New("boom")}
	m, _ := newTestModel(t, nil, saver)
	m.Update(commitEvent(1, domain.NewProjection(""), reducer.Entry(domain.LevelInfo, "one")))

	_, cmd := m.Update(key(tea.KeyCtrlS))
	m.Update(cmd())
	assert.True(t, m.flashErr)
	assert.Contains(t, m.flash, "boom")
}

func TestCtrlSWithoutSaver(t *testing.T) {
	m, _ := newTestModel(t, nil, nil)
	_, cmd := m.Update(key(tea.KeyCtrlS))
	assert.Nil(t, cmd)
	assert.True(t, m.flashErr)
}

func TestSessionFailedShowsError(t *testing.T) {
	m, _ := newTestModel(t, nil, nil)
	m.Update(EventBusMsg{Event: domain.NewEvent(domain.EventSessionFailed, "s1", domain.SessionPayload{Error: "agent unreachable"})})
	assert.True(t, m.flashErr)
	assert.Equal(t, "agent unreachable", m.flash)
}

func TestRetryableFailureHintsRetry(t *testing.T) {
	m, _ := newTestModel(t, nil, nil)
	m.Update(EventBusMsg{Event: domain.NewEvent(domain.EventSessionFailed, "s1", domain.SessionPayload{Error: "agent circuit open", Retryable: true})})
	assert.True(t, m.flashErr)
	assert.Equal(t, "agent circuit open (try again shortly)", m.flash)
}

func TestCtrlCQuits(t *testing.T) {
	m, _ := newTestModel(t, nil, nil)
	unsubscribed := false
	m.unsubscribe = func() { unsubscribed = true }

	_, cmd := m.Update(key(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, unsubscribed)
}

func TestViewBeforeReady(t *testing.T) {
	m := New(Deps{})
	assert.Contains(t, m.View(), "Starting")
}

func TestReasoningLines(t *testing.T) {
	assert.Contains(t, reasoningLines(nil, 80)[0], "No reasoning yet")
	assert.Contains(t, reasoningLines(&domain.ReasoningSnapshot{IsWaiting: true}, 80)[0], "Waiting")

	elapsed := 1.5
	lines := reasoningLines(&domain.ReasoningSnapshot{Thought: "look", Goal: "click", Elapsed: &elapsed}, 80)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "look")
	assert.Contains(t, lines[1], "click")
	assert.Contains(t, lines[2], "1.50s")
}

func TestRenderLogsMarksLevels(t *testing.T) {
	out := renderLogs([]domain.LogEntry{
		reducer.Entry(domain.LevelWarn, "slow page"),
		reducer.Entry(domain.LevelError, "agent down"),
	})
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], theme.SymbolWarning)
	assert.Contains(t, lines[0], "slow page")
	assert.Contains(t, lines[1], theme.SymbolError)
	assert.Contains(t, lines[1], "agent down")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab"+theme.SymbolEllipsis, truncate("abcdef", 3))
	assert.Equal(t, "", truncate("abc", 0))
}
