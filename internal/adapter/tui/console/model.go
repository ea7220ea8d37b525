// Package console is the terminal rendering layer: it shows the live
// projection and log, and submits operator commands to the session controller.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"maestro-console/internal/adapter/tui/theme"
	"maestro-console/internal/domain"
	"maestro-console/internal/usecase/projection"
	"maestro-console/internal/usecase/session"
)

// Ensure *Model satisfies tea.Model.
var _ tea.Model = (*Model)(nil)

// Controller is the part of the session controller the console drives.
type Controller interface {
	Start(ctx context.Context, command, model string) (projection.Token, error)
	Stop() bool
	Status() session.Status
}

// LogSaver exports the console log.
type LogSaver interface {
	SaveLogs(ctx context.Context, entries []domain.LogEntry) error
}

// Deps are dependencies for the console.
type Deps struct {
	Controller Controller
	Store      *projection.Store
	Bus        domain.EventBus
	Saver      LogSaver // can be nil
	Model      string   // initially selected agent model
	Logger     *slog.Logger
}

// maxRenderedEntries bounds the lines kept in the log viewport.
const maxRenderedEntries = 1000

// fixed rows: top bar, reasoning box (4 lines + border), input, status bar.
const chromeHeight = 1 + 6 + 1 + 1

// Model is the root Bubble Tea model of the operator console.
type Model struct {
	deps Deps

	input textinput.Model
	logs  viewport.Model
	ready bool

	// Rendered state, kept in step with the store by Seq.
	seq     uint64
	proj    domain.Projection
	entries []domain.LogEntry

	model    string
	flash    string
	flashErr bool
	atBottom bool

	width  int
	height int

	programSend func(tea.Msg)
	unsubscribe func()
}

// New creates the console model.
func New(deps Deps) *Model {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	in := textinput.New()
	in.Placeholder = "Tell the agent what to do"
	in.Prompt = theme.InputPrompt.Render("> ")
	in.PlaceholderStyle = theme.InputPlaceholder
	in.CharLimit = 2000
	in.Focus()

	model := deps.Model
	if model == "" {
		model = domain.KnownModels[0]
	}

	m := &Model{
		deps:     deps,
		input:    in,
		model:    model,
		atBottom: true,
		proj:     domain.NewProjection(""),
	}
	if deps.Store != nil {
		m.applySnapshot(deps.Store.Snapshot())
	}
	return m
}

// SetProgramSender sets the function used to inject messages from the EventBus.
// Must be called before Run().
func (m *Model) SetProgramSender(send func(tea.Msg)) {
	m.programSend = send
}

// Init subscribes to the EventBus and resyncs from the store.
func (m *Model) Init() tea.Cmd {
	if m.deps.Bus != nil && m.programSend != nil {
		m.unsubscribe = m.deps.Bus.SubscribeAll(func(_ context.Context, event domain.Event) {
			m.programSend(EventBusMsg{Event: event})
		})
	}
	cmds := []tea.Cmd{textinput.Blink}
	if m.deps.Store != nil {
		cmds = append(cmds, snapshotCmd(m.deps.Store))
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if m.ready {
			var cmd tea.Cmd
			m.logs, cmd = m.logs.Update(msg)
			m.atBottom = m.logs.AtBottom()
			return m, cmd
		}
		return m, nil

	case EventBusMsg:
		return m.handleEvent(msg.Event)

	case SnapshotMsg:
		m.applySnapshot(msg.Snapshot)
		return m, nil

	case StartResultMsg:
		switch {
		case errors.Is(msg.Err, domain.ErrSessionBusy):
			m.setFlash("A session is already running; interrupt it first", true)
		case msg.Err != nil:
			m.setFlash(msg.Err.Error(), true)
		default:
			m.input.Reset()
			m.setFlash("Running: "+msg.Command, false)
		}
		return m, nil

	case StopResultMsg:
		if !msg.Stopped {
			m.setFlash("No session to interrupt", false)
		}
		return m, nil

	case SaveResultMsg:
		if msg.Err != nil {
			m.setFlash("Save failed: "+msg.Err.Error(), true)
		} else {
			m.setFlash(fmt.Sprintf("Saved %d log entries", msg.Count), false)
		}
		return m, nil

	case ClearedMsg:
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.unsubscribe != nil {
			m.unsubscribe()
			m.unsubscribe = nil
		}
		return m, tea.Quit

	case tea.KeyEnter:
		command := m.input.Value()
		if command == "" || m.deps.Controller == nil {
			return m, nil
		}
		return m, startCmd(m.deps.Controller, command, m.model)

	case tea.KeyEsc, tea.KeyCtrlX:
		if m.deps.Controller == nil {
			return m, nil
		}
		return m, stopCmd(m.deps.Controller)

	case tea.KeyCtrlL:
		if m.deps.Store == nil {
			return m, nil
		}
		return m, clearCmd(m.deps.Store)

	case tea.KeyCtrlS:
		if m.deps.Saver == nil {
			m.setFlash("Log export is not configured", true)
			return m, nil
		}
		if len(m.entries) == 0 {
			m.setFlash("Nothing to save", false)
			return m, nil
		}
		entries := make([]domain.LogEntry, len(m.entries))
		copy(entries, m.entries)
		return m, saveCmd(m.deps.Saver, entries)

	case tea.KeyTab:
		m.model = nextModel(m.model)
		return m, nil

	case tea.KeyPgUp:
		if m.ready {
			m.logs.LineUp(m.logs.Height)
			m.atBottom = m.logs.AtBottom()
		}
		return m, nil

	case tea.KeyPgDown:
		if m.ready {
			m.logs.LineDown(m.logs.Height)
			m.atBottom = m.logs.AtBottom()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleEvent(ev domain.Event) (tea.Model, tea.Cmd) {
	switch ev.Type {
	case domain.EventStateCommitted, domain.EventLogsCleared:
		var p domain.StateCommittedPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			m.deps.Logger.Warn("console: bad commit payload", "error", err)
			return m, m.resync()
		}
		if p.Seq <= m.seq {
			return m, nil
		}
		if p.Seq != m.seq+1 {
			// A notification was dropped; the store is authoritative.
			return m, m.resync()
		}
		m.seq = p.Seq
		m.proj = p.Projection
		if ev.Type == domain.EventLogsCleared {
			m.entries = nil
		} else {
			m.appendEntries(p.Appended)
		}
		m.refreshLogs()

	case domain.EventSessionFailed:
		var p domain.SessionPayload
		if json.Unmarshal(ev.Payload, &p) == nil && p.Error != "" {
			if p.Retryable {
				p.Error += " (try again shortly)"
			}
			m.setFlash(p.Error, true)
		}

	case domain.EventSessionFinalized:
		m.setFlash("Ready", false)
	}
	return m, nil
}

func (m *Model) resync() tea.Cmd {
	if m.deps.Store == nil {
		return nil
	}
	return snapshotCmd(m.deps.Store)
}

func (m *Model) applySnapshot(s projection.Snapshot) {
	if s.Seq < m.seq {
		return
	}
	m.seq = s.Seq
	m.proj = s.Projection
	m.entries = nil
	m.appendEntries(s.Logs)
	m.refreshLogs()
}

func (m *Model) appendEntries(entries []domain.LogEntry) {
	m.entries = append(m.entries, entries...)
	if len(m.entries) > maxRenderedEntries {
		m.entries = m.entries[len(m.entries)-maxRenderedEntries:]
	}
}

func (m *Model) setFlash(text string, isErr bool) {
	m.flash = text
	m.flashErr = isErr
}

func (m *Model) layout() {
	m.input.Width = theme.Clamp(m.width-4, 10, theme.MaxContentWidth*2)
	h := m.height - chromeHeight
	if h < 3 {
		h = 3
	}
	if !m.ready {
		m.logs = viewport.New(m.width, h)
		m.logs.MouseWheelEnabled = true
		m.ready = true
	} else {
		m.logs.Width = m.width
		m.logs.Height = h
	}
	m.refreshLogs()
}

func (m *Model) refreshLogs() {
	if !m.ready {
		return
	}
	m.logs.SetContent(renderLogs(m.entries))
	if m.atBottom {
		m.logs.GotoBottom()
	}
}

// nextModel cycles through the known agent models.
func nextModel(current string) string {
	for i, k := range domain.KnownModels {
		if k == current {
			return domain.KnownModels[(i+1)%len(domain.KnownModels)]
		}
	}
	return domain.KnownModels[0]
}
