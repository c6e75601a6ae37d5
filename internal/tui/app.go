// Package tui is the terminal front end: an import view that tracks the
// ingestion orchestrator and a chat view backed by the conversation
// controller and the audio pipeline.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/solaceapp/solace/internal/audio"
	"github.com/solaceapp/solace/internal/conversation"
	"github.com/solaceapp/solace/internal/ingest"
	"github.com/solaceapp/solace/internal/session"
)

type view int

const (
	viewImport view = iota
	viewChat
)

// Deps are the collaborators the TUI drives. NewController is called
// once ingestion commits a session (or immediately when resuming one).
type Deps struct {
	Orchestrator  *ingest.Orchestrator
	Pipeline      *audio.Pipeline
	NewController func(sess session.Session) *conversation.Controller
}

// Model is the root bubbletea model.
type Model struct {
	deps    Deps
	updates chan tea.Msg

	view       view
	width      int
	height     int
	quitting   bool

	// Import view
	snapshot ingest.Snapshot
	bar      progress.Model

	// Chat view
	controller *conversation.Controller
	transcript viewport.Model
	compose    textarea.Model
	typing     spinner.Model
	recording  bool
	frame      audio.Frame
	errMessage string
}

// New builds the import-first model: ingestion starts on Init and the
// chat view takes over once a session is committed.
func New(deps Deps) *Model {
	m := newModel(deps)
	m.view = viewImport
	return m
}

// NewResumed builds a model that skips ingestion and opens the chat view
// on an existing session.
func NewResumed(deps Deps, sess session.Session) *Model {
	m := newModel(deps)
	m.openChat(sess)
	return m
}

func newModel(deps Deps) *Model {
	m := &Model{
		deps:    deps,
		updates: make(chan tea.Msg, 64),
		bar:     progress.New(progress.WithDefaultGradient()),
	}

	ta := textarea.New()
	ta.Placeholder = "Share a memory, a feeling, anything…"
	ta.SetHeight(2)
	ta.CharLimit = 2000
	ta.ShowLineNumbers = false
	m.compose = ta

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle
	m.typing = sp

	m.transcript = viewport.New(80, 20)

	// Callbacks run on the collaborators' goroutines; they only push
	// into the channel the Update loop drains.
	deps.Orchestrator.OnUpdate = func(snap ingest.Snapshot) {
		m.updates <- IngestUpdateMsg{Snapshot: snap}
	}
	deps.Pipeline.OnFrame = func(f audio.Frame) {
		select {
		case m.updates <- AudioFrameMsg{Frame: f}:
		default: // drop stale frames rather than block the capture loop
		}
	}

	m.snapshot = deps.Orchestrator.Snapshot()
	return m
}

func (m *Model) openChat(sess session.Session) {
	m.controller = m.deps.NewController(sess)
	m.controller.SeedWelcome()
	m.view = viewChat
	m.compose.Focus()
	m.refreshTranscript()
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.waitForUpdate(), m.typing.Tick, textarea.Blink}
	if m.view == viewImport {
		cmds = append(cmds, startIngestCmd(m.deps.Orchestrator))
	}
	return tea.Batch(cmds...)
}

// waitForUpdate relays the next background event into the tea loop.
func (m *Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		return <-m.updates
	}
}

func startIngestCmd(o *ingest.Orchestrator) tea.Cmd {
	return func() tea.Msg {
		if err := o.Start(context.Background()); err != nil {
			return IngestUpdateMsg{Snapshot: o.Snapshot()}
		}
		return nil
	}
}

func submitCmd(c *conversation.Controller, text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		return ChatTurnDoneMsg{Err: c.Submit(ctx, text)}
	}
}

func micStartCmd(p *audio.Pipeline) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.Start(ctx); err != nil {
			return MicErrorMsg{Err: err}
		}
		return MicStartedMsg{}
	}
}

func micStopCmd(p *audio.Pipeline) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		text, _ := p.Stop(ctx)
		return TranscribedMsg{Text: text}
	}
}

func clearTransientErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{}
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(60, max(20, m.width-10))
		m.compose.SetWidth(max(20, m.width-4))
		m.transcript.Width = max(20, m.width-2)
		m.transcript.Height = m.transcriptHeight()
		m.refreshTranscript()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.typing, cmd = m.typing.Update(msg)
		// The controller appends the user's message while a turn is in
		// flight; the tick keeps the visible transcript current.
		if m.view == viewChat {
			m.refreshTranscript()
		}
		return m, cmd

	case IngestUpdateMsg:
		m.snapshot = msg.Snapshot
		var cmds []tea.Cmd
		cmds = append(cmds, m.waitForUpdate())
		if m.snapshot.Status == ingest.StatusSucceeded && m.snapshot.Result != nil && m.view == viewImport {
			m.openChat(session.Session{
				SessionID:   m.snapshot.Result.SessionID,
				PersonName:  m.snapshot.Result.PersonName,
				MemoryCount: m.snapshot.Result.MemoryCount,
				Message:     m.snapshot.Result.Message,
			})
		}
		return m, tea.Batch(cmds...)

	case ChatTurnDoneMsg:
		m.refreshTranscript()
		if msg.Err != nil {
			m.errMessage = msg.Err.Error()
			return m, clearTransientErrorCmd()
		}
		return m, nil

	case AudioFrameMsg:
		m.frame = msg.Frame
		return m, m.waitForUpdate()

	case MicStartedMsg:
		m.recording = true
		return m, nil

	case MicErrorMsg:
		m.recording = false
		m.errMessage = msg.Err.Error()
		return m, clearTransientErrorCmd()

	case TranscribedMsg:
		m.recording = false
		m.frame = audio.Frame{}
		if msg.Text != "" {
			existing := m.compose.Value()
			if existing != "" {
				existing += " "
			}
			m.compose.SetValue(existing + msg.Text)
			if m.controller != nil {
				m.controller.SetCompose(m.compose.Value())
			}
		}
		return m, nil

	case ClearTransientErrorMsg:
		m.errMessage = ""
		return m, nil
	}

	if m.view == viewChat {
		var cmd tea.Cmd
		m.compose, cmd = m.compose.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Quit) {
		return m, m.shutdown()
	}

	if m.view == viewImport {
		return m.handleImportKey(msg)
	}
	return m.handleChatKey(msg)
}

func (m *Model) handleImportKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Retry):
		if m.snapshot.Status == ingest.StatusFailed {
			return m, startIngestCmd(m.deps.Orchestrator)
		}
	case msg.String() == "q":
		return m, m.shutdown()
	}
	return m, nil
}

func (m *Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Send):
		text := m.compose.Value()
		if text == "" || m.controller.Sending() {
			return m, nil
		}
		m.compose.Reset()
		m.controller.SetCompose("")
		m.refreshTranscript()
		return m, submitCmd(m.controller, text)

	case key.Matches(msg, keys.Mic):
		if m.recording {
			return m, micStopCmd(m.deps.Pipeline)
		}
		return m, micStartCmd(m.deps.Pipeline)

	case key.Matches(msg, keys.Dismiss):
		if m.controller.Crisis() {
			m.controller.DismissCrisis()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.compose, cmd = m.compose.Update(msg)
	if m.controller != nil {
		m.controller.SetCompose(m.compose.Value())
	}
	return m, cmd
}

// shutdown releases the microphone and abandons any running ingestion
// before quitting.
func (m *Model) shutdown() tea.Cmd {
	m.quitting = true
	m.deps.Orchestrator.Cancel()
	if m.recording {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		m.deps.Pipeline.Stop(ctx)
	}
	return tea.Quit
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Loading…"
	}
	if m.view == viewImport {
		return m.viewImportScreen()
	}
	return m.viewChatScreen()
}
