package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/rs/zerolog"

	"edunav/internal/backend"
	"edunav/internal/session"
)

// Asker is the TUI-facing subset of the session controller.
type Asker interface {
	Ask(ctx context.Context, question string, opts ...session.Option) session.Result
}

type phaseMsg struct {
	seq   int
	phase session.State
}

type resultMsg struct {
	seq int
	res session.Result
}

// Model is the Bubble Tea model for the interactive Q&A session. Each
// submitted question starts a new cycle; messages from superseded cycles
// are dropped by sequence number so at most one result is displayed for
// the latest question.
type Model struct {
	asker    Asker
	statuses []backend.Status
	log      zerolog.Logger

	input    textinput.Model
	viewport viewport.Model
	spin     spinner.Model

	state  session.State
	result session.Result
	seq    int
	cancel context.CancelFunc
	phases chan session.State
	ready  bool
}

// New creates a new TUI model instance.
func New(asker Asker, statuses []backend.Status, log zerolog.Logger) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Please enter your question:"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle
	vp := viewport.New(0, 0)
	return Model{
		asker:    asker,
		statuses: statuses,
		log:      log.With().Str("component", "tui").Logger(),
		input:    ti,
		viewport: vp,
		spin:     sp,
		state:    session.StateAwaitingInput,
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window, phase and result events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		rw, rh := answerBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + len(m.statuses) + 1 + qh + 1 // header, sources, status line, input frame, spacer
		vh := msg.Height - reserved - rh
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = maxInt(20, msg.Width-rw)
		m.viewport.Height = vh
		m.input.Width = maxInt(20, msg.Width-rw-len(m.input.Prompt))
		m.viewport.SetContent(m.renderContent())
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case tea.KeyEnter:
			return m.startCycle()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case phaseMsg:
		if msg.seq != m.seq || !m.busy() {
			return m, nil
		}
		m.state = msg.phase
		return m, listenPhase(msg.seq, m.phases)

	case resultMsg:
		if msg.seq != m.seq {
			// a newer question superseded this cycle
			return m, nil
		}
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.result = msg.res
		m.state = msg.res.State
		m.viewport.SetContent(m.renderContent())
		m.viewport.GotoTop()
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) startCycle() (tea.Model, tea.Cmd) {
	question := m.input.Value()
	if m.cancel != nil {
		m.cancel()
	}
	m.seq++
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.phases = make(chan session.State, 4)
	m.state = session.StateRetrieving
	m.log.Debug().Int("seq", m.seq).Msg("cycle started")
	return m, tea.Batch(
		m.spin.Tick,
		listenPhase(m.seq, m.phases),
		runAsk(ctx, m.asker, m.seq, question, m.phases),
	)
}

func runAsk(ctx context.Context, asker Asker, seq int, question string, phases chan session.State) tea.Cmd {
	return func() tea.Msg {
		res := asker.Ask(ctx, question, session.WithPhaseFunc(func(s session.State) {
			select {
			case phases <- s:
			default:
			}
		}))
		close(phases)
		return resultMsg{seq: seq, res: res}
	}
}

func listenPhase(seq int, phases <-chan session.State) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-phases
		if !ok {
			return nil
		}
		return phaseMsg{seq: seq, phase: p}
	}
}

func (m Model) busy() bool {
	return m.state == session.StateRetrieving || m.state == session.StateGenerating
}

// View renders the layout: title, per-source load status, the answer
// area, the input box, and one status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("EduNavigator Q&A"))
	b.WriteString("\n")
	for _, st := range m.statuses {
		b.WriteString(sourceStatusLine(st))
		b.WriteString("\n")
	}
	b.WriteString(answerBoxStyle.Render(m.viewport.View()))
	b.WriteString("\n")
	b.WriteString(queryBoxStyle.Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	return b.String()
}

func (m Model) statusLine() string {
	switch m.state {
	case session.StateRetrieving:
		return m.spin.View() + busyStyle.Render("Retrieving information...")
	case session.StateGenerating:
		return m.spin.View() + busyStyle.Render("Generating answer...")
	case session.StateErrored:
		return errStyle.Render(m.result.Message)
	case session.StateNoContext:
		return warnStyle.Render(m.result.Message)
	case session.StateDone:
		return okStyle.Render("Done. Ask another question or press Esc to quit.")
	}
	if m.result.Message != "" {
		return warnStyle.Render(m.result.Message)
	}
	return helpStyle.Render("Enter: ask  PgUp/PgDn: scroll  Esc: quit")
}

// renderContent shows the last completed result; the status line, not
// the viewport, tracks the in-flight phase.
func (m Model) renderContent() string {
	width := maxInt(20, m.viewport.Width-2)
	var parts []string
	switch m.result.State {
	case session.StateDone:
		parts = append(parts, headingStyle.Render("Answer:"))
		parts = append(parts, wordwrap.String(m.result.Answer, width))
	case session.StateNoContext, session.StateErrored:
		parts = append(parts, wordwrap.String(m.result.Message, width))
	default:
		if m.result.Message != "" {
			parts = append(parts, wordwrap.String(m.result.Message, width))
		} else {
			parts = append(parts, wordwrap.String("Welcome to EduNavigator. Ask a question about your course materials.", width))
		}
	}
	for _, se := range m.result.SourceErrors {
		parts = append(parts, errStyle.Render(wordwrap.String(se.Error(), width)))
	}
	return strings.Join(parts, "\n\n")
}

func sourceStatusLine(st backend.Status) string {
	if st.Err != nil {
		return errStyle.Render(fmt.Sprintf("Error loading %s index: %v", st.Source, st.Err))
	}
	return okStyle.Render(fmt.Sprintf("Loaded %s index successfully.", st.Source))
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	answerBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	headingStyle   = lipgloss.NewStyle().Bold(true)
	okStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	busyStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	spinnerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
