// Package console is an interactive terminal chat with the portfolio
// assistant, built on bubbletea. It carries slots from a clarification
// turn into the next one and charts P&L answers.
package console

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/portfoliod/internal/pnl"
	"github.com/fyrsmithlabs/portfoliod/internal/supervisor"
)

// DefaultTimeout bounds a single turn.
const DefaultTimeout = 30 * time.Second

// maxTurns is how many past turns stay on screen.
const maxTurns = 6

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	questionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45")).
			Bold(true)

	answerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	routedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	clarifyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// Turn is one question and its outcome.
type Turn struct {
	Question string
	Answer   string
	Intent   string
	State    supervisor.State
	Chart    string
	Elapsed  time.Duration
	Err      error
}

// Model is the bubbletea chat model.
type Model struct {
	asker   Asker
	timeout time.Duration

	input   textinput.Model
	spinner spinner.Model

	turns     []Turn
	prior     *supervisor.Slots
	pending   string
	latencies []float64
	quitting  bool
}

// Message types
type answerMsg struct {
	question string
	resp     *supervisor.Response
	elapsed  time.Duration
}

type errMsg struct {
	question string
	err      error
}

// NewModel creates a chat model. A zero timeout uses DefaultTimeout.
func NewModel(asker Asker, timeout time.Duration) Model {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ti := textinput.New()
	ti.Placeholder = "Ask about NOI, P&L, a property, or a ledger term"
	ti.CharLimit = 500
	ti.Width = 72
	ti.Prompt = "› "
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = sparklineStyle

	return Model{
		asker:     asker,
		timeout:   timeout,
		input:     ti,
		spinner:   sp,
		latencies: make([]float64, 0, historySize),
	}
}

// Init starts the cursor blinking.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// ask sends one turn and reports the outcome as a message.
func ask(asker Asker, timeout time.Duration, question string, prior *supervisor.Slots) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		start := time.Now()
		resp, err := asker.Ask(ctx, question, prior)
		if err != nil {
			return errMsg{question: question, err: err}
		}
		return answerMsg{question: question, resp: resp, elapsed: time.Since(start)}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyCtrlR:
			m.prior = nil
			return m, nil
		case tea.KeyEnter:
			return m.submit()
		}

	case answerMsg:
		m.pending = ""
		m.latencies = appendToHistory(m.latencies, float64(msg.elapsed.Milliseconds()))
		m.addTurn(turnFrom(msg))
		// Only a clarification carries its slots into the next turn.
		if msg.resp.State == supervisor.StateAwaitingClarification {
			slots := msg.resp.Slots
			m.prior = &slots
		} else {
			m.prior = nil
		}
		return m, nil

	case errMsg:
		m.pending = ""
		m.addTurn(Turn{Question: msg.question, Err: msg.err})
		return m, nil

	case spinner.TickMsg:
		if m.pending == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.pending != "" {
		return m, nil
	}
	question := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")

	switch question {
	case "":
		return m, nil
	case "/quit", "/exit":
		m.quitting = true
		return m, tea.Quit
	case "/reset":
		m.prior = nil
		return m, nil
	}

	m.pending = question
	return m, tea.Batch(ask(m.asker, m.timeout, question, m.prior), m.spinner.Tick)
}

func (m *Model) addTurn(t Turn) {
	m.turns = append(m.turns, t)
	if len(m.turns) > maxTurns {
		m.turns = m.turns[len(m.turns)-maxTurns:]
	}
}

func turnFrom(msg answerMsg) Turn {
	t := Turn{
		Question: msg.question,
		Answer:   msg.resp.Answer,
		Intent:   string(msg.resp.Intent),
		State:    msg.resp.State,
		Elapsed:  msg.elapsed,
	}
	if report, ok := reportFrom(msg.resp); ok {
		t.Chart = noiChart(report)
	}
	return t
}

// View renders the transcript, input line, and footer.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(" portfoliod ") + "  " + m.statusLine() + "\n")

	for _, t := range m.turns {
		b.WriteString("\n" + renderTurn(t))
	}
	if m.pending != "" {
		b.WriteString("\n" + questionStyle.Render("you: ") + m.pending + "\n")
		b.WriteString(m.spinner.View() + dimStyle.Render(" thinking...") + "\n")
	}

	b.WriteString("\n" + m.input.View() + "\n")
	b.WriteString(dimStyle.Render("latency ms ") + latencySparkline(m.latencies) + "\n")

	footer := footerKeyStyle.Render("[enter]") + footerStyle.Render(" ask  ") +
		footerKeyStyle.Render("[ctrl+r]") + footerStyle.Render(" reset context  ") +
		footerKeyStyle.Render("[esc]") + footerStyle.Render(" quit")
	b.WriteString(footer)

	return containerStyle.Render(b.String())
}

func (m Model) statusLine() string {
	if m.prior == nil {
		return dimStyle.Render("new conversation")
	}
	parts := []string{}
	if m.prior.Intent != "" {
		parts = append(parts, string(m.prior.Intent))
	}
	if len(m.prior.Properties) > 0 {
		parts = append(parts, strings.Join(m.prior.Properties, ","))
	}
	if !m.prior.Period.IsNone() {
		parts = append(parts, m.prior.Period.Label())
	}
	return clarifyStyle.Render("awaiting clarification") + " " + dimStyle.Render(strings.Join(parts, " · "))
}

func renderTurn(t Turn) string {
	var b strings.Builder
	b.WriteString(questionStyle.Render("you: ") + t.Question + "\n")
	if t.Err != nil {
		b.WriteString(errorStyle.Render("✗ "+t.Err.Error()) + "\n")
		return b.String()
	}

	badge := routedStyle.Render("[✓]")
	if t.State == supervisor.StateAwaitingClarification {
		badge = clarifyStyle.Render("[?]")
	}
	b.WriteString(badge + " " + answerStyle.Render(t.Answer) + "\n")
	if t.Chart != "" {
		b.WriteString(t.Chart + "\n")
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("%s · %s", t.Intent, formatLatency(t.Elapsed))) + "\n")
	return b.String()
}

// formatLatency renders d as "X.Xms" below one second, else "X.Xs".
func formatLatency(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// Run starts the console on the terminal and blocks until the user quits.
func Run(ctx context.Context, asker Asker, timeout time.Duration) error {
	p := tea.NewProgram(NewModel(asker, timeout), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("console: %w", err)
	}
	return nil
}

// Render formats one response for non-interactive output: the answer,
// then a chart and totals line for P&L results.
func Render(resp *supervisor.Response) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(resp.Answer)
	if report, ok := reportFrom(resp); ok {
		b.WriteString("\n\n" + noiChart(report))
		b.WriteString("\n" + formatTotals(report.Result))
	}
	return b.String()
}

func formatTotals(r pnl.Result) string {
	return fmt.Sprintf("revenue %s · expense %s · NOI %s",
		pnl.FormatCurrency(r.TotalRevenue), pnl.FormatCurrency(r.TotalExpense), pnl.FormatCurrency(r.NetOperatingIncome))
}
