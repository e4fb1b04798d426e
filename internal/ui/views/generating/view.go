package generating

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	gendto "deckhand/internal/modules/generation/dto"
	"deckhand/internal/ui/theme"
)

// ─── port ────────────────────────────────────────────────────────────────────

// Port is the single engine action available mid-run.
type Port interface {
	Cancel(ctx context.Context) error
}

// ─── messages ────────────────────────────────────────────────────────────────

// CancelRequestedMsg is sent when the stop request round trip finishes.
// The run itself still ends through the event stream.
type CancelRequestedMsg struct{ Err error }

// ─── model ───────────────────────────────────────────────────────────────────

// Model renders a live run: synthetic progress bar, phase line and the
// event log tail. All state arrives through SetSnapshot; the parent's
// tick loop keeps it fresh.
type Model struct {
	port       Port
	snap       gendto.Snapshot
	bar        progress.Model
	logs       viewport.Model
	spinner    spinner.Model
	logCount   int
	cancelBusy bool
	width      int
	height     int
}

// New creates a generating Model backed by the given port.
func New(port Port) Model {
	bar := progress.New(
		progress.WithGradient(string(theme.Sapphire), string(theme.Lavender)),
		progress.WithWidth(48),
	)

	vp := viewport.New(0, 0)
	vp.Style = lipgloss.NewStyle().Background(theme.Mantle).Foreground(theme.Text).Padding(0, 1)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Lavender)

	return Model{port: port, bar: bar, logs: vp, spinner: sp}
}

func (m Model) Init() tea.Cmd { return m.spinner.Tick }

// SetSnapshot replaces the displayed run state and follows the log tail.
func (m *Model) SetSnapshot(snap gendto.Snapshot) {
	m.snap = snap
	if len(snap.Logs) != m.logCount {
		m.logCount = len(snap.Logs)
		m.logs.SetContent(renderLogs(snap.Logs))
		m.logs.GotoBottom()
	}
	if !snap.Cancelling {
		m.cancelBusy = false
	}
}

// Cancel asks the backend to stop the run; exposed for the palette.
func (m *Model) Cancel() tea.Cmd {
	if m.cancelBusy || m.snap.Cancelling {
		return nil
	}
	m.cancelBusy = true
	return func() tea.Msg {
		return CancelRequestedMsg{Err: m.port.Cancel(context.Background())}
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(m.width-12, 64)
		m.logs.Width = m.width - 6
		m.logs.Height = m.logHeight()

	case CancelRequestedMsg:
		if msg.Err != nil {
			m.cancelBusy = false
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		if msg.String() == "c" {
			cmd := m.Cancel()
			return m, cmd
		}
	}

	var vCmd tea.Cmd
	m.logs, vCmd = m.logs.Update(msg)
	cmds = append(cmds, vCmd)

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	header := m.renderHeader()
	bar := "  " + m.bar.ViewAs(m.snap.DisplayPercent/100) + "\n"
	state := m.renderStateLine()

	top := lipgloss.JoinVertical(lipgloss.Left, header, bar, state)
	topH := lipgloss.Height(top)

	logsH := m.height - topH - 1
	if logsH < 1 {
		logsH = 1
	}
	logs := m.logs
	logs.Height = logsH

	return lipgloss.JoinVertical(lipgloss.Left, top, logs.View())
}

// ─── private ─────────────────────────────────────────────────────────────────

func (m *Model) logHeight() int {
	h := m.height - 7
	if h < 1 {
		h = 1
	}
	return h
}

func (m Model) renderHeader() string {
	deck := m.snap.DeckName
	if deck == "" {
		deck = "(unnamed deck)"
	}
	return theme.Title.Render("Generating "+deck) + "\n"
}

func (m Model) renderStateLine() string {
	snap := m.snap

	parts := []string{phaseLabel(snap.Phase)}
	if snap.Phase == gendto.PhaseConcept && snap.SetupSteps > 0 {
		parts = append(parts, fmt.Sprintf("setup step %d", snap.SetupSteps))
	}
	if snap.BatchTotal > 0 {
		parts = append(parts, fmt.Sprintf("batch %d/%d", snap.BatchCurrent, snap.BatchTotal))
	}
	if snap.ExpectedCards > 0 {
		parts = append(parts, fmt.Sprintf("~%d cards expected", snap.ExpectedCards))
	}
	parts = append(parts, fmt.Sprintf("%d produced", len(snap.Cards)))

	line := "  " + m.spinner.View() + " " + theme.Muted.Render(strings.Join(parts, " · "))

	switch {
	case snap.Cancelling:
		line += "  " + theme.Hot.Render("cancelling…")
	case snap.Failed:
		line += "  " + theme.Bad.Render("stream error, see log")
	default:
		line += "  " + theme.Muted.Render("c: cancel")
	}
	return line + "\n"
}

func phaseLabel(phase string) string {
	switch phase {
	case gendto.PhaseConcept:
		return "reading the source"
	case gendto.PhaseGenerating:
		return "writing cards"
	case gendto.PhaseReflecting:
		return "refining the deck"
	case gendto.PhaseComplete:
		return "complete"
	default:
		return phase
	}
}

func renderLogs(logs []gendto.LogView) string {
	var sb strings.Builder
	for _, entry := range logs {
		stamp := theme.Muted.Render(entry.At.Format("15:04:05"))
		switch entry.Level {
		case "error":
			sb.WriteString(stamp + " " + theme.Bad.Render(entry.Message) + "\n")
		case "warning":
			sb.WriteString(stamp + " " + theme.Hot.Render(entry.Message) + "\n")
		default:
			sb.WriteString(stamp + " " + entry.Message + "\n")
		}
	}
	if sb.Len() == 0 {
		return theme.Muted.Render("(waiting for the backend…)")
	}
	return sb.String()
}
