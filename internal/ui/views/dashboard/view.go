package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	historydto "deckhand/internal/modules/history/dto"
	"deckhand/internal/ui/theme"
)

// recentLimit caps the run digest on the landing screen; the full
// archive lives in the history view.
const recentLimit = 5

// ─── port ────────────────────────────────────────────────────────────────────

// Port is the minimal interface this view needs from the history use-case.
type Port interface {
	List(ctx context.Context) ([]historydto.RunView, error)
}

// ─── messages ────────────────────────────────────────────────────────────────

// RunsLoadedMsg is sent when the recent-run digest finishes loading.
type RunsLoadedMsg struct {
	Runs []historydto.RunView
	Err  error
}

// ─── model ───────────────────────────────────────────────────────────────────

// Model is the landing screen: a digest of recent runs plus the keys
// that start the generate flow.
type Model struct {
	port    Port
	spinner spinner.Model
	runs    []historydto.RunView
	loading bool
	loadErr string
	width   int
	height  int
}

// New creates a dashboard Model backed by the given history port.
func New(port Port) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Lavender)

	return Model{port: port, spinner: sp}
}

func (m Model) Init() tea.Cmd { return nil }

// Reload fetches the recent-run digest.
func (m *Model) Reload() tea.Cmd {
	m.loading = true
	m.loadErr = ""
	return tea.Batch(m.loadCmd(), m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case RunsLoadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.loadErr = msg.Err.Error()
			return m, nil
		}
		m.runs = msg.Runs

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	title := theme.Title.Render("deckhand") + "  " +
		theme.Muted.Render("lecture documents in, flashcards out")

	var body strings.Builder
	body.WriteString(title + "\n\n")
	body.WriteString(m.renderRecent() + "\n")
	body.WriteString(m.renderKeys())

	pane := theme.Pane.Width(min(m.width-4, 72)).Render(body.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, pane)
}

// ─── private ─────────────────────────────────────────────────────────────────

func (m Model) renderRecent() string {
	if m.loading {
		return m.spinner.View() + " Loading recent runs…\n"
	}
	if m.loadErr != "" {
		return theme.Bad.Render("history unavailable: "+m.loadErr) + "\n"
	}
	if len(m.runs) == 0 {
		return theme.Muted.Render("No runs yet. Generate your first deck with n.") + "\n"
	}

	var sb strings.Builder
	sb.WriteString(theme.Muted.Render("Recent runs") + "\n")
	for i, run := range m.runs {
		if i == recentLimit {
			break
		}
		sb.WriteString(fmt.Sprintf("  %s  %s\n",
			theme.Hot.Render(run.DeckName),
			theme.Muted.Render(fmt.Sprintf("%d cards · %s", run.CardCount, humanAge(run.FinishedAt))),
		))
	}
	return sb.String()
}

func (m Model) renderKeys() string {
	keys := [][2]string{
		{"n", "new deck"},
		{"r", "resume last session"},
		{"h", "history"},
		{":", "palette"},
		{"q", "quit"},
	}
	var parts []string
	for _, k := range keys {
		parts = append(parts, theme.Hot.Render(k[0])+theme.Muted.Render(" "+k[1]))
	}
	return strings.Join(parts, theme.Muted.Render("   "))
}

func humanAge(at time.Time) string {
	if at.IsZero() {
		return "unknown"
	}
	age := time.Since(at)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return at.Format("2006-01-02")
	}
}

func (m Model) loadCmd() tea.Cmd {
	return func() tea.Msg {
		runs, err := m.port.List(context.Background())
		return RunsLoadedMsg{Runs: runs, Err: err}
	}
}
