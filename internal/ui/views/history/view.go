package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	historydto "deckhand/internal/modules/history/dto"
	"deckhand/internal/ui/theme"
)

// ─── port ────────────────────────────────────────────────────────────────────

// Port is the slice of the history archive this browser needs.
type Port interface {
	List(ctx context.Context) ([]historydto.RunView, error)
	Get(ctx context.Context, sessionID string) (historydto.RunDetail, error)
	Search(ctx context.Context, query string) ([]historydto.RunView, error)
}

// ─── messages ────────────────────────────────────────────────────────────────

type RunsLoadedMsg struct {
	Runs []historydto.RunView
	Err  error
}

type DetailLoadedMsg struct {
	Detail historydto.RunDetail
	Err    error
}

// BackMsg asks the parent to return to the dashboard.
type BackMsg struct{}

// ─── list item ───────────────────────────────────────────────────────────────

type runItem struct {
	run historydto.RunView
}

func (i runItem) Title() string { return i.run.DeckName }
func (i runItem) Description() string {
	when := "unknown"
	if !i.run.FinishedAt.IsZero() {
		when = i.run.FinishedAt.Format("2006-01-02 15:04")
	}
	return fmt.Sprintf("%d cards · %s", i.run.CardCount, when)
}
func (i runItem) FilterValue() string { return i.run.DeckName }

// ─── model ───────────────────────────────────────────────────────────────────

// Model is the run archive browser: past runs on the left, the
// selected run's note on the right.
type Model struct {
	port    Port
	list    list.Model
	detail  historydto.RunDetail
	preview viewport.Model
	spinner spinner.Model
	loading bool
	width   int
	height  int
}

// New creates a history browser backed by the given port.
func New(port Port) Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(theme.Lavender).BorderForeground(theme.Lavender)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(theme.Sapphire).BorderForeground(theme.Lavender)

	l := list.New(nil, delegate, 0, 0)
	l.Title = "History"
	l.Styles.Title = theme.Title
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)

	vp := viewport.New(0, 0)
	vp.Style = lipgloss.NewStyle().
		Background(theme.Mantle).
		Foreground(theme.Text).
		Padding(1)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Lavender)

	return Model{port: port, list: l, preview: vp, spinner: sp}
}

func (m Model) Init() tea.Cmd { return nil }

// Reload fetches the run list from the archive.
func (m *Model) Reload() tea.Cmd {
	m.loading = true
	return tea.Batch(m.loadRunsCmd(""), m.spinner.Tick)
}

// SearchRuns runs an archive search; exposed for the command palette.
func (m *Model) SearchRuns(query string) tea.Cmd {
	m.loading = true
	return tea.Batch(m.loadRunsCmd(query), m.spinner.Tick)
}

// Filtering reports whether the list's filter input is open.
func (m Model) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case RunsLoadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.list.Title = "History — " + msg.Err.Error()
			return m, nil
		}
		m.list.Title = "History"
		items := make([]list.Item, len(msg.Runs))
		for i, r := range msg.Runs {
			items[i] = runItem{run: r}
		}
		cmds = append(cmds, m.list.SetItems(items))
		if len(msg.Runs) > 0 {
			cmds = append(cmds, m.loadDetailCmd(msg.Runs[0].SessionID))
		} else {
			m.detail = historydto.RunDetail{}
			m.preview.SetContent(theme.Muted.Render("no archived runs"))
		}

	case DetailLoadedMsg:
		if msg.Err != nil {
			m.preview.SetContent(theme.Bad.Render(msg.Err.Error()))
			return m, nil
		}
		m.detail = msg.Detail
		m.preview.SetContent(renderDetail(msg.Detail))
		m.preview.GotoTop()

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.KeyMsg:
		if m.Filtering() {
			break
		}
		if msg.String() == "esc" {
			return m, func() tea.Msg { return BackMsg{} }
		}
	}

	before := m.list.Index()
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	cmds = append(cmds, cmd)
	if m.list.Index() != before {
		if item, ok := m.list.SelectedItem().(runItem); ok {
			cmds = append(cmds, m.loadDetailCmd(item.run.SessionID))
		}
	}

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.loading {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			m.spinner.View()+" Loading archive…")
	}
	left := m.list.View()
	right := m.preview.View()
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
	footer := " " + theme.Muted.Render("/: filter   esc: back")
	return lipgloss.JoinVertical(lipgloss.Left, body, footer)
}

// ─── private ─────────────────────────────────────────────────────────────────

func (m *Model) resize() {
	listW := m.width * 2 / 5
	if listW < 24 {
		listW = 24
	}
	m.list.SetSize(listW, m.height-2)
	m.preview.Width = m.width - listW - 3
	m.preview.Height = m.height - 2
}

func renderDetail(d historydto.RunDetail) string {
	var sb strings.Builder
	sb.WriteString(theme.Title.Render(d.DeckName) + "\n\n")
	sb.WriteString(fmt.Sprintf("session   %s\n", d.SessionID))
	sb.WriteString(fmt.Sprintf("source    %s\n", d.SourceFile))
	sb.WriteString(fmt.Sprintf("cards     %d\n", d.CardCount))
	if !d.StartedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("started   %s\n", d.StartedAt.Format("2006-01-02 15:04")))
	}
	if !d.FinishedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("finished  %s\n", d.FinishedAt.Format("2006-01-02 15:04")))
	}
	if strings.TrimSpace(d.Body) != "" {
		sb.WriteString("\n" + d.Body)
	}
	return sb.String()
}

func (m Model) loadRunsCmd(query string) tea.Cmd {
	return func() tea.Msg {
		if query != "" {
			runs, err := m.port.Search(context.Background(), query)
			return RunsLoadedMsg{Runs: runs, Err: err}
		}
		runs, err := m.port.List(context.Background())
		return RunsLoadedMsg{Runs: runs, Err: err}
	}
}

func (m Model) loadDetailCmd(sessionID string) tea.Cmd {
	return func() tea.Msg {
		detail, err := m.port.Get(context.Background(), sessionID)
		return DetailLoadedMsg{Detail: detail, Err: err}
	}
}
