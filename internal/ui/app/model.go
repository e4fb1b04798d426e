package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	exportdto "deckhand/internal/modules/export/dto"
	gendto "deckhand/internal/modules/generation/dto"
	reviewdto "deckhand/internal/modules/review/dto"
	sourcedto "deckhand/internal/modules/source/dto"
	"deckhand/internal/ui/components"
	"deckhand/internal/ui/theme"
	configureview "deckhand/internal/ui/views/configure"
	dashboardview "deckhand/internal/ui/views/dashboard"
	generatingview "deckhand/internal/ui/views/generating"
	historyview "deckhand/internal/ui/views/history"
	reviewview "deckhand/internal/ui/views/review"
)

// tickEvery drives the snapshot loop: the engine folds events on its
// own goroutines, so the TUI polls a consistent snapshot instead of
// subscribing to every mutation. The cadence also keeps the trickle
// bar moving between real signals.
const tickEvery = 150 * time.Millisecond

// ─── ports ───────────────────────────────────────────────────────────────────
// Each port is the minimal interface this orchestration layer needs;
// sub-views narrow them further in their own packages.

type enginePort interface {
	BeginConfig(ctx context.Context) error
	Configure(ctx context.Context, input gendto.ConfigInput) error
	Submit(ctx context.Context) error
	Cancel(ctx context.Context) error
	Recover(ctx context.Context) error
	ResetToDashboard(ctx context.Context) error
	Snapshot() gendto.Snapshot
	RequestEstimate(input gendto.ConfigInput)
	PumpEstimate(ctx context.Context) bool
	Estimate() (gendto.EstimateView, bool)
	EstimateNow(ctx context.Context, input gendto.ConfigInput) (gendto.EstimateView, error)
}

type reviewPort interface {
	reviewview.Port
	Snapshot() reviewdto.Snapshot
}

type historyPort interface {
	historyview.Port
	Reindex(ctx context.Context) (int, error)
}

type sourcePort interface {
	Inspect(ctx context.Context, path string) (sourcedto.InspectionView, error)
}

type exportPort interface {
	ListFormats(ctx context.Context) ([]exportdto.FormatInfo, error)
	Doctor(ctx context.Context) ([]exportdto.DoctorResult, error)
	Export(ctx context.Context, input exportdto.ExportInput) (exportdto.ExportOutput, error)
}

// ─── screens ─────────────────────────────────────────────────────────────────

type screenID int

const (
	screenDashboard screenID = iota
	screenConfigure
	screenGenerating
	screenReview
	screenHistory
)

var screenLabels = map[screenID]string{
	screenDashboard:  "Dashboard",
	screenConfigure:  "Configure",
	screenGenerating: "Generating",
	screenReview:     "Review",
	screenHistory:    "History",
}

// ─── async messages ───────────────────────────────────────────────────────────

type tickMsg time.Time

type recoveredMsg struct{ err error }

type statusMsg struct{ text string }

// ─── key bindings ─────────────────────────────────────────────────────────────

type keyMap struct {
	New     key.Binding
	Resume  key.Binding
	History key.Binding
	Help    key.Binding
	Palette key.Binding
	Quit    key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		New:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new deck")),
		Resume:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "resume session")),
		History: key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "history")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Palette: key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "palette")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.New, k.Resume, k.History, k.Palette, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.New, k.Resume, k.History},
		{k.Help, k.Palette, k.Quit},
	}
}

// ─── model ───────────────────────────────────────────────────────────────────

// Model is the root Bubble Tea model. It owns screen routing, the
// snapshot tick loop, the help overlay, and the command palette. All
// business logic is delegated to port interfaces; all rendering is
// delegated to sub-views.
type Model struct {
	engine  enginePort
	review  reviewPort
	history historyPort
	source  sourcePort
	export  exportPort

	dashView   dashboardview.Model
	confView   configureview.Model
	genView    generatingview.Model
	reviewView reviewview.Model
	histView   historyview.Model

	screen   screenID
	keys     keyMap
	help     help.Model
	showHelp bool
	palette  components.Palette
	status   string
	width    int
	height   int
}

// NewModel wires the sub-views onto their ports.
func NewModel(engine enginePort, review reviewPort, history historyPort, source sourcePort, export exportPort) Model {
	return Model{
		engine:     engine,
		review:     review,
		history:    history,
		source:     source,
		export:     export,
		dashView:   dashboardview.New(history),
		confView:   configureview.New(engine, source),
		genView:    generatingview.New(engine),
		reviewView: reviewview.New(review),
		histView:   historyview.New(history),
		screen:     screenDashboard,
		keys:       defaultKeys(),
		help:       help.New(),
		palette:    components.NewPalette(),
		status:     "ready",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.confView.Init(),
		m.genView.Init(),
		m.dashView.Reload(),
		m.recoverCmd(),
		tick(),
	)
}

func tick() tea.Cmd {
	return tea.Tick(tickEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// ─── update ───────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	// The palette intercepts all input while open.
	if m.palette.Visible() {
		if _, isKey := msg.(tea.KeyMsg); isKey {
			var cmd tea.Cmd
			m.palette, cmd = m.palette.Update(msg)
			return m, cmd
		}
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.palette.SetWidth(min(m.width-4, 80))
		m.help.Width = m.width
		m.propagateSize()
		return m, nil

	case tickMsg:
		cmds = append(cmds, m.onTick()...)
		cmds = append(cmds, tick())
		return m, tea.Batch(cmds...)

	case recoveredMsg:
		if msg.err != nil {
			m.status = "recover: " + msg.err.Error()
			return m, nil
		}
		snap := m.engine.Snapshot()
		switch {
		case snap.Step == gendto.StepGenerating:
			m.status = "resumed session " + snap.SessionID
		case snap.Step == gendto.StepDone && snap.Historical:
			m.status = fmt.Sprintf("loaded finished session (%d cards)", len(snap.Cards))
		}
		return m, nil

	case statusMsg:
		m.status = msg.text
		return m, nil

	case components.PaletteSubmitMsg:
		return m.executePalette(msg.Input)

	case components.PaletteCancelMsg:
		m.status = "ready"
		return m, nil

	case configureview.SubmittedMsg:
		if msg.Err == nil {
			m.status = "job submitted"
		}
		var cmd tea.Cmd
		m.confView, cmd = m.confView.Update(msg)
		return m, cmd

	case configureview.BackMsg:
		_ = m.engine.ResetToDashboard(context.Background())
		m.screen = screenDashboard
		return m, m.dashView.Reload()

	case reviewview.BackMsg:
		_ = m.engine.ResetToDashboard(context.Background())
		m.screen = screenDashboard
		return m, m.dashView.Reload()

	case historyview.BackMsg:
		m.screen = screenDashboard
		return m, m.dashView.Reload()

	case generatingview.CancelRequestedMsg:
		if msg.Err != nil {
			m.status = "cancel: " + msg.Err.Error()
		} else {
			m.status = "stop requested"
		}
		var cmd tea.Cmd
		m.genView, cmd = m.genView.Update(msg)
		return m, cmd

	case reviewview.ActionDoneMsg:
		var cmd tea.Cmd
		m.reviewView, cmd = m.reviewView.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.showHelp {
			if msg.String() == "?" || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}
		if handled, model, cmd := m.handleGlobalKey(msg); handled {
			return model, cmd
		}
	}

	return m.updateActive(msg)
}

// handleGlobalKey owns the keys that work on every screen. Single
// letters yield while a text field is focused.
func (m Model) handleGlobalKey(msg tea.KeyMsg) (bool, tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return true, m, tea.Quit
	}

	if m.typing() {
		return false, m, nil
	}

	switch msg.String() {
	case "q":
		return true, m, tea.Quit
	case "?":
		m.showHelp = !m.showHelp
		return true, m, nil
	case ":":
		return true, m, m.palette.Open()
	case "n":
		if m.screen == screenDashboard {
			return true, m, m.beginConfigure()
		}
	case "r":
		if m.screen == screenDashboard {
			m.status = "checking for a resumable session…"
			return true, m, m.recoverCmd()
		}
	case "h":
		if m.screen == screenDashboard {
			m.screen = screenHistory
			return true, m, m.histView.Reload()
		}
	}
	return false, m, nil
}

func (m Model) updateActive(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.screen {
	case screenDashboard:
		m.dashView, cmd = m.dashView.Update(msg)
	case screenConfigure:
		m.confView, cmd = m.confView.Update(msg)
	case screenGenerating:
		m.genView, cmd = m.genView.Update(msg)
	case screenReview:
		m.reviewView, cmd = m.reviewView.Update(msg)
	case screenHistory:
		m.histView, cmd = m.histView.Update(msg)
	}
	return m, cmd
}

// onTick re-reads the engine snapshot, routes the screen to match the
// run's step, and feeds the snapshot-driven views.
func (m *Model) onTick() []tea.Cmd {
	var cmds []tea.Cmd
	snap := m.engine.Snapshot()

	switch snap.Step {
	case gendto.StepGenerating:
		if m.screen != screenGenerating {
			m.screen = screenGenerating
			// Restart the spinner: its tick chain dies whenever the
			// generating view is inactive.
			cmds = append(cmds, m.genView.Init())
		}
		m.genView.SetSnapshot(snap)
	case gendto.StepDone:
		if m.screen == screenGenerating {
			m.screen = screenReview
			m.status = fmt.Sprintf("run finished: %d cards", len(snap.Cards))
		}
	default:
		// A cancelled run folds back to the dashboard step; follow it
		// instead of leaving the user on a dead generating screen.
		if m.screen == screenGenerating {
			m.screen = screenDashboard
			m.status = "run cancelled"
			cmds = append(cmds, m.dashView.Reload())
		}
	}

	if m.screen == screenReview {
		cmds = append(cmds, m.reviewView.SetSnapshot(m.review.Snapshot(), snap.DeckName))
	}
	if m.screen == screenConfigure {
		cmds = append(cmds, m.confView.Pump())
	}
	return cmds
}

func (m Model) typing() bool {
	switch m.screen {
	case screenConfigure:
		return m.confView.Typing()
	case screenReview:
		return m.reviewView.Typing()
	case screenHistory:
		return m.histView.Filtering()
	}
	return false
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	header := m.renderHeader()
	statusBar := m.renderStatusBar()
	contentH := m.height - lipgloss.Height(header) - lipgloss.Height(statusBar)
	if contentH < 1 {
		contentH = 1
	}

	var content string
	switch {
	case m.showHelp:
		content = lipgloss.NewStyle().Width(m.width).Height(contentH).
			Render(m.help.View(m.keys))
	case m.palette.Visible():
		content = lipgloss.Place(m.width, contentH,
			lipgloss.Center, lipgloss.Center, m.palette.View())
	default:
		content = lipgloss.NewStyle().Height(contentH).Render(m.activeView())
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}

func (m Model) activeView() string {
	switch m.screen {
	case screenDashboard:
		return m.dashView.View()
	case screenConfigure:
		return m.confView.View()
	case screenGenerating:
		return m.genView.View()
	case screenReview:
		return m.reviewView.View()
	case screenHistory:
		return m.histView.View()
	}
	return ""
}

func (m Model) renderHeader() string {
	crumbs := theme.Hot.Render(screenLabels[m.screen])
	bar := theme.Title.Render("deckhand") + "  " + crumbs
	return lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar) + "\n"
}

func (m Model) renderStatusBar() string {
	left := m.status
	snap := m.engine.Snapshot()
	if snap.Step == gendto.StepGenerating {
		left = theme.Hot.Render(fmt.Sprintf("● %s %.0f%%", snap.DeckName, snap.DisplayPercent)) + "  " + left
	}
	right := theme.Muted.Render("?:help  :::palette  q:quit")
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	bar := left + strings.Repeat(" ", gap) + right
	return "\n" + lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar)
}

// ─── palette execution ────────────────────────────────────────────────────────
// The case labels stay in sync with paletteHints in the components package.

func (m Model) executePalette(input string) (tea.Model, tea.Cmd) {
	if strings.TrimSpace(input) == "" {
		return m, nil
	}
	parts := strings.Fields(input)
	rest := strings.TrimSpace(strings.TrimPrefix(input, parts[0]))

	switch parts[0] {
	case "run:new":
		return m, m.beginConfigure()

	case "run:submit":
		if m.screen != screenConfigure {
			m.status = "nothing to submit: not configuring"
			return m, nil
		}
		return m, m.confView.Submit()

	case "run:cancel":
		if m.screen != screenGenerating {
			m.status = "no run to cancel"
			return m, nil
		}
		return m, m.genView.Cancel()

	case "run:resume":
		m.status = "checking for a resumable session…"
		return m, m.recoverCmd()

	case "run:discard":
		if err := m.engine.ResetToDashboard(context.Background()); err != nil {
			m.status = "discard: " + err.Error()
			return m, nil
		}
		m.screen = screenDashboard
		m.status = "back to a clean dashboard"
		return m, m.dashView.Reload()

	case "estimate:now":
		return m, m.estimateNowCmd()

	case "source:inspect":
		path := rest
		if path == "" {
			path = m.engine.Snapshot().SourceFile
		}
		if path == "" {
			m.status = "usage: source:inspect <path>"
			return m, nil
		}
		return m, m.inspectCmd(path)

	case "review:sort":
		if rest == "" {
			m.status = "usage: review:sort <front|slide|recent>"
			return m, nil
		}
		if err := m.review.SetSortMode(context.Background(), rest); err != nil {
			m.status = "sort: " + err.Error()
			return m, nil
		}
		m.status = "sorted by " + rest
		return m, nil

	case "review:search":
		m.reviewView.SetQuery(rest)
		if m.screen == screenReview {
			m.status = "search: " + rest
		}
		return m, nil

	case "review:sync":
		return m, m.reviewView.Sync()

	case "export:run":
		if len(parts) < 2 {
			m.status = "usage: export:run <format> [path]"
			return m, nil
		}
		in := exportdto.ExportInput{Format: parts[1]}
		if len(parts) >= 3 {
			in.OutputPath = parts[2]
		}
		return m, m.exportCmd(in)

	case "export:formats":
		return m, m.listFormatsCmd()

	case "export:doctor":
		return m, m.doctorCmd()

	case "history:search":
		m.screen = screenHistory
		return m, m.histView.SearchRuns(rest)

	case "history:reindex":
		return m, m.reindexCmd()

	default:
		m.status = "unknown command: " + parts[0]
	}
	return m, nil
}

// ─── async commands ───────────────────────────────────────────────────────────

func (m *Model) beginConfigure() tea.Cmd {
	if err := m.engine.BeginConfig(context.Background()); err != nil {
		m.status = err.Error()
		return nil
	}
	m.screen = screenConfigure
	return m.confView.Seed(m.engine.Snapshot())
}

func (m Model) recoverCmd() tea.Cmd {
	return func() tea.Msg {
		return recoveredMsg{err: m.engine.Recover(context.Background())}
	}
}

func (m Model) estimateNowCmd() tea.Cmd {
	return func() tea.Msg {
		est, err := m.engine.EstimateNow(context.Background(), gendto.ConfigInput{})
		if err != nil {
			return statusMsg{text: "estimate: " + err.Error()}
		}
		return statusMsg{text: fmt.Sprintf("estimate: $%.4f, %d tokens, ~%d cards", est.Cost, est.Tokens, est.EstimatedCardCount)}
	}
}

func (m Model) inspectCmd(path string) tea.Cmd {
	return func() tea.Msg {
		view, err := m.sourceView(path)
		if err != nil {
			return statusMsg{text: "inspect: " + err.Error()}
		}
		return statusMsg{text: view}
	}
}

func (m Model) sourceView(path string) (string, error) {
	insp, err := m.source.Inspect(context.Background(), path)
	if err != nil {
		return "", err
	}
	if insp.Pages > 0 {
		return fmt.Sprintf("%s: %s, %d pages", insp.Title, insp.Kind, insp.Pages), nil
	}
	return fmt.Sprintf("%s: %s, %d lines", insp.Title, insp.Kind, insp.Lines), nil
}

func (m Model) exportCmd(in exportdto.ExportInput) tea.Cmd {
	return func() tea.Msg {
		out, err := m.export.Export(context.Background(), in)
		if err != nil {
			return statusMsg{text: "export: " + err.Error()}
		}
		return statusMsg{text: fmt.Sprintf("exported %d cards to %s", out.CardCount, out.Path)}
	}
}

func (m Model) listFormatsCmd() tea.Cmd {
	return func() tea.Msg {
		formats, err := m.export.ListFormats(context.Background())
		if err != nil {
			return statusMsg{text: "formats: " + err.Error()}
		}
		ids := make([]string, len(formats))
		for i, f := range formats {
			ids[i] = f.ID
		}
		return statusMsg{text: "formats: " + strings.Join(ids, ", ")}
	}
}

func (m Model) doctorCmd() tea.Cmd {
	return func() tea.Msg {
		results, err := m.export.Doctor(context.Background())
		if err != nil {
			return statusMsg{text: "doctor: " + err.Error()}
		}
		healthy := 0
		for _, r := range results {
			if r.ChecksumValid && r.BinaryReachable && r.LifecycleOK {
				healthy++
			}
		}
		return statusMsg{text: fmt.Sprintf("exporters healthy: %d/%d", healthy, len(results))}
	}
}

func (m Model) reindexCmd() tea.Cmd {
	return func() tea.Msg {
		n, err := m.history.Reindex(context.Background())
		if err != nil {
			return statusMsg{text: "reindex: " + err.Error()}
		}
		return statusMsg{text: fmt.Sprintf("reindexed %d runs", n)}
	}
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func (m *Model) propagateSize() {
	sz := tea.WindowSizeMsg{Width: m.width, Height: m.height - 3}
	m.dashView, _ = m.dashView.Update(sz)
	m.confView, _ = m.confView.Update(sz)
	m.genView, _ = m.genView.Update(sz)
	m.reviewView, _ = m.reviewView.Update(sz)
	m.histView, _ = m.histView.Update(sz)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
