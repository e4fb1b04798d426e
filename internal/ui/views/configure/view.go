package configure

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	gendto "deckhand/internal/modules/generation/dto"
	sourcedto "deckhand/internal/modules/source/dto"
	"deckhand/internal/ui/theme"
)

// ─── ports ───────────────────────────────────────────────────────────────────

// Port is the slice of the generation engine this form drives. Estimates
// go through the debounced Request/Pump pair so slider-style typing
// coalesces into single backend calls.
type Port interface {
	Configure(ctx context.Context, input gendto.ConfigInput) error
	Submit(ctx context.Context) error
	RequestEstimate(input gendto.ConfigInput)
	PumpEstimate(ctx context.Context) bool
	Estimate() (gendto.EstimateView, bool)
}

// InspectPort answers what kind of file the user just pointed at.
type InspectPort interface {
	Inspect(ctx context.Context, path string) (sourcedto.InspectionView, error)
}

// ─── messages ────────────────────────────────────────────────────────────────

// SubmittedMsg is sent when the configure-and-submit round trip finishes.
type SubmittedMsg struct{ Err error }

// BackMsg asks the parent to return to the dashboard.
type BackMsg struct{}

type inspectedMsg struct {
	path string
	view sourcedto.InspectionView
	err  error
}

type estimatePumpedMsg struct{ changed bool }

// ─── fields ──────────────────────────────────────────────────────────────────

const (
	fieldFile = iota
	fieldDeck
	fieldFocus
	fieldType
	fieldSize
	fieldCount
)

var fieldLabels = [fieldCount]string{"source file", "deck name", "focus", "source type", "target size"}

var sourceTypes = []string{gendto.SourceAuto, gendto.SourceSlides, gendto.SourceTextbook, gendto.SourceNotes}

// ─── model ───────────────────────────────────────────────────────────────────

// Model is the job configuration form: source file, deck name, focus
// guidance, source type and target size, with a live cost estimate and
// a local file inspection beside it.
type Model struct {
	port    Port
	inspect InspectPort

	// fieldType has no input; its slot stays zero.
	inputs    [fieldCount]textinput.Model
	field     int
	typeIndex int

	estimate    gendto.EstimateView
	hasEstimate bool
	estimateErr bool
	estimating  bool
	pumping     bool

	inspection    sourcedto.InspectionView
	hasInspection bool
	inspectedPath string
	inspectErr    string

	submitting bool
	hint       string
	width      int
	height     int
}

// New creates the configuration form.
func New(port Port, inspect InspectPort) Model {
	m := Model{port: port, inspect: inspect}

	placeholders := [fieldCount]string{
		fieldFile:  "path/to/lecture.pdf",
		fieldDeck:  "Biology::Cells",
		fieldFocus: "optional guidance for the generator",
		fieldSize:  "auto",
	}
	for _, f := range []int{fieldFile, fieldDeck, fieldFocus, fieldSize} {
		ti := textinput.New()
		ti.Placeholder = placeholders[f]
		ti.CharLimit = 256
		ti.Prompt = ""
		m.inputs[f] = ti
	}
	m.inputs[fieldSize].CharLimit = 4
	m.inputs[fieldFile].Focus()
	return m
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

// Seed fills the form from the engine's current config and kicks off an
// estimate and inspection when a file is already set.
func (m *Model) Seed(snap gendto.Snapshot) tea.Cmd {
	m.inputs[fieldFile].SetValue(snap.SourceFile)
	m.inputs[fieldDeck].SetValue(snap.DeckName)
	m.inputs[fieldFocus].SetValue(snap.Focus)
	if snap.TargetSize > 0 {
		m.inputs[fieldSize].SetValue(strconv.Itoa(snap.TargetSize))
	} else {
		m.inputs[fieldSize].SetValue("")
	}
	m.typeIndex = 0
	for i, st := range sourceTypes {
		if st == snap.SourceType {
			m.typeIndex = i
		}
	}

	m.hasEstimate = false
	m.estimateErr = false
	m.estimating = false
	m.hasInspection = false
	m.inspectErr = ""
	m.inspectedPath = ""
	m.submitting = false
	m.hint = ""
	m.setField(fieldFile)

	if snap.SourceFile == "" {
		return nil
	}
	m.port.RequestEstimate(m.gather())
	m.estimating = true
	m.inspectedPath = snap.SourceFile
	return m.inspectCmd(snap.SourceFile)
}

// Pump drains the estimate debouncer. The parent calls it from its tick
// loop while this screen is active; at most one pump runs at a time.
func (m *Model) Pump() tea.Cmd {
	if m.pumping {
		return nil
	}
	m.pumping = true
	return func() tea.Msg {
		return estimatePumpedMsg{changed: m.port.PumpEstimate(context.Background())}
	}
}

// Submit runs the configure-and-submit round trip; exposed for the
// command palette.
func (m *Model) Submit() tea.Cmd {
	return m.submit()
}

// Typing reports whether a text field has focus, in which case global
// single-letter keys must yield.
func (m Model) Typing() bool {
	return m.field != fieldType
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for _, f := range []int{fieldFile, fieldDeck, fieldFocus, fieldSize} {
			m.inputs[f].Width = min(m.width/2-8, 56)
		}

	case estimatePumpedMsg:
		m.pumping = false
		if msg.changed {
			m.estimating = false
			est, ok := m.port.Estimate()
			m.estimate = est
			m.hasEstimate = ok
			m.estimateErr = !ok
		}

	case inspectedMsg:
		if msg.path != m.inspectedPath {
			return m, nil
		}
		if msg.err != nil {
			m.hasInspection = false
			m.inspectErr = msg.err.Error()
			return m, nil
		}
		m.inspection = msg.view
		m.hasInspection = true
		m.inspectErr = ""

	case SubmittedMsg:
		m.submitting = false
		if msg.Err != nil {
			m.hint = msg.Err.Error()
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, func() tea.Msg { return BackMsg{} }
		case "ctrl+s":
			cmd := m.submit()
			return m, cmd
		case "enter":
			if m.field == fieldSize {
				cmd := m.submit()
				return m, cmd
			}
			cmds = append(cmds, m.setField(m.field+1))
		case "tab", "down":
			cmds = append(cmds, m.setField(m.field+1))
		case "shift+tab", "up":
			cmds = append(cmds, m.setField(m.field-1))
		default:
			if m.field == fieldType {
				switch msg.String() {
				case "left":
					m.typeIndex = (m.typeIndex + len(sourceTypes) - 1) % len(sourceTypes)
					m.requestEstimate()
				case "right", " ":
					m.typeIndex = (m.typeIndex + 1) % len(sourceTypes)
					m.requestEstimate()
				}
				return m, nil
			}
			before := m.inputs[m.field].Value()
			var cmd tea.Cmd
			m.inputs[m.field], cmd = m.inputs[m.field].Update(msg)
			cmds = append(cmds, cmd)
			if m.inputs[m.field].Value() != before {
				m.requestEstimate()
			}
		}
		return m, tea.Batch(cmds...)
	}

	if m.field != fieldType {
		var cmd tea.Cmd
		m.inputs[m.field], cmd = m.inputs[m.field].Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	form := m.renderForm()
	side := m.renderSide()

	formW := min(m.width*5/10, 64)
	sideW := m.width - formW - 6
	if sideW < 24 {
		sideW = 24
	}

	left := theme.PaneActive.Width(formW).Render(form)
	right := theme.Pane.Width(sideW).Render(side)
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
}

// ─── private ─────────────────────────────────────────────────────────────────

// setField moves focus and, when the user leaves a changed file path,
// kicks off an inspection of it.
func (m *Model) setField(f int) tea.Cmd {
	if f < 0 {
		f = fieldCount - 1
	}
	if f >= fieldCount {
		f = 0
	}
	leaving := m.field
	m.field = f
	for _, i := range []int{fieldFile, fieldDeck, fieldFocus, fieldSize} {
		if i == f {
			m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
	if leaving == fieldFile && f != fieldFile {
		path := strings.TrimSpace(m.inputs[fieldFile].Value())
		if path != "" && path != m.inspectedPath {
			m.inspectedPath = path
			return m.inspectCmd(path)
		}
	}
	return nil
}

func (m Model) gather() gendto.ConfigInput {
	size, _ := strconv.Atoi(strings.TrimSpace(m.inputs[fieldSize].Value()))
	return gendto.ConfigInput{
		SourceFile: strings.TrimSpace(m.inputs[fieldFile].Value()),
		DeckName:   strings.TrimSpace(m.inputs[fieldDeck].Value()),
		Focus:      strings.TrimSpace(m.inputs[fieldFocus].Value()),
		SourceType: sourceTypes[m.typeIndex],
		TargetSize: size,
	}
}

func (m *Model) requestEstimate() {
	input := m.gather()
	if input.SourceFile == "" {
		return
	}
	m.port.RequestEstimate(input)
	m.estimating = true
}

func (m *Model) submit() tea.Cmd {
	input := m.gather()
	if input.SourceFile == "" || input.DeckName == "" {
		m.hint = "a source file and a deck name are required"
		return nil
	}
	m.submitting = true
	m.hint = ""
	return func() tea.Msg {
		if err := m.port.Configure(context.Background(), input); err != nil {
			return SubmittedMsg{Err: err}
		}
		return SubmittedMsg{Err: m.port.Submit(context.Background())}
	}
}

func (m Model) renderForm() string {
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Configure run") + "\n\n")

	for f := 0; f < fieldCount; f++ {
		label := fieldLabels[f]
		if f == m.field {
			sb.WriteString(theme.Hot.Render("▸ "+label) + "\n")
		} else {
			sb.WriteString(theme.Muted.Render("  "+label) + "\n")
		}
		if f == fieldType {
			sb.WriteString("  " + m.renderTypeCycle() + "\n\n")
			continue
		}
		sb.WriteString("  " + m.inputs[f].View() + "\n\n")
	}

	if m.hint != "" {
		sb.WriteString(theme.Bad.Render(m.hint) + "\n")
	}
	if m.submitting {
		sb.WriteString(theme.Muted.Render("submitting…") + "\n")
	}
	sb.WriteString(theme.Muted.Render("enter: next field  ctrl+s: generate  esc: back"))
	return sb.String()
}

func (m Model) renderTypeCycle() string {
	var parts []string
	for i, st := range sourceTypes {
		if i == m.typeIndex {
			parts = append(parts, theme.Hot.Render("["+st+"]"))
		} else {
			parts = append(parts, theme.Muted.Render(st))
		}
	}
	return strings.Join(parts, " ")
}

func (m Model) renderSide() string {
	var sb strings.Builder

	sb.WriteString(theme.Title.Render("Source") + "\n")
	switch {
	case m.inspectErr != "":
		sb.WriteString(theme.Bad.Render(m.inspectErr) + "\n")
	case m.hasInspection:
		insp := m.inspection
		sb.WriteString(fmt.Sprintf("%s · %s · %s\n", insp.Title, insp.Kind, humanSize(insp.SizeBytes)))
		if insp.Pages > 0 {
			approx := ""
			if !insp.PagesExact {
				approx = "~"
			}
			sb.WriteString(fmt.Sprintf("%s%d pages\n", approx, insp.Pages))
		}
		if insp.Lines > 0 {
			sb.WriteString(fmt.Sprintf("%d lines\n", insp.Lines))
		}
	default:
		sb.WriteString(theme.Muted.Render("no file inspected yet") + "\n")
	}

	sb.WriteString("\n" + theme.Title.Render("Estimate") + "\n")
	switch {
	case m.estimating:
		sb.WriteString(theme.Muted.Render("estimating…") + "\n")
	case m.hasEstimate:
		est := m.estimate
		sb.WriteString(fmt.Sprintf("cost    $%.4f  (in $%.4f / out $%.4f)\n", est.Cost, est.InputCost, est.OutputCost))
		sb.WriteString(fmt.Sprintf("tokens  %d  (in %d / out %d)\n", est.Tokens, est.InputTokens, est.OutputTokens))
		if est.Pages > 0 {
			sb.WriteString(fmt.Sprintf("pages   %d\n", est.Pages))
		}
		if est.Model != "" {
			sb.WriteString("model   " + est.Model + "\n")
		}
		if est.EstimatedCardCount > 0 {
			sb.WriteString(fmt.Sprintf("cards   ~%d\n", est.EstimatedCardCount))
		}
	case m.estimateErr:
		sb.WriteString(theme.Bad.Render("estimate unavailable") + "\n")
	default:
		sb.WriteString(theme.Muted.Render("fill in a source file to estimate cost") + "\n")
	}

	return sb.String()
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func (m Model) inspectCmd(path string) tea.Cmd {
	return func() tea.Msg {
		view, err := m.inspect.Inspect(context.Background(), path)
		return inspectedMsg{path: path, view: view, err: err}
	}
}
