package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	gendto "deckhand/internal/modules/generation/dto"
	reviewdto "deckhand/internal/modules/review/dto"
	"deckhand/internal/ui/theme"
)

// ─── port ────────────────────────────────────────────────────────────────────

// Port is the slice of the review workflow this screen drives. All
// state comes back through the parent's snapshot tick; the methods
// here only fire actions.
type Port interface {
	Edit(ctx context.Context, index int) error
	SetBuffer(card gendto.CardView) error
	Commit(ctx context.Context) error
	CancelEdit(ctx context.Context) error
	Delete(ctx context.Context, index int) error
	DeleteFromAnki(ctx context.Context, index int) error
	Sync(ctx context.Context) error
	SetSortMode(ctx context.Context, mode string) error
	SetQuery(query string)
}

// ─── messages ────────────────────────────────────────────────────────────────

// ActionDoneMsg reports the outcome of any fire-and-forget card action.
type ActionDoneMsg struct {
	Action string
	Err    error
}

// BackMsg asks the parent to return to the dashboard.
type BackMsg struct{}

// ─── list item ───────────────────────────────────────────────────────────────

type cardItem struct {
	entry reviewdto.Entry
}

func (i cardItem) Title() string {
	front := strings.ReplaceAll(i.entry.Card.Front, "\n", " ")
	if i.entry.Card.Synced() {
		return "✓ " + front
	}
	return front
}

func (i cardItem) Description() string {
	desc := strings.ReplaceAll(i.entry.Card.Back, "\n", " ")
	if i.entry.Card.SlideTopic != "" {
		desc = i.entry.Card.SlideTopic + " · " + desc
	}
	return desc
}

// FilterValue is empty: filtering goes through the engine's query so
// indices keep addressing the engine's list.
func (i cardItem) FilterValue() string { return "" }

// ─── edit fields ─────────────────────────────────────────────────────────────

const (
	editFront = iota
	editBack
	editTags
	editFieldCount
)

var editLabels = [editFieldCount]string{"front", "back", "tags"}

var sortModes = []string{"recent", "front", "slide"}

// ─── model ───────────────────────────────────────────────────────────────────

// Model is the card review screen: the produced deck as a browsable
// list, a buffered edit form, and the Anki sync status line. Card
// state is pushed in through SetSnapshot by the parent's tick loop.
type Model struct {
	port Port

	list     list.Model
	snap     reviewdto.Snapshot
	deckName string

	editing   bool
	editInput [editFieldCount]textinput.Model
	editField int

	searching bool
	search    textinput.Model

	status string
	width  int
	height int
}

// New creates the review screen backed by the given port.
func New(port Port) Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(theme.Lavender).BorderForeground(theme.Lavender)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(theme.Sapphire).BorderForeground(theme.Lavender)

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Cards"
	l.Styles.Title = theme.Title
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	m := Model{port: port, list: l}

	for f := 0; f < editFieldCount; f++ {
		ti := textinput.New()
		ti.CharLimit = 512
		ti.Prompt = ""
		m.editInput[f] = ti
	}

	search := textinput.New()
	search.Placeholder = "search cards…"
	search.CharLimit = 128
	search.Prompt = "/ "
	m.search = search

	return m
}

func (m Model) Init() tea.Cmd { return nil }

// SetSnapshot replaces the displayed review state. The selection is
// kept where possible so the tick loop never yanks the cursor around.
func (m *Model) SetSnapshot(snap reviewdto.Snapshot, deckName string) tea.Cmd {
	m.deckName = deckName
	sameShape := len(snap.Entries) == len(m.snap.Entries)
	wasEditing := m.snap.Editing
	m.snap = snap
	m.list.Title = listTitle(deckName, snap)

	// Open the form only on the editing edge, not on every tick, so a
	// commit in flight does not pop it back open.
	if snap.Editing && !wasEditing {
		m.beginEditForm(snap.Buffer)
	}
	if !snap.Editing {
		m.editing = false
	}

	items := make([]list.Item, len(snap.Entries))
	for i, e := range snap.Entries {
		items[i] = cardItem{entry: e}
	}
	selected := m.list.Index()
	cmd := m.list.SetItems(items)
	if sameShape && selected < len(items) {
		m.list.Select(selected)
	}
	return cmd
}

// Sync starts the Anki push; exposed for the command palette.
func (m *Model) Sync() tea.Cmd {
	return m.actionCmd("sync", func(ctx context.Context) error { return m.port.Sync(ctx) })
}

// SetQuery forwards a palette-entered search to the engine.
func (m *Model) SetQuery(query string) {
	m.port.SetQuery(query)
	m.search.SetValue(query)
}

// Typing reports whether a text field owns the keyboard, in which case
// global single-letter keys must yield.
func (m Model) Typing() bool {
	return m.editing || m.searching
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(m.listWidth(), m.height-4)
		for f := 0; f < editFieldCount; f++ {
			m.editInput[f].Width = min(m.width-16, 72)
		}
		m.search.Width = min(m.width/2, 48)

	case ActionDoneMsg:
		if msg.Err != nil {
			m.status = msg.Action + ": " + msg.Err.Error()
		} else {
			m.status = ""
		}

	case tea.KeyMsg:
		if m.editing {
			return m.updateEdit(msg)
		}
		if m.searching {
			return m.updateSearch(msg)
		}
		switch msg.String() {
		case "esc":
			return m, func() tea.Msg { return BackMsg{} }
		case "/":
			m.searching = true
			return m, m.search.Focus()
		case "e":
			if index, ok := m.selectedIndex(); ok {
				return m, m.actionCmd("edit", func(ctx context.Context) error { return m.port.Edit(ctx, index) })
			}
		case "d":
			if index, ok := m.selectedIndex(); ok {
				return m, m.actionCmd("delete", func(ctx context.Context) error { return m.port.Delete(ctx, index) })
			}
		case "x":
			if index, ok := m.selectedIndex(); ok {
				return m, m.actionCmd("unlink", func(ctx context.Context) error { return m.port.DeleteFromAnki(ctx, index) })
			}
		case "s":
			return m, m.Sync()
		case "o":
			return m, m.cycleSort()
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.editing {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			theme.PaneActive.Width(min(m.width-8, 80)).Render(m.renderEditForm()))
	}

	var top string
	if m.searching || m.search.Value() != "" {
		top = m.search.View() + "\n"
	}

	body := lipgloss.JoinVertical(lipgloss.Left, top+m.list.View(), m.renderFooter())
	return body
}

// ─── private ─────────────────────────────────────────────────────────────────

func (m Model) listWidth() int {
	w := m.width - 2
	if w < 20 {
		w = 20
	}
	return w
}

func (m Model) selectedIndex() (int, bool) {
	item, ok := m.list.SelectedItem().(cardItem)
	if !ok {
		return 0, false
	}
	return item.entry.Index, true
}

func (m *Model) beginEditForm(buf gendto.CardView) {
	m.editing = true
	m.editField = editFront
	m.editInput[editFront].SetValue(buf.Front)
	m.editInput[editBack].SetValue(buf.Back)
	m.editInput[editTags].SetValue(strings.Join(buf.Tags, ", "))
	m.editInput[editFront].Focus()
	m.editInput[editBack].Blur()
	m.editInput[editTags].Blur()
}

func (m Model) updateEdit(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.editing = false
		return m, m.actionCmd("cancel edit", func(ctx context.Context) error { return m.port.CancelEdit(ctx) })
	case "enter", "ctrl+s":
		if msg.String() == "enter" && m.editField != editTags {
			m.setEditField(m.editField + 1)
			return m, nil
		}
		m.editing = false
		buffer := m.gatherBuffer()
		return m, m.actionCmd("commit", func(ctx context.Context) error {
			if err := m.port.SetBuffer(buffer); err != nil {
				return err
			}
			return m.port.Commit(ctx)
		})
	case "tab", "down":
		m.setEditField(m.editField + 1)
		return m, nil
	case "shift+tab", "up":
		m.setEditField(m.editField - 1)
		return m, nil
	}
	var cmd tea.Cmd
	m.editInput[m.editField], cmd = m.editInput[m.editField].Update(msg)
	return m, cmd
}

func (m *Model) setEditField(f int) {
	if f < 0 {
		f = editFieldCount - 1
	}
	if f >= editFieldCount {
		f = 0
	}
	m.editField = f
	for i := 0; i < editFieldCount; i++ {
		if i == f {
			m.editInput[i].Focus()
		} else {
			m.editInput[i].Blur()
		}
	}
}

func (m Model) gatherBuffer() gendto.CardView {
	buf := m.snap.Buffer
	buf.Front = strings.TrimSpace(m.editInput[editFront].Value())
	buf.Back = strings.TrimSpace(m.editInput[editBack].Value())
	buf.Tags = splitTags(m.editInput[editTags].Value())
	return buf
}

func splitTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func (m Model) updateSearch(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searching = false
		m.search.SetValue("")
		m.search.Blur()
		m.port.SetQuery("")
		return m, nil
	case "enter":
		m.searching = false
		m.search.Blur()
		return m, nil
	}
	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if m.search.Value() != before {
		m.port.SetQuery(m.search.Value())
	}
	return m, cmd
}

func (m Model) cycleSort() tea.Cmd {
	next := sortModes[0]
	for i, mode := range sortModes {
		if mode == m.snap.SortMode {
			next = sortModes[(i+1)%len(sortModes)]
			break
		}
	}
	return m.actionCmd("sort", func(ctx context.Context) error { return m.port.SetSortMode(ctx, next) })
}

func (m Model) actionCmd(name string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return ActionDoneMsg{Action: name, Err: fn(context.Background())}
	}
}

func (m Model) renderEditForm() string {
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Edit card") + "\n\n")
	for f := 0; f < editFieldCount; f++ {
		if f == m.editField {
			sb.WriteString(theme.Hot.Render("▸ "+editLabels[f]) + "\n")
		} else {
			sb.WriteString(theme.Muted.Render("  "+editLabels[f]) + "\n")
		}
		sb.WriteString("  " + m.editInput[f].View() + "\n\n")
	}
	if m.snap.Buffer.Synced() {
		sb.WriteString(theme.Muted.Render(fmt.Sprintf("synced to Anki as note %d; commit updates it too", m.snap.Buffer.AnkiNoteID)) + "\n")
	}
	sb.WriteString(theme.Muted.Render("enter: next  ctrl+s: save  esc: discard"))
	return sb.String()
}

func (m Model) renderFooter() string {
	var parts []string

	sync := m.snap.Sync
	switch {
	case sync.Running:
		label := "syncing…"
		if sync.Total > 0 {
			label = fmt.Sprintf("syncing %d/%d", sync.Current, sync.Total)
		}
		parts = append(parts, theme.Hot.Render(label))
	case sync.Failed:
		parts = append(parts, theme.Bad.Render("sync failed: "+sync.Message))
	case sync.Done:
		parts = append(parts, theme.Good.Render(fmt.Sprintf("synced %d cards", sync.Synced)))
	}

	if m.status != "" {
		parts = append(parts, theme.Bad.Render(m.status))
	}

	parts = append(parts, theme.Muted.Render(
		fmt.Sprintf("sort: %s   e:edit d:delete x:unlink s:sync /:search o:sort esc:back", m.snap.SortMode)))
	return " " + strings.Join(parts, "   ")
}

func listTitle(deckName string, snap reviewdto.Snapshot) string {
	title := deckName
	if title == "" {
		title = "Cards"
	}
	if snap.Query != "" {
		return fmt.Sprintf("%s — %d matching", title, len(snap.Entries))
	}
	return fmt.Sprintf("%s — %d cards", title, len(snap.Entries))
}
