// Package tui is the terminal quarantine console: the same table, filters,
// selection and release/delete actions as the dashboard, driven by keys.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sithafal/sithafal/internal/notify"
	"github.com/sithafal/sithafal/internal/quarantine"
)

// DefaultDebounce is the search delay used when Options leaves it unset.
const DefaultDebounce = 300 * time.Millisecond

type mode int

const (
	modeTable mode = iota
	modeSearch
	modeConfirm
	modePreview
)

// pendingDelete is the destructive action waiting on a y/n answer.
type pendingDelete struct {
	id     string // empty for a bulk delete
	prompt string
}

// searchDebounceMsg fires after the debounce delay. Stale ids are ignored.
type searchDebounceMsg struct {
	query      string
	debounceID uint64
}

// flashClearMsg hides the flash line unless a newer one replaced it.
type flashClearMsg struct {
	id string
}

// Options tunes the console.
type Options struct {
	Debounce   time.Duration
	FlashAfter time.Duration // how long a flash stays; defaults to notify.DefaultTTL
	Height     int           // table rows; 0 picks a default
}

// Model is the bubbletea model of the console.
type Model struct {
	ctrl  *quarantine.Controller
	notes *notify.Center
	opts  Options

	table   table.Model
	search  textinput.Model
	visible []quarantine.RowView
	view    quarantine.View

	mode     mode
	pending  pendingDelete
	preview  quarantine.Preview
	debounce uint64

	flash    notify.Notification
	lastSeen string
	width    int
	quitting bool
}

// New builds a console over ctrl. Notifications raised by the controller
// must go to notes; the console shows the newest one as a flash line.
func New(ctrl *quarantine.Controller, notes *notify.Center, opts Options) Model {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.FlashAfter <= 0 {
		opts.FlashAfter = notify.DefaultTTL
	}
	if opts.Height <= 0 {
		opts.Height = 12
	}

	ti := textinput.New()
	ti.Placeholder = "search sender or subject"
	ti.Prompt = "/ "
	ti.CharLimit = 120

	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(opts.Height),
	)
	t.SetStyles(tableStyles())

	m := Model{ctrl: ctrl, notes: notes, opts: opts, table: t, search: ti}
	if recent := notes.Recent(1); len(recent) > 0 {
		m.lastSeen = recent[0].ID
	}
	m.refresh()
	return m
}

func columns(width int) []table.Column {
	subject := width - 4 - 34 - 20 - 12 - 8
	if subject < 20 {
		subject = 20
	}
	return []table.Column{
		{Title: "", Width: 3},
		{Title: "Sender", Width: 34},
		{Title: "Subject", Width: subject},
		{Title: "Received", Width: 20},
		{Title: "Risk", Width: 12},
	}
}

// refresh re-reads the controller snapshot into the table.
func (m *Model) refresh() {
	m.view = m.ctrl.View()
	m.visible = m.view.Rows
	rows := make([]table.Row, len(m.visible))
	for i, r := range m.visible {
		mark := "[ ]"
		if r.Selected {
			mark = "[x]"
		}
		received := "Unknown"
		if !r.Received.IsZero() {
			received = r.Received.Format(quarantine.DateLayout + " " + quarantine.TimeLayout)
		}
		rows[i] = table.Row{mark, r.Sender, r.Subject, received, r.Risk.Label()}
	}
	m.table.SetRows(rows)
	if c := m.table.Cursor(); c >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

// cursorRow returns the row under the cursor.
func (m Model) cursorRow() (quarantine.RowView, bool) {
	c := m.table.Cursor()
	if c < 0 || c >= len(m.visible) {
		return quarantine.RowView{}, false
	}
	return m.visible[c], true
}

// pickUpFlash shows the newest notification if it arrived since the last
// look, and schedules its removal.
func (m *Model) pickUpFlash() tea.Cmd {
	recent := m.notes.Recent(1)
	if len(recent) == 0 || recent[0].ID == m.lastSeen {
		return nil
	}
	n := recent[0]
	m.lastSeen = n.ID
	m.flash = n
	return tea.Tick(m.opts.FlashAfter, func(time.Time) tea.Msg {
		return flashClearMsg{id: n.ID}
	})
}

// Selected reports the ids currently checked.
func (m Model) Selected() []string { return m.ctrl.Selected() }

// Flash returns the message on the flash line, if any.
func (m Model) Flash() string { return m.flash.Message }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.table.SetColumns(columns(msg.Width))
		if h := msg.Height - 9; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil

	case searchDebounceMsg:
		// Ignore stale debounce timers (user typed more since timer started)
		if msg.debounceID != m.debounce {
			return m, nil
		}
		m.ctrl.SetQuery(msg.query)
		m.refresh()
		return m, nil

	case flashClearMsg:
		if msg.id == m.flash.ID {
			m.flash = notify.Notification{}
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeSearch:
			return m.handleSearchKeys(msg)
		case modeConfirm:
			return m.handleConfirmKeys(msg)
		case modePreview:
			return m.handlePreviewKeys(msg)
		default:
			return m.handleTableKeys(msg)
		}
	}
	return m, nil
}

// confirmContext carries the y/n answer to the controller's confirmer.
func confirmContext(yes bool) context.Context {
	return quarantine.WithConfirmation(context.Background(), yes)
}
