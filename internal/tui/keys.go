package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sithafal/sithafal/internal/quarantine"
)

// handleTableKeys handles keys when the table has focus.
func (m Model) handleTableKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "/":
		m.mode = modeSearch
		m.search.SetValue(m.view.Filter.Query)
		m.search.CursorEnd()
		return m, m.search.Focus()

	case "tab":
		m.ctrl.SetFilter(nextTag(m.view.Filter.Tag))
		m.refresh()
		return m, nil

	case "1", "2", "3", "4":
		m.ctrl.SetFilter(quarantine.Tags[msg.String()[0]-'1'])
		m.refresh()
		return m, nil

	case " ", "x":
		r, ok := m.cursorRow()
		if !ok {
			return m, nil
		}
		_ = m.ctrl.ToggleRow(r.ID, !r.Selected)
		m.refresh()
		return m, nil

	case "a":
		m.ctrl.ToggleAll(m.view.SelectAll != quarantine.Checked)
		m.refresh()
		return m, nil

	case "enter", "p":
		r, ok := m.cursorRow()
		if !ok {
			return m, nil
		}
		p, err := m.ctrl.Preview(r.ID)
		if err != nil {
			return m, nil
		}
		m.preview = p
		m.mode = modePreview
		return m, nil

	case "r":
		r, ok := m.cursorRow()
		if !ok {
			return m, nil
		}
		_ = m.ctrl.ReleaseRow(context.Background(), r.ID)
		m.refresh()
		return m, m.pickUpFlash()

	case "R":
		m.ctrl.BulkRelease(context.Background())
		m.refresh()
		return m, m.pickUpFlash()

	case "d":
		r, ok := m.cursorRow()
		if !ok {
			return m, nil
		}
		m.pending = pendingDelete{id: r.ID, prompt: quarantine.DeletePrompt}
		m.mode = modeConfirm
		return m, nil

	case "D":
		n := m.ctrl.SelectedCount()
		if n == 0 {
			// Let the controller raise its empty-selection warning.
			m.ctrl.BulkDelete(context.Background())
			return m, m.pickUpFlash()
		}
		m.pending = pendingDelete{prompt: quarantine.BulkDeletePrompt(n)}
		m.mode = modeConfirm
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// handleSearchKeys handles keys when the search bar is active. Every edit
// restarts the debounce timer.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "enter":
		// Commit now; pending timers become stale.
		m.debounce++
		m.ctrl.SetQuery(m.search.Value())
		m.search.Blur()
		m.mode = modeTable
		m.refresh()
		return m, nil

	case "esc":
		m.debounce++
		m.search.SetValue("")
		m.search.Blur()
		m.ctrl.SetQuery("")
		m.mode = modeTable
		m.refresh()
		return m, nil
	}

	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	query := m.search.Value()
	if query == before {
		return m, cmd
	}

	m.debounce++
	debounceID := m.debounce
	debounceCmd := tea.Tick(m.opts.Debounce, func(time.Time) tea.Msg {
		return searchDebounceMsg{query: query, debounceID: debounceID}
	})
	return m, tea.Batch(cmd, debounceCmd)
}

// handleConfirmKeys answers the pending delete prompt.
func (m Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var yes bool
	switch msg.String() {
	case "y", "Y":
		yes = true
	case "n", "N", "esc":
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	default:
		return m, nil
	}

	p := m.pending
	m.pending = pendingDelete{}
	m.mode = modeTable
	if !yes {
		return m, nil
	}

	ctx := confirmContext(true)
	if p.id != "" {
		_, _ = m.ctrl.DeleteRow(ctx, p.id)
	} else {
		m.ctrl.BulkDelete(ctx)
	}
	m.refresh()
	return m, m.pickUpFlash()
}

// handlePreviewKeys handles the preview modal: r releases, anything else closes.
func (m Model) handlePreviewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "r":
		id := m.preview.ID
		m.mode = modeTable
		_ = m.ctrl.ReleaseRow(context.Background(), id)
		m.refresh()
		return m, m.pickUpFlash()
	}
	m.mode = modeTable
	return m, nil
}

func nextTag(t quarantine.Tag) quarantine.Tag {
	for i, tag := range quarantine.Tags {
		if tag == t {
			return quarantine.Tags[(i+1)%len(quarantine.Tags)]
		}
	}
	return quarantine.TagAll
}
