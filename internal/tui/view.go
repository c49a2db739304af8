package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/sithafal/sithafal/internal/notify"
	"github.com/sithafal/sithafal/internal/quarantine"
)

var (
	accent  = lipgloss.AdaptiveColor{Light: "#2563eb", Dark: "#60a5fa"}
	muted   = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#999999"}
	danger  = lipgloss.Color("#ef4444")
	warning = lipgloss.Color("#f59e0b")
	success = lipgloss.Color("#10b981")

	titleBarStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#333333"}).
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"}).
			Padding(0, 1)

	statsStyle = lipgloss.NewStyle().
			Foreground(muted).
			Padding(0, 1)

	tabStyle = lipgloss.NewStyle().
			Foreground(muted).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(accent).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(muted).
			Padding(0, 1)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 2)

	modalTitleStyle = lipgloss.NewStyle().
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(muted).
			Width(10)

	flashStyle = lipgloss.NewStyle().
			Italic(true).
			Padding(0, 1)
)

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"}).
		Background(lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#282828"}).
		Bold(false)
	return s
}

func levelColor(l notify.Level) lipgloss.TerminalColor {
	switch l {
	case notify.LevelSuccess:
		return success
	case notify.LevelWarning:
		return warning
	case notify.LevelError:
		return danger
	default:
		return accent
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	c := m.view.Counts
	b.WriteString(titleBarStyle.Render("sithafal · quarantine"))
	b.WriteString(statsStyle.Render(fmt.Sprintf("%d total  %d high  %d medium", c.Total, c.High, c.Medium)))
	b.WriteString("\n\n")

	tabs := make([]string, 0, len(quarantine.Tags))
	for _, t := range quarantine.Tags {
		label := fmt.Sprintf("%s %d", t.Label(), c.ForTag(t))
		if t == m.view.Filter.Tag {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
	b.WriteString("\n")

	switch {
	case m.mode == modeSearch:
		b.WriteString(m.search.View())
	case m.view.Filter.Query != "":
		b.WriteString(statsStyle.Render("search: " + m.view.Filter.Query))
	}
	b.WriteString("\n")

	switch m.mode {
	case modeConfirm:
		b.WriteString(modalStyle.Render(
			modalTitleStyle.Render("Confirm delete") + "\n\n" + m.pending.prompt + "\n\n[y] yes   [n] no"))
	case modePreview:
		b.WriteString(m.previewView())
	default:
		if len(m.visible) == 0 {
			b.WriteString(statsStyle.Render("No quarantined emails match the current view."))
		} else {
			b.WriteString(m.table.View())
		}
	}
	b.WriteString("\n")

	if m.flash.Message != "" {
		b.WriteString(flashStyle.Foreground(levelColor(m.flash.Level)).Render(m.flash.Message))
		b.WriteString("\n")
	}

	sel := fmt.Sprintf("selected %d  [%s]", m.view.Bulk.Count, m.view.SelectAll)
	keys := "space select · a all · tab filter · / search · p preview · r release · d delete · R/D bulk · q quit"
	b.WriteString(footerStyle.Render(sel + "  " + keys))
	return b.String()
}

func (m Model) previewView() string {
	p := m.preview
	date := p.Date
	if date == "" {
		date = "Unknown"
	}
	line := func(label, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
	}
	body := strings.Join([]string{
		modalTitleStyle.Render("Email Preview"),
		"",
		line("From", p.Sender),
		line("Subject", p.Subject),
		line("Date", date),
		line("Risk", p.Risk),
		"",
		"[r] release   any key to close",
	}, "\n")
	return modalStyle.Render(body)
}
