// Package status renders the top bar: route tabs, backend address and the
// latest status message.
package status

import (
	"strings"

	"github.com/Leo890728/course-web/internal/theme"
	"github.com/Leo890728/course-web/internal/views"
	"github.com/charmbracelet/lipgloss"
)

// Tab is one navigable route as shown in the bar.
type Tab struct {
	Key   string
	Path  string
	Title string
}

// Model holds the status bar state.
type Model struct {
	Tabs    []Tab
	Active  string
	Backend string
	Width   int

	message string
	level   views.Level
}

// New creates a status bar for tabs.
func New(tabs []Tab, backend string) Model {
	return Model{Tabs: tabs, Backend: backend}
}

// SetMessage replaces the status message.
func (m *Model) SetMessage(msg views.StatusMsg) {
	m.message = msg.Text
	m.level = msg.Level
}

// Message returns the current status message.
func (m Model) Message() string {
	return m.message
}

// View renders the bar.
func (m Model) View() string {
	width := max(m.Width, 40)

	tabs := make([]string, 0, len(m.Tabs))
	for _, t := range m.Tabs {
		label := t.Key + " " + t.Title
		style := lipgloss.NewStyle().Padding(0, 1)
		if t.Path == m.Active {
			style = style.Bold(true).Foreground(theme.ColorBg).Background(theme.SectionColor(t.Path))
		} else {
			style = style.Foreground(theme.ColorDimmed)
		}
		tabs = append(tabs, style.Render(label))
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := strings.Join(tabs, "") + sep + theme.StyleDimmed.Render(m.Backend)
	if m.message != "" {
		content += "\n" + messageStyle(m.level).Render(m.message)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

func messageStyle(l views.Level) lipgloss.Style {
	switch l {
	case views.LevelError:
		return lipgloss.NewStyle().Foreground(theme.ColorDanger)
	case views.LevelSuccess:
		return lipgloss.NewStyle().Foreground(theme.ColorHealthy)
	default:
		return lipgloss.NewStyle().Foreground(theme.ColorBright)
	}
}
