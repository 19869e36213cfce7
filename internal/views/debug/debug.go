// Package debug provides the scrollable log overlay. Records reach it from
// LogHandler, so anything the client logs is visible without leaving the
// TUI.
package debug

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Leo890728/course-web/internal/theme"
	"github.com/charmbracelet/lipgloss"
)

const maxEntries = 300

// Entry is a single log line.
type Entry struct {
	Time    time.Time
	Kind    string // "dbg", "info", "warn", "err", "nav"
	Message string
}

// Model holds the overlay state.
type Model struct {
	Entries []Entry
	Offset  int // scroll offset from the bottom
}

// New creates an empty debug model.
func New() Model {
	return Model{}
}

// Add appends an entry and caps the buffer. New entries scroll to the
// bottom.
func (m *Model) Add(kind, message string) {
	m.AddAt(time.Now(), kind, message)
}

// AddAt is Add with an explicit timestamp.
func (m *Model) AddAt(t time.Time, kind, message string) {
	m.Entries = append(m.Entries, Entry{Time: t, Kind: kind, Message: message})
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
	m.Offset = 0
}

// AddRecord appends a record delivered by LogHandler.
func (m *Model) AddRecord(msg RecordMsg) {
	m.AddAt(msg.Time, LevelKind(msg.Level), msg.Summary)
}

// ScrollUp moves the viewport up.
func (m *Model) ScrollUp(n int) {
	m.Offset = min(m.Offset+n, max(len(m.Entries)-1, 0))
}

// ScrollDown moves the viewport down.
func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

// LevelKind maps a slog level to the short kind shown in the log.
func LevelKind(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "err"
	case l >= slog.LevelWarn:
		return "warn"
	case l >= slog.LevelInfo:
		return "info"
	default:
		return "dbg"
	}
}

func panelStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)
}

// View renders the log as an overlay panel.
func (m Model) View(width, height int) string {
	innerW := max(width-4, 20)
	visibleLines := max(height-6, 3)

	title := theme.StyleHeader.Render(" DEBUG LOG ")
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  esc:close  %d entries", len(m.Entries)))

	if len(m.Entries) == 0 {
		body := theme.StyleDimmed.Render("  Nothing logged yet.")
		return panelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help))
	}

	end := max(len(m.Entries)-m.Offset, 0)
	start := max(end-visibleLines, 0)

	lines := make([]string, 0, end-start)
	for _, e := range m.Entries[start:end] {
		ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))
		kind := lipgloss.NewStyle().Foreground(kindColor(e.Kind)).Width(5).Render(e.Kind)
		lines = append(lines, fmt.Sprintf("%s %s %s", ts, kind, theme.Truncate(e.Message, max(innerW-24, 10))))
	}

	scroll := ""
	if m.Offset > 0 {
		scroll = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset))
	}

	return panelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"), scroll, help))
}

func kindColor(kind string) lipgloss.Color {
	switch kind {
	case "err":
		return theme.ColorDanger
	case "warn":
		return theme.ColorWarning
	case "info":
		return theme.ColorHealthy
	case "nav":
		return theme.ColorInfo
	default:
		return theme.ColorDimmed
	}
}
