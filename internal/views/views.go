// Package views holds what the routed screens share: the Screen contract,
// status messages and table styling. Each screen lives in its own
// subpackage.
package views

import (
	"github.com/Leo890728/course-web/internal/client"
	"github.com/Leo890728/course-web/internal/theme"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Screen is a routed page of the TUI.
type Screen interface {
	Init() tea.Cmd
	Update(tea.Msg) (Screen, tea.Cmd)
	View() string
	SetSize(width, height int)
	// Capturing reports whether the screen is taking text input, in which
	// case global navigation keys are left to the screen.
	Capturing() bool
}

// Closer is implemented by screens holding resources, such as an open
// progress stream, that must be released on exit.
type Closer interface {
	Close()
}

// Level is the severity of a status message.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

// StatusMsg asks the app to show text in the status bar.
type StatusMsg struct {
	Text  string
	Level Level
}

// Notify returns a command that shows text in the status bar.
func Notify(level Level, text string) tea.Cmd {
	return func() tea.Msg {
		return StatusMsg{Text: text, Level: level}
	}
}

// NotifyError shows the user-facing message for err.
func NotifyError(err error, fallback string) tea.Cmd {
	return Notify(LevelError, client.ErrorMessage(err, fallback))
}

// NewTable returns a focused table with the shared styles.
func NewTable(columns []table.Column, height int) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(max(height, 3)),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.ColorBorder).
		BorderBottom(true).
		Bold(true).
		Foreground(theme.ColorBright)
	s.Selected = s.Selected.
		Foreground(theme.ColorBright).
		Background(theme.ColorBorder).
		Bold(true)
	t.SetStyles(s)
	return t
}

// TableHeight is the number of table rows that fit a screen of height h,
// leaving room for the title, help and status lines.
func TableHeight(h int) int {
	return max(h-10, 3)
}
