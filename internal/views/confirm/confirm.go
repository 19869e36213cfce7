// Package confirm provides a yes/no modal used before destructive actions.
package confirm

import (
	"fmt"

	"github.com/Leo890728/course-web/internal/theme"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// KeyMap holds the modal's bindings.
type KeyMap struct {
	Yes key.Binding
	No  key.Binding
}

// DefaultKeyMap returns the default confirm bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Yes: key.NewBinding(
			key.WithKeys("y", "Y", "enter"),
			key.WithHelp("y", "confirm"),
		),
		No: key.NewBinding(
			key.WithKeys("n", "N", "esc"),
			key.WithHelp("n/esc", "cancel"),
		),
	}
}

// ResultMsg reports the answer to a question. Tag is whatever the caller
// passed to Ask.
type ResultMsg struct {
	Tag       string
	Confirmed bool
}

// Model is the modal state. The zero value is inactive.
type Model struct {
	keys    KeyMap
	title   string
	message string
	tag     string
	active  bool
}

// New creates an inactive modal.
func New() Model {
	return Model{keys: DefaultKeyMap()}
}

// Ask opens the modal. The answer arrives as a ResultMsg carrying tag.
func (m *Model) Ask(tag, title, message string) {
	m.tag = tag
	m.title = title
	m.message = message
	m.active = true
}

// AskDelete opens the modal for deleting the named item.
func (m *Model) AskDelete(tag, itemName string) {
	m.Ask(tag, fmt.Sprintf("Delete %s?", itemName), "This cannot be undone.")
}

// Active reports whether the modal is waiting for an answer.
func (m Model) Active() bool {
	return m.active
}

// Text joins title and message the way the modal shows them.
func Text(title, message string) string {
	if message == "" {
		return title
	}
	return title + "\n\n" + message
}

// Update handles key presses while the modal is active. Other keys are
// swallowed.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok || !m.active {
		return m, nil
	}
	switch {
	case key.Matches(kmsg, m.keys.Yes):
		return m.answer(true)
	case key.Matches(kmsg, m.keys.No):
		return m.answer(false)
	}
	return m, nil
}

func (m Model) answer(yes bool) (Model, tea.Cmd) {
	m.active = false
	tag := m.tag
	return m, func() tea.Msg {
		return ResultMsg{Tag: tag, Confirmed: yes}
	}
}

// View renders the modal, or "" when inactive.
func (m Model) View() string {
	if !m.active {
		return ""
	}
	body := lipgloss.JoinVertical(lipgloss.Left,
		theme.StyleHeader.Render(Text(m.title, m.message)),
		"",
		theme.Help("y", "confirm", "n/esc", "cancel"),
	)
	return lipgloss.NewStyle().
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorWarning).
		Render(body)
}
