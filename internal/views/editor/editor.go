// Package editor is the create/edit form shared by the CRUD screens: a
// column of text inputs checked by a form.Validator.
package editor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Leo890728/course-web/internal/form"
	"github.com/Leo890728/course-web/internal/theme"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Input describes one field of the form.
type Input struct {
	Name        string
	Label       string
	Placeholder string
	// Numeric inputs yield an int value; empty is 0.
	Numeric   bool
	CharLimit int
}

// WholeNumber matches the text of a valid numeric input. Pair it with a
// form.Rule on numeric fields.
var WholeNumber = regexp.MustCompile(`^[0-9]+$`)

// SubmittedMsg is sent when the form passes validation on submit.
type SubmittedMsg struct {
	Tag    string
	Values form.Values
}

// CancelledMsg is sent when the user leaves the form.
type CancelledMsg struct {
	Tag string
}

// KeyMap holds the form bindings.
type KeyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Submit key.Binding
	Cancel key.Binding
}

// DefaultKeyMap returns the default form bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Next:   key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next field")),
		Prev:   key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "prev field")),
		Submit: key.NewBinding(key.WithKeys("enter", "ctrl+s"), key.WithHelp("enter", "save")),
		Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}

// Model is the form state.
type Model struct {
	Title string
	Tag   string

	keys      KeyMap
	specs     []Input
	inputs    []textinput.Model
	focus     int
	validator *form.Validator
	width     int
}

// New builds a form. The first input is focused.
func New(title string, specs []Input, v *form.Validator) Model {
	m := Model{
		Title:     title,
		keys:      DefaultKeyMap(),
		specs:     specs,
		validator: v,
	}
	for _, s := range specs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = s.Placeholder
		if s.CharLimit > 0 {
			ti.CharLimit = s.CharLimit
		}
		m.inputs = append(m.inputs, ti)
	}
	if len(m.inputs) > 0 {
		m.inputs[0].Focus()
	}
	return m
}

// Open resets the form for tag with the given initial text per field.
func (m *Model) Open(tag, title string, initial map[string]string) {
	m.Tag = tag
	m.Title = title
	m.validator.ClearErrors()
	for i, s := range m.specs {
		m.inputs[i].SetValue(initial[s.Name])
		m.inputs[i].Blur()
	}
	m.focus = 0
	if len(m.inputs) > 0 {
		m.inputs[0].Focus()
	}
}

// SetWidth sets the input width.
func (m *Model) SetWidth(w int) {
	m.width = w
	for i := range m.inputs {
		m.inputs[i].Width = max(w-20, 10)
	}
}

// Values returns the current values. Numeric inputs yield an int, or the
// raw text when it does not parse.
func (m Model) Values() form.Values {
	vals := form.Values{}
	for i, s := range m.specs {
		raw := strings.TrimSpace(m.inputs[i].Value())
		if s.Numeric {
			if raw == "" {
				vals[s.Name] = 0
			} else if n, err := strconv.Atoi(raw); err == nil {
				vals[s.Name] = n
			} else {
				// Left as text so a WholeNumber rule can report it.
				vals[s.Name] = raw
			}
			continue
		}
		vals[s.Name] = raw
	}
	return vals
}

// Error returns the current validation message of a field.
func (m Model) Error(name string) string {
	return m.validator.Error(name)
}

// Update handles keys and cursor blinks.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(kmsg, m.keys.Cancel):
			tag := m.Tag
			return m, func() tea.Msg { return CancelledMsg{Tag: tag} }

		case key.Matches(kmsg, m.keys.Next):
			return m, m.move(1)

		case key.Matches(kmsg, m.keys.Prev):
			return m, m.move(-1)

		case key.Matches(kmsg, m.keys.Submit):
			vals := m.Values()
			if !m.validator.ValidateForm(vals) {
				return m, nil
			}
			tag := m.Tag
			return m, func() tea.Msg { return SubmittedMsg{Tag: tag, Values: vals} }
		}
	}

	if len(m.inputs) == 0 {
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

// move shifts focus, validating the field being left.
func (m *Model) move(delta int) tea.Cmd {
	if len(m.inputs) == 0 {
		return nil
	}
	m.validator.ValidateField(m.specs[m.focus].Name, m.Values())
	m.inputs[m.focus].Blur()
	m.focus = (m.focus + delta + len(m.inputs)) % len(m.inputs)
	return m.inputs[m.focus].Focus()
}

// View renders the form.
func (m Model) View() string {
	lines := []string{theme.StyleHeader.Render(m.Title), ""}
	for i, s := range m.specs {
		label := s.Label
		if label == "" {
			label = s.Name
		}
		style := theme.StyleLabel
		if i == m.focus {
			style = style.Foreground(theme.ColorBright).Bold(true)
		}
		lines = append(lines, style.Render(label)+m.inputs[i].View())
		if msg := m.validator.Error(s.Name); msg != "" {
			lines = append(lines, theme.StyleLabel.Render("")+theme.StyleError.Render(msg))
		}
	}
	lines = append(lines, "", theme.Help("tab", "next", "enter", "save", "esc", "cancel"))

	return lipgloss.NewStyle().
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
