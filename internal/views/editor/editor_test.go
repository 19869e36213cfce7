package editor

import (
	"strings"
	"testing"

	"github.com/Leo890728/course-web/internal/form"
	tea "github.com/charmbracelet/bubbletea"
)

func courseEditor() Model {
	v := form.New(
		form.Field{Name: "name", Label: "Name", Rules: []form.Rule{{Required: true}}},
		form.Field{Name: "credits", Label: "Credits", Rules: []form.Rule{
			{Pattern: WholeNumber, Message: "Credits must be a whole number"},
			{Min: 1, Max: 10},
		}},
	)
	return New("New course", []Input{
		{Name: "name", Label: "Name"},
		{Name: "credits", Label: "Credits", Numeric: true},
	}, v)
}

func typeText(m Model, s string) Model {
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func send(m Model, t tea.KeyType) (Model, tea.Msg) {
	m, cmd := m.Update(tea.KeyMsg{Type: t})
	if cmd == nil {
		return m, nil
	}
	return m, cmd()
}

func TestSubmitValidForm(t *testing.T) {
	m := courseEditor()
	m.Open("course:new", "New course", nil)
	m = typeText(m, "Compilers")
	m, _ = send(m, tea.KeyTab)
	m = typeText(m, "4")

	_, msg := send(m, tea.KeyEnter)
	sub, ok := msg.(SubmittedMsg)
	if !ok {
		t.Fatalf("expected SubmittedMsg, got %T", msg)
	}
	if sub.Tag != "course:new" {
		t.Errorf("tag = %q", sub.Tag)
	}
	if sub.Values["name"] != "Compilers" || sub.Values["credits"] != 4 {
		t.Errorf("values = %v", sub.Values)
	}
}

func TestSubmitInvalidFormShowsErrors(t *testing.T) {
	m := courseEditor()
	m.Open("course:new", "New course", map[string]string{"credits": "12"})

	m, msg := send(m, tea.KeyEnter)
	if msg != nil {
		t.Fatalf("invalid form must not submit, got %T", msg)
	}
	if m.Error("name") != "Name is required" {
		t.Errorf("name error = %q", m.Error("name"))
	}
	if !strings.Contains(m.View(), "Credits must not be greater than 10") {
		t.Error("view should show the credits error")
	}
}

func TestNonNumericTextIsReported(t *testing.T) {
	m := courseEditor()
	m.Open("x", "Edit", map[string]string{"name": "Art", "credits": "three"})

	if got := m.Values()["credits"]; got != "three" {
		t.Fatalf("credits value = %v", got)
	}
	m, _ = send(m, tea.KeyEnter)
	if m.Error("credits") != "Credits must be a whole number" {
		t.Errorf("credits error = %q", m.Error("credits"))
	}
}

func TestLeavingFieldValidatesIt(t *testing.T) {
	m := courseEditor()
	m.Open("x", "Edit", nil)

	m, _ = send(m, tea.KeyTab)
	if m.Error("name") == "" {
		t.Error("leaving an empty required field should flag it")
	}
	if m.Error("credits") != "" {
		t.Error("fields not yet visited should not be flagged")
	}
}

func TestOpenClearsErrorsAndPrefills(t *testing.T) {
	m := courseEditor()
	m, _ = send(m, tea.KeyEnter)
	m.Open("course:3", "Edit course", map[string]string{"name": "Databases", "credits": "3"})

	if m.Error("name") != "" {
		t.Error("Open should clear errors")
	}
	vals := m.Values()
	if vals["name"] != "Databases" || vals["credits"] != 3 {
		t.Errorf("values = %v", vals)
	}
}

func TestCancel(t *testing.T) {
	m := courseEditor()
	m.Tag = "student:9"
	_, msg := send(m, tea.KeyEsc)
	if c, ok := msg.(CancelledMsg); !ok || c.Tag != "student:9" {
		t.Errorf("expected CancelledMsg for student:9, got %#v", msg)
	}
}
