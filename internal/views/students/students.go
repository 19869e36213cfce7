// Package students is the student management screen.
package students

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Leo890728/course-web/internal/client"
	"github.com/Leo890728/course-web/internal/form"
	"github.com/Leo890728/course-web/internal/theme"
	"github.com/Leo890728/course-web/internal/views"
	"github.com/Leo890728/course-web/internal/views/confirm"
	"github.com/Leo890728/course-web/internal/views/editor"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const tagPrefix = "student:"

var phonePattern = regexp.MustCompile(`^[0-9+\-() ]{6,20}$`)

// LoadedMsg carries the result of listing students.
type LoadedMsg struct {
	Students []client.Student
	Err      error
}

// SavedMsg carries the result of a create or update.
type SavedMsg struct {
	Student *client.Student
	Created bool
	Err     error
}

// DeletedMsg carries the result of a delete.
type DeletedMsg struct {
	ID  int64
	Err error
}

// KeyMap holds the screen bindings.
type KeyMap struct {
	New     key.Binding
	Edit    key.Binding
	Delete  key.Binding
	Refresh key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		New:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new")),
		Edit:    key.NewBinding(key.WithKeys("e", "enter"), key.WithHelp("e", "edit")),
		Delete:  key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "delete")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	}
}

// Model is the students screen.
type Model struct {
	api  *client.Client
	ctx  context.Context
	keys KeyMap

	table    table.Model
	students []client.Student
	loading  bool

	editor  editor.Model
	editing bool
	confirm confirm.Model

	width, height int
}

// Validator returns the student form rules.
func Validator() *form.Validator {
	return form.New(
		form.Field{Name: "name", Label: "Name", Rules: []form.Rule{
			{Required: true},
			{MinLength: 2, MaxLength: 50},
		}},
		form.Field{Name: "email", Label: "Email", Rules: []form.Rule{
			{Required: true},
			{MaxLength: 100},
			{Pattern: form.Email, Message: "Email is not a valid address"},
		}},
		form.Field{Name: "phone", Label: "Phone", Rules: []form.Rule{
			{Pattern: phonePattern, Message: "Phone must be 6 to 20 digits"},
		}},
	)
}

// New creates the screen. Requests run under ctx.
func New(ctx context.Context, api *client.Client) *Model {
	m := &Model{
		api:  api,
		ctx:  ctx,
		keys: DefaultKeyMap(),
		table: views.NewTable([]table.Column{
			{Title: "ID", Width: 6},
			{Title: "Name", Width: 20},
			{Title: "Email", Width: 28},
			{Title: "Phone", Width: 14},
			{Title: "Courses", Width: 8},
		}, 10),
		editor: editor.New("Student", []editor.Input{
			{Name: "name", Label: "Name", Placeholder: "Ada Lovelace", CharLimit: 50},
			{Name: "email", Label: "Email", Placeholder: "ada@example.com", CharLimit: 100},
			{Name: "phone", Label: "Phone", Placeholder: "optional", CharLimit: 20},
		}, Validator()),
		confirm: confirm.New(),
		loading: true,
	}
	return m
}

// Init loads the list.
func (m *Model) Init() tea.Cmd {
	m.loading = true
	return m.load()
}

// SetSize implements views.Screen.
func (m *Model) SetSize(width, height int) {
	m.width, m.height = width, height
	m.table.SetHeight(views.TableHeight(height))
	m.editor.SetWidth(min(width, 80))
}

// Capturing implements views.Screen.
func (m *Model) Capturing() bool {
	return m.editing || m.confirm.Active()
}

// Selected returns the highlighted student, if any.
func (m *Model) Selected() (client.Student, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.students) {
		return client.Student{}, false
	}
	return m.students[i], true
}

// Update implements views.Screen.
func (m *Model) Update(msg tea.Msg) (views.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.loading = false
		if msg.Err != nil {
			return m, views.NotifyError(msg.Err, "failed to load students")
		}
		m.students = msg.Students
		m.table.SetRows(rows(m.students))
		return m, nil

	case SavedMsg:
		if msg.Err != nil {
			return m, views.NotifyError(msg.Err, "failed to save student")
		}
		m.editing = false
		verb := "updated"
		if msg.Created {
			verb = "created"
		}
		return m, tea.Batch(views.Notify(views.LevelSuccess, fmt.Sprintf("Student %q %s", msg.Student.Name, verb)), m.load())

	case DeletedMsg:
		if msg.Err != nil {
			return m, views.NotifyError(msg.Err, "failed to delete student")
		}
		return m, tea.Batch(views.Notify(views.LevelSuccess, fmt.Sprintf("Student %d deleted", msg.ID)), m.load())

	case editor.SubmittedMsg:
		id, ok := parseTag(msg.Tag)
		if !ok {
			return m, nil
		}
		return m, m.save(id, studentFromValues(msg.Values))

	case editor.CancelledMsg:
		if _, ok := parseTag(msg.Tag); ok {
			m.editing = false
		}
		return m, nil

	case confirm.ResultMsg:
		id, ok := parseTag(msg.Tag)
		if !ok || !msg.Confirmed {
			return m, nil
		}
		return m, m.delete(id)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.editing {
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (views.Screen, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.confirm.Active():
		m.confirm, cmd = m.confirm.Update(msg)
		return m, cmd

	case m.editing:
		m.editor, cmd = m.editor.Update(msg)
		return m, cmd

	case key.Matches(msg, m.keys.New):
		m.editor.Open(tag(0), "New student", nil)
		m.editing = true
		return m, nil

	case key.Matches(msg, m.keys.Edit):
		s, ok := m.Selected()
		if !ok {
			return m, nil
		}
		m.editor.Open(tag(s.StudentID), fmt.Sprintf("Edit student %d", s.StudentID), map[string]string{
			"name":  s.Name,
			"email": s.Email,
			"phone": s.Phone,
		})
		m.editing = true
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if s, ok := m.Selected(); ok {
			m.confirm.AskDelete(tag(s.StudentID), fmt.Sprintf("student %q", s.Name))
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, m.Init()
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements views.Screen.
func (m *Model) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.SectionColor("/students")).
		Render(fmt.Sprintf("Students (%d)", len(m.students)))

	var body string
	switch {
	case m.editing:
		body = m.editor.View()
	case m.loading && len(m.students) == 0:
		body = theme.StyleDimmed.Render("  Loading students...")
	case len(m.students) == 0:
		body = theme.StyleDimmed.Render("  No students yet. Press n to add one.")
	default:
		body = m.table.View()
	}

	footer := theme.Help("n", "new", "e", "edit", "x", "delete", "r", "refresh")
	if m.confirm.Active() {
		footer = m.confirm.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, body, footer)
}

func rows(students []client.Student) []table.Row {
	out := make([]table.Row, 0, len(students))
	for _, s := range students {
		out = append(out, table.Row{
			strconv.FormatInt(s.StudentID, 10),
			theme.Truncate(s.Name, 20),
			theme.Truncate(s.Email, 28),
			s.Phone,
			strconv.Itoa(len(s.Courses)),
		})
	}
	return out
}

func studentFromValues(v form.Values) client.Student {
	str := func(k string) string {
		s, _ := v[k].(string)
		return s
	}
	return client.Student{Name: str("name"), Email: str("email"), Phone: str("phone")}
}

// tag names the form or question for a student; id 0 means a new one.
func tag(id int64) string {
	return tagPrefix + strconv.FormatInt(id, 10)
}

func parseTag(t string) (int64, bool) {
	rest, ok := strings.CutPrefix(t, tagPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	return id, err == nil
}

func (m *Model) load() tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		students, err := api.FetchStudents(ctx)
		return LoadedMsg{Students: students, Err: err}
	}
}

func (m *Model) save(id int64, s client.Student) tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		if id == 0 {
			out, err := api.CreateStudent(ctx, s)
			return SavedMsg{Student: out, Created: true, Err: err}
		}
		out, err := api.UpdateStudent(ctx, id, s)
		return SavedMsg{Student: out, Err: err}
	}
}

func (m *Model) delete(id int64) tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		return DeletedMsg{ID: id, Err: api.DeleteStudent(ctx, id)}
	}
}
