// Package teachers is the teacher management screen: a paged, searchable
// list with create, edit, delete and a teacher's course list.
package teachers

import (
	"context"
	"fmt"
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
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const tagPrefix = "teacher:"

type LoadedMsg struct {
	Page *client.Page[client.Teacher]
	Err  error
}

type SavedMsg struct {
	Teacher *client.Teacher
	Created bool
	Err     error
}

type DeletedMsg struct {
	ID  int64
	Err error
}

// CoursesMsg carries the courses taught by one teacher.
type CoursesMsg struct {
	TeacherID int64
	Courses   []client.Course
	Err       error
}

type KeyMap struct {
	New      key.Binding
	Edit     key.Binding
	Delete   key.Binding
	Refresh  key.Binding
	PrevPage key.Binding
	NextPage key.Binding
	Search   key.Binding
	Courses  key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		New:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new")),
		Edit:     key.NewBinding(key.WithKeys("e", "enter"), key.WithHelp("e", "edit")),
		Delete:   key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "delete")),
		Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		PrevPage: key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev page")),
		NextPage: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next page")),
		Search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Courses:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "courses")),
	}
}

// Model is the teachers screen.
type Model struct {
	api  *client.Client
	ctx  context.Context
	keys KeyMap

	table    table.Model
	teachers []client.Teacher
	page     client.PageRequest
	pages    int
	total    int64
	loading  bool

	search    string
	searching bool
	input     textinput.Model

	courses   []client.Course
	coursesOf int64

	editor  editor.Model
	editing bool
	confirm confirm.Model
}

// Validator returns the teacher form rules.
func Validator() *form.Validator {
	return form.New(
		form.Field{Name: "name", Label: "Name", Rules: []form.Rule{
			{Required: true},
			{MinLength: 2, MaxLength: 50},
		}},
		form.Field{Name: "email", Label: "Email", Rules: []form.Rule{
			{Required: true},
			{Pattern: form.Email, Message: "Email is not a valid address"},
		}},
		form.Field{Name: "department", Label: "Department", Rules: []form.Rule{
			{MaxLength: 50},
		}},
	)
}

// New creates the screen showing pageSize teachers per page.
func New(ctx context.Context, api *client.Client, pageSize int) *Model {
	in := textinput.New()
	in.Prompt = "/ "
	in.Placeholder = "name or email"
	in.CharLimit = 50

	return &Model{
		api:  api,
		ctx:  ctx,
		keys: DefaultKeyMap(),
		table: views.NewTable([]table.Column{
			{Title: "ID", Width: 6},
			{Title: "Name", Width: 20},
			{Title: "Email", Width: 28},
			{Title: "Department", Width: 18},
		}, 10),
		page:  client.PageRequest{Number: 0, Size: max(pageSize, 1)},
		input: in,
		editor: editor.New("Teacher", []editor.Input{
			{Name: "name", Label: "Name", CharLimit: 50},
			{Name: "email", Label: "Email", CharLimit: 100},
			{Name: "department", Label: "Department", Placeholder: "optional", CharLimit: 50},
		}, Validator()),
		confirm: confirm.New(),
		loading: true,
	}
}

func (m *Model) Init() tea.Cmd {
	m.loading = true
	return m.load()
}

func (m *Model) SetSize(width, height int) {
	m.table.SetHeight(views.TableHeight(height) - 2)
	m.editor.SetWidth(min(width, 80))
	m.input.Width = min(width-10, 40)
}

func (m *Model) Capturing() bool {
	return m.editing || m.searching || m.confirm.Active()
}

// Selected returns the highlighted teacher, if any.
func (m *Model) Selected() (client.Teacher, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.teachers) {
		return client.Teacher{}, false
	}
	return m.teachers[i], true
}

func (m *Model) Update(msg tea.Msg) (views.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.loading = false
		if msg.Err != nil {
			return m, views.NotifyError(msg.Err, "failed to load teachers")
		}
		m.teachers = msg.Page.Content
		m.pages = msg.Page.TotalPages
		m.total = msg.Page.TotalElements
		m.page.Number = msg.Page.Number
		m.table.SetRows(rows(m.teachers))
		m.table.SetCursor(0)
		m.courses, m.coursesOf = nil, 0
		return m, nil

	case CoursesMsg:
		if msg.Err != nil {
			return m, views.NotifyError(msg.Err, "failed to load courses")
		}
		m.courses, m.coursesOf = msg.Courses, msg.TeacherID
		return m, nil

	case SavedMsg:
		if msg.Err != nil {
			return m, views.NotifyError(msg.Err, "failed to save teacher")
		}
		m.editing = false
		verb := "updated"
		if msg.Created {
			verb = "created"
		}
		return m, tea.Batch(views.Notify(views.LevelSuccess, fmt.Sprintf("Teacher %q %s", msg.Teacher.Name, verb)), m.load())

	case DeletedMsg:
		if msg.Err != nil {
			return m, views.NotifyError(msg.Err, "failed to delete teacher")
		}
		return m, tea.Batch(views.Notify(views.LevelSuccess, fmt.Sprintf("Teacher %d deleted", msg.ID)), m.load())

	case editor.SubmittedMsg:
		id, ok := parseTag(msg.Tag)
		if !ok {
			return m, nil
		}
		return m, m.save(id, teacherFromValues(msg.Values))

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

	var cmd tea.Cmd
	switch {
	case m.editing:
		m.editor, cmd = m.editor.Update(msg)
	case m.searching:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
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

	case m.searching:
		return m.handleSearchKey(msg)

	case key.Matches(msg, m.keys.New):
		m.editor.Open(tag(0), "New teacher", nil)
		m.editing = true
		return m, nil

	case key.Matches(msg, m.keys.Edit):
		t, ok := m.Selected()
		if !ok {
			return m, nil
		}
		m.editor.Open(tag(t.TeacherID), fmt.Sprintf("Edit teacher %d", t.TeacherID), map[string]string{
			"name":       t.Name,
			"email":      t.Email,
			"department": t.Department,
		})
		m.editing = true
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if t, ok := m.Selected(); ok {
			m.confirm.AskDelete(tag(t.TeacherID), fmt.Sprintf("teacher %q", t.Name))
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, m.Init()

	case key.Matches(msg, m.keys.PrevPage):
		if m.page.Number == 0 {
			return m, nil
		}
		m.page.Number--
		return m, m.Init()

	case key.Matches(msg, m.keys.NextPage):
		if m.page.Number+1 >= m.pages {
			return m, nil
		}
		m.page.Number++
		return m, m.Init()

	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.input.SetValue(m.search)
		m.input.CursorEnd()
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Courses):
		if t, ok := m.Selected(); ok {
			return m, m.loadCourses(t.TeacherID)
		}
		return m, nil
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) handleSearchKey(msg tea.KeyMsg) (views.Screen, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.input.Blur()
		m.search = strings.TrimSpace(m.input.Value())
		m.page.Number = 0
		return m, m.Init()
	case tea.KeyEsc:
		m.searching = false
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) View() string {
	header := fmt.Sprintf("Teachers (%d)", m.total)
	if m.search != "" {
		header += fmt.Sprintf("  matching %q", m.search)
	}
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.SectionColor("/teachers")).Render(header)

	parts := []string{title}
	if m.searching {
		parts = append(parts, m.input.View())
	}

	switch {
	case m.editing:
		parts = append(parts, m.editor.View())
	case m.loading && len(m.teachers) == 0:
		parts = append(parts, theme.StyleDimmed.Render("  Loading teachers..."))
	case len(m.teachers) == 0:
		parts = append(parts, theme.StyleDimmed.Render("  No teachers found."))
	default:
		parts = append(parts, m.table.View(),
			theme.StyleDimmed.Render(fmt.Sprintf("  page %d of %d", m.page.Number+1, max(m.pages, 1))))
	}

	if m.coursesOf != 0 && !m.editing {
		parts = append(parts, m.coursesView())
	}

	footer := theme.Help("n", "new", "e", "edit", "x", "delete", "/", "search", "[ ]", "page", "c", "courses")
	if m.confirm.Active() {
		footer = m.confirm.View()
	}
	parts = append(parts, footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) coursesView() string {
	if len(m.courses) == 0 {
		return theme.StyleDimmed.Render(fmt.Sprintf("  Teacher %d has no courses.", m.coursesOf))
	}
	lines := []string{theme.StyleLabel.Render(fmt.Sprintf("Courses of %d", m.coursesOf))}
	for _, c := range m.courses {
		lines = append(lines, fmt.Sprintf("  %-6d %s (%d credits)", c.CourseID, theme.Truncate(c.Name, 30), c.Credits))
	}
	return strings.Join(lines, "\n")
}

func rows(teachers []client.Teacher) []table.Row {
	out := make([]table.Row, 0, len(teachers))
	for _, t := range teachers {
		out = append(out, table.Row{
			strconv.FormatInt(t.TeacherID, 10),
			theme.Truncate(t.Name, 20),
			theme.Truncate(t.Email, 28),
			theme.Truncate(t.Department, 18),
		})
	}
	return out
}

func teacherFromValues(v form.Values) client.Teacher {
	str := func(k string) string {
		s, _ := v[k].(string)
		return s
	}
	return client.Teacher{Name: str("name"), Email: str("email"), Department: str("department")}
}

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
	api, ctx, page, search := m.api, m.ctx, m.page, m.search
	return func() tea.Msg {
		p, err := api.FetchTeachers(ctx, &page, search)
		return LoadedMsg{Page: p, Err: err}
	}
}

func (m *Model) loadCourses(id int64) tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		courses, err := api.GetTeacherCourses(ctx, id)
		return CoursesMsg{TeacherID: id, Courses: courses, Err: err}
	}
}

func (m *Model) save(id int64, t client.Teacher) tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		if id == 0 {
			out, err := api.CreateTeacher(ctx, t)
			return SavedMsg{Teacher: out, Created: true, Err: err}
		}
		out, err := api.UpdateTeacher(ctx, id, t)
		return SavedMsg{Teacher: out, Err: err}
	}
}

func (m *Model) delete(id int64) tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		return DeletedMsg{ID: id, Err: api.DeleteTeacher(ctx, id)}
	}
}
