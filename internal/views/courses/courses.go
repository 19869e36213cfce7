// Package courses is the course management screen.
package courses

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
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const tagPrefix = "course:"

type LoadedMsg struct {
	Page *client.Page[client.Course]
	Err  error
}

type SavedMsg struct {
	Course  *client.Course
	Created bool
	Err     error
}

type DeletedMsg struct {
	ID  int64
	Err error
}

type KeyMap struct {
	New      key.Binding
	Edit     key.Binding
	Delete   key.Binding
	Refresh  key.Binding
	PrevPage key.Binding
	NextPage key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		New:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new")),
		Edit:     key.NewBinding(key.WithKeys("e", "enter"), key.WithHelp("e", "edit")),
		Delete:   key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "delete")),
		Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		PrevPage: key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev page")),
		NextPage: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next page")),
	}
}

type Model struct {
	api  *client.Client
	ctx  context.Context
	keys KeyMap

	table   table.Model
	courses []client.Course
	page    client.PageRequest
	pages   int
	total   int64
	loading bool

	editor  editor.Model
	editing bool
	confirm confirm.Model
}

// Validator returns the course form rules. Credits and teacher come from
// numeric inputs, so text that is not a whole number reaches the validator
// as a string.
func Validator() *form.Validator {
	return form.New(
		form.Field{Name: "name", Label: "Name", Rules: []form.Rule{
			{Required: true},
			{MinLength: 2, MaxLength: 100},
		}},
		form.Field{Name: "description", Label: "Description", Rules: []form.Rule{
			{MaxLength: 500},
		}},
		form.Field{Name: "credits", Label: "Credits", Rules: []form.Rule{
			{Required: true},
			{Pattern: editor.WholeNumber, Message: "Credits must be a whole number"},
			{Min: 1, Max: 10},
		}},
		form.Field{Name: "teacher", Label: "Teacher", Rules: []form.Rule{
			{Required: true, Message: "Teacher is required"},
			{Pattern: editor.WholeNumber, Message: "Teacher must be a teacher id"},
		}},
	)
}

func New(ctx context.Context, api *client.Client, pageSize int) *Model {
	return &Model{
		api:  api,
		ctx:  ctx,
		keys: DefaultKeyMap(),
		table: views.NewTable([]table.Column{
			{Title: "ID", Width: 6},
			{Title: "Name", Width: 28},
			{Title: "Credits", Width: 8},
			{Title: "Teacher", Width: 20},
		}, 10),
		page: client.PageRequest{Size: max(pageSize, 1)},
		editor: editor.New("Course", []editor.Input{
			{Name: "name", Label: "Name", CharLimit: 100},
			{Name: "description", Label: "Description", Placeholder: "optional", CharLimit: 500},
			{Name: "credits", Label: "Credits", Placeholder: "1-10", Numeric: true, CharLimit: 2},
			{Name: "teacher", Label: "Teacher ID", Numeric: true, CharLimit: 12},
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
}

func (m *Model) Capturing() bool {
	return m.editing || m.confirm.Active()
}

func (m *Model) Selected() (client.Course, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.courses) {
		return client.Course{}, false
	}
	return m.courses[i], true
}

func (m *Model) Update(msg tea.Msg) (views.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.loading = false
		if msg.Err != nil {
			return m, views.NotifyError(msg.Err, "failed to load courses")
		}
		m.courses = msg.Page.Content
		m.pages = msg.Page.TotalPages
		m.total = msg.Page.TotalElements
		m.page.Number = msg.Page.Number
		m.table.SetRows(rows(m.courses))
		m.table.SetCursor(0)
		return m, nil

	case SavedMsg:
		if msg.Err != nil {
			return m, views.NotifyError(msg.Err, "failed to save course")
		}
		m.editing = false
		verb := "updated"
		if msg.Created {
			verb = "created"
		}
		return m, tea.Batch(views.Notify(views.LevelSuccess, fmt.Sprintf("Course %q %s", msg.Course.Name, verb)), m.load())

	case DeletedMsg:
		if msg.Err != nil {
			return m, views.NotifyError(msg.Err, "failed to delete course")
		}
		return m, tea.Batch(views.Notify(views.LevelSuccess, fmt.Sprintf("Course %d deleted", msg.ID)), m.load())

	case editor.SubmittedMsg:
		id, ok := parseTag(msg.Tag)
		if !ok {
			return m, nil
		}
		return m, m.save(id, courseFromValues(msg.Values))

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
		m.editor.Open(tag(0), "New course", map[string]string{"credits": "3"})
		m.editing = true
		return m, nil

	case key.Matches(msg, m.keys.Edit):
		c, ok := m.Selected()
		if !ok {
			return m, nil
		}
		initial := map[string]string{
			"name":        c.Name,
			"description": c.Description,
			"credits":     strconv.Itoa(c.Credits),
		}
		if c.Teacher != nil {
			initial["teacher"] = strconv.FormatInt(c.Teacher.TeacherID, 10)
		}
		m.editor.Open(tag(c.CourseID), fmt.Sprintf("Edit course %d", c.CourseID), initial)
		m.editing = true
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if c, ok := m.Selected(); ok {
			m.confirm.AskDelete(tag(c.CourseID), fmt.Sprintf("course %q", c.Name))
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
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.SectionColor("/courses")).
		Render(fmt.Sprintf("Courses (%d)", m.total))

	parts := []string{title}
	switch {
	case m.editing:
		parts = append(parts, m.editor.View())
	case m.loading && len(m.courses) == 0:
		parts = append(parts, theme.StyleDimmed.Render("  Loading courses..."))
	case len(m.courses) == 0:
		parts = append(parts, theme.StyleDimmed.Render("  No courses yet. Press n to add one."))
	default:
		parts = append(parts, m.table.View(),
			theme.StyleDimmed.Render(fmt.Sprintf("  page %d of %d", m.page.Number+1, max(m.pages, 1))))
		if c, ok := m.Selected(); ok && c.Description != "" {
			parts = append(parts, theme.StyleLabel.Render("Description")+theme.Truncate(c.Description, 80))
		}
	}

	footer := theme.Help("n", "new", "e", "edit", "x", "delete", "[ ]", "page", "r", "refresh")
	if m.confirm.Active() {
		footer = m.confirm.View()
	}
	parts = append(parts, footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func rows(courses []client.Course) []table.Row {
	out := make([]table.Row, 0, len(courses))
	for _, c := range courses {
		teacher := "-"
		if c.Teacher != nil {
			teacher = c.Teacher.Name
			if teacher == "" {
				teacher = "#" + strconv.FormatInt(c.Teacher.TeacherID, 10)
			}
		}
		out = append(out, table.Row{
			strconv.FormatInt(c.CourseID, 10),
			theme.Truncate(c.Name, 28),
			strconv.Itoa(c.Credits),
			theme.Truncate(teacher, 20),
		})
	}
	return out
}

func courseFromValues(v form.Values) client.Course {
	c := client.Course{}
	c.Name, _ = v["name"].(string)
	c.Description, _ = v["description"].(string)
	c.Credits, _ = v["credits"].(int)
	if id, ok := v["teacher"].(int); ok && id > 0 {
		c.Teacher = &client.TeacherRef{TeacherID: int64(id)}
	}
	return c
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
	api, ctx, page := m.api, m.ctx, m.page
	return func() tea.Msg {
		p, err := api.FetchCourses(ctx, &page)
		return LoadedMsg{Page: p, Err: err}
	}
}

func (m *Model) save(id int64, c client.Course) tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		if id == 0 {
			out, err := api.CreateCourse(ctx, c)
			return SavedMsg{Course: out, Created: true, Err: err}
		}
		out, err := api.UpdateCourse(ctx, id, c)
		return SavedMsg{Course: out, Err: err}
	}
}

func (m *Model) delete(id int64) tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		return DeletedMsg{ID: id, Err: api.DeleteCourse(ctx, id)}
	}
}
