// Package enrollment is the screen that links students to courses: a
// student list beside a course list, plus the roster of the selected course.
package enrollment

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Leo890728/course-web/internal/client"
	"github.com/Leo890728/course-web/internal/theme"
	"github.com/Leo890728/course-web/internal/views"
	"github.com/Leo890728/course-web/internal/views/confirm"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const tagPrefix = "enrollment:"

type StudentsMsg struct {
	Students []client.Student
	Err      error
}

type CoursesMsg struct {
	Courses []client.Course
	Err     error
}

// RosterMsg carries the students of one course.
type RosterMsg struct {
	CourseID int64
	Students []client.Student
	Err      error
}

// ChangedMsg reports an enroll (Enrolled true) or a removal.
type ChangedMsg struct {
	StudentID int64
	CourseID  int64
	Enrolled  bool
	Err       error
}

type pane int

const (
	paneStudents pane = iota
	paneCourses
)

type KeyMap struct {
	Left    key.Binding
	Right   key.Binding
	Enroll  key.Binding
	Remove  key.Binding
	Roster  key.Binding
	Refresh key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Left:    key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h", "students")),
		Right:   key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l", "courses")),
		Enroll:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "enroll")),
		Remove:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "remove")),
		Roster:  key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "roster")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	}
}

type Model struct {
	api  *client.Client
	ctx  context.Context
	keys KeyMap

	students     []client.Student
	courses      []client.Course
	studentTable table.Model
	courseTable  table.Model
	focus        pane

	roster   []client.Student
	rosterOf int64

	confirm confirm.Model
}

func New(ctx context.Context, api *client.Client) *Model {
	m := &Model{
		api:  api,
		ctx:  ctx,
		keys: DefaultKeyMap(),
		studentTable: views.NewTable([]table.Column{
			{Title: "ID", Width: 5},
			{Title: "Student", Width: 20},
			{Title: "Courses", Width: 7},
		}, 10),
		courseTable: views.NewTable([]table.Column{
			{Title: " ", Width: 1},
			{Title: "ID", Width: 5},
			{Title: "Course", Width: 24},
		}, 10),
		confirm: confirm.New(),
	}
	m.courseTable.Blur()
	return m
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadStudents(), m.loadCourses())
}

func (m *Model) SetSize(_, height int) {
	h := views.TableHeight(height) - 4
	m.studentTable.SetHeight(h)
	m.courseTable.SetHeight(h)
}

func (m *Model) Capturing() bool {
	return m.confirm.Active()
}

func (m *Model) selectedStudent() (client.Student, bool) {
	i := m.studentTable.Cursor()
	if i < 0 || i >= len(m.students) {
		return client.Student{}, false
	}
	return m.students[i], true
}

func (m *Model) selectedCourse() (client.Course, bool) {
	i := m.courseTable.Cursor()
	if i < 0 || i >= len(m.courses) {
		return client.Course{}, false
	}
	return m.courses[i], true
}

func (m *Model) Update(msg tea.Msg) (views.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case StudentsMsg:
		if msg.Err != nil {
			return m, views.NotifyError(msg.Err, "failed to load students")
		}
		m.students = msg.Students
		m.studentTable.SetRows(studentRows(m.students))
		m.refreshCourseRows()
		return m, nil

	case CoursesMsg:
		if msg.Err != nil {
			return m, views.NotifyError(msg.Err, "failed to load courses")
		}
		m.courses = msg.Courses
		m.refreshCourseRows()
		return m, nil

	case RosterMsg:
		if msg.Err != nil {
			return m, views.NotifyError(msg.Err, "failed to load roster")
		}
		m.roster, m.rosterOf = msg.Students, msg.CourseID
		return m, nil

	case ChangedMsg:
		if msg.Err != nil {
			return m, views.NotifyError(msg.Err, "enrollment failed")
		}
		text := fmt.Sprintf("Student %d enrolled in course %d", msg.StudentID, msg.CourseID)
		if !msg.Enrolled {
			text = fmt.Sprintf("Student %d removed from course %d", msg.StudentID, msg.CourseID)
		}
		cmds := []tea.Cmd{views.Notify(views.LevelSuccess, text), m.loadStudents()}
		if m.rosterOf == msg.CourseID {
			cmds = append(cmds, m.loadRoster(msg.CourseID))
		}
		return m, tea.Batch(cmds...)

	case confirm.ResultMsg:
		sid, cid, ok := parseTag(msg.Tag)
		if !ok || !msg.Confirmed {
			return m, nil
		}
		return m, m.change(sid, cid, false)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (views.Screen, tea.Cmd) {
	var cmd tea.Cmd
	if m.confirm.Active() {
		m.confirm, cmd = m.confirm.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Left):
		m.setFocus(paneStudents)
		return m, nil

	case key.Matches(msg, m.keys.Right):
		m.setFocus(paneCourses)
		return m, nil

	case key.Matches(msg, m.keys.Enroll):
		s, ok1 := m.selectedStudent()
		c, ok2 := m.selectedCourse()
		if !ok1 || !ok2 {
			return m, views.Notify(views.LevelInfo, "Select a student and a course first")
		}
		if enrolled(s, c.CourseID) {
			return m, views.Notify(views.LevelInfo, fmt.Sprintf("%s already takes %s", s.Name, c.Name))
		}
		return m, m.change(s.StudentID, c.CourseID, true)

	case key.Matches(msg, m.keys.Remove):
		s, ok1 := m.selectedStudent()
		c, ok2 := m.selectedCourse()
		if !ok1 || !ok2 || !enrolled(s, c.CourseID) {
			return m, views.Notify(views.LevelInfo, "The selected student does not take the selected course")
		}
		m.confirm.Ask(tag(s.StudentID, c.CourseID), "Remove enrollment?",
			fmt.Sprintf("%s will be removed from %s.", s.Name, c.Name))
		return m, nil

	case key.Matches(msg, m.keys.Roster):
		if c, ok := m.selectedCourse(); ok {
			return m, m.loadRoster(c.CourseID)
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, m.Init()
	}

	if m.focus == paneStudents {
		m.studentTable, cmd = m.studentTable.Update(msg)
		m.refreshCourseRows()
	} else {
		m.courseTable, cmd = m.courseTable.Update(msg)
	}
	return m, cmd
}

func (m *Model) setFocus(p pane) {
	m.focus = p
	if p == paneStudents {
		m.studentTable.Focus()
		m.courseTable.Blur()
	} else {
		m.courseTable.Focus()
		m.studentTable.Blur()
	}
}

// refreshCourseRows marks the courses taken by the selected student.
func (m *Model) refreshCourseRows() {
	s, _ := m.selectedStudent()
	rows := make([]table.Row, 0, len(m.courses))
	for _, c := range m.courses {
		mark := " "
		if enrolled(s, c.CourseID) {
			mark = "*"
		}
		rows = append(rows, table.Row{mark, strconv.FormatInt(c.CourseID, 10), theme.Truncate(c.Name, 24)})
	}
	m.courseTable.SetRows(rows)
}

func (m *Model) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.SectionColor("/enrollment")).Render("Enrollment")

	box := func(t table.Model, focused bool) string {
		color := theme.ColorBorder
		if focused {
			color = theme.SectionColor("/enrollment")
		}
		return lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(color).Render(t.View())
	}
	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		box(m.studentTable, m.focus == paneStudents),
		" ",
		box(m.courseTable, m.focus == paneCourses),
	)

	parts := []string{title, panes}
	if m.rosterOf != 0 {
		parts = append(parts, m.rosterView())
	}
	footer := theme.Help("h/l", "switch list", "e", "enroll", "x", "remove", "v", "roster", "r", "refresh")
	if m.confirm.Active() {
		footer = m.confirm.View()
	}
	parts = append(parts, footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) rosterView() string {
	header := theme.StyleLabel.Render(fmt.Sprintf("Roster of %d", m.rosterOf))
	if len(m.roster) == 0 {
		return header + theme.StyleDimmed.Render("no students")
	}
	names := make([]string, 0, len(m.roster))
	for _, s := range m.roster {
		names = append(names, s.Name)
	}
	return header + theme.Truncate(strings.Join(names, ", "), 100)
}

func enrolled(s client.Student, courseID int64) bool {
	for _, c := range s.Courses {
		if c.CourseID == courseID {
			return true
		}
	}
	return false
}

func studentRows(students []client.Student) []table.Row {
	out := make([]table.Row, 0, len(students))
	for _, s := range students {
		out = append(out, table.Row{
			strconv.FormatInt(s.StudentID, 10),
			theme.Truncate(s.Name, 20),
			strconv.Itoa(len(s.Courses)),
		})
	}
	return out
}

func tag(studentID, courseID int64) string {
	return fmt.Sprintf("%s%d:%d", tagPrefix, studentID, courseID)
}

func parseTag(t string) (int64, int64, bool) {
	rest, ok := strings.CutPrefix(t, tagPrefix)
	if !ok {
		return 0, 0, false
	}
	a, b, ok := strings.Cut(rest, ":")
	if !ok {
		return 0, 0, false
	}
	sid, err1 := strconv.ParseInt(a, 10, 64)
	cid, err2 := strconv.ParseInt(b, 10, 64)
	return sid, cid, err1 == nil && err2 == nil
}

func (m *Model) loadStudents() tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		s, err := api.FetchStudents(ctx)
		return StudentsMsg{Students: s, Err: err}
	}
}

func (m *Model) loadCourses() tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		p, err := api.FetchCourses(ctx, nil)
		if err != nil {
			return CoursesMsg{Err: err}
		}
		return CoursesMsg{Courses: p.Content}
	}
}

func (m *Model) loadRoster(courseID int64) tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		p, err := api.GetCourseStudents(ctx, courseID, nil)
		if err != nil {
			return RosterMsg{CourseID: courseID, Err: err}
		}
		return RosterMsg{CourseID: courseID, Students: p.Content}
	}
}

func (m *Model) change(studentID, courseID int64, enroll bool) tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		var err error
		if enroll {
			err = api.EnrollStudentToCourse(ctx, studentID, courseID)
		} else {
			err = api.RemoveStudentFromCourse(ctx, studentID, courseID)
		}
		return ChangedMsg{StudentID: studentID, CourseID: courseID, Enrolled: enroll, Err: err}
	}
}
