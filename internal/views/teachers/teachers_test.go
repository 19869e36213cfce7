package teachers

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/Leo890728/course-web/internal/client"
	"github.com/Leo890728/course-web/internal/mockserver"
	"github.com/Leo890728/course-web/internal/views"
	"github.com/Leo890728/course-web/internal/views/viewtest"
	tea "github.com/charmbracelet/bubbletea"
)

func feed(m *Model, cmd tea.Cmd) []tea.Msg {
	msgs := viewtest.Run(cmd)
	for _, msg := range msgs {
		m.Update(msg)
	}
	return msgs
}

func seedTeachers(t *testing.T, store *mockserver.Store, n int) []client.Teacher {
	t.Helper()
	var out []client.Teacher
	for i := range n {
		tc, err := store.CreateTeacher(client.Teacher{
			Name:       fmt.Sprintf("Teacher %02d", i),
			Email:      fmt.Sprintf("t%02d@school.test", i),
			Department: []string{"Math", "Physics"}[i%2],
		})
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, tc)
	}
	return out
}

func TestPaging(t *testing.T) {
	api, store := viewtest.NewClient(t)
	seedTeachers(t, store, 5)

	m := New(context.Background(), api, 2)
	feed(m, m.Init())
	if len(m.teachers) != 2 || m.pages != 3 || m.total != 5 {
		t.Fatalf("first page: %d teachers, %d pages, %d total", len(m.teachers), m.pages, m.total)
	}

	m.Update(viewtest.Keys("["))
	if m.page.Number != 0 {
		t.Error("should not page before the first page")
	}

	for range 2 {
		_, cmd := m.Update(viewtest.Keys("]"))
		feed(m, cmd)
	}
	if m.page.Number != 2 || len(m.teachers) != 1 || m.teachers[0].Name != "Teacher 04" {
		t.Fatalf("last page: number %d, %+v", m.page.Number, m.teachers)
	}
	if _, cmd := m.Update(viewtest.Keys("]")); cmd != nil {
		t.Error("should not page past the last page")
	}
	if !strings.Contains(m.View(), "page 3 of 3") {
		t.Errorf("view missing page indicator:\n%s", m.View())
	}
}

func TestSearch(t *testing.T) {
	api, store := viewtest.NewClient(t)
	seedTeachers(t, store, 4)

	m := New(context.Background(), api, 20)
	feed(m, m.Init())

	m.Update(viewtest.Keys("/"))
	if !m.Capturing() {
		t.Fatal("search should capture input")
	}
	m.Update(viewtest.Keys("physics"))
	_, cmd := m.Update(viewtest.Key(tea.KeyEnter))
	feed(m, cmd)

	if m.Capturing() {
		t.Error("enter should leave search mode")
	}
	if m.search != "physics" || len(m.teachers) != 2 {
		t.Fatalf("search %q gave %+v", m.search, m.teachers)
	}
	if !strings.Contains(m.View(), `matching "physics"`) {
		t.Error("view should show the search term")
	}
}

func TestTeacherCourses(t *testing.T) {
	api, store := viewtest.NewClient(t)
	teachers := seedTeachers(t, store, 1)
	if _, err := store.CreateCourse(client.Course{
		Name:    "Linear Algebra",
		Credits: 3,
		Teacher: &client.TeacherRef{TeacherID: teachers[0].TeacherID},
	}); err != nil {
		t.Fatal(err)
	}

	m := New(context.Background(), api, 20)
	feed(m, m.Init())
	_, cmd := m.Update(viewtest.Keys("c"))
	feed(m, cmd)

	if m.coursesOf != teachers[0].TeacherID || len(m.courses) != 1 {
		t.Fatalf("courses of %d: %+v", m.coursesOf, m.courses)
	}
	if !strings.Contains(m.View(), "Linear Algebra") {
		t.Errorf("view missing course:\n%s", m.View())
	}
}

func TestUpdateTeacher(t *testing.T) {
	api, store := viewtest.NewClient(t)
	teachers := seedTeachers(t, store, 1)

	m := New(context.Background(), api, 20)
	feed(m, m.Init())
	m.Update(viewtest.Keys("e"))
	if !m.editing || m.editor.Tag != tag(teachers[0].TeacherID) {
		t.Fatalf("editor tag = %q", m.editor.Tag)
	}
	m.editor.Open(m.editor.Tag, "", map[string]string{"name": "Renamed", "email": "r@school.test"})

	_, cmd := m.Update(viewtest.Key(tea.KeyEnter))
	_, cmd = m.Update(viewtest.Run(cmd)[0])
	_, cmd = m.Update(viewtest.Run(cmd)[0])
	msgs := feed(m, cmd)

	if s, ok := viewtest.Find[views.StatusMsg](msgs); !ok || !strings.Contains(s.Text, "updated") {
		t.Errorf("status = %+v", s)
	}
	got, err := store.Teacher(teachers[0].TeacherID)
	if err != nil || got.Name != "Renamed" {
		t.Errorf("store = %+v, %v", got, err)
	}
}
