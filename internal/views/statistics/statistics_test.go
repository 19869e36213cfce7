package statistics

import (
	"context"
	"strings"
	"testing"

	"github.com/Leo890728/course-web/internal/client"
	"github.com/Leo890728/course-web/internal/views/viewtest"
)

func TestLoadAndRender(t *testing.T) {
	api, store := viewtest.NewClient(t)
	teacher, err := store.CreateTeacher(client.Teacher{Name: "Noether", Email: "emmy@school.test"})
	if err != nil {
		t.Fatal(err)
	}
	algebra, _ := store.CreateCourse(client.Course{Name: "Algebra", Credits: 3, Teacher: &client.TeacherRef{TeacherID: teacher.TeacherID}})
	logic, _ := store.CreateCourse(client.Course{Name: "Logic", Credits: 2})
	for _, name := range []string{"Ada", "Alan"} {
		s, err := store.CreateStudent(client.Student{Name: name, Email: strings.ToLower(name) + "@example.com"})
		if err != nil {
			t.Fatal(err)
		}
		store.Enroll(s.StudentID, algebra.CourseID)
		if name == "Ada" {
			store.Enroll(s.StudentID, logic.CourseID)
		}
	}

	m := New(context.Background(), api, 0)
	m.style = "notty"
	for _, msg := range viewtest.Run(m.Init()) {
		m.Update(msg)
	}

	if len(m.popular) != 2 || m.popular[0].Name != "Algebra" || m.popular[0].StudentCount != 2 {
		t.Fatalf("popular = %+v", m.popular)
	}
	md := m.Markdown()
	if !strings.Contains(md, "| 1 | Algebra | Noether | 2 |") {
		t.Errorf("markdown:\n%s", md)
	}
	if !strings.Contains(md, "| 2 | 1 | 2 | 3 |") {
		t.Errorf("totals missing:\n%s", md)
	}

	v := m.View()
	for _, want := range []string{"Algebra", "Logic", "Noether"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}
}

func TestLimitKeys(t *testing.T) {
	api, _ := viewtest.NewClient(t)
	m := New(context.Background(), api, 10)

	if _, cmd := m.Update(viewtest.Keys("+")); cmd == nil || m.limit != 15 {
		t.Errorf("+ should raise the limit, got %d", m.limit)
	}
	m.limit = 5
	if _, cmd := m.Update(viewtest.Keys("-")); cmd != nil || m.limit != 5 {
		t.Errorf("limit should not drop below 5, got %d", m.limit)
	}
	m.limit = maxLimit
	if _, cmd := m.Update(viewtest.Keys("+")); cmd != nil {
		t.Error("limit should not exceed the maximum")
	}
}

func TestEmptyStatistics(t *testing.T) {
	m := New(context.Background(), nil, 10)
	m.popular = []client.PopularCourse{}
	if !strings.Contains(m.Markdown(), "No enrollments yet") {
		t.Error("empty list should say so")
	}
	if !strings.Contains(m.View(), "Loading") {
		t.Error("nothing rendered yet, expected the loading line")
	}
}
