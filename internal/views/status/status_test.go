package status

import (
	"strings"
	"testing"

	"github.com/Leo890728/course-web/internal/views"
)

func TestViewShowsTabsAndMessage(t *testing.T) {
	m := New([]Tab{
		{Key: "1", Path: "/students", Title: "Students"},
		{Key: "2", Path: "/teachers", Title: "Teachers"},
	}, "http://127.0.0.1:8080/api")
	m.Width = 120
	m.Active = "/teachers"

	v := m.View()
	for _, want := range []string{"1 Students", "2 Teachers", "127.0.0.1:8080"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}

	m.SetMessage(views.StatusMsg{Text: "student 4: not found", Level: views.LevelError})
	if m.Message() != "student 4: not found" {
		t.Errorf("message = %q", m.Message())
	}
	if !strings.Contains(m.View(), "student 4: not found") {
		t.Error("view should show the message")
	}
}
