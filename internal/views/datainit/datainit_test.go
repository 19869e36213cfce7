package datainit

import (
	"context"
	"strings"
	"testing"

	"github.com/Leo890728/course-web/internal/client"
	"github.com/Leo890728/course-web/internal/views"
	"github.com/Leo890728/course-web/internal/views/viewtest"
	tea "github.com/charmbracelet/bubbletea"
)

// drain reads the open stream to its end, delivering every event to m.
func drain(t *testing.T, m *Model) []client.Event {
	t.Helper()
	var events []client.Event
	for i := 0; m.Running(); i++ {
		if i > 1000 {
			t.Fatal("stream did not end")
		}
		msg := waitForEvent(m.stream)()
		if ev, ok := msg.(EventMsg); ok {
			events = append(events, ev.Event)
		}
		m.Update(msg)
	}
	return events
}

func TestStreamedInitialization(t *testing.T) {
	api, store := viewtest.NewClient(t)
	m := New(context.Background(), api)
	m.SetSize(100, 30)

	m.Update(viewtest.Keys("s"))
	if !m.Capturing() {
		t.Fatal("s should open the count form")
	}
	m.editor.Open(tagStream, "", map[string]string{"students": "3", "teachers": "1", "courses": "2"})
	_, cmd := m.Update(viewtest.Key(tea.KeyEnter))
	submitted := viewtest.Run(cmd)
	m.Update(submitted[0])
	if !m.Running() {
		t.Fatal("submitting the form should open the stream")
	}

	events := drain(t, m)
	if len(events) != 7 {
		t.Fatalf("expected 6 progress events and a complete, got %d", len(events))
	}
	if last := events[len(events)-1]; last.Kind != client.EventComplete {
		t.Fatalf("last event = %v", last.Kind)
	}
	if m.last.Processed != 6 || m.last.Total != 6 {
		t.Errorf("last progress = %+v", m.last)
	}
	if m.result == nil || m.failed || m.target != 1 {
		t.Errorf("result = %+v failed=%v target=%v", m.result, m.failed, m.target)
	}
	if info := store.Info(); info.Students != 3 || info.Courses != 2 {
		t.Errorf("store info = %+v", info)
	}
	if !strings.Contains(m.View(), "generated 6 records") {
		t.Errorf("view should show the completion message:\n%s", m.View())
	}
}

func TestCancelClosesStream(t *testing.T) {
	api, _ := viewtest.NewClient(t)
	m := New(context.Background(), api)
	m.start(client.InitOptions{StudentCount: 5000, TeacherCount: 1, CourseCount: 1})
	s := m.stream

	msg := waitForEvent(s)()
	m.Update(msg)

	_, cmd := m.Update(viewtest.Key(tea.KeyEsc))
	if m.Running() {
		t.Fatal("esc should close the stream")
	}
	if st, ok := viewtest.Find[views.StatusMsg](viewtest.Run(cmd)); !ok || st.Level != views.LevelInfo {
		t.Errorf("status = %+v", st)
	}
	select {
	case <-s.Done():
	default:
		t.Error("stream goroutine still running after Close")
	}

	// A read still in flight sees the closed channel and is ignored.
	if _, cmd := m.Update(waitForEvent(s)()); cmd != nil {
		t.Error("stale end of stream should be ignored")
	}
}

func TestKeysBlockedWhileRunning(t *testing.T) {
	api, _ := viewtest.NewClient(t)
	m := New(context.Background(), api)
	m.start(client.InitOptions{StudentCount: 5000, TeacherCount: 1, CourseCount: 1})
	defer m.Close()

	_, cmd := m.Update(viewtest.Keys("c"))
	if m.confirm.Active() {
		t.Error("clear must not be offered while a stream runs")
	}
	if st, ok := viewtest.Find[views.StatusMsg](viewtest.Run(cmd)); !ok || !strings.Contains(st.Text, "Wait") {
		t.Errorf("status = %+v", st)
	}
}

func TestServerErrorEvent(t *testing.T) {
	m := New(context.Background(), nil)
	cmd := m.handleEvent(client.Event{Kind: client.EventError, Result: client.Result{Message: "disk full"}})
	if !m.failed || m.result.Message != "disk full" {
		t.Fatalf("result = %+v failed=%v", m.result, m.failed)
	}
	st, _ := viewtest.Find[views.StatusMsg](viewtest.Run(cmd))
	if st.Level != views.LevelError || st.Text != "disk full" {
		t.Errorf("status = %+v", st)
	}

	cmd = m.handleEvent(client.Event{Kind: client.EventError})
	st, _ = viewtest.Find[views.StatusMsg](viewtest.Run(cmd))
	if st.Text != client.MsgServerError {
		t.Errorf("empty error message should fall back, got %q", st.Text)
	}
}

func TestSpringSettles(t *testing.T) {
	m := New(context.Background(), nil)
	m.target = 0.5
	m.animating = true
	for i := 0; ; i++ {
		if i > 600 {
			t.Fatalf("spring did not settle: pos=%v vel=%v", m.pos, m.vel)
		}
		if _, cmd := m.Update(frameMsg{}); cmd == nil {
			break
		}
	}
	if m.pos != 0.5 || m.animating {
		t.Errorf("pos=%v animating=%v", m.pos, m.animating)
	}
}

func TestClearAndInfo(t *testing.T) {
	api, store := viewtest.NewClient(t)
	if _, err := store.CreateStudent(client.Student{Name: "Ada Lovelace", Email: "ada@example.com"}); err != nil {
		t.Fatal(err)
	}
	m := New(context.Background(), api)
	for _, msg := range viewtest.Run(m.Init()) {
		m.Update(msg)
	}
	if m.info == nil || m.info.Students != 1 {
		t.Fatalf("info = %+v", m.info)
	}

	m.Update(viewtest.Keys("c"))
	_, cmd := m.Update(viewtest.Keys("y"))
	_, cmd = m.Update(viewtest.Run(cmd)[0])
	cleared, ok := viewtest.Find[ClearedMsg](viewtest.Run(cmd))
	if !ok || cleared.Err != nil {
		t.Fatalf("cleared = %+v", cleared)
	}
	m.Update(cleared)
	if store.Info().Students != 0 {
		t.Error("store should be empty")
	}
}

func TestSyncInitialization(t *testing.T) {
	api, _ := viewtest.NewClient(t)
	m := New(context.Background(), api)
	m.Update(viewtest.Keys("y"))
	m.editor.Open(tagSync, "", map[string]string{"students": "2", "teachers": "1", "courses": "1"})

	_, cmd := m.Update(viewtest.Key(tea.KeyEnter))
	_, cmd = m.Update(viewtest.Run(cmd)[0])
	res, ok := viewtest.Find[SyncMsg](viewtest.Run(cmd))
	if !ok || res.Err != nil {
		t.Fatalf("sync = %+v", res)
	}
	_, cmd = m.Update(res)
	if m.busy != "" || m.info == nil || m.info.Students != 2 {
		t.Errorf("busy=%q info=%+v", m.busy, m.info)
	}
	if st, _ := viewtest.Find[views.StatusMsg](viewtest.Run(cmd)); st.Level != views.LevelSuccess {
		t.Errorf("status = %+v", st)
	}
}

func TestCountRules(t *testing.T) {
	v := Validator()
	if v.ValidateForm(map[string]any{"students": "lots", "teachers": 2000, "courses": 0}) {
		t.Fatal("expected failures")
	}
	if got := v.Error("students"); got != "Students must be a whole number" {
		t.Errorf("students = %q", got)
	}
	if got := v.Error("teachers"); got != "Teachers must not be greater than 1000" {
		t.Errorf("teachers = %q", got)
	}
	if got := v.Error("courses"); got != "" {
		t.Errorf("empty count should pass, got %q", got)
	}
}
