// Package datainit is the data management screen. It runs the streamed
// data initialization with a live progress bar, and offers the synchronous
// variant, data info, clearing and the stream probe.
package datainit

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Leo890728/course-web/internal/client"
	"github.com/Leo890728/course-web/internal/form"
	"github.com/Leo890728/course-web/internal/theme"
	"github.com/Leo890728/course-web/internal/views"
	"github.com/Leo890728/course-web/internal/views/confirm"
	"github.com/Leo890728/course-web/internal/views/editor"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
)

const (
	tagStream = "datainit:stream"
	tagSync   = "datainit:sync"
	tagClear  = "datainit:clear"

	fps = 60
)

// EventMsg is one event read from the stream with the given id.
type EventMsg struct {
	StreamID string
	Event    client.Event
}

// EndedMsg is sent when a stream's event channel is closed.
type EndedMsg struct {
	StreamID string
}

type InfoMsg struct {
	Info *client.DataInfo
	Err  error
}

type SyncMsg struct {
	Result *client.DataInitResult
	Err    error
}

type ClearedMsg struct {
	Err error
}

// ProbeMsg reports the result of the stream probe.
type ProbeMsg struct {
	Err error
}

type frameMsg struct{}

type KeyMap struct {
	Stream key.Binding
	Sync   key.Binding
	Info   key.Binding
	Clear  key.Binding
	Probe  key.Binding
	Cancel key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Stream: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "initialize")),
		Sync:   key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "initialize (no progress)")),
		Info:   key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "info")),
		Clear:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
		Probe:  key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "test stream")),
		Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}

// Model is the data screen.
type Model struct {
	api  *client.Client
	ctx  context.Context
	keys KeyMap

	editor  editor.Model
	editing bool
	confirm confirm.Model

	stream  *client.Stream
	last    client.Progress
	result  *client.Result
	failed  bool
	busy    string
	info    *client.DataInfo
	spinner spinner.Model

	bar       progress.Model
	spring    harmonica.Spring
	pos, vel  float64
	target    float64
	animating bool
}

// Validator returns the rules for the record counts. Empty counts are left
// to the server defaults.
func Validator() *form.Validator {
	count := func(name, label string, limit float64) form.Field {
		return form.Field{Name: name, Label: label, Rules: []form.Rule{
			{Pattern: editor.WholeNumber, Message: label + " must be a whole number"},
			{Max: limit},
		}}
	}
	return form.New(
		count("students", "Students", 10000),
		count("teachers", "Teachers", 1000),
		count("courses", "Courses", 1000),
	)
}

func New(ctx context.Context, api *client.Client) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorData)

	return &Model{
		api:  api,
		ctx:  ctx,
		keys: DefaultKeyMap(),
		editor: editor.New("Initialize data", []editor.Input{
			{Name: "students", Label: "Students", Placeholder: "server default", Numeric: true, CharLimit: 5},
			{Name: "teachers", Label: "Teachers", Placeholder: "server default", Numeric: true, CharLimit: 4},
			{Name: "courses", Label: "Courses", Placeholder: "server default", Numeric: true, CharLimit: 4},
		}, Validator()),
		confirm: confirm.New(),
		spinner: sp,
		bar: progress.New(
			progress.WithGradient(string(theme.ColorProgressStart), string(theme.ColorProgressEnd)),
			progress.WithWidth(60),
		),
		spring: harmonica.NewSpring(harmonica.FPS(fps), 6.0, 1.0),
	}
}

func (m *Model) Init() tea.Cmd {
	return m.loadInfo()
}

func (m *Model) SetSize(width, _ int) {
	m.bar.Width = max(min(width-10, 80), 20)
	m.editor.SetWidth(min(width, 80))
}

func (m *Model) Capturing() bool {
	return m.editing || m.confirm.Active()
}

// Running reports whether a progress stream is open.
func (m *Model) Running() bool {
	return m.stream != nil
}

// Close closes the open stream, if any.
func (m *Model) Close() {
	if m.stream != nil {
		m.stream.Close()
		m.stream = nil
	}
}

func (m *Model) Update(msg tea.Msg) (views.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case EventMsg:
		if m.stream == nil || msg.StreamID != m.stream.ID() {
			return m, nil
		}
		return m, tea.Batch(m.handleEvent(msg.Event), waitForEvent(m.stream))

	case EndedMsg:
		if m.stream != nil && msg.StreamID == m.stream.ID() {
			m.stream = nil
			return m, m.loadInfo()
		}
		return m, nil

	case frameMsg:
		m.pos, m.vel = m.spring.Update(m.pos, m.vel, m.target)
		if math.Abs(m.pos-m.target) < 0.001 && math.Abs(m.vel) < 0.001 {
			m.pos, m.vel = m.target, 0
			m.animating = false
			return m, nil
		}
		return m, frame()

	case spinner.TickMsg:
		if m.stream == nil && m.busy == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case InfoMsg:
		if msg.Err != nil {
			return m, views.NotifyError(msg.Err, "failed to load data info")
		}
		m.info = msg.Info
		return m, nil

	case SyncMsg:
		m.busy = ""
		if msg.Err != nil {
			return m, views.NotifyError(msg.Err, "data initialization failed")
		}
		m.info = &msg.Result.Info
		m.result = &client.Result{Success: msg.Result.Success, Message: msg.Result.Message}
		m.failed = !msg.Result.Success
		if m.failed {
			return m, views.Notify(views.LevelError, resultText(msg.Result.Message, "data initialization failed"))
		}
		return m, views.Notify(views.LevelSuccess, resultText(msg.Result.Message, "Data initialized"))

	case ClearedMsg:
		m.busy = ""
		if msg.Err != nil {
			return m, views.NotifyError(msg.Err, "failed to clear data")
		}
		m.result = nil
		m.target = 0
		return m, tea.Batch(views.Notify(views.LevelSuccess, "All data cleared"), m.loadInfo(), m.animate())

	case ProbeMsg:
		m.busy = ""
		if msg.Err != nil {
			return m, views.NotifyError(msg.Err, "stream test failed")
		}
		return m, views.Notify(views.LevelSuccess, "Stream test passed")

	case editor.SubmittedMsg:
		switch msg.Tag {
		case tagStream:
			m.editing = false
			return m, m.start(optionsFromValues(msg.Values))
		case tagSync:
			m.editing = false
			m.busy = "Initializing data..."
			return m, tea.Batch(m.syncInit(optionsFromValues(msg.Values)), m.spinner.Tick)
		}
		return m, nil

	case editor.CancelledMsg:
		if msg.Tag == tagStream || msg.Tag == tagSync {
			m.editing = false
		}
		return m, nil

	case confirm.ResultMsg:
		if msg.Tag != tagClear || !msg.Confirmed {
			return m, nil
		}
		m.busy = "Clearing data..."
		return m, tea.Batch(m.clear(), m.spinner.Tick)

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

func (m *Model) handleEvent(ev client.Event) tea.Cmd {
	switch ev.Kind {
	case client.EventProgress:
		m.last = ev.Progress
		m.target = ev.Progress.Percent()
		return m.animate()

	case client.EventComplete:
		res := ev.Result
		m.result, m.failed = &res, false
		m.target = 1
		return tea.Batch(m.animate(), views.Notify(views.LevelSuccess, resultText(res.Message, "Data initialized")))

	case client.EventError:
		res := ev.Result
		m.result, m.failed = &res, true
		return views.Notify(views.LevelError, resultText(res.Message, client.MsgServerError))
	}
	return nil
}

// animate starts the spring animation unless it is already running.
func (m *Model) animate() tea.Cmd {
	if m.animating {
		return nil
	}
	m.animating = true
	return frame()
}

func frame() tea.Cmd {
	return tea.Tick(time.Second/fps, func(time.Time) tea.Msg { return frameMsg{} })
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

	case key.Matches(msg, m.keys.Cancel):
		if m.stream != nil {
			m.Close()
			return m, views.Notify(views.LevelInfo, "Initialization stream closed")
		}
		return m, nil
	}

	if m.stream != nil || m.busy != "" {
		return m, views.Notify(views.LevelInfo, "Wait for the current operation to finish")
	}

	switch {
	case key.Matches(msg, m.keys.Stream):
		m.editor.Open(tagStream, "Initialize data with progress", nil)
		m.editing = true

	case key.Matches(msg, m.keys.Sync):
		m.editor.Open(tagSync, "Initialize data", nil)
		m.editing = true

	case key.Matches(msg, m.keys.Info):
		return m, m.loadInfo()

	case key.Matches(msg, m.keys.Clear):
		m.confirm.Ask(tagClear, "Clear all data?", "Every student, teacher, course and enrollment will be deleted.")

	case key.Matches(msg, m.keys.Probe):
		m.busy = "Testing stream..."
		return m, tea.Batch(m.probe(), m.spinner.Tick)
	}
	return m, nil
}

// start opens the initialization stream and begins reading from it.
func (m *Model) start(opts client.InitOptions) tea.Cmd {
	m.Close()
	m.last = client.Progress{}
	m.result, m.failed = nil, false
	m.pos, m.vel = 0, 0
	m.target = 0
	m.stream = m.api.InitializeDataWithProgress(m.ctx, opts)
	return tea.Batch(waitForEvent(m.stream), m.spinner.Tick)
}

// waitForEvent reads one event. The model issues it again after every
// event until the channel is closed.
func waitForEvent(s *client.Stream) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-s.Events()
		if !ok {
			return EndedMsg{StreamID: s.ID()}
		}
		return EventMsg{StreamID: s.ID(), Event: ev}
	}
}

func (m *Model) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.SectionColor("/data")).Render("Data")
	parts := []string{title, ""}

	if m.editing {
		parts = append(parts, m.editor.View())
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	}

	parts = append(parts, m.streamView(), "", m.infoView())

	footer := theme.Help("s", "initialize", "y", "no progress", "i", "info", "c", "clear", "t", "test stream")
	if m.stream != nil {
		footer = theme.Help("esc", "cancel")
	}
	if m.confirm.Active() {
		footer = m.confirm.View()
	}
	parts = append(parts, "", footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) streamView() string {
	var lines []string

	if m.stream != nil {
		state := m.stream.State()
		label := lipgloss.NewStyle().Foreground(theme.StreamStateColor(state.String())).Render(state.String())
		line := theme.StyleLabel.Render("Stream") + label
		if state == client.StateConnecting {
			line += " " + m.spinner.View()
		}
		lines = append(lines, line)
	} else if m.busy != "" {
		lines = append(lines, m.spinner.View()+" "+m.busy)
	}

	lines = append(lines, m.bar.ViewAs(m.pos))
	if m.last.Total > 0 {
		lines = append(lines, theme.StyleDimmed.Render(fmt.Sprintf("%d / %d  %s", m.last.Processed, m.last.Total, m.last.Message)))
	}

	if m.result != nil {
		style := theme.StyleSuccess
		fallback := "Done"
		if m.failed {
			style = theme.StyleError
			fallback = client.MsgServerError
		}
		lines = append(lines, style.Render(resultText(m.result.Message, fallback)))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) infoView() string {
	if m.info == nil {
		return theme.StyleDimmed.Render("No data info loaded. Press i.")
	}
	row := func(label string, n int) string {
		return theme.StyleLabel.Render(label) + fmt.Sprintf("%d", n)
	}
	return strings.Join([]string{
		row("Students", m.info.Students),
		row("Teachers", m.info.Teachers),
		row("Courses", m.info.Courses),
		row("Enrollments", m.info.Enrollments),
	}, "\n")
}

func resultText(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}

func optionsFromValues(v form.Values) client.InitOptions {
	n := func(k string) int {
		i, _ := v[k].(int)
		return i
	}
	return client.InitOptions{StudentCount: n("students"), TeacherCount: n("teachers"), CourseCount: n("courses")}
}

func (m *Model) loadInfo() tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		info, err := api.GetDataInfo(ctx)
		return InfoMsg{Info: info, Err: err}
	}
}

func (m *Model) syncInit(opts client.InitOptions) tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		res, err := api.InitializeData(ctx, opts)
		return SyncMsg{Result: res, Err: err}
	}
}

func (m *Model) clear() tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		return ClearedMsg{Err: api.ClearAllData(ctx)}
	}
}

func (m *Model) probe() tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		return ProbeMsg{Err: api.TestSSE(ctx)}
	}
}
