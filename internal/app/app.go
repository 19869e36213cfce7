// Package app is the root Bubble Tea model: it routes between screens,
// owns the status bar and the debug overlay, and fans messages out to the
// screens.
package app

import (
	"context"

	"github.com/Leo890728/course-web/internal/client"
	"github.com/Leo890728/course-web/internal/theme"
	"github.com/Leo890728/course-web/internal/views"
	"github.com/Leo890728/course-web/internal/views/courses"
	"github.com/Leo890728/course-web/internal/views/datainit"
	"github.com/Leo890728/course-web/internal/views/debug"
	"github.com/Leo890728/course-web/internal/views/enrollment"
	"github.com/Leo890728/course-web/internal/views/statistics"
	"github.com/Leo890728/course-web/internal/views/status"
	"github.com/Leo890728/course-web/internal/views/students"
	"github.com/Leo890728/course-web/internal/views/teachers"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDebug
)

// statusHeight is the number of lines taken by the status bar and help.
const statusHeight = 5

// Options tunes the screens.
type Options struct {
	PageSize     int
	PopularLimit int
	// StartPath is resolved with Resolve; empty means the default route.
	StartPath string
}

// Model is the root Bubble Tea model.
type Model struct {
	api    *client.Client
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc

	keys   KeyMap
	width  int
	height int

	route   Route
	screens map[string]views.Screen
	overlay Overlay

	statusBar status.Model
	debug     debug.Model
}

// New creates the root model.
func New(api *client.Client, opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())

	tabs := make([]status.Tab, 0, len(Routes))
	for _, r := range Screens() {
		tabs = append(tabs, status.Tab{Key: r.Key, Path: r.Path, Title: r.Title})
	}

	start := opts.StartPath
	if start == "" {
		start = "/"
	}
	route := Resolve(start)

	bar := status.New(tabs, api.BaseURL())
	bar.Active = route.Path

	return Model{
		api:       api,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		keys:      DefaultKeyMap(),
		route:     route,
		screens:   make(map[string]views.Screen),
		statusBar: bar,
		debug:     debug.New(),
	}
}

// Init creates the start screen and loads it.
func (m Model) Init() tea.Cmd {
	s, _ := m.screen(m.route.Path)
	return s.Init()
}

// Route returns the active route.
func (m Model) Route() Route {
	return m.route
}

// Close releases screen resources such as open streams. Safe to call more
// than once.
func (m Model) Close() {
	for _, s := range m.screens {
		if c, ok := s.(views.Closer); ok {
			c.Close()
		}
	}
	m.cancel()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		for _, s := range m.screens {
			s.SetSize(m.width, m.bodyHeight())
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case views.StatusMsg:
		m.statusBar.SetMessage(msg)
		kind := "info"
		if msg.Level == views.LevelError {
			kind = "err"
		}
		m.debug.Add(kind, msg.Text)
		return m, nil

	case debug.RecordMsg:
		m.debug.AddRecord(msg)
		return m, nil
	}

	// Results arrive for whichever screen started them, which may no
	// longer be the active one.
	var cmds []tea.Cmd
	for path, s := range m.screens {
		next, cmd := s.Update(msg)
		m.screens[path] = next
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m.quit()
	}

	if m.overlay == OverlayDebug {
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Debug):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.ScrollUp):
			m.debug.ScrollUp(1)
		case key.Matches(msg, m.keys.ScrollDown):
			m.debug.ScrollDown(1)
		}
		return m, nil
	}

	current, _ := m.screen(m.route.Path)
	if current.Capturing() {
		return m.forward(current, msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
		return m, nil

	case key.Matches(msg, m.keys.Route):
		r, _ := ByKey(msg.String())
		return m, m.navigate(r.Path)

	case key.Matches(msg, m.keys.NextTab):
		return m, m.navigate(m.cycle(1))

	case key.Matches(msg, m.keys.PrevTab):
		return m, m.navigate(m.cycle(-1))
	}

	return m.forward(current, msg)
}

func (m Model) forward(s views.Screen, msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := s.Update(msg)
	m.screens[m.route.Path] = next
	return m, cmd
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.Close()
	return m, tea.Quit
}

// navigate switches to path. A screen is created and loaded on its first
// visit and keeps its state afterwards.
func (m *Model) navigate(path string) tea.Cmd {
	r := Resolve(path)
	m.route = r
	m.statusBar.Active = r.Path
	m.debug.Add("nav", r.Path)

	s, created := m.screen(r.Path)
	if created {
		return s.Init()
	}
	return nil
}

// cycle returns the path delta tabs away from the active one.
func (m Model) cycle(delta int) string {
	screens := Screens()
	for i, r := range screens {
		if r.Path == m.route.Path {
			return screens[(i+delta+len(screens))%len(screens)].Path
		}
	}
	return DefaultPath
}

// screen returns the screen for path, creating it if needed.
func (m Model) screen(path string) (views.Screen, bool) {
	if s, ok := m.screens[path]; ok {
		return s, false
	}
	s := m.newScreen(path)
	if m.width > 0 {
		s.SetSize(m.width, m.bodyHeight())
	}
	m.screens[path] = s
	return s, true
}

func (m Model) newScreen(path string) views.Screen {
	switch path {
	case "/teachers":
		return teachers.New(m.ctx, m.api, m.opts.PageSize)
	case "/courses":
		return courses.New(m.ctx, m.api, m.opts.PageSize)
	case "/enrollment":
		return enrollment.New(m.ctx, m.api)
	case "/data":
		return datainit.New(m.ctx, m.api)
	case "/statistics":
		return statistics.New(m.ctx, m.api, m.opts.PopularLimit)
	default:
		return students.New(m.ctx, m.api)
	}
}

func (m Model) bodyHeight() int {
	return max(m.height-statusHeight, 5)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var body string
	if m.overlay == OverlayDebug {
		body = m.debug.View(m.width, m.bodyHeight())
	} else if s, ok := m.screens[m.route.Path]; ok {
		body = s.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusBar.View(),
		body,
		theme.StyleDimmed.Render("  1-6:screens  tab:next  `:debug  q:quit"),
	)
}
