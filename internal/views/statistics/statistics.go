// Package statistics shows the most popular courses and the record totals,
// rendered as markdown.
package statistics

import (
	"context"
	"fmt"
	"strings"

	"github.com/Leo890728/course-web/internal/client"
	"github.com/Leo890728/course-web/internal/theme"
	"github.com/Leo890728/course-web/internal/views"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

const maxLimit = 50

// LoadedMsg carries both statistics requests.
type LoadedMsg struct {
	Popular []client.PopularCourse
	Info    *client.DataInfo
	Err     error
}

type KeyMap struct {
	Refresh key.Binding
	More    key.Binding
	Fewer   key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		More:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "more")),
		Fewer:   key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "fewer")),
	}
}

type Model struct {
	api  *client.Client
	ctx  context.Context
	keys KeyMap

	limit   int
	popular []client.PopularCourse
	info    *client.DataInfo
	loading bool

	style    string
	width    int
	rendered string
}

// New creates the screen listing up to limit courses.
func New(ctx context.Context, api *client.Client, limit int) *Model {
	if limit <= 0 {
		limit = client.DefaultPopularLimit
	}
	return &Model{
		api:     api,
		ctx:     ctx,
		keys:    DefaultKeyMap(),
		limit:   limit,
		style:   "dark",
		width:   80,
		loading: true,
	}
}

func (m *Model) Init() tea.Cmd {
	m.loading = true
	return m.load()
}

func (m *Model) SetSize(width, _ int) {
	if width != m.width {
		m.width = width
		m.render()
	}
}

func (m *Model) Capturing() bool { return false }

func (m *Model) Update(msg tea.Msg) (views.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.loading = false
		if msg.Err != nil {
			return m, views.NotifyError(msg.Err, "failed to load statistics")
		}
		m.popular, m.info = msg.Popular, msg.Info
		m.render()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Refresh):
			return m, m.Init()
		case key.Matches(msg, m.keys.More):
			if m.limit < maxLimit {
				m.limit += 5
				return m, m.Init()
			}
		case key.Matches(msg, m.keys.Fewer):
			if m.limit > 5 {
				m.limit -= 5
				return m, m.Init()
			}
		}
	}
	return m, nil
}

func (m *Model) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.SectionColor("/statistics")).
		Render(fmt.Sprintf("Statistics (top %d)", m.limit))

	body := m.rendered
	if body == "" && m.loading {
		body = theme.StyleDimmed.Render("  Loading statistics...")
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, body,
		theme.Help("r", "refresh", "+/-", "limit"))
}

// Markdown returns the statistics as a markdown document.
func (m *Model) Markdown() string {
	var b strings.Builder
	b.WriteString("## Popular courses\n\n")
	if len(m.popular) == 0 {
		b.WriteString("_No enrollments yet._\n")
	} else {
		b.WriteString("| # | Course | Teacher | Students |\n|---|---|---|---:|\n")
		for i, c := range m.popular {
			teacher := c.TeacherName
			if teacher == "" {
				teacher = "-"
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %d |\n", i+1, escape(c.Name), escape(teacher), c.StudentCount)
		}
	}

	if m.info != nil {
		b.WriteString("\n## Totals\n\n| Students | Teachers | Courses | Enrollments |\n|---:|---:|---:|---:|\n")
		fmt.Fprintf(&b, "| %d | %d | %d | %d |\n", m.info.Students, m.info.Teachers, m.info.Courses, m.info.Enrollments)
	}
	return b.String()
}

// render refreshes the cached output. Rendering falls back to the raw
// markdown if glamour fails.
func (m *Model) render() {
	if m.popular == nil && m.info == nil {
		return
	}
	md := m.Markdown()
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.style),
		glamour.WithWordWrap(max(m.width-4, 40)),
	)
	if err != nil {
		m.rendered = md
		return
	}
	out, err := r.Render(md)
	if err != nil {
		m.rendered = md
		return
	}
	m.rendered = strings.TrimRight(out, "\n")
}

func escape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func (m *Model) load() tea.Cmd {
	api, ctx, limit := m.api, m.ctx, m.limit
	return func() tea.Msg {
		popular, err := api.GetPopularCourses(ctx, limit)
		if err != nil {
			return LoadedMsg{Err: err}
		}
		info, err := api.GetDataInfo(ctx)
		if err != nil {
			return LoadedMsg{Err: err}
		}
		return LoadedMsg{Popular: popular, Info: info}
	}
}
