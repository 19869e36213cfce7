package debug

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// RecordMsg delivers a log record to the Bubble Tea program.
type RecordMsg struct {
	Time    time.Time
	Level   slog.Level
	Summary string
}

// Sender is the part of *tea.Program the handler needs.
type Sender interface {
	Send(tea.Msg)
}

// LogHandler is a slog.Handler that forwards records at or above its level
// to a Bubble Tea program as RecordMsg. Records are dropped until
// SetProgram is called. Handlers derived with WithAttrs or WithGroup share
// the program pointer.
type LogHandler struct {
	level   slog.Leveler
	program *atomic.Pointer[Sender]
	attrs   []slog.Attr
	group   string
}

// NewLogHandler creates a handler delivering records at or above level.
func NewLogHandler(level slog.Leveler) *LogHandler {
	return &LogHandler{level: level, program: &atomic.Pointer[Sender]{}}
}

// SetProgram sets the receiver of log records. Safe from any goroutine.
func (h *LogHandler) SetProgram(p Sender) {
	h.program.Store(&p)
}

func (h *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *LogHandler) Handle(_ context.Context, r slog.Record) error {
	p := h.program.Load()
	if p == nil {
		return nil
	}

	var b strings.Builder
	b.WriteString(r.Message)
	var parts []string
	for _, a := range h.attrs {
		parts = append(parts, a.Key+"="+a.Value.String())
	}
	r.Attrs(func(a slog.Attr) bool {
		parts = append(parts, h.key(a.Key)+"="+a.Value.String())
		return true
	})
	if len(parts) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(")")
	}

	(*p).Send(RecordMsg{Time: r.Time, Level: r.Level, Summary: b.String()})
	return nil
}

func (h *LogHandler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		c.attrs = append(c.attrs, slog.Attr{Key: h.key(a.Key), Value: a.Value})
	}
	return &c
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.group = h.key(name)
	return &c
}
