package mockserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// eventWriter writes text/event-stream frames and flushes after each one.
type eventWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	nextID  int
}

func newEventWriter(w http.ResponseWriter) (*eventWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &eventWriter{w: w, flusher: flusher}, true
}

// send writes one named event with v encoded as JSON.
func (e *eventWriter) send(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return e.sendRaw(event, string(data))
}

func (e *eventWriter) sendRaw(event, data string) error {
	e.nextID++
	if _, err := fmt.Fprintf(e.w, "id: %d\nevent: %s\ndata: %s\n\n", e.nextID, event, data); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}

type progressPayload struct {
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Message   string `json:"message"`
}

// handleInitStream generates data while streaming start, progress,
// heartbeat and complete events. Invalid parameters are reported as an error
// event, since the stream has already been accepted.
func (s *Server) handleInitStream(w http.ResponseWriter, r *http.Request) {
	ew, ok := newEventWriter(w)
	if !ok {
		return
	}
	ctx := r.Context()

	opts, err := initOptions(r)
	if err != nil {
		s.send(ew, "error", map[string]any{"success": false, "message": err.Error()})
		return
	}

	total := opts.TeacherCount + opts.CourseCount + opts.StudentCount
	if !s.send(ew, "start", map[string]any{
		"message": fmt.Sprintf("generating %d records", total),
		"total":   total,
	}) {
		return
	}
	s.logger.Info("data init stream started", "total", total)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	progress := make(chan progressPayload)
	genErr := make(chan error, 1)
	go func() {
		defer close(progress)
		genErr <- s.store.Generate(ctx, opts, s.opts.Tick, func(processed, total int, message string) error {
			select {
			case progress <- progressPayload{Processed: processed, Total: total, Message: message}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	heartbeat := time.NewTicker(s.opts.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("data init stream cancelled by client")
			return
		case <-heartbeat.C:
			if err := ew.sendRaw("heartbeat", strconv.FormatInt(time.Now().Unix(), 10)); err != nil {
				return
			}
		case p, ok := <-progress:
			if ok {
				if err := ew.send("progress", p); err != nil {
					return
				}
				continue
			}
			if err := <-genErr; err != nil {
				s.send(ew, "error", map[string]any{"success": false, "message": err.Error()})
				return
			}
			if !s.send(ew, "complete", map[string]any{
				"success": true,
				"message": fmt.Sprintf("generated %d records", total),
				"info":    s.store.Info(),
			}) {
				return
			}
			s.logger.Info("data init stream complete", "total", total)
			return
		}
	}
}

// handleTestSSE sends three test events and a complete event.
func (s *Server) handleTestSSE(w http.ResponseWriter, r *http.Request) {
	ew, ok := newEventWriter(w)
	if !ok {
		return
	}
	for i := 1; i <= 3; i++ {
		if err := ew.send("test", map[string]any{"count": i, "message": fmt.Sprintf("test event %d", i)}); err != nil {
			return
		}
	}
	s.send(ew, "complete", map[string]any{"success": true, "message": "test complete"})
}

// send writes one event and reports whether it went out. A failed write
// means the client has gone away.
func (s *Server) send(ew *eventWriter, event string, v any) bool {
	if err := ew.send(event, v); err != nil {
		s.logger.Debug("stream write failed", "event", event, "error", err)
		return false
	}
	return true
}
