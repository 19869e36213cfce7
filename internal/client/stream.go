package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ReadyState is the connection state of a stream, matching the three states
// of a browser EventSource.
type ReadyState int32

const (
	StateConnecting ReadyState = iota
	StateOpen
	StateClosed
)

func (s ReadyState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// EventKind tags an Event.
type EventKind int

const (
	// EventProgress carries a Progress payload.
	EventProgress EventKind = iota
	// EventComplete carries the operation's final Result. Terminal.
	EventComplete
	// EventError carries a failed Result. Terminal.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventComplete:
		return "complete"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one item of a stream's event sequence.
type Event struct {
	Kind     EventKind
	Progress Progress // EventProgress only
	Result   Result   // EventComplete and EventError only
}

// Terminal reports whether e ends the sequence.
func (e Event) Terminal() bool {
	return e.Kind == EventComplete || e.Kind == EventError
}

// Messages of client-raised error results.
const (
	MsgServerError     = "server error"
	MsgOpenError       = "connection error while open"
	MsgConnectionClose = "connection closed"
	MsgUnknownState    = "unknown connection state"
	jsonParseErrPrefix = "JSON parse error: "
)

// Named events of the progress protocol.
const (
	eventStart     = "start"
	eventProgress  = "progress"
	eventHeartbeat = "heartbeat"
	eventComplete  = "complete"
	eventError     = "error"
)

var (
	// ErrUnexpectedResponse is reported when the server answers a stream
	// request with a non-200 status or a non-event-stream body.
	ErrUnexpectedResponse = errors.New("sse: unexpected response")

	errStreamEnded = errors.New("sse: stream ended")
)

// Stream is one progress stream session. The zero value is not usable; see
// Client.OpenStream.
type Stream struct {
	id       string
	endpoint string
	logger   *slog.Logger
	source   *eventSource

	ctx    context.Context
	cancel context.CancelFunc

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
}

// OpenStream starts a progress stream against path with params as the query
// string and returns at once; the connection is made in the background.
// Cancelling ctx has the same effect as Close.
func (c *Client) OpenStream(ctx context.Context, path string, params url.Values) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	endpoint := c.url(path, params)

	s := &Stream{
		id:       id,
		endpoint: endpoint,
		logger:   c.logger.With("session", id, "endpoint", path),
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan Event),
		done:     make(chan struct{}),
	}
	s.source = &eventSource{
		url:    endpoint,
		client: c.stream,
		token:  c.token,
		retry:  c.retryDelay,
	}

	s.logger.Info("connecting to stream", "url", endpoint)
	go s.run()
	return s
}

// InitializeDataWithProgress opens the data initialization stream.
func (c *Client) InitializeDataWithProgress(ctx context.Context, opts InitOptions) *Stream {
	return c.OpenStream(ctx, "/data/init", opts.Values())
}

// ID returns the session id used in log records.
func (s *Stream) ID() string {
	return s.id
}

// State returns the current connection state.
func (s *Stream) State() ReadyState {
	return s.source.readyState()
}

// Events returns the event sequence. It is closed after a terminal event,
// after Close, or when the context passed to OpenStream is done.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Done is closed once the stream's goroutine has exited.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Closed reports whether Close was called or the context was cancelled.
func (s *Stream) Closed() bool {
	return s.closed.Load() || s.ctx.Err() != nil
}

// Close stops the stream and waits for its goroutine to exit. It is safe to
// call more than once; nothing is delivered after the first call returns.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
		s.source.setState(StateClosed)
		s.logger.Info("stream closed by caller")
	})
	<-s.done
}

func (s *Stream) run() {
	defer close(s.done)
	defer close(s.events)
	defer s.cancel()

	s.source.run(s.ctx, s)
	s.source.setState(StateClosed)
}

// deliver hands ev to the consumer unless the stream was closed first.
func (s *Stream) deliver(ev Event) {
	if s.Closed() {
		return
	}
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// finish marks the stream closed and delivers its terminal event.
func (s *Stream) finish(ev Event) {
	s.source.setState(StateClosed)
	if ev.Kind == EventError {
		s.logger.Warn("stream failed", "message", ev.Result.Message)
	} else {
		s.logger.Info("stream completed", "success", ev.Result.Success, "message", ev.Result.Message)
	}
	s.deliver(ev)
}

func (s *Stream) onOpen() {
	s.logger.Info("stream opened")
}

func (s *Stream) onFrame(f frame) bool {
	s.logger.Debug("stream event received", "event", f.Event, "id", f.ID, "data", f.Data)

	switch f.Event {
	case eventStart:
		var p struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(f.Data), &p); err != nil {
			s.logger.Info("stream started")
			return false
		}
		s.logger.Info("stream started", "message", p.Message)
		return false

	case eventProgress:
		p, err := decodeProgress(f.Data)
		if err != nil {
			s.logger.Error("progress payload is not JSON", "error", err, "data", f.Data)
			s.finish(parseErrorEvent(err))
			return true
		}
		s.deliver(Event{Kind: EventProgress, Progress: p})
		return s.Closed()

	case eventHeartbeat:
		s.logger.Debug("stream heartbeat", "data", f.Data)
		return false

	case eventComplete:
		r, err := decodeResult(f.Data)
		if err != nil {
			s.logger.Error("complete payload is not JSON", "error", err, "data", f.Data)
			s.finish(parseErrorEvent(err))
			return true
		}
		s.finish(Event{Kind: EventComplete, Result: r})
		return true

	case eventError:
		if f.Data == "" {
			s.finish(errorEvent(MsgServerError))
			return true
		}
		r, err := decodeResult(f.Data)
		if err != nil {
			s.logger.Error("error payload is not JSON", "error", err, "data", f.Data)
			s.finish(parseErrorEvent(err))
			return true
		}
		s.finish(Event{Kind: EventError, Result: r})
		return true
	}

	s.logger.Debug("ignoring stream event", "event", f.Event)
	return false
}

// onTransportError decides what a connection failure means from the state
// the transport is in when it happens.
func (s *Stream) onTransportError(err error) bool {
	state := s.source.readyState()
	s.logger.Warn("stream connection error", "state", state.String(), "error", err)

	var msg string
	switch state {
	case StateConnecting:
		// The transport reconnects on its own.
		return false
	case StateOpen:
		msg = MsgOpenError
	case StateClosed:
		msg = MsgConnectionClose
	default:
		msg = MsgUnknownState
	}
	s.finish(errorEvent(msg))
	return true
}

func errorEvent(msg string) Event {
	return Event{Kind: EventError, Result: Result{Success: false, Message: msg}}
}

func parseErrorEvent(err error) Event {
	return errorEvent(jsonParseErrPrefix + err.Error())
}

// Handlers are the callbacks used by Drain. Nil handlers are skipped.
type Handlers struct {
	OnProgress func(Progress)
	OnComplete func(Result)
	OnError    func(Result)
}

// Drain consumes s, invoking the matching handler for each event, and
// returns when the sequence ends. Once the stream is closed no handler is
// invoked, even for an event already in flight. Cancelling ctx closes s.
func Drain(ctx context.Context, s *Stream, h Handlers) {
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case ev, ok := <-s.Events():
			if !ok || s.Closed() {
				return
			}
			switch ev.Kind {
			case EventProgress:
				if h.OnProgress != nil {
					h.OnProgress(ev.Progress)
				}
			case EventComplete:
				if h.OnComplete != nil {
					h.OnComplete(ev.Result)
				}
			case EventError:
				if h.OnError != nil {
					h.OnError(ev.Result)
				}
			}
		}
	}
}

// sourceHandler receives what an eventSource observes. onFrame and
// onTransportError return true to stop the source.
type sourceHandler interface {
	onOpen()
	onFrame(frame) bool
	onTransportError(error) bool
}

// eventSource is a text/event-stream connection that reconnects the way a
// browser EventSource does: a failed attempt or a cleanly ended stream goes
// back to connecting and retries after the retry delay, with no backoff and
// no attempt cap. A bad response fails the connection for good.
type eventSource struct {
	url    string
	client *http.Client
	token  string

	state  atomic.Int32
	retry  time.Duration
	lastID string
}

func (es *eventSource) readyState() ReadyState {
	return ReadyState(es.state.Load())
}

func (es *eventSource) setState(s ReadyState) {
	es.state.Store(int32(s))
}

func (es *eventSource) run(ctx context.Context, h sourceHandler) {
	for {
		es.setState(StateConnecting)

		resp, err := es.connect(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if h.onTransportError(err) || !es.wait(ctx) {
				return
			}
			continue
		}

		if err := checkResponse(resp); err != nil {
			resp.Body.Close()
			es.setState(StateClosed)
			h.onTransportError(err)
			return
		}

		es.setState(StateOpen)
		h.onOpen()

		stop, err := es.consume(resp.Body, h)
		resp.Body.Close()
		if stop || ctx.Err() != nil {
			return
		}
		if errors.Is(err, io.EOF) {
			es.setState(StateConnecting)
			err = errStreamEnded
		}
		if h.onTransportError(err) || !es.wait(ctx) {
			return
		}
	}
}

func (es *eventSource) connect(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, es.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if es.token != "" {
		req.Header.Set("Authorization", "Bearer "+es.token)
	}
	if es.lastID != "" {
		req.Header.Set("Last-Event-ID", es.lastID)
	}
	return es.client.Do(req)
}

func (es *eventSource) consume(body io.Reader, h sourceHandler) (bool, error) {
	reader := newSSEReader(body)
	reader.lastID = es.lastID
	for {
		f, err := reader.Next()
		es.lastID = reader.LastEventID()
		if r := reader.Retry(); r > 0 {
			es.retry = r
		}
		if err != nil {
			return false, err
		}
		if h.onFrame(f) {
			return true, nil
		}
	}
}

func (es *eventSource) wait(ctx context.Context) bool {
	t := time.NewTimer(es.retry)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnexpectedResponse, resp.StatusCode)
	}
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "text/event-stream" {
		return fmt.Errorf("%w: content type %q", ErrUnexpectedResponse, resp.Header.Get("Content-Type"))
	}
	return nil
}
