package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Leo890728/course-web/internal/ctxlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const streamTimeout = 5 * time.Second

func newStreamServer(t *testing.T, h http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(h)
	transport := &http.Transport{DisableKeepAlives: true}
	t.Cleanup(func() {
		transport.CloseIdleConnections()
		srv.Close()
	})
	c := New(srv.URL, Options{
		RetryDelay:   10 * time.Millisecond,
		Logger:       ctxlog.Discard(),
		StreamClient: &http.Client{Transport: transport},
	})
	return srv, c
}

func startEventStream(w http.ResponseWriter) http.Flusher {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	f := w.(http.Flusher)
	f.Flush()
	return f
}

func writeFrame(w http.ResponseWriter, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	w.(http.Flusher).Flush()
}

// collect reads events until the sequence ends.
func collect(t *testing.T, s *Stream) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(streamTimeout)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("stream did not finish; got %d events so far", len(events))
			return nil
		}
	}
}

func assertSingleTerminal(t *testing.T, events []Event) {
	t.Helper()
	terminals := 0
	for i, ev := range events {
		if ev.Terminal() {
			terminals++
			assert.Equal(t, len(events)-1, i, "terminal event must be last")
		}
	}
	assert.LessOrEqual(t, terminals, 1)
}

func TestStreamSuccessfulInit(t *testing.T) {
	_, c := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/init", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("studentCount"))
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		startEventStream(w)
		writeFrame(w, "start", `{"message":"begin"}`)
		writeFrame(w, "progress", `{"processed":1,"total":2}`)
		writeFrame(w, "progress", `{"processed":2,"total":2}`)
		writeFrame(w, "complete", `{"success":true,"message":"done"}`)
	})

	s := c.InitializeDataWithProgress(context.Background(), InitOptions{StudentCount: 10})
	events := collect(t, s)

	require.Len(t, events, 3)
	assert.Equal(t, EventProgress, events[0].Kind)
	assert.Equal(t, 1, events[0].Progress.Processed)
	assert.Equal(t, 2, events[0].Progress.Total)
	assert.JSONEq(t, `{"processed":1,"total":2}`, string(events[0].Progress.Raw))
	assert.Equal(t, 2, events[1].Progress.Processed)
	assert.Equal(t, EventComplete, events[2].Kind)
	assert.True(t, events[2].Result.Success)
	assert.Equal(t, "done", events[2].Result.Message)
	assertSingleTerminal(t, events)

	<-s.Done()
	assert.Equal(t, StateClosed, s.State())
}

func TestStreamMalformedProgress(t *testing.T) {
	_, c := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
		startEventStream(w)
		writeFrame(w, "progress", "not-json")
		writeFrame(w, "progress", `{"processed":1,"total":1}`)
	})

	events := collect(t, c.OpenStream(context.Background(), "/stream", nil))

	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Kind)
	assert.False(t, events[0].Result.Success)
	assert.True(t, strings.HasPrefix(events[0].Result.Message, "JSON parse error: "), events[0].Result.Message)
}

func TestStreamMalformedComplete(t *testing.T) {
	_, c := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
		startEventStream(w)
		writeFrame(w, "complete", "{")
	})

	events := collect(t, c.OpenStream(context.Background(), "/stream", nil))

	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Kind)
	assert.Contains(t, events[0].Result.Message, "JSON")
}

func TestStreamHeartbeatIsSilent(t *testing.T) {
	release := make(chan struct{})
	_, c := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
		startEventStream(w)
		writeFrame(w, "start", "plain text start")
		writeFrame(w, "heartbeat", "1700000000")
		writeFrame(w, "heartbeat", "<<<not json>>>")
		writeFrame(w, "shrug", "unknown events are ignored")
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		writeFrame(w, "complete", `{"success":true,"message":"done"}`)
	})

	s := c.OpenStream(context.Background(), "/stream", nil)

	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected event %v before completion", ev.Kind)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, StateOpen, s.State())
	assert.False(t, s.Closed())

	close(release)
	events := collect(t, s)
	require.Len(t, events, 1)
	assert.Equal(t, EventComplete, events[0].Kind)
}

func TestStreamRetriesAfterConnectFailure(t *testing.T) {
	var attempts atomic.Int32
	_, c := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			conn, _, err := w.(http.Hijacker).Hijack()
			if assert.NoError(t, err) {
				conn.Close()
			}
			return
		}
		startEventStream(w)
		writeFrame(w, "complete", `{"success":true,"message":"second try"}`)
	})

	events := collect(t, c.OpenStream(context.Background(), "/stream", nil))

	require.Len(t, events, 1, "a failed connect attempt must not surface an error")
	assert.Equal(t, EventComplete, events[0].Kind)
	assert.Equal(t, "second try", events[0].Result.Message)
	assert.EqualValues(t, 2, attempts.Load())
}

func TestStreamReconnectSendsLastEventID(t *testing.T) {
	var (
		mu      sync.Mutex
		lastIDs []string
	)
	_, c := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		lastIDs = append(lastIDs, r.Header.Get("Last-Event-ID"))
		n := len(lastIDs)
		mu.Unlock()

		startEventStream(w)
		if n == 1 {
			fmt.Fprint(w, "retry: 5\nid: 7\nevent: progress\ndata: {\"processed\":1,\"total\":2}\n\n")
			return
		}
		writeFrame(w, "complete", `{"success":true,"message":"resumed"}`)
	})

	events := collect(t, c.OpenStream(context.Background(), "/stream", nil))

	require.Len(t, events, 2)
	assert.Equal(t, EventProgress, events[0].Kind)
	assert.Equal(t, EventComplete, events[1].Kind)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"", "7"}, lastIDs)
}

func TestStreamErrorWhileOpen(t *testing.T) {
	_, c := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
		startEventStream(w)
		writeFrame(w, "progress", `{"processed":1,"total":3}`)
		fmt.Fprintf(w, "data: %s\n\n", strings.Repeat("x", maxFrameSize+10))
	})

	events := collect(t, c.OpenStream(context.Background(), "/stream", nil))

	require.Len(t, events, 2)
	assert.Equal(t, EventProgress, events[0].Kind)
	assert.Equal(t, EventError, events[1].Kind)
	assert.Equal(t, MsgOpenError, events[1].Result.Message)
}

func TestStreamRejectedResponse(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "content type",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"success":true}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			_, c := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
				attempts.Add(1)
				tt.handler(w, r)
			})

			s := c.OpenStream(context.Background(), "/stream", nil)
			events := collect(t, s)

			require.Len(t, events, 1)
			assert.Equal(t, EventError, events[0].Kind)
			assert.Equal(t, MsgConnectionClose, events[0].Result.Message)
			assert.Equal(t, StateClosed, s.State())
			assert.EqualValues(t, 1, attempts.Load(), "a rejected response is not retried")
		})
	}
}

func TestStreamLenientPayloads(t *testing.T) {
	_, c := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
		startEventStream(w)
		writeFrame(w, "progress", `{"processed":1.5,"total":10}`)
		writeFrame(w, "progress", `{"processed":"3","total":"10","message":7}`)
		writeFrame(w, "progress", `[1,2]`)
		writeFrame(w, "complete", `{"success":"true","message":"done"}`)
	})

	events := collect(t, c.OpenStream(context.Background(), "/stream", nil))

	require.Len(t, events, 4)
	assert.Equal(t, EventProgress, events[0].Kind)
	assert.Equal(t, 1, events[0].Progress.Processed)
	assert.Equal(t, 10, events[0].Progress.Total)
	assert.JSONEq(t, `{"processed":1.5,"total":10}`, string(events[0].Progress.Raw))

	assert.Equal(t, EventProgress, events[1].Kind)
	assert.Equal(t, 3, events[1].Progress.Processed)
	assert.Equal(t, "7", events[1].Progress.Message)

	assert.Equal(t, EventProgress, events[2].Kind)
	assert.Zero(t, events[2].Progress.Total)
	assert.Equal(t, `[1,2]`, string(events[2].Progress.Raw))

	assert.Equal(t, EventComplete, events[3].Kind)
	assert.True(t, events[3].Result.Success)
	assert.Equal(t, "done", events[3].Result.Message)
	assertSingleTerminal(t, events)
}

func TestDecodeResultFields(t *testing.T) {
	tests := []struct {
		data    string
		success bool
		message string
	}{
		{`{"success":true,"message":"ok"}`, true, "ok"},
		{`{"success":"false","message":"no"}`, false, "no"},
		{`{"success":1}`, true, ""},
		{`{"success":null,"message":null}`, false, ""},
		{`"just a string"`, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			r, err := decodeResult(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.success, r.Success)
			assert.Equal(t, tt.message, r.Message)
			assert.Equal(t, tt.data, string(r.Raw))
		})
	}

	_, err := decodeResult(`{"success":true`)
	assert.Error(t, err)
}

func TestStreamServerErrorEvent(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		message string
	}{
		{name: "payload", data: `{"success":false,"message":"disk full","code":507}`, message: "disk full"},
		{name: "empty", data: "", message: MsgServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
				startEventStream(w)
				writeFrame(w, "error", tt.data)
			})

			events := collect(t, c.OpenStream(context.Background(), "/stream", nil))

			require.Len(t, events, 1)
			assert.Equal(t, EventError, events[0].Kind)
			assert.False(t, events[0].Result.Success)
			assert.Equal(t, tt.message, events[0].Result.Message)
		})
	}
}

func TestStreamServerErrorKeepsExtraFields(t *testing.T) {
	_, c := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
		startEventStream(w)
		writeFrame(w, "error", `{"success":false,"message":"disk full","code":507}`)
	})

	events := collect(t, c.OpenStream(context.Background(), "/stream", nil))

	require.Len(t, events, 1)
	assert.Contains(t, string(events[0].Result.Raw), `"code":507`)
}

func TestStreamCloseIsIdempotent(t *testing.T) {
	_, c := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
		startEventStream(w)
		for i := 1; ; i++ {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(5 * time.Millisecond):
			}
			writeFrame(w, "progress", fmt.Sprintf(`{"processed":%d,"total":1000}`, i))
		}
	})

	s := c.OpenStream(context.Background(), "/stream", nil)
	select {
	case ev := <-s.Events():
		assert.Equal(t, EventProgress, ev.Kind)
	case <-time.After(streamTimeout):
		t.Fatal("no progress event")
	}

	s.Close()
	s.Close()

	assert.True(t, s.Closed())
	assert.Equal(t, StateClosed, s.State())
	_, ok := <-s.Events()
	assert.False(t, ok, "no event may follow Close")
}

func TestStreamContextCancel(t *testing.T) {
	_, c := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
		startEventStream(w)
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	s := c.OpenStream(ctx, "/stream", nil)
	cancel()

	events := collect(t, s)
	assert.Empty(t, events)
	assert.True(t, s.Closed())
	s.Close()
}

func TestStreamCloseWhileRetrying(t *testing.T) {
	var attempts atomic.Int32
	_, c := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		if conn, _, err := w.(http.Hijacker).Hijack(); err == nil {
			conn.Close()
		}
	})

	s := c.OpenStream(context.Background(), "/stream", nil)
	require.Eventually(t, func() bool { return attempts.Load() >= 3 }, streamTimeout, 5*time.Millisecond)
	assert.NotEqual(t, StateClosed, s.State())

	s.Close()
	assert.Empty(t, collect(t, s))
}

func TestStreamSendsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
		startEventStream(w)
		writeFrame(w, "complete", `{"success":true,"message":"ok"}`)
	}))
	transport := &http.Transport{DisableKeepAlives: true}
	defer srv.Close()
	defer transport.CloseIdleConnections()

	c := New(srv.URL, Options{Token: "s3cret", Logger: ctxlog.Discard(), StreamClient: &http.Client{Transport: transport}})
	events := collect(t, c.OpenStream(context.Background(), "/stream", nil))
	require.Len(t, events, 1)
	assert.True(t, events[0].Result.Success)
}

func TestTransportErrorByState(t *testing.T) {
	tests := []struct {
		state   ReadyState
		stop    bool
		message string
	}{
		{state: StateConnecting, stop: false},
		{state: StateOpen, stop: true, message: MsgOpenError},
		{state: StateClosed, stop: true, message: MsgConnectionClose},
		{state: ReadyState(42), stop: true, message: MsgUnknownState},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			s := &Stream{
				logger: ctxlog.Discard(),
				source: &eventSource{},
				ctx:    ctx,
				cancel: cancel,
				events: make(chan Event, 1),
				done:   make(chan struct{}),
			}
			s.source.setState(tt.state)

			stop := s.onTransportError(errors.New("boom"))
			assert.Equal(t, tt.stop, stop)
			if tt.message == "" {
				assert.Empty(t, s.events)
				return
			}
			require.Len(t, s.events, 1)
			ev := <-s.events
			assert.Equal(t, EventError, ev.Kind)
			assert.Equal(t, tt.message, ev.Result.Message)
			assert.Equal(t, StateClosed, s.source.readyState())
		})
	}
}

func TestDrain(t *testing.T) {
	_, c := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
		startEventStream(w)
		writeFrame(w, "progress", `{"processed":1,"total":2}`)
		writeFrame(w, "progress", `{"processed":2,"total":2}`)
		writeFrame(w, "complete", `{"success":true,"message":"done"}`)
		writeFrame(w, "error", `{"success":false,"message":"late"}`)
	})

	var (
		progress  []int
		completes int
		errs      int
	)
	Drain(context.Background(), c.OpenStream(context.Background(), "/stream", nil), Handlers{
		OnProgress: func(p Progress) { progress = append(progress, p.Processed) },
		OnComplete: func(Result) { completes++ },
		OnError:    func(Result) { errs++ },
	})

	assert.Equal(t, []int{1, 2}, progress)
	assert.Equal(t, 1, completes)
	assert.Zero(t, errs)
}

func TestDrainSkipsCallbacksAfterClose(t *testing.T) {
	_, c := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
		startEventStream(w)
		for i := 1; ; i++ {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(2 * time.Millisecond):
			}
			writeFrame(w, "progress", fmt.Sprintf(`{"processed":%d,"total":1000}`, i))
		}
	})

	s := c.OpenStream(context.Background(), "/stream", nil)
	calls := 0
	Drain(context.Background(), s, Handlers{
		OnProgress: func(Progress) {
			calls++
			if calls == 2 {
				s.Close()
			}
		},
	})
	assert.Equal(t, 2, calls)
}

func TestProgressPercent(t *testing.T) {
	assert.Zero(t, Progress{}.Percent())
	assert.InDelta(t, 0.5, Progress{Processed: 5, Total: 10}.Percent(), 1e-9)
	assert.InDelta(t, 1.0, Progress{Processed: 12, Total: 10}.Percent(), 1e-9)
}
