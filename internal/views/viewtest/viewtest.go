// Package viewtest has helpers for testing screens against the mock backend.
package viewtest

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Leo890728/course-web/internal/client"
	"github.com/Leo890728/course-web/internal/ctxlog"
	"github.com/Leo890728/course-web/internal/mockserver"
	tea "github.com/charmbracelet/bubbletea"
)

// NewClient starts a mock backend for the test and returns a client for it
// together with the backing store.
func NewClient(t *testing.T) (*client.Client, *mockserver.Store) {
	t.Helper()
	store := mockserver.NewStore(1)
	srv := httptest.NewServer(mockserver.NewServer(store, mockserver.Options{
		Logger: ctxlog.Discard(),
		Tick:   time.Millisecond,
	}).Handler())
	transport := &http.Transport{DisableKeepAlives: true}
	t.Cleanup(func() {
		transport.CloseIdleConnections()
		srv.Close()
	})

	hc := &http.Client{Transport: transport}
	return client.New(srv.URL+"/api", client.Options{
		RetryDelay:   10 * time.Millisecond,
		Logger:       ctxlog.Discard(),
		HTTPClient:   hc,
		StreamClient: hc,
	}), store
}

// Run executes cmd and returns the messages it produced, flattening
// batches. Do not pass timer based commands such as cursor blinks.
func Run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, Run(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

// Find returns the first message of type T in msgs.
func Find[T tea.Msg](msgs []tea.Msg) (T, bool) {
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Keys returns a key press of printable runes.
func Keys(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// Key returns a key press of a special key such as tea.KeyEnter.
func Key(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}
