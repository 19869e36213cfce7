package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// InitializeData runs the data initialization synchronously via
// POST /data/init-sync.
func (c *Client) InitializeData(ctx context.Context, opts InitOptions) (*DataInitResult, error) {
	var out DataInitResult
	if err := c.post(ctx, "/data/init-sync", opts.Values(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDataInfo fetches /data/info.
func (c *Client) GetDataInfo(ctx context.Context) (*DataInfo, error) {
	var out DataInfo
	if err := c.get(ctx, "/data/info", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearAllData sends DELETE /data/clear.
func (c *Client) ClearAllData(ctx context.Context) error {
	return c.delete(ctx, "/data/clear")
}

// TestSSE opens /data/test-sse, logs each "test" event and returns nil once
// the server sends "complete". Any connection error ends the probe.
func (c *Client) TestSSE(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := &probe{logger: c.logger.With("endpoint", "/data/test-sse")}
	es := &eventSource{
		url:    c.url("/data/test-sse", nil),
		client: c.stream,
		token:  c.token,
		retry:  c.retryDelay,
	}
	es.run(ctx, p)

	if p.completed.Load() {
		return nil
	}
	if p.err != nil {
		return p.err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrStreamClosed
}

// probe is the sourceHandler behind TestSSE.
type probe struct {
	logger    *slog.Logger
	completed atomic.Bool
	err       error
}

func (p *probe) onOpen() {
	p.logger.Info("test stream opened")
}

func (p *probe) onFrame(f frame) bool {
	switch f.Event {
	case "test":
		var v any
		if err := json.Unmarshal([]byte(f.Data), &v); err != nil {
			p.logger.Warn("test event is not JSON", "data", f.Data)
			return false
		}
		p.logger.Info("test event", "data", v)
	case eventComplete:
		p.logger.Info("test stream complete", "data", f.Data)
		p.completed.Store(true)
		return true
	}
	return false
}

func (p *probe) onTransportError(err error) bool {
	p.logger.Error("test stream error", "error", err)
	p.err = errors.Join(ErrStreamClosed, fmt.Errorf("test-sse: %w", err))
	return true
}
