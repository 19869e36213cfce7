package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Leo890728/course-web/internal/ctxlog"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultRetryDelay = 3 * time.Second
)

// Options configures a Client. Zero values select the defaults.
type Options struct {
	Token   string
	Timeout time.Duration
	// RetryDelay is the initial reconnect delay of progress streams.
	RetryDelay time.Duration
	Logger     *slog.Logger
	// HTTPClient overrides the client used for REST calls.
	HTTPClient *http.Client
	// StreamClient overrides the client used for streams. It must not have a
	// timeout, since streams stay open for the whole operation.
	StreamClient *http.Client
}

// Client makes REST calls and opens progress streams against the backend.
type Client struct {
	baseURL    string
	token      string
	client     *http.Client
	stream     *http.Client
	retryDelay time.Duration
	logger     *slog.Logger
}

// New creates a client targeting baseURL (e.g. "http://127.0.0.1:8080/api").
func New(baseURL string, opts Options) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      opts.Token,
		client:     opts.HTTPClient,
		stream:     opts.StreamClient,
		retryDelay: opts.RetryDelay,
		logger:     opts.Logger,
	}
	if c.client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		c.client = &http.Client{Timeout: timeout}
	}
	if c.stream == nil {
		c.stream = &http.Client{}
	}
	if c.retryDelay <= 0 {
		c.retryDelay = defaultRetryDelay
	}
	if c.logger == nil {
		c.logger = ctxlog.DefaultLogger
	}
	return c
}

// BaseURL returns the API base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.do(ctx, http.MethodPost, path, query, body, out)
}

func (c *Client) put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path, query), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.setAuth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return newAPIError(method, path, resp.StatusCode, respBody)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) url(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
