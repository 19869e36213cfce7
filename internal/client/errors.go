package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultErrorMessage is used by ErrorMessage when nothing better is known.
const DefaultErrorMessage = "operation failed"

// ErrStreamClosed is returned by TestSSE when the probe stream ends without
// a complete event.
var ErrStreamClosed = errors.New("sse: stream closed")

// APIError is returned for HTTP responses with status >= 300.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	// Message is the "message" field of a JSON error body, if any.
	Message string
	Body    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, strings.TrimSpace(e.Body))
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	e := &APIError{Method: method, Path: path, StatusCode: status, Body: string(body)}
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		e.Message = payload.Message
	}
	return e
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}

// ErrorMessage turns err into text for the status line. A server-supplied
// message wins, then the error text, then fallback (or DefaultErrorMessage).
func ErrorMessage(err error, fallback string) string {
	if fallback == "" {
		fallback = DefaultErrorMessage
	}
	if err == nil {
		return fallback
	}
	slog.Debug("request failed", "error", err)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
