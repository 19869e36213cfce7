package client

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"
)

const (
	// maxFrameSize bounds the data accumulated for one event.
	maxFrameSize = 1 << 20

	defaultEventName = "message"
)

// ErrFrameTooLarge is returned by the frame reader when one event carries
// more than maxFrameSize bytes of data.
var ErrFrameTooLarge = errors.New("sse: event data too large")

// frame is one dispatched server-sent event.
type frame struct {
	Event string
	Data  string
	ID    string
}

// sseReader reads text/event-stream frames from r.
//
// Lines are "field: value"; "data" lines accumulate and are joined with
// "\n", "event" names the frame, "id" sets the last event id and "retry"
// sets the reconnection delay. Lines starting with ":" are comments. A blank
// line dispatches the frame if any data line was seen.
type sseReader struct {
	reader *bufio.Reader

	lastID string
	retry  time.Duration // zero until the server sends retry:
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{reader: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next frame. It returns io.EOF when the stream ends
// cleanly; a partially accumulated frame at EOF is discarded.
func (s *sseReader) Next() (frame, error) {
	var (
		data    strings.Builder
		event   string
		hasData bool
	)

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF && line == "" {
				return frame{}, io.EOF
			}
			if err != io.EOF {
				return frame{}, err
			}
			// Unterminated last line; it can never be followed by the blank
			// line that dispatches, so the frame is dropped.
			return frame{}, io.EOF
		}

		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")

		if line == "" {
			if !hasData {
				event = ""
				continue
			}
			if event == "" {
				event = defaultEventName
			}
			return frame{Event: event, Data: data.String(), ID: s.lastID}, nil
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, found := strings.Cut(line, ":")
		if found {
			value = strings.TrimPrefix(value, " ")
		}

		switch field {
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
			if data.Len() > maxFrameSize {
				return frame{}, ErrFrameTooLarge
			}
		case "event":
			event = value
		case "id":
			if !strings.ContainsRune(value, 0) {
				s.lastID = value
			}
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				s.retry = time.Duration(ms) * time.Millisecond
			}
		}
	}
}

// LastEventID returns the most recent id field seen on the stream.
func (s *sseReader) LastEventID() string {
	return s.lastID
}

// Retry returns the server-requested reconnection delay, or zero.
func (s *sseReader) Retry() time.Duration {
	return s.retry
}
