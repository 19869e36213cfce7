package client

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAllFrames(t *testing.T, input string) ([]frame, error) {
	t.Helper()
	r := newSSEReader(strings.NewReader(input))
	var frames []frame
	for {
		f, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return frames, nil
			}
			return frames, err
		}
		frames = append(frames, f)
	}
}

func TestSSEReaderNamedEvents(t *testing.T) {
	input := "event: start\ndata: {\"message\":\"go\"}\n\nevent: progress\ndata: {\"processed\":1}\n\n"
	frames, err := readAllFrames(t, input)
	require.NoError(t, err)
	require.Len(t, frames, 2)

	assert.Equal(t, "start", frames[0].Event)
	assert.Equal(t, `{"message":"go"}`, frames[0].Data)
	assert.Equal(t, "progress", frames[1].Event)
}

func TestSSEReaderDefaultEventName(t *testing.T) {
	frames, err := readAllFrames(t, "data: hello\n\n")
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "message", frames[0].Event)
}

func TestSSEReaderMultipleDataLines(t *testing.T) {
	frames, err := readAllFrames(t, "data: one\ndata:two\ndata:  three\n\n")
	require.NoError(t, err)
	require.Len(t, frames, 1)
	// Only one leading space is stripped.
	assert.Equal(t, "one\ntwo\n three", frames[0].Data)
}

func TestSSEReaderCommentsAndCRLF(t *testing.T) {
	input := ": keep-alive\r\nevent: heartbeat\r\n: more\r\ndata: 1\r\n\r\n"
	frames, err := readAllFrames(t, input)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "heartbeat", frames[0].Event)
	assert.Equal(t, "1", frames[0].Data)
}

func TestSSEReaderEventWithoutDataIsDropped(t *testing.T) {
	// An event name followed by a blank line and no data does not dispatch,
	// and the name does not leak into the next frame.
	frames, err := readAllFrames(t, "event: error\n\ndata: x\n\n")
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "message", frames[0].Event)
}

func TestSSEReaderEmptyDataLineDispatches(t *testing.T) {
	frames, err := readAllFrames(t, "event: error\ndata:\n\n")
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "error", frames[0].Event)
	assert.Equal(t, "", frames[0].Data)
}

func TestSSEReaderIDAndRetry(t *testing.T) {
	r := newSSEReader(strings.NewReader("id: 42\nretry: 1500\nevent: progress\ndata: {}\n\nretry: soon\ndata: x\n\n"))

	f, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "42", f.ID)
	assert.Equal(t, "42", r.LastEventID())
	assert.Equal(t, 1500*time.Millisecond, r.Retry())

	// The id persists; an invalid retry is ignored.
	f, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "42", f.ID)
	assert.Equal(t, 1500*time.Millisecond, r.Retry())
}

func TestSSEReaderPartialFrameAtEOF(t *testing.T) {
	frames, err := readAllFrames(t, "event: complete\ndata: {\"success\":true}\n\nevent: progress\ndata: {}")
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "complete", frames[0].Event)
}

func TestSSEReaderFrameTooLarge(t *testing.T) {
	input := "data: " + strings.Repeat("x", maxFrameSize+1) + "\n\n"
	_, err := readAllFrames(t, input)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}
