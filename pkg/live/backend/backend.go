// Package backend abstracts the conversational AI backend's live session:
// audio in, a stream of typed events out, plus the tool-response channel.
package backend

import (
	"context"
	"errors"
)

// ErrSessionClosed is returned by Receive once the backend stream has ended.
var ErrSessionClosed = errors.New("backend session closed")

// ToolCall is one function invocation requested by the backend. CallID is
// backend-assigned and must be echoed back unchanged on the result.
type ToolCall struct {
	CallID string
	Name   string
	Args   map[string]any
}

// ToolResult answers one ToolCall. Response carries either a "result" or an
// "error" entry, never both.
type ToolResult struct {
	CallID   string
	Name     string
	Response map[string]any
}

// Session is one live connection to the conversational backend. SendAudio and
// SendToolResults may be called concurrently with Receive; the send and
// receive halves are independent.
type Session interface {
	// SendAudio forwards one PCM chunk at the given input sample rate.
	// Fire-and-forget; the backend buffers internally.
	SendAudio(chunk []byte, sampleRateHz int) error

	// SendToolResults returns a full batch of results for one tool-call
	// event. Partial batches must not be sent.
	SendToolResults(results []ToolResult) error

	// Receive blocks for the next backend message and returns its events in
	// classification order. It returns ErrSessionClosed when the stream ends.
	Receive() ([]Event, error)

	Close() error
}

// Connector opens live backend sessions for authenticated subjects.
type Connector interface {
	Connect(ctx context.Context) (Session, error)
}
