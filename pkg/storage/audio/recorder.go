package audio

import (
	"context"
	"fmt"
	"time"
)

// ObjectStore uploads finished recordings and returns a stable URL for the
// stored object.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// Recorder accumulates one session's inbound PCM and uploads a single WAV
// object on Finalize. It is not safe for concurrent use; the session pipeline
// feeds it from one goroutine.
type Recorder struct {
	store     ObjectStore
	format    Format
	subjectID string
	sessionID string
	startedAt time.Time

	pcm       []byte
	finalized bool
}

// NewRecorder starts a recording for one session. startedAt names the
// uploaded object; it should be the session start time.
func NewRecorder(store ObjectStore, format Format, subjectID, sessionID string, startedAt time.Time) *Recorder {
	return &Recorder{
		store:     store,
		format:    format,
		subjectID: subjectID,
		sessionID: sessionID,
		startedAt: startedAt,
	}
}

// Append buffers one PCM chunk. Appends after Finalize are dropped.
func (r *Recorder) Append(chunk []byte) {
	if r.finalized || len(chunk) == 0 {
		return
	}
	r.pcm = append(r.pcm, chunk...)
}

// Recorded returns the number of PCM bytes buffered so far.
func (r *Recorder) Recorded() int {
	return len(r.pcm)
}

// Finalize assembles the WAV file and uploads it. It returns the object URL,
// or "" with a nil error when nothing was recorded. Finalize only runs once;
// later calls return the empty URL.
func (r *Recorder) Finalize(ctx context.Context) (string, error) {
	if r.finalized {
		return "", nil
	}
	r.finalized = true
	if len(r.pcm) == 0 {
		return "", nil
	}

	key := fmt.Sprintf("recordings/%s/%s_%s.wav", r.subjectID, r.sessionID, r.startedAt.UTC().Format("20060102_150405"))
	url, err := r.store.Put(ctx, key, "audio/wav", WAVFile(r.pcm, r.format))
	if err != nil {
		return "", fmt.Errorf("upload recording: %w", err)
	}
	return url, nil
}
