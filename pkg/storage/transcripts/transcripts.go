// Package transcripts persists finalized session transcripts.
package transcripts

import (
	"context"
	"time"
)

// Speaker identifies who produced a conversation turn.
type Speaker string

const (
	SpeakerParticipant Speaker = "participant"
	SpeakerAssistant   Speaker = "assistant"
)

// Turn is one committed utterance in a session transcript.
type Turn struct {
	Speaker   Speaker   `json:"speaker"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionRecord is the artifact persisted when a session finalizes.
type SessionRecord struct {
	SessionID         string    `json:"session_id"`
	SubjectID         string    `json:"subject_id"`
	StartedAt         time.Time `json:"start_time"`
	EndedAt           time.Time `json:"end_time"`
	Conversation      []Turn    `json:"conversation"`
	AudioRecordingURL string    `json:"audio_recording_url,omitempty"`
}

// Store persists session records.
type Store interface {
	SaveSession(ctx context.Context, rec *SessionRecord) error
}
