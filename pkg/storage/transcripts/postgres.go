package transcripts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore stores session records in Postgres. Conversation turns are kept
// as a jsonb column so the record round-trips as one document.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps an existing connection pool. The caller owns the pool's
// lifecycle.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) SaveSession(ctx context.Context, rec *SessionRecord) error {
	if rec == nil || rec.SessionID == "" {
		return fmt.Errorf("session record requires a session id")
	}
	conversation := rec.Conversation
	if conversation == nil {
		conversation = []Turn{}
	}
	turns, err := json.Marshal(conversation)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}

	const q = `
		INSERT INTO transcripts (session_id, subject_id, started_at, ended_at, conversation, audio_recording_url)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		ON CONFLICT (session_id) DO UPDATE SET
			ended_at = EXCLUDED.ended_at,
			conversation = EXCLUDED.conversation,
			audio_recording_url = EXCLUDED.audio_recording_url`
	if _, err := s.pool.Exec(ctx, q,
		rec.SessionID, rec.SubjectID, rec.StartedAt, rec.EndedAt, turns, rec.AudioRecordingURL,
	); err != nil {
		return fmt.Errorf("insert transcript %s: %w", rec.SessionID, err)
	}
	return nil
}

// Ping reports whether the backing database is reachable.
func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
