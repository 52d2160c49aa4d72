// Package memory defines the client boundary to the external long-term
// memory store: semantic search and storage over free-text memories,
// scoped per subject.
package memory

import "context"

// Record is one stored memory with its similarity score for the query that
// retrieved it. Score comparison is only meaningful within one search call.
type Record struct {
	Content    string  `json:"content"`
	Category   string  `json:"category,omitempty"`
	Date       string  `json:"date,omitempty"`
	Importance string  `json:"importance,omitempty"`
	Score      float64 `json:"score"`
}

// Attributes carries optional classification attached to a saved memory.
type Attributes struct {
	Category   string `json:"category,omitempty"`
	Importance string `json:"importance,omitempty"`
	Date       string `json:"date,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
}

// Client is the interface to the external memory service. Implementations
// may be slow or unavailable; callers convert failures into result-level
// errors rather than propagating them.
type Client interface {
	// Search returns up to topK records for the subject, most similar
	// first as ranked by the store.
	Search(ctx context.Context, query string, topK int, subjectID string) ([]Record, error)

	// Save stores a new memory for the subject and returns its id.
	Save(ctx context.Context, subjectID, content string, attrs Attributes) (string, error)
}
