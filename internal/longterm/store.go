// Package longterm is the durable cross-session memory: distilled session
// summaries stored per user and retrievable by semantic similarity.
package longterm

import (
	"context"
	"time"
)

// Record is one long-term memory entry. Score is assigned by the search
// backend and only meaningful on ranked retrievals.
type Record struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Content   string            `json:"content"`
	Score     float32           `json:"score"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"timestamp"`
}

// Store is the long-term memory backend. Every operation is confined to the
// given user's namespace.
type Store interface {
	// Save persists content as a new record in the user's namespace.
	Save(ctx context.Context, userID, content string, metadata map[string]string) (Record, error)
	// SaveWithID persists content under a caller-chosen identifier. Saving
	// the same ID again replaces the stored record, so callers that refine
	// the same summary over a session's lifetime keep a single entry.
	SaveWithID(ctx context.Context, userID, id, content string, metadata map[string]string) (Record, error)
	// Search performs a ranked semantic lookup. A user with no records gets
	// an empty result set, not an error.
	Search(ctx context.Context, userID, query string, topK int) ([]Record, error)
	// Recent returns the n most recent records, unranked.
	Recent(ctx context.Context, userID string, n int) ([]Record, error)
	// DeleteUser drops the user's entire namespace.
	DeleteUser(ctx context.Context, userID string) error
	Close() error
}
