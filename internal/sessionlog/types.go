// Package sessionlog is the short-term conversational memory: an append-only
// per-(user, session) event log plus the structured session summaries derived
// from it.
package sessionlog

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Role identifies who produced a conversational event.
type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
)

// NormalizeRole uppercases the incoming role and defaults to USER.
func NormalizeRole(raw string) Role {
	r := strings.ToUpper(strings.TrimSpace(raw))
	if r == "" {
		return RoleUser
	}
	return Role(r)
}

// Event is one immutable conversational turn.
type Event struct {
	ID        string    `json:"eventId"`
	UserID    string    `json:"userId"`
	SessionID string    `json:"sessionId"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"timestamp"`
}

// EventDigest is the truncated view of an event used in session listings.
type EventDigest struct {
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// SessionDigest summarizes one session for recency listings.
type SessionDigest struct {
	SessionID  string        `json:"sessionId"`
	StartTime  string        `json:"startTime"`
	EventCount int           `json:"eventCount"`
	Events     []EventDigest `json:"events"`
}

// SummaryRecord is the immutable per-session summary row.
type SummaryRecord struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"userId"`
	SessionID           string    `json:"sessionId"`
	KeyPoints           []string  `json:"keyPoints"`
	SpiritualThemes     []string  `json:"spiritualThemes"`
	VersesShared        []string  `json:"versesShared"`
	ReflectionQuestions []string  `json:"reflectionQuestions"`
	NextSteps           []string  `json:"nextSteps"`
	UserSentiment       string    `json:"userSentiment"`
	CreatedAt           time.Time `json:"timestamp"`
}

// SummaryID builds the composite identifier for a session summary.
func SummaryID(userID, sessionID string) string {
	return userID + "#" + sessionID
}

// NewSessionID synthesizes a session token from the current time, matching
// the identifiers handed out when a caller starts a session without one.
func NewSessionID() string {
	return fmt.Sprintf("session-%d", time.Now().Unix())
}

const (
	digestTextLimit    = 100
	digestEventsPerRow = 5
	DefaultListLimit   = 5
)

// Store is the session memory backend. Every operation is scoped by userID;
// callers never see another user's partition.
type Store interface {
	// AppendEvent persists one event, filling in the ID, a synthesized
	// session ID when absent, the normalized role, and the timestamp. The
	// completed event is returned.
	AppendEvent(ctx context.Context, event Event) (Event, error)
	// RecentSessions lists up to limit sessions, most recent first, each
	// annotated with its event count and latest events.
	RecentSessions(ctx context.Context, userID string, limit int) ([]SessionDigest, error)
	// HasTalkedToday reports whether the user has any event stamped with
	// today's UTC calendar date.
	HasTalkedToday(ctx context.Context, userID string) (bool, error)
	// SaveSummary stores the summary row, filling ID and timestamp.
	SaveSummary(ctx context.Context, record SummaryRecord) (SummaryRecord, error)
	// RecentSummaries lists up to limit summaries, most recent first.
	RecentSummaries(ctx context.Context, userID string, limit int) ([]SummaryRecord, error)
	// SessionEventCount returns how many events a session holds.
	SessionEventCount(ctx context.Context, userID, sessionID string) (int, error)
	// SessionEvents returns a session's events in chronological order.
	SessionEvents(ctx context.Context, userID, sessionID string) ([]Event, error)
	// DeleteUser removes every event and summary for the user, returning
	// how many events were deleted.
	DeleteUser(ctx context.Context, userID string) (int, error)
	Close() error
}

// digestText shortens event text for listings. Truncation counts characters,
// not bytes, so multi-byte text stays valid UTF-8.
func digestText(text string) string {
	runes := []rune(text)
	if len(runes) > digestTextLimit {
		return string(runes[:digestTextLimit]) + "..."
	}
	return text
}
