package sessionlog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists session memory in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSessionSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initSessionSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversation_events (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_events_user_created ON conversation_events (user_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_events_session ON conversation_events (user_id, session_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS session_summaries (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			key_points TEXT[] NOT NULL DEFAULT '{}',
			spiritual_themes TEXT[] NOT NULL DEFAULT '{}',
			verses_shared TEXT[] NOT NULL DEFAULT '{}',
			reflection_questions TEXT[] NOT NULL DEFAULT '{}',
			next_steps TEXT[] NOT NULL DEFAULT '{}',
			user_sentiment TEXT NOT NULL DEFAULT 'neutral',
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_session_summaries_user_created ON session_summaries (user_id, created_at DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init session schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) AppendEvent(ctx context.Context, event Event) (Event, error) {
	event = fillEvent(event)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversation_events (id, user_id, session_id, role, text, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		event.ID, event.UserID, event.SessionID, string(event.Role), event.Text, event.CreatedAt,
	)
	if err != nil {
		return Event{}, fmt.Errorf("append event: %w", err)
	}
	return event, nil
}

func (s *PostgresStore) RecentSessions(ctx context.Context, userID string, limit int) ([]SessionDigest, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.pool.Query(ctx,
		`SELECT session_id, count(*), min(created_at)
		 FROM conversation_events WHERE user_id=$1
		 GROUP BY session_id ORDER BY max(created_at) DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent sessions: %w", err)
	}
	defer rows.Close()

	digests := make([]SessionDigest, 0, limit)
	for rows.Next() {
		var (
			d       SessionDigest
			started time.Time
		)
		if err := rows.Scan(&d.SessionID, &d.EventCount, &started); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		d.StartTime = started.UTC().Format(time.RFC3339)
		digests = append(digests, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}

	for i := range digests {
		events, err := s.latestEvents(ctx, userID, digests[i].SessionID)
		if err != nil {
			return nil, err
		}
		digests[i].Events = events
	}
	return digests, nil
}

func (s *PostgresStore) latestEvents(ctx context.Context, userID, sessionID string) ([]EventDigest, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT role, text, created_at FROM conversation_events
		 WHERE user_id=$1 AND session_id=$2
		 ORDER BY created_at DESC LIMIT $3`,
		userID, sessionID, digestEventsPerRow,
	)
	if err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	defer rows.Close()

	var digests []EventDigest
	for rows.Next() {
		var (
			role    string
			text    string
			created time.Time
		)
		if err := rows.Scan(&role, &text, &created); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		digests = append(digests, EventDigest{
			Role:      Role(role),
			Text:      digestText(text),
			Timestamp: created.UTC().Format(time.RFC3339),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return digests, nil
}

func (s *PostgresStore) HasTalkedToday(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM conversation_events
			WHERE user_id=$1 AND created_at >= date_trunc('day', now() AT TIME ZONE 'UTC') AT TIME ZONE 'UTC'
		)`,
		userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check talked today: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) SaveSummary(ctx context.Context, record SummaryRecord) (SummaryRecord, error) {
	record = fillSummary(record)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO session_summaries (
			id, user_id, session_id, key_points, spiritual_themes, verses_shared,
			reflection_questions, next_steps, user_sentiment, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO NOTHING`,
		record.ID, record.UserID, record.SessionID,
		record.KeyPoints, record.SpiritualThemes, record.VersesShared,
		record.ReflectionQuestions, record.NextSteps, record.UserSentiment,
		record.CreatedAt,
	)
	if err != nil {
		return SummaryRecord{}, fmt.Errorf("save summary: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) RecentSummaries(ctx context.Context, userID string, limit int) ([]SummaryRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, session_id, key_points, spiritual_themes, verses_shared,
			reflection_questions, next_steps, user_sentiment, created_at
		 FROM session_summaries WHERE user_id=$1
		 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	summaries := make([]SummaryRecord, 0, limit)
	for rows.Next() {
		var r SummaryRecord
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.SessionID, &r.KeyPoints, &r.SpiritualThemes,
			&r.VersesShared, &r.ReflectionQuestions, &r.NextSteps, &r.UserSentiment,
			&r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		summaries = append(summaries, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary rows: %w", err)
	}
	return summaries, nil
}

func (s *PostgresStore) SessionEventCount(ctx context.Context, userID, sessionID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM conversation_events WHERE user_id=$1 AND session_id=$2`,
		userID, sessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count session events: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) SessionEvents(ctx context.Context, userID, sessionID string) ([]Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, session_id, role, text, created_at
		 FROM conversation_events WHERE user_id=$1 AND session_id=$2
		 ORDER BY created_at ASC`,
		userID, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e    Event
			role string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.SessionID, &role, &e.Text, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		e.Role = Role(role)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return events, nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, userID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM conversation_events WHERE user_id=$1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete events: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM session_summaries WHERE user_id=$1`, userID); err != nil {
		return 0, fmt.Errorf("delete summaries: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func fillEvent(event Event) Event {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.SessionID == "" {
		event.SessionID = NewSessionID()
	}
	event.Role = NormalizeRole(string(event.Role))
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	return event
}

func fillSummary(record SummaryRecord) SummaryRecord {
	if record.ID == "" {
		record.ID = SummaryID(record.UserID, record.SessionID)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if record.UserSentiment == "" {
		record.UserSentiment = "neutral"
	}
	return record
}
