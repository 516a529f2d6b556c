package prefs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists user preferences in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initPrefsSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initPrefsSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmt := `CREATE TABLE IF NOT EXISTS user_preferences (
		user_id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL DEFAULT '',
		bible_version TEXT NOT NULL DEFAULT '',
		denomination TEXT NOT NULL DEFAULT '',
		birthday TEXT NOT NULL DEFAULT '',
		avatar_name TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("init preferences schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (Preferences, error) {
	var p Preferences
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, first_name, bible_version, denomination, birthday, avatar_name
		 FROM user_preferences WHERE user_id=$1`,
		userID,
	).Scan(&p.UserID, &p.FirstName, &p.BibleVersion, &p.Denomination, &p.Birthday, &p.AvatarName)
	if errors.Is(err, pgx.ErrNoRows) {
		return Preferences{}, ErrNotFound
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("query preferences: %w", err)
	}
	return p, nil
}

// Save merges the update inside a transaction so concurrent saves of
// different fields do not clobber each other's columns.
func (s *PostgresStore) Save(ctx context.Context, userID string, update Update) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var p Preferences
	err = tx.QueryRow(ctx,
		`SELECT user_id, first_name, bible_version, denomination, birthday, avatar_name
		 FROM user_preferences WHERE user_id=$1 FOR UPDATE`,
		userID,
	).Scan(&p.UserID, &p.FirstName, &p.BibleVersion, &p.Denomination, &p.Birthday, &p.AvatarName)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("load preferences for merge: %w", err)
	}
	p.UserID = userID
	p.apply(update)

	_, err = tx.Exec(ctx,
		`INSERT INTO user_preferences (user_id, first_name, bible_version, denomination, birthday, avatar_name, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,now())
		 ON CONFLICT (user_id) DO UPDATE SET
			first_name=EXCLUDED.first_name,
			bible_version=EXCLUDED.bible_version,
			denomination=EXCLUDED.denomination,
			birthday=EXCLUDED.birthday,
			avatar_name=EXCLUDED.avatar_name,
			updated_at=now()`,
		p.UserID, p.FirstName, p.BibleVersion, p.Denomination, p.Birthday, p.AvatarName,
	)
	if err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit preferences: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM user_preferences WHERE user_id=$1`, userID); err != nil {
		return fmt.Errorf("delete preferences: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
