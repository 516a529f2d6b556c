package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "prefs/"

// BadgerStore is a local durable preference store for single-node deployments
// that have no PostgreSQL available.
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).
		WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

func badgerKey(userID string) []byte {
	return []byte(badgerKeyPrefix + userID)
}

func (s *BadgerStore) Get(_ context.Context, userID string) (Preferences, error) {
	var p Preferences
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Preferences{}, ErrNotFound
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("read preferences: %w", err)
	}
	return p, nil
}

func (s *BadgerStore) Save(_ context.Context, userID string, update Update) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		var p Preferences
		item, err := txn.Get(badgerKey(userID))
		switch {
		case err == nil:
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			}); err != nil {
				return err
			}
		case errors.Is(err, badger.ErrKeyNotFound):
			// First write for this user.
		default:
			return err
		}

		p.UserID = userID
		p.apply(update)

		encoded, err := json.Marshal(p)
		if err != nil {
			return err
		}
		return txn.Set(badgerKey(userID), encoded)
	})
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

func (s *BadgerStore) Delete(_ context.Context, userID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(badgerKey(userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("delete preferences: %w", err)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
