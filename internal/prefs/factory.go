package prefs

import (
	"context"
	"strings"
)

// NewStore picks a backend: postgres when a database URL is configured, a
// local badger store when a data directory is configured, otherwise in-memory.
func NewStore(ctx context.Context, databaseURL, dataDir string) (Store, error) {
	if strings.TrimSpace(databaseURL) != "" {
		return NewPostgresStore(ctx, databaseURL)
	}
	if strings.TrimSpace(dataDir) != "" {
		return NewBadgerStore(dataDir)
	}
	return NewInMemoryStore(), nil
}
