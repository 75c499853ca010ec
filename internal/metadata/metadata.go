// Package metadata implements the sync_metadata key/value store: small
// durable facts like last_sync_time that the Sync Engine is the sole
// writer of.
package metadata

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/localsync/syncd/internal/storage/sqlite"
)

// LastSyncTimeKey is the conventional key under which the engine records
// the wall-clock time its most recent successful drain completed.
const LastSyncTimeKey = "last_sync_time"

// Store wraps the sync_metadata table.
type Store struct {
	store *sqlite.Store
}

// New returns a Store backed by store.
func New(store *sqlite.Store) *Store {
	return &Store{store: store}
}

// Set upserts key=value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.store.DB().ExecContext(ctx, `
		INSERT INTO sync_metadata (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("metadata set: %w", err)
	}
	return nil
}

// Get returns the value for key, or ok=false if unset.
func (s *Store) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.store.DB().QueryRowContext(ctx, `SELECT value FROM sync_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("metadata get: %w", err)
	}
	return value, true, nil
}
