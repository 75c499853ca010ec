// Package cache implements the fingerprint-keyed response cache: the
// last-written body for an idempotent read, served back when the
// interceptor is offline.
package cache

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/localsync/syncd/internal/storage/sqlite"
)

// Cache wraps the request_cache table.
type Cache struct {
	store *sqlite.Store
}

// New returns a Cache backed by store.
func New(store *sqlite.Store) *Cache {
	return &Cache{store: store}
}

// Put upserts the cached body for fingerprint. A later Put for the same
// fingerprint always replaces the prior entry; there is no merge.
func (c *Cache) Put(ctx context.Context, fingerprint string, body []byte) error {
	_, err := c.store.DB().ExecContext(ctx, `
		INSERT INTO request_cache (request_hash, response_data, cached_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(request_hash) DO UPDATE SET
			response_data = excluded.response_data,
			cached_at = excluded.cached_at
	`, fingerprint, body)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Get returns the cached body for fingerprint, or ok=false if absent.
func (c *Cache) Get(ctx context.Context, fingerprint string) (body []byte, ok bool, err error) {
	err = c.store.DB().QueryRowContext(ctx, `
		SELECT response_data FROM request_cache WHERE request_hash = ?
	`, fingerprint).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	return body, true, nil
}
