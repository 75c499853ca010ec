// Package queue implements the durable write-ahead request queue: the
// table a client write lands in when it cannot be sent immediately, with
// content-fingerprint deduplication, a closed status lifecycle, and a
// retry schedule the sync engine advances.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/localsync/syncd/internal/storage/sqlite"
)

// Entry is one row of sync_queue.
type Entry struct {
	ID              int64
	Method          string
	URL             string
	Headers         map[string]string
	Body            []byte
	Fingerprint     string
	Status          Status
	RetryCount      int
	NextRetryAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ErrorMessage    string
	ResourceID      string
	ResourceType    string
	ResourceVersion string
}

// Stats is a count of queue rows grouped by status.
type Stats map[Status]int

// Queue wraps the sync_queue table. Each method runs as its own statement
// on the shared handle; none accepts a *sql.Tx, so several calls cannot be
// grouped into one transaction.
type Queue struct {
	store *sqlite.Store
}

// New returns a Queue backed by store.
func New(store *sqlite.Store) *Queue {
	return &Queue{store: store}
}

// Enqueue inserts a new pending request, or returns the id of the existing
// row with the same fingerprint. A unique-violation on the fingerprint is
// an expected outcome, never an error: at most one pending-or-terminal row
// exists per fingerprint.
func (q *Queue) Enqueue(ctx context.Context, method, url string, headers map[string]string, body []byte) (id int64, existing bool, err error) {
	fp := Fingerprint(method, url, body)

	headerJSON, err := marshalHeaders(headers)
	if err != nil {
		return 0, false, fmt.Errorf("marshal headers: %w", err)
	}

	res, err := q.store.DB().ExecContext(ctx, `
		INSERT INTO sync_queue (method, url, headers, body, request_hash, status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(request_hash) DO NOTHING
	`, method, url, headerJSON, body, fp, string(StatusPending))
	if err != nil {
		return 0, false, fmt.Errorf("enqueue: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("enqueue: rows affected: %w", err)
	}
	if affected > 0 {
		insertedID, err := res.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("enqueue: last insert id: %w", err)
		}
		return insertedID, false, nil
	}

	var existingID int64
	err = q.store.DB().QueryRowContext(ctx, `SELECT id FROM sync_queue WHERE request_hash = ?`, fp).Scan(&existingID)
	if err != nil {
		return 0, false, fmt.Errorf("enqueue: lookup existing by fingerprint: %w", err)
	}
	return existingID, true, nil
}

// ReadyForRetry returns up to limit pending rows whose next_retry_at is
// null or has passed, ordered by created_at ascending (the engine's
// per-batch processing order).
func (q *Queue) ReadyForRetry(ctx context.Context, now time.Time, limit int) ([]*Entry, error) {
	rows, err := q.store.DB().QueryContext(ctx, `
		SELECT id, method, url, headers, body, request_hash, status, retry_count,
		       next_retry_at, created_at, updated_at, error_message,
		       resource_id, resource_type, resource_version
		FROM sync_queue
		WHERE status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at ASC
		LIMIT ?
	`, string(StatusPending), now, limit)
	if err != nil {
		return nil, fmt.Errorf("ready_for_retry: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("ready_for_retry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ByID returns the row with the given id.
func (q *Queue) ByID(ctx context.Context, id int64) (*Entry, error) {
	row := q.store.DB().QueryRowContext(ctx, `
		SELECT id, method, url, headers, body, request_hash, status, retry_count,
		       next_retry_at, created_at, updated_at, error_message,
		       resource_id, resource_type, resource_version
		FROM sync_queue WHERE id = ?
	`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("by_id: %w", err)
	}
	return e, nil
}

// UpdateStatus sets status (and, if non-empty, error_message) on a row.
func (q *Queue) UpdateStatus(ctx context.Context, id int64, status Status, errMsg string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	res, err := q.store.DB().ExecContext(ctx, `
		UPDATE sync_queue SET status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, string(status), nullableString(errMsg), id)
	if err != nil {
		return fmt.Errorf("update_status: %w", err)
	}
	return requireAffected(res, "update_status")
}

// IncrementRetry bumps retry_count by one.
func (q *Queue) IncrementRetry(ctx context.Context, id int64) error {
	res, err := q.store.DB().ExecContext(ctx, `
		UPDATE sync_queue SET retry_count = retry_count + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("increment_retry: %w", err)
	}
	return requireAffected(res, "increment_retry")
}

// SetNextRetry sets next_retry_at to now + delay.
func (q *Queue) SetNextRetry(ctx context.Context, id int64, delay time.Duration) error {
	next := time.Now().UTC().Add(delay)
	res, err := q.store.DB().ExecContext(ctx, `
		UPDATE sync_queue SET next_retry_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, next, id)
	if err != nil {
		return fmt.Errorf("set_next_retry: %w", err)
	}
	return requireAffected(res, "set_next_retry")
}

// Stats returns row counts grouped by status.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	rows, err := q.store.DB().QueryContext(ctx, `SELECT status, count(*) FROM sync_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	defer rows.Close()

	stats := make(Stats)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
		s := Status(status)
		if !s.Valid() {
			return nil, fmt.Errorf("stats: %w: %q", ErrInvalidStatus, status)
		}
		stats[s] = count
	}
	return stats, rows.Err()
}

// Sweep deletes rows created before olderThan and returns the count removed.
func (q *Queue) Sweep(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := q.store.DB().ExecContext(ctx, `DELETE FROM sync_queue WHERE created_at < ?`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}
	return res.RowsAffected()
}

// RemoveByID deletes a single row by id, for operator-initiated cleanup.
func (q *Queue) RemoveByID(ctx context.Context, id int64) error {
	res, err := q.store.DB().ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove_by_id: %w", err)
	}
	return requireAffected(res, "remove_by_id")
}

// RetryByID moves a failed (or pending) row back to pending, clearing
// next_retry_at so it is picked up on the next tick. If resetRetryCount is
// true, retry_count is reset to zero as well.
func (q *Queue) RetryByID(ctx context.Context, id int64, resetRetryCount bool) error {
	query := `UPDATE sync_queue SET status = ?, next_retry_at = NULL, error_message = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	args := []any{string(StatusPending), id}
	if resetRetryCount {
		query = `UPDATE sync_queue SET status = ?, next_retry_at = NULL, error_message = NULL, retry_count = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	}
	res, err := q.store.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("retry_by_id: %w", err)
	}
	return requireAffected(res, "retry_by_id")
}

// List returns up to limit rows, most recently created first, optionally
// filtered by status. Used by the operator queue-listing surface.
func (q *Queue) List(ctx context.Context, status Status, limit int) ([]*Entry, error) {
	var rows *sql.Rows
	var err error
	if status != "" {
		if !status.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
		}
		rows, err = q.store.DB().QueryContext(ctx, `
			SELECT id, method, url, headers, body, request_hash, status, retry_count,
			       next_retry_at, created_at, updated_at, error_message,
			       resource_id, resource_type, resource_version
			FROM sync_queue WHERE status = ? ORDER BY created_at DESC LIMIT ?
		`, string(status), limit)
	} else {
		rows, err = q.store.DB().QueryContext(ctx, `
			SELECT id, method, url, headers, body, request_hash, status, retry_count,
			       next_retry_at, created_at, updated_at, error_message,
			       resource_id, resource_type, resource_version
			FROM sync_queue ORDER BY created_at DESC LIMIT ?
		`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("list: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var e Entry
	var headerJSON string
	var status string
	var nextRetryAt sql.NullTime
	var errMsg, resourceID, resourceType, resourceVersion sql.NullString

	if err := s.Scan(&e.ID, &e.Method, &e.URL, &headerJSON, &e.Body, &e.Fingerprint,
		&status, &e.RetryCount, &nextRetryAt, &e.CreatedAt, &e.UpdatedAt,
		&errMsg, &resourceID, &resourceType, &resourceVersion); err != nil {
		return nil, err
	}

	e.Status = Status(status)
	if !e.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if nextRetryAt.Valid {
		t := nextRetryAt.Time
		e.NextRetryAt = &t
	}
	e.ErrorMessage = errMsg.String
	e.ResourceID = resourceID.String
	e.ResourceType = resourceType.String
	e.ResourceVersion = resourceVersion.String

	headers := make(map[string]string)
	if headerJSON != "" {
		if err := json.Unmarshal([]byte(headerJSON), &headers); err != nil {
			return nil, fmt.Errorf("unmarshal headers: %w", err)
		}
	}
	e.Headers = headers

	return &e, nil
}

func marshalHeaders(headers map[string]string) (string, error) {
	if headers == nil {
		return "{}", nil
	}
	b, err := json.Marshal(headers)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
