// Package synclog persists the durable audit trail backing the event bus:
// one row per engine-observed event (completed, conflict, retry_scheduled,
// state_changed), queryable by queue entry or by recency for the operator
// sync-log surface.
package synclog

import (
	"context"
	"fmt"
	"time"

	"github.com/localsync/syncd/internal/storage/sqlite"
)

// EventType is the closed set of events the engine records.
type EventType string

const (
	EventCompleted      EventType = "completed"
	EventConflict       EventType = "conflict"
	EventRetryScheduled EventType = "retry_scheduled"
	EventStateChanged   EventType = "state_changed"
)

// Entry is one row of sync_log.
type Entry struct {
	ID        int64
	QueueID   *int64
	EventType EventType
	Message   string
	Meta      string
	CreatedAt time.Time
}

// Log wraps the sync_log table.
type Log struct {
	store *sqlite.Store
}

// New returns a Log backed by store.
func New(store *sqlite.Store) *Log {
	return &Log{store: store}
}

// Record appends one event. queueID may be nil for events with no
// originating queue row (e.g. state_changed).
func (l *Log) Record(ctx context.Context, queueID *int64, eventType EventType, message, meta string) error {
	_, err := l.store.DB().ExecContext(ctx, `
		INSERT INTO sync_log (queue_id, event_type, message, meta)
		VALUES (?, ?, ?, ?)
	`, queueID, string(eventType), message, meta)
	if err != nil {
		return fmt.Errorf("synclog record: %w", err)
	}
	return nil
}

// ListForQueueEntry returns all log rows for a given queue id, oldest first.
func (l *Log) ListForQueueEntry(ctx context.Context, queueID int64) ([]*Entry, error) {
	rows, err := l.store.DB().QueryContext(ctx, `
		SELECT id, queue_id, event_type, message, meta, created_at
		FROM sync_log WHERE queue_id = ? ORDER BY created_at ASC
	`, queueID)
	if err != nil {
		return nil, fmt.Errorf("synclog list_for_queue_entry: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListRecent returns up to limit most recent log rows, newest first.
func (l *Log) ListRecent(ctx context.Context, limit int) ([]*Entry, error) {
	rows, err := l.store.DB().QueryContext(ctx, `
		SELECT id, queue_id, event_type, message, meta, created_at
		FROM sync_log ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("synclog list_recent: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var e Entry
		var queueID *int64
		var eventType string
		if err := rows.Scan(&e.ID, &queueID, &eventType, &e.Message, &e.Meta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("synclog scan: %w", err)
		}
		e.QueueID = queueID
		e.EventType = EventType(eventType)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
