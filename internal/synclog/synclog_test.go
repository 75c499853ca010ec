package synclog

import (
	"context"
	"testing"

	"github.com/localsync/syncd/internal/storage/sqlite"
)

func TestRecordAndList(t *testing.T) {
	store, err := sqlite.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	l := New(store)
	ctx := context.Background()

	// sync_log.queue_id references sync_queue(id) with foreign keys on, so
	// the logged queue id must belong to a real queue row.
	res, err := store.DB().ExecContext(ctx, `INSERT INTO sync_queue (method, url, request_hash) VALUES ('POST', '/api/x', 'fp-1')`)
	if err != nil {
		t.Fatalf("insert queue row: %v", err)
	}
	qID, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("last insert id: %v", err)
	}
	if err := l.Record(ctx, &qID, EventRetryScheduled, "retry 1", `{"delay_ms":1000}`); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Record(ctx, &qID, EventCompleted, "done", ""); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Record(ctx, nil, EventStateChanged, "idle->syncing", ""); err != nil {
		t.Fatalf("record: %v", err)
	}

	entries, err := l.ListForQueueEntry(ctx, qID)
	if err != nil {
		t.Fatalf("list_for_queue_entry: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].EventType != EventRetryScheduled || entries[1].EventType != EventCompleted {
		t.Fatalf("unexpected order: %+v", entries)
	}

	recent, err := l.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list_recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(recent))
	}
	if recent[0].EventType != EventStateChanged {
		t.Fatalf("expected most recent first, got %+v", recent[0])
	}
}
