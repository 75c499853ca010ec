package metadata

import (
	"context"
	"testing"

	"github.com/localsync/syncd/internal/storage/sqlite"
)

func TestSetGetRoundTrip(t *testing.T) {
	store, err := sqlite.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	m := New(store)
	ctx := context.Background()

	if _, ok, err := m.Get(ctx, LastSyncTimeKey); err != nil || ok {
		t.Fatalf("expected unset, got ok=%v err=%v", ok, err)
	}

	if err := m.Set(ctx, LastSyncTimeKey, "2024-01-15T12:00:00Z"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := m.Get(ctx, LastSyncTimeKey)
	if err != nil || !ok {
		t.Fatalf("expected set, got ok=%v err=%v", ok, err)
	}
	if v != "2024-01-15T12:00:00Z" {
		t.Fatalf("unexpected value: %s", v)
	}

	if err := m.Set(ctx, LastSyncTimeKey, "2024-01-15T13:00:00Z"); err != nil {
		t.Fatalf("set again: %v", err)
	}
	v, _, _ = m.Get(ctx, LastSyncTimeKey)
	if v != "2024-01-15T13:00:00Z" {
		t.Fatalf("expected updated value, got %s", v)
	}
}
