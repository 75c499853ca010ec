package cache

import (
	"context"
	"testing"

	"github.com/localsync/syncd/internal/storage/sqlite"
)

func TestPutGetRoundTrip(t *testing.T) {
	store, err := sqlite.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	c := New(store)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := c.Put(ctx, "fp1", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	body, ok, err := c.Get(ctx, "fp1")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(body) != `{"x":1}` {
		t.Fatalf("unexpected body: %s", body)
	}

	if err := c.Put(ctx, "fp1", []byte(`{"x":2}`)); err != nil {
		t.Fatalf("put replace: %v", err)
	}
	body, ok, err = c.Get(ctx, "fp1")
	if err != nil || !ok {
		t.Fatalf("expected hit after replace, got ok=%v err=%v", ok, err)
	}
	if string(body) != `{"x":2}` {
		t.Fatalf("expected replaced body, got %s", body)
	}
}
