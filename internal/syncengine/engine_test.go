package syncengine

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/localsync/syncd/internal/cache"
	"github.com/localsync/syncd/internal/conflict"
	"github.com/localsync/syncd/internal/eventbus"
	"github.com/localsync/syncd/internal/interceptor"
	"github.com/localsync/syncd/internal/metadata"
	"github.com/localsync/syncd/internal/queue"
	"github.com/localsync/syncd/internal/storage/sqlite"
	"github.com/localsync/syncd/internal/synclog"
)

type fakeTransport struct {
	status int
	body   string
	err    error
}

func (f *fakeTransport) Do(req *http.Request) (*http.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &http.Response{
		StatusCode: f.status,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewBufferString(f.body)),
	}, nil
}

type harness struct {
	engine    *Engine
	queue     *queue.Queue
	metadata  *metadata.Store
	transport *fakeTransport
	online    *interceptor.AtomicOnlineState
}

func newHarness(t *testing.T, cfg Config, transport *fakeTransport) *harness {
	t.Helper()
	store, err := sqlite.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	q := queue.New(store)
	c := cache.New(store)
	online := interceptor.NewOnlineState(true)
	ic := interceptor.New(online, interceptor.NewMapCredentialSource(), transport, c, q, "")
	cs := conflict.NewStore(store)
	log := synclog.New(store)
	resolver := conflict.NewResolver(cs, conflict.NewHooks(), q, log, nil)
	meta := metadata.New(store)
	bus := eventbus.New()

	e := New(q, ic, online, resolver, meta, log, bus, cfg)
	return &harness{engine: e, queue: q, metadata: meta, transport: transport, online: online}
}

func TestRunBatchCompletesOnSuccess(t *testing.T) {
	h := newHarness(t, DefaultConfig(), &fakeTransport{status: 200, body: `{}`})
	ctx := context.Background()

	id, _, err := h.queue.Enqueue(ctx, "POST", "/api/widgets", nil, []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	state := h.engine.runBatch(ctx, StateIdle)
	if state != StateIdle {
		t.Fatalf("expected idle after an empty-remainder batch, got %s", state)
	}

	entry, err := h.queue.ByID(ctx, id)
	if err != nil {
		t.Fatalf("by_id: %v", err)
	}
	if entry.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s", entry.Status)
	}
}

func TestRunBatchSchedulesRetryOnServerError(t *testing.T) {
	cfg := DefaultConfig()
	h := newHarness(t, cfg, &fakeTransport{status: 500, body: ""})
	ctx := context.Background()

	id, _, err := h.queue.Enqueue(ctx, "POST", "/api/widgets", nil, []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	h.engine.runBatch(ctx, StateIdle)

	entry, err := h.queue.ByID(ctx, id)
	if err != nil {
		t.Fatalf("by_id: %v", err)
	}
	if entry.Status != queue.StatusPending {
		t.Fatalf("expected still pending after first failure, got %s", entry.Status)
	}
	if entry.RetryCount != 1 {
		t.Fatalf("expected retry_count 1, got %d", entry.RetryCount)
	}
	if entry.NextRetryAt == nil {
		t.Fatalf("expected next_retry_at to be set")
	}
}

func TestRunBatchFailsAfterMaxRetries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRetries = 1
	h := newHarness(t, cfg, &fakeTransport{status: 500, body: ""})
	ctx := context.Background()

	id, _, err := h.queue.Enqueue(ctx, "POST", "/api/widgets", nil, []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := h.queue.IncrementRetry(ctx, id); err != nil {
		t.Fatalf("increment retry: %v", err)
	}

	h.engine.runBatch(ctx, StateIdle)

	entry, err := h.queue.ByID(ctx, id)
	if err != nil {
		t.Fatalf("by_id: %v", err)
	}
	if entry.Status != queue.StatusFailed {
		t.Fatalf("expected failed after exceeding max_retries, got %s", entry.Status)
	}
}

func TestRunBatchRoutesConflictToResolver(t *testing.T) {
	h := newHarness(t, DefaultConfig(), &fakeTransport{status: 409, body: `{"modified":"2024-01-15T10:00:00Z"}`})
	ctx := context.Background()

	id, _, err := h.queue.Enqueue(ctx, "PUT", "/api/customers/42", nil, []byte(`{"modified":"2024-01-15T12:00:00Z"}`))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	h.engine.runBatch(ctx, StateIdle)

	entry, err := h.queue.ByID(ctx, id)
	if err != nil {
		t.Fatalf("by_id: %v", err)
	}
	// Local timestamp is newer, so last-write-wins re-queues to pending
	// rather than incrementing retry_count.
	if entry.Status != queue.StatusPending {
		t.Fatalf("expected pending (local_wins), got %s", entry.Status)
	}
	if entry.RetryCount != 0 {
		t.Fatalf("conflict handling must not touch retry_count, got %d", entry.RetryCount)
	}
}

func TestRunBatchSkipsWhenOffline(t *testing.T) {
	// A short tick interval so several ticks fire during the sleep below and
	// the offline check, not the absence of ticks, keeps the request queued.
	cfg := DefaultConfig()
	cfg.TickInterval = 10 * time.Millisecond
	h := newHarness(t, cfg, &fakeTransport{status: 200, body: `{}`})
	h.online.SetOnline(false)
	ctx := context.Background()

	if _, _, err := h.queue.Enqueue(ctx, "POST", "/api/widgets", nil, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	h.engine.Start()
	time.Sleep(50 * time.Millisecond)
	_ = h.engine.SafeShutdown(context.Background())

	stats, err := h.queue.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats[queue.StatusPending] != 1 {
		t.Fatalf("expected the request to remain queued while offline, got %+v", stats)
	}
}

func TestSafeShutdownPersistsLastSyncTime(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickInterval = 20 * time.Millisecond
	cfg.SafeShutdownTimeout = 2 * time.Second
	h := newHarness(t, cfg, &fakeTransport{status: 200, body: `{}`})
	ctx := context.Background()

	if _, _, err := h.queue.Enqueue(ctx, "POST", "/api/widgets", nil, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	h.engine.Start()
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	if err := h.engine.SafeShutdown(ctx); err != nil {
		t.Fatalf("safe shutdown: %v", err)
	}
	if elapsed := time.Since(start); elapsed > cfg.SafeShutdownTimeout {
		t.Fatalf("safe shutdown exceeded its bound: %s", elapsed)
	}

	if _, ok, err := h.metadata.Get(ctx, metadata.LastSyncTimeKey); err != nil || !ok {
		t.Fatalf("expected last_sync_time to be persisted, ok=%v err=%v", ok, err)
	}
}

func TestStopPreventsFurtherTicks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickInterval = 10 * time.Millisecond
	h := newHarness(t, cfg, &fakeTransport{status: 200, body: `{}`})

	h.engine.Start()
	h.engine.Stop()
	time.Sleep(50 * time.Millisecond)

	if snap := h.engine.Status(); snap.State != StateIdle {
		t.Fatalf("expected idle after Stop, got %s", snap.State)
	}
	_ = h.engine.SafeShutdown(context.Background())
}
