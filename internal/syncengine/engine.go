// Package syncengine implements the sync engine state machine: the
// scheduler that periodically drains the durable request queue with
// batching, exponential backoff, conflict routing, and bounded-time safe
// shutdown. All mutable scheduling state — the current State and the
// is_processing latch — is owned by a single goroutine, the same
// single-goroutine-owns-state, channel-driven shape the teacher's debounced
// flush loop uses: commands arrive on buffered channels, nothing outside
// run() ever touches engine state directly.
package syncengine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/localsync/syncd/internal/conflict"
	"github.com/localsync/syncd/internal/eventbus"
	"github.com/localsync/syncd/internal/interceptor"
	"github.com/localsync/syncd/internal/metadata"
	"github.com/localsync/syncd/internal/queue"
	"github.com/localsync/syncd/internal/synclog"
)

// State is one of the engine's three closed states.
type State string

const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
	StateFailed  State = "failed"
)

// Snapshot is a point-in-time read of engine status, for the operator
// sync-status surface.
type Snapshot struct {
	State        State
	Stats        queue.Stats
	LastSyncTime string
}

type forceSyncRequest struct {
	responseCh chan error
}

type shutdownRequest struct {
	responseCh chan error
}

// Engine owns the periodic drain loop. Construct with New, then Start it;
// Stop cancels future ticks without waiting, SafeShutdown waits bounded
// time for any in-flight drain before returning.
type Engine struct {
	queue      *queue.Queue
	interceptor *interceptor.Interceptor
	online     interceptor.OnlineState
	resolver   *conflict.Resolver
	metadata   *metadata.Store
	log        *synclog.Log
	bus        *eventbus.Bus
	cfg        Config

	forceSyncCh chan forceSyncRequest
	shutdownCh  chan shutdownRequest
	stopCh      chan struct{}
	doneCh      chan struct{}
	stopOnce    sync.Once

	snapshot atomic.Value // Snapshot
}

// New wires an Engine. online is the same OnlineState collaborator the
// interceptor uses, so engine ticks and interceptor routing agree on
// connectivity. Call Start to begin the periodic tick loop.
func New(q *queue.Queue, ic *interceptor.Interceptor, online interceptor.OnlineState, resolver *conflict.Resolver, meta *metadata.Store, log *synclog.Log, bus *eventbus.Bus, cfg Config) *Engine {
	e := &Engine{
		queue:       q,
		interceptor: ic,
		online:      online,
		resolver:    resolver,
		metadata:    meta,
		log:         log,
		bus:         bus,
		cfg:         cfg,
		forceSyncCh: make(chan forceSyncRequest, 1),
		shutdownCh:  make(chan shutdownRequest, 1),
		stopCh:      make(chan struct{}, 1),
		doneCh:      make(chan struct{}),
	}
	e.snapshot.Store(Snapshot{State: StateIdle})
	return e
}

// Start launches the tick loop in a background goroutine. It is not safe
// to call Start more than once on the same Engine.
func (e *Engine) Start() {
	go e.run()
}

// Status returns the most recent snapshot of engine state.
func (e *Engine) Status() Snapshot {
	return e.snapshot.Load().(Snapshot)
}

// Stop prevents new ticks from starting. It does not wait for a tick
// already in flight; use SafeShutdown for that.
func (e *Engine) Stop() {
	select {
	case e.stopCh <- struct{}{}:
	default:
	}
}

// ForceSync triggers an immediate drain outside the normal tick interval,
// for the operator's force-sync command. It blocks until that drain (or
// the currently in-flight one, if any) completes.
func (e *Engine) ForceSync(ctx context.Context) error {
	responseCh := make(chan error, 1)
	select {
	case e.forceSyncCh <- forceSyncRequest{responseCh: responseCh}:
	case <-e.doneCh:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-responseCh:
		return err
	case <-e.doneCh:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SafeShutdown stops the periodic tick, then blocks up to
// cfg.SafeShutdownTimeout while a drain in flight finishes, persisting
// last_sync_time before returning regardless of whether the drain
// completed within that window. It never aborts mid-request state
// mutations: the underlying run loop only ever observes the shutdown
// request between batches.
func (e *Engine) SafeShutdown(ctx context.Context) error {
	var err error
	e.stopOnce.Do(func() {
		responseCh := make(chan error, 1)
		select {
		case e.shutdownCh <- shutdownRequest{responseCh: responseCh}:
		case <-e.doneCh:
			return
		}

		timeout := e.cfg.SafeShutdownTimeout
		if timeout <= 0 {
			timeout = DefaultConfig().SafeShutdownTimeout
		}
		select {
		case err = <-responseCh:
		case <-time.After(timeout):
			// Bounded wait elapsed with a drain still in flight; persist
			// last_sync_time now so it is written before returning. The run
			// loop writes it again once the in-flight batch completes.
			err = e.persistLastSyncTime(context.Background())
		case <-ctx.Done():
			_ = e.persistLastSyncTime(context.Background())
			err = ctx.Err()
		}
	})
	return err
}

func (e *Engine) run() {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	enabled := true
	state := StateIdle

	for {
		select {
		case <-ticker.C:
			if !enabled || e.online == nil || !e.online.IsOnline() {
				continue
			}
			state = e.runBatch(context.Background(), state)

		case req := <-e.forceSyncCh:
			if !enabled {
				req.responseCh <- ErrNotRunning
				continue
			}
			state = e.runBatch(context.Background(), state)
			req.responseCh <- nil

		case <-e.stopCh:
			enabled = false
			state = StateIdle
			e.publishState(state)

		case req := <-e.shutdownCh:
			enabled = false
			_ = e.persistLastSyncTime(context.Background())
			state = StateIdle
			e.publishState(state)
			req.responseCh <- nil
			return
		}
	}
}

// runBatch fetches up to batch_size ready entries and processes them in
// order, one at a time — the single in-flight-batch latch is implicit in
// run()'s select loop never re-entering this method concurrently with
// itself. It returns the engine's new state.
func (e *Engine) runBatch(ctx context.Context, prevState State) State {
	entries, err := e.queue.ReadyForRetry(ctx, time.Now().UTC(), e.cfg.BatchSize)
	if err != nil {
		e.publishState(StateFailed)
		return StateFailed
	}
	if len(entries) == 0 {
		if prevState != StateIdle {
			e.publishState(StateIdle)
		}
		return StateIdle
	}

	e.publishState(StateSyncing)

	var success, failure, confl int
	for i, entry := range entries {
		outcome, perr := e.process(ctx, entry)
		if perr != nil {
			// A storage-layer failure mid-batch is fatal to this tick; the
			// next tick attempts recovery from the failed state.
			e.publishProgress(i+1, len(entries), success, failure+1, confl)
			e.publishState(StateFailed)
			return StateFailed
		}
		switch outcome {
		case outcomeSuccess:
			success++
		case outcomeFailure:
			failure++
		case outcomeConflict:
			confl++
		}
		e.publishProgress(i+1, len(entries), success, failure, confl)
	}

	if err := e.persistLastSyncTime(ctx); err != nil {
		e.publishState(StateFailed)
		return StateFailed
	}

	remaining, err := e.queue.ReadyForRetry(ctx, time.Now().UTC(), 1)
	if err != nil {
		e.publishState(StateFailed)
		return StateFailed
	}
	if len(remaining) == 0 {
		e.publishState(StateIdle)
		return StateIdle
	}
	// More ready work exists (e.g. a retry whose next_retry_at has already
	// elapsed); stay in syncing until the next tick drains it.
	return StateSyncing
}

func (e *Engine) persistLastSyncTime(ctx context.Context) error {
	return e.metadata.Set(ctx, metadata.LastSyncTimeKey, time.Now().UTC().Format(time.RFC3339))
}

func (e *Engine) publishState(state State) {
	stats, _ := e.queue.Stats(context.Background())
	lastSync, _, _ := e.metadata.Get(context.Background(), metadata.LastSyncTimeKey)

	statsByName := make(map[string]int, len(stats))
	for k, v := range stats {
		statsByName[string(k)] = v
	}

	snap := Snapshot{State: state, Stats: stats, LastSyncTime: lastSync}
	e.snapshot.Store(snap)

	if e.bus != nil {
		e.bus.Publish(eventbus.StateChanged{State: string(state), Stats: statsByName, LastSyncTime: lastSync})
	}
	if e.log != nil {
		_ = e.log.Record(context.Background(), nil, synclog.EventStateChanged, fmt.Sprintf("state -> %s", state), "")
	}
}

func (e *Engine) publishProgress(processed, total, success, failure, confl int) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(eventbus.Progress{Processed: processed, Total: total, Success: success, Failure: failure, Conflict: confl})
}
