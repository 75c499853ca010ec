package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/localsync/syncd/internal/conflict"
	"github.com/localsync/syncd/internal/queue"
	"github.com/localsync/syncd/internal/rpc"
)

// registerHandlers binds every operator RPC method to the wired
// components. Method names are the CLI's contract with the daemon; they
// never change once a release ships.
func registerHandlers(server *rpc.Server, c *components) {
	server.Register("credential.set", c.handleCredentialSet)
	server.Register("credential.clear", c.handleCredentialClear)
	server.Register("credential.get", c.handleCredentialGet)

	server.Register("queue.stats", c.handleQueueStats)
	server.Register("queue.list", c.handleQueueList)
	server.Register("queue.remove", c.handleQueueRemove)
	server.Register("queue.retry", c.handleQueueRetry)

	server.Register("online.set", c.handleOnlineSet)
	server.Register("online.get", c.handleOnlineGet)

	server.Register("sync.force", c.handleForceSync)
	server.Register("sync.status", c.handleSyncStatus)
	server.Register("sync.log", c.handleSyncLog)

	server.Register("conflict.pending", c.handleConflictsPending)
	server.Register("conflict.resolve", c.handleConflictResolve)

	server.Register("queue.sweep", c.handleSweep)
}

type credentialSetParams struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (c *components) handleCredentialSet(_ context.Context, params json.RawMessage) (any, error) {
	var p credentialSetParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if p.Key == "" {
		return nil, fmt.Errorf("key is required")
	}
	c.credentials.Set(p.Key, p.Value)
	return nil, nil
}

func (c *components) handleCredentialClear(_ context.Context, _ json.RawMessage) (any, error) {
	c.credentials.Clear()
	return nil, nil
}

type credentialGetResult struct {
	Key   string `json:"key"`
	IsSet bool   `json:"is_set"`
}

func (c *components) handleCredentialGet(ctx context.Context, _ json.RawMessage) (any, error) {
	key, _, ok := c.credentials.Header(ctx)
	return credentialGetResult{Key: key, IsSet: ok}, nil
}

func (c *components) handleQueueStats(ctx context.Context, _ json.RawMessage) (any, error) {
	return c.queue.Stats(ctx)
}

type queueListParams struct {
	Limit  int    `json:"limit"`
	Status string `json:"status"`
}

func (c *components) handleQueueList(ctx context.Context, params json.RawMessage) (any, error) {
	var p queueListParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
	}
	if p.Limit <= 0 {
		p.Limit = 50
	}
	return c.queue.List(ctx, queue.Status(p.Status), p.Limit)
}

type idParams struct {
	ID int64 `json:"id"`
}

func (c *components) handleQueueRemove(ctx context.Context, params json.RawMessage) (any, error) {
	var p idParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	return nil, c.queue.RemoveByID(ctx, p.ID)
}

type queueRetryParams struct {
	ID              int64 `json:"id"`
	ResetRetryCount bool  `json:"reset_retry_count"`
}

func (c *components) handleQueueRetry(ctx context.Context, params json.RawMessage) (any, error) {
	var p queueRetryParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	return nil, c.queue.RetryByID(ctx, p.ID, p.ResetRetryCount)
}

type onlineSetParams struct {
	Online bool `json:"online"`
}

func (c *components) handleOnlineSet(_ context.Context, params json.RawMessage) (any, error) {
	var p onlineSetParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	c.online.SetOnline(p.Online)
	return nil, nil
}

type onlineGetResult struct {
	Online bool `json:"online"`
}

func (c *components) handleOnlineGet(_ context.Context, _ json.RawMessage) (any, error) {
	return onlineGetResult{Online: c.online.IsOnline()}, nil
}

func (c *components) handleForceSync(ctx context.Context, _ json.RawMessage) (any, error) {
	return nil, c.engine.ForceSync(ctx)
}

func (c *components) handleSyncStatus(_ context.Context, _ json.RawMessage) (any, error) {
	return c.engine.Status(), nil
}

type syncLogParams struct {
	Limit   int    `json:"limit"`
	QueueID *int64 `json:"queue_id"`
}

func (c *components) handleSyncLog(ctx context.Context, params json.RawMessage) (any, error) {
	var p syncLogParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
	}
	if p.QueueID != nil {
		return c.synclog.ListForQueueEntry(ctx, *p.QueueID)
	}
	if p.Limit <= 0 {
		p.Limit = 50
	}
	return c.synclog.ListRecent(ctx, p.Limit)
}

type conflictsPendingParams struct {
	Limit int `json:"limit"`
}

func (c *components) handleConflictsPending(ctx context.Context, params json.RawMessage) (any, error) {
	var p conflictsPendingParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
	}
	if p.Limit <= 0 {
		p.Limit = 50
	}
	return c.conflicts.ListPending(ctx, p.Limit)
}

type conflictResolveParams struct {
	ID         int64  `json:"id"`
	Resolution string `json:"resolution"`
}

func (c *components) handleConflictResolve(ctx context.Context, params json.RawMessage) (any, error) {
	var p conflictResolveParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	return nil, c.resolver.ResolveManually(ctx, p.ID, conflict.ResolutionStatus(p.Resolution))
}

type sweepParams struct {
	OlderThanDays int `json:"older_than_days"`
}

type sweepResult struct {
	Removed int64 `json:"removed"`
}

func (c *components) handleSweep(ctx context.Context, params json.RawMessage) (any, error) {
	var p sweepParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
	}
	days := p.OlderThanDays
	if days <= 0 {
		days = c.watcher.Current().SweepAgeDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	removed, err := c.queue.Sweep(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	return sweepResult{Removed: removed}, nil
}
