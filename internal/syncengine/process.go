package syncengine

import (
	"context"
	"fmt"

	"github.com/localsync/syncd/internal/conflict"
	"github.com/localsync/syncd/internal/queue"
	"github.com/localsync/syncd/internal/synclog"
)

// outcome classifies what happened to one queue entry in a batch, for the
// progress event's success/failure/conflict breakdown.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeFailure
	outcomeConflict
)

// process executes one ready entry via the interceptor and applies the
// 2xx / conflict / retry-or-fail branches of the per-request processing
// rules. It never returns an error for ordinary HTTP or transport
// failures — those are recorded on the row itself (a scheduled retry, or
// failed once max_retries is reached); the
// error return is reserved for failures to record that state at all.
func (e *Engine) process(ctx context.Context, entry *queue.Entry) (outcome, error) {
	result, err := e.interceptor.Attempt(ctx, entry.Method, entry.URL, entry.Headers, entry.Body)
	if err != nil {
		return outcomeFailure, e.retryOrFail(ctx, entry, 0, err.Error())
	}

	if result.Status >= 200 && result.Status < 300 {
		if err := e.queue.UpdateStatus(ctx, entry.ID, queue.StatusCompleted, ""); err != nil {
			return outcomeFailure, err
		}
		_ = e.log.Record(ctx, &entry.ID, synclog.EventCompleted, fmt.Sprintf("completed with status %d", result.Status), "")
		return outcomeSuccess, nil
	}

	if ctype, ok := e.resolver.DetectType(result.Status, string(result.Body)); ok {
		if err := e.handleConflict(ctx, entry, ctype, result.Body); err != nil {
			return outcomeConflict, err
		}
		return outcomeConflict, nil
	}

	return outcomeFailure, e.retryOrFail(ctx, entry, result.Status, fmt.Sprintf("http status %d", result.Status))
}

func (e *Engine) handleConflict(ctx context.Context, entry *queue.Entry, ctype conflict.Type, serverBody []byte) error {
	localBody := conflict.ParseJSONObject(entry.Body)
	resourceType, resourceID := conflict.ExtractResourceInfo(entry.URL, localBody)
	if entry.ResourceType != "" {
		resourceType = entry.ResourceType
	}
	if entry.ResourceID != "" {
		resourceID = entry.ResourceID
	}

	localRequestID := entry.ID
	_, err := e.resolver.Resolve(ctx, conflict.Detected{
		ResourceID:     resourceID,
		ResourceType:   resourceType,
		LocalRequestID: &localRequestID,
		LocalData:      string(entry.Body),
		ServerData:     string(serverBody),
		ServerVersion:  entry.ResourceVersion,
		ConflictType:   ctype,
	})
	return err
}

// retryOrFail applies the backoff law or, once max_retries is exhausted,
// marks the entry terminally failed. statusCode is 0 for transport errors
// (no HTTP response was received at all).
func (e *Engine) retryOrFail(ctx context.Context, entry *queue.Entry, statusCode int, detail string) error {
	if entry.RetryCount >= e.cfg.MaxRetries {
		msg := fmt.Sprintf("Max retries exceeded (status %d)", statusCode)
		return e.queue.UpdateStatus(ctx, entry.ID, queue.StatusFailed, msg)
	}

	delay := Backoff(entry.RetryCount, e.cfg.BaseRetryDelay, e.cfg.MaxRetryDelay)
	if err := e.queue.IncrementRetry(ctx, entry.ID); err != nil {
		return err
	}
	if err := e.queue.SetNextRetry(ctx, entry.ID, delay); err != nil {
		return err
	}
	_ = e.log.Record(ctx, &entry.ID, synclog.EventRetryScheduled,
		fmt.Sprintf("retry %d scheduled in %s: %s", entry.RetryCount+1, delay, detail), "")
	return nil
}
