package conflict

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/localsync/syncd/internal/queue"
	"github.com/localsync/syncd/internal/synclog"
)

// Detected is what a caller (the sync engine) assembles before handing a
// non-success response to the resolver.
type Detected struct {
	ResourceID     string
	ResourceType   string
	LocalRequestID *int64
	LocalData      string
	ServerData     string
	ServerVersion  string
	ConflictType   Type
}

// Resolver implements the persist -> hook -> last-write-wins -> effect
// pipeline, plus manual adjudication.
type Resolver struct {
	store     *Store
	hooks     *Hooks
	queue     *queue.Queue
	log       *synclog.Log
	predicate Predicate
}

// NewResolver wires a Resolver. predicate may be nil to use DefaultPredicate.
func NewResolver(store *Store, hooks *Hooks, q *queue.Queue, log *synclog.Log, predicate Predicate) *Resolver {
	if predicate == nil {
		predicate = DefaultPredicate
	}
	return &Resolver{store: store, hooks: hooks, queue: q, log: log, predicate: predicate}
}

// DetectType classifies a non-success response via the configured predicate.
func (r *Resolver) DetectType(status int, body string) (Type, bool) {
	return r.predicate(status, body)
}

// ExtractResourceInfo derives resource_type/resource_id from a request URL
// by taking the last two non-empty path segments (type, then id), falling
// back to "name"/"id" fields in the parsed local body when the URL alone
// doesn't yield two segments.
func ExtractResourceInfo(url string, localBody map[string]any) (resourceType, resourceID string) {
	var segments []string
	for _, p := range strings.Split(url, "/") {
		if p != "" {
			segments = append(segments, p)
		}
	}
	switch {
	case len(segments) >= 2:
		resourceType = segments[len(segments)-2]
		resourceID = segments[len(segments)-1]
	case len(segments) == 1:
		resourceID = segments[0]
	}
	if resourceType == "" {
		if v, ok := localBody["name"].(string); ok {
			resourceType = v
		}
	}
	if resourceID == "" {
		if v, ok := localBody["id"]; ok {
			resourceID = fmt.Sprint(v)
		}
	}
	return resourceType, resourceID
}

// ParseJSONObject parses body as a JSON object. On parse failure (including
// an empty body), it returns an empty map rather than an error, matching
// "treat local data as empty" on parse failure.
func ParseJSONObject(body []byte) map[string]any {
	if len(body) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return map[string]any{}
	}
	return m
}

// Resolve runs the full pipeline for a detected conflict: persist, hook
// (if registered), last-write-wins fallback, then apply the effect on the
// originating queued request.
func (r *Resolver) Resolve(ctx context.Context, d Detected) (int64, error) {
	conflictID, err := r.store.Record(ctx, d.ResourceID, d.ResourceType, d.LocalRequestID, d.LocalData, d.ServerData, d.ServerVersion, d.ConflictType)
	if err != nil {
		return 0, err
	}
	if r.log != nil {
		_ = r.log.Record(ctx, d.LocalRequestID, synclog.EventConflict, fmt.Sprintf("conflict %d detected: %s", conflictID, d.ConflictType), "")
	}

	if hook, ok := r.hooks.Lookup(d.ResourceType); ok {
		result, hookErr := invokeHook(hook, conflictID, d.LocalData, d.ServerData)
		if hookErr != nil {
			if r.log != nil {
				_ = r.log.Record(ctx, d.LocalRequestID, synclog.EventConflict, fmt.Sprintf("hook for %q failed: %v", d.ResourceType, hookErr), "")
			}
		} else if result.Resolution != "" {
			if err := r.store.Resolve(ctx, conflictID, result.Resolution, time.Now().UTC()); err != nil {
				return conflictID, err
			}
			return conflictID, r.applyEffect(ctx, d.LocalRequestID, result.Resolution)
		}
	}

	resolution := applyLastWriteWins(ParseJSONObject([]byte(d.LocalData)), ParseJSONObject([]byte(d.ServerData)))
	if err := r.store.Resolve(ctx, conflictID, resolution, time.Now().UTC()); err != nil {
		return conflictID, err
	}
	return conflictID, r.applyEffect(ctx, d.LocalRequestID, resolution)
}

// ResolveManually applies an operator-supplied resolution. Invalid
// resolution values are a validation error; unknown ids are a lookup
// error. A second call with any resolution on an already-resolved
// conflict is a no-op.
func (r *Resolver) ResolveManually(ctx context.Context, conflictID int64, resolution ResolutionStatus) error {
	if !resolution.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidResolution, resolution)
	}
	existing, err := r.store.ByID(ctx, conflictID)
	if err != nil {
		return err
	}
	if existing.ResolutionStatus != ResolutionPending {
		return nil
	}
	if err := r.store.Resolve(ctx, conflictID, resolution, time.Now().UTC()); err != nil {
		return err
	}
	return r.applyEffect(ctx, existing.LocalRequestID, resolution)
}

func (r *Resolver) applyEffect(ctx context.Context, localRequestID *int64, resolution ResolutionStatus) error {
	if localRequestID == nil {
		return nil
	}
	switch resolution {
	case ResolutionLocalWins:
		return r.queue.UpdateStatus(ctx, *localRequestID, queue.StatusPending, "")
	case ResolutionServerWins, ResolutionSkip:
		return r.queue.UpdateStatus(ctx, *localRequestID, queue.StatusCompleted, fmt.Sprintf("Resolved: %s", resolution))
	default:
		return nil
	}
}

// applyLastWriteWins takes the modified (or updated_at) timestamp from
// each side; the larger wins when both are present and parseable. Ties
// and missing timestamps favor the server.
func applyLastWriteWins(local, server map[string]any) ResolutionStatus {
	localTime, localOK := extractTimestamp(local)
	serverTime, serverOK := extractTimestamp(server)
	if localOK && serverOK && localTime.After(serverTime) {
		return ResolutionLocalWins
	}
	return ResolutionServerWins
}

func extractTimestamp(data map[string]any) (time.Time, bool) {
	for _, key := range []string{"modified", "updated_at"} {
		raw, ok := data[key]
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			continue
		}
		return t, true
	}
	return time.Time{}, false
}

func invokeHook(hook Hook, conflictID int64, localData, serverData string) (result HookResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("hook panicked: %v", p)
		}
	}()
	return hook(conflictID, localData, serverData)
}
