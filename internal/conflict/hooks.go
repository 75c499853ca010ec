package conflict

import "sync"

// HookResult is what a hook returns. A non-empty Resolution short-circuits
// the resolution pipeline with that value; an empty Resolution falls
// through to last-write-wins.
type HookResult struct {
	Resolution ResolutionStatus
}

// Hook is a caller-supplied override for how a resource_type's conflicts
// are resolved. It receives the conflict id and the raw local/server JSON
// bodies. A hook that panics is treated the same as one that returns an
// error: the pipeline logs it and falls through to last-write-wins.
type Hook func(conflictID int64, localData, serverData string) (HookResult, error)

// Hooks is a thread-safe resource_type -> Hook registry. Registration is
// idempotent: registering a second hook for the same resource_type
// replaces the first. De-registration by resource_type removes the entry.
type Hooks struct {
	mu    sync.RWMutex
	byRes map[string]Hook
}

// NewHooks returns an empty registry.
func NewHooks() *Hooks {
	return &Hooks{byRes: make(map[string]Hook)}
}

// Register binds hook to resourceType, replacing any prior hook for it.
func (h *Hooks) Register(resourceType string, hook Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byRes[resourceType] = hook
}

// Unregister removes any hook bound to resourceType.
func (h *Hooks) Unregister(resourceType string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.byRes, resourceType)
}

// Lookup returns the hook for resourceType, if any.
func (h *Hooks) Lookup(resourceType string) (Hook, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	hook, ok := h.byRes[resourceType]
	return hook, ok
}
