package interceptor

import (
	"context"
	"sync"
	"sync/atomic"
)

// AtomicOnlineState is the default OnlineState: a single atomic flag,
// safe for concurrent reads from the interceptor and writes from the
// operator control plane.
type AtomicOnlineState struct {
	online atomic.Bool
}

// NewOnlineState returns an AtomicOnlineState starting in the given state.
func NewOnlineState(startOnline bool) *AtomicOnlineState {
	s := &AtomicOnlineState{}
	s.online.Store(startOnline)
	return s
}

func (s *AtomicOnlineState) IsOnline() bool    { return s.online.Load() }
func (s *AtomicOnlineState) SetOnline(v bool)  { s.online.Store(v) }

// MapCredentialSource is the default CredentialSource: a single in-process
// header key/value pair guarded by a mutex. No encryption-at-rest;
// treated as an opaque black-box per the contract.
type MapCredentialSource struct {
	mu     sync.RWMutex
	key    string
	value  string
	isSet  bool
}

// NewMapCredentialSource returns an empty credential source.
func NewMapCredentialSource() *MapCredentialSource {
	return &MapCredentialSource{}
}

// Set installs the header to add to every outgoing request.
func (c *MapCredentialSource) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key, c.value, c.isSet = key, value, true
}

// Clear removes the installed credential.
func (c *MapCredentialSource) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key, c.value, c.isSet = "", "", false
}

// Header implements CredentialSource.
func (c *MapCredentialSource) Header(ctx context.Context) (string, string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.key, c.value, c.isSet
}
