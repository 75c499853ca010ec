package syncengine

import "errors"

// Error kinds for per-request processing outcomes (spec §7's taxonomy).
// Transport and HttpError share the same retry-with-backoff handling;
// Conflict is routed to the resolver and never counts against retry_count.
var (
	ErrTransport  = errors.New("syncengine: transport error")
	ErrHTTP       = errors.New("syncengine: non-2xx response")
	ErrStorage    = errors.New("syncengine: storage error")
	ErrNotRunning = errors.New("syncengine: engine not running")
)
