// Package interceptor implements the HTTP interceptor contract: it
// classifies an incoming request and routes it to the network, the
// response cache, or the durable queue, depending on online state and
// method.
package interceptor

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/localsync/syncd/internal/cache"
	"github.com/localsync/syncd/internal/queue"
)

// OnlineState is the online/offline flag collaborator. It influences
// routing but never blocks a network attempt by itself.
type OnlineState interface {
	IsOnline() bool
	SetOnline(bool)
}

// CredentialSource supplies the single authorization header added to
// outgoing requests immediately before send. Credentials are never
// persisted alongside queued requests; this is treated as an opaque
// black-box key/value store, encryption-at-rest is out of scope.
type CredentialSource interface {
	Header(ctx context.Context) (key, value string, ok bool)
}

// NetworkTransport performs the actual HTTP round trip. *http.Client
// satisfies this.
type NetworkTransport interface {
	Do(req *http.Request) (*http.Response, error)
}

// Shape is the tag on a Result, identifying which of the three contract
// shapes the interceptor produced.
type Shape string

const (
	ShapePassthrough Shape = "passthrough"
	ShapeCached      Shape = "cached"
	ShapeQueued      Shape = "queued"
)

// Result is the outcome of Execute.
type Result struct {
	Shape   Shape
	Status  int
	Headers http.Header
	Body    []byte
	QueueID int64
	Queued  bool
	Cached  bool
}

var mutatingMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

var idempotentMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// Interceptor wires the online state, credential source, transport, cache
// and queue collaborators behind the single Execute entry point.
type Interceptor struct {
	online      OnlineState
	credentials CredentialSource
	transport   NetworkTransport
	cache       *cache.Cache
	queue       *queue.Queue
	baseURL     string
}

// New wires an Interceptor. baseURL is informational only: it is never
// prepended to request URLs, relative or absolute.
func New(online OnlineState, credentials CredentialSource, transport NetworkTransport, c *cache.Cache, q *queue.Queue, baseURL string) *Interceptor {
	return &Interceptor{
		online:      online,
		credentials: credentials,
		transport:   transport,
		cache:       c,
		queue:       q,
		baseURL:     baseURL,
	}
}

// Execute implements the three-shape contract.
func (i *Interceptor) Execute(ctx context.Context, method, url string, headers map[string]string, body []byte) (Result, error) {
	method = strings.ToUpper(method)
	fp := queue.Fingerprint(method, url, body)

	if !i.online.IsOnline() {
		if idempotentMethods[method] {
			if cached, ok, err := i.cache.Get(ctx, fp); err == nil && ok {
				return Result{Shape: ShapeCached, Status: http.StatusOK, Body: cached, Cached: true}, nil
			}
		}
		if mutatingMethods[method] {
			id, _, err := i.queue.Enqueue(ctx, method, url, headers, body)
			if err != nil {
				return Result{}, err
			}
			return Result{Shape: ShapeQueued, Status: http.StatusAccepted, QueueID: id, Queued: true}, nil
		}
	}

	resp, err := i.doNetwork(ctx, method, url, headers, body)
	if err != nil {
		if mutatingMethods[method] {
			id, _, qerr := i.queue.Enqueue(ctx, method, url, headers, body)
			if qerr != nil {
				return Result{}, qerr
			}
			return Result{Shape: ShapeQueued, Status: http.StatusAccepted, QueueID: id, Queued: true}, nil
		}
		return Result{}, err
	}

	if resp.Status >= 200 && resp.Status < 300 && idempotentMethods[method] {
		_ = i.cache.Put(ctx, fp, resp.Body)
	}
	return resp, nil
}

// Attempt performs a single network round trip without any cache or queue
// side effects, for the sync engine's per-entry drain attempts: the engine
// owns the queue row's status transition itself based on the outcome.
func (i *Interceptor) Attempt(ctx context.Context, method, url string, headers map[string]string, body []byte) (Result, error) {
	return i.doNetwork(ctx, method, url, headers, body)
}

func (i *Interceptor) doNetwork(ctx context.Context, method, url string, headers map[string]string, body []byte) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, newBodyReader(body))
	if err != nil {
		return Result{}, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if key, value, ok := i.credentials.Header(ctx); ok {
		req.Header.Set(key, value)
	}

	resp, err := i.transport.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Shape:   ShapePassthrough,
		Status:  resp.StatusCode,
		Headers: resp.Header,
		Body:    respBody,
	}, nil
}

func newBodyReader(body []byte) io.Reader {
	if body == nil {
		return nil
	}
	return bytes.NewReader(body)
}
