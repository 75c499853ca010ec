package interceptor

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// newH2CServer starts a loopback server that speaks HTTP/2 with no TLS,
// the shape a local integration test needs since there's no certificate
// to hand out for 127.0.0.1.
func newH2CServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	h2s := &http2.Server{}
	srv := httptest.NewServer(h2c.NewHandler(handler, h2s))
	t.Cleanup(srv.Close)
	return srv
}

func TestH2CClientRoundTrip(t *testing.T) {
	var gotProto string
	srv := newH2CServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotProto = r.Proto
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	client := NewH2CClient()
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/widgets/1", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if gotProto != "HTTP/2.0" {
		t.Fatalf("server saw proto %q, want HTTP/2.0", gotProto)
	}
}

func TestH2CClientAllowsPlaintext(t *testing.T) {
	client := NewH2CClient()
	transport, ok := client.Transport.(*http2.Transport)
	if !ok {
		t.Fatalf("transport = %T, want *http2.Transport", client.Transport)
	}
	if !transport.AllowHTTP {
		t.Fatal("transport does not allow plaintext http2")
	}
	if transport.DialTLSContext == nil {
		t.Fatal("transport has no plaintext dialer configured")
	}
}
