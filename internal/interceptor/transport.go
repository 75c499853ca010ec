package interceptor

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"

	"golang.org/x/net/http2"
)

// NewH2CClient returns an http.Client whose NetworkTransport speaks
// plaintext HTTP/2 (h2c) directly over the wire, with no TLS handshake
// and no HTTP/1.1 upgrade dance. It's for talking to a remote that is
// itself h2c-only, such as a loopback test server in-process with the
// daemon; a normal TLS remote should use http.DefaultClient instead.
func NewH2CClient() *http.Client {
	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}
