// Package httputil provides shared HTTP utilities with connection pooling
// and safe response handling for the decoy honeypot's external calls.
package httputil

import (
	"io"
	"net"
	"net/http"
	"time"
)

// MaxResponseSize is the default maximum size for reading HTTP response
// bodies. External LLM providers and callback endpoints are untrusted;
// a misconfigured one must not be able to OOM the process.
const MaxResponseSize = 2 * 1024 * 1024 // 2MB

// Shared transport with connection pooling. Safe for concurrent use;
// reusing TCP connections across the classifier, generator, and callback
// clients avoids a per-request handshake.
var sharedTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	ForceAttemptHTTP2:     true,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
}

// NewClient returns an HTTP client on the shared transport with the given
// overall timeout. Per-call deadlines should additionally come from the
// request context.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: sharedTransport}
}

// ReadResponseBody safely reads an HTTP response body with a size limit.
func ReadResponseBody(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = MaxResponseSize
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// DrainAndClose properly drains and closes an HTTP response body so the
// underlying connection returns to the pool.
func DrainAndClose(body io.ReadCloser) {
	if body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(body, MaxResponseSize))
		_ = body.Close()
	}
}
