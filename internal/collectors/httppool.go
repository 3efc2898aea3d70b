package collectors

import (
	"net"
	"net/http"
	"time"
)

// NewPooledClient builds the process-wide HTTP client singleton described
// in §4.1/§5: HTTP/2 multiplexed where the server supports it (the
// stdlib transport negotiates ALPN automatically and falls back to
// HTTP/1.1 transparently), bounded connection reuse, and split
// connect/overall timeouts.
func NewPooledClient(maxConnsPerHost int, connectTimeout, overallTimeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: connectTimeout}

	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: maxConnsPerHost,
		MaxConnsPerHost:     maxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   overallTimeout,
	}
}

// DefaultMaxConnsPerHost and the default connect/overall timeouts match
// spec.md §5: "connect 2s, overall 10s".
const (
	DefaultMaxConnsPerHost = 32
	DefaultConnectTimeout  = 2 * time.Second
	DefaultOverallTimeout  = 10 * time.Second
)
