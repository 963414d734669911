// Package transport implements the concrete socket transports a query can
// be exchanged over: connectionless UDP, connected UDP, length-framed TCP
// with truncation-sized message limits, and the UDP+ICMP path-trace
// transport. Every transport is built on raw golang.org/x/sys/unix socket
// calls with a poll(2)-based readiness primitive for bounded waits; none
// rely on SIGALRM or the stdlib net package's dialer.
package transport

import (
	"context"
	"time"
)

// DefaultTimeout is the readiness-wait ceiling used when a caller does not
// set one explicitly, matching the original client's compiled-in default.
const DefaultTimeout = 5 * time.Second

// Wire protocol constants shared by every transport.
const (
	DNSPort            = 53
	MaxUDPResponseSize = 512
	MaxTCPResponseSize = 40960
)

// Transport sends one query and waits for the matching response. Every
// implementation owns exactly one socket and is not safe for concurrent
// use by more than one in-flight exchange at a time, mirroring the
// one-exchange-per-socket lifetime of the sockets it is modeled on.
type Transport interface {
	// Exchange sends query and returns the raw response bytes (for TCP,
	// with the 2-octet length prefix already stripped). ctx governs the
	// readiness waits for both the send and the receive half; its
	// deadline, if any, is combined with the transport's own timeout by
	// taking whichever fires first.
	Exchange(ctx context.Context, query []byte) ([]byte, error)

	// Close releases the underlying socket. Exchange after Close returns
	// ErrClosed.
	Close() error

	// Elapsed returns the wall-clock duration of the most recent
	// Exchange call.
	Elapsed() time.Duration

	// IsTimeout reports whether the most recent Exchange call failed
	// because a readiness wait expired.
	IsTimeout() bool
}
