package transport

import "errors"

// Sentinel errors for the transport layer. Callers should compare with
// [errors.Is].
var (
	// ErrTimeout is returned when a send/receive readiness wait (poll(2)
	// against a deadline) expires before the socket becomes ready.
	ErrTimeout = errors.New("dnsquery/transport: timeout")

	// ErrClosed is returned by any operation attempted on a transport
	// that has already been closed, including one closed automatically
	// after a send or receive error.
	ErrClosed = errors.New("dnsquery/transport: socket closed")

	// ErrResponseTooLarge is returned when a TCP peer declares a response
	// larger than MaxTCPResponseSize. UDP transports do not return it: a
	// datagram longer than MaxUDPResponseSize is cut to that size.
	ErrResponseTooLarge = errors.New("dnsquery/transport: response too large")

	// ErrConnect is returned when a TCP connect (including the
	// non-blocking connect-in-progress path) fails.
	ErrConnect = errors.New("dnsquery/transport: connect failed")

	// ErrPrivilegeDenied is returned when a raw ICMP socket cannot be
	// created, almost always because the caller lacks CAP_NET_RAW.
	// Only [PathTrace] and the spoofed-source transports can return it.
	ErrPrivilegeDenied = errors.New("dnsquery/transport: raw socket requires elevated privilege")
)
