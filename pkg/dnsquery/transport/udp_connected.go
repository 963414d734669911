package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// UDPConnected is a connected UDP transport: the socket is bound to the
// resolver with connect(2) once, so Exchange uses send/recv rather than
// sendto/recvfrom. This is also the base a [PathTrace] builds on, since
// a connected socket's ICMP errors for the destination arrive without
// having to track peer addresses by hand.
type UDPConnected struct {
	mu      sync.Mutex
	fd      int
	peer    [4]byte
	timeout time.Duration
	closed  bool

	elapsed   time.Duration
	isTimeout bool
}

// NewUDPConnected opens a UDP socket, connects it to ip:port, and sets
// SO_REUSEADDR.
func NewUDPConnected(ip [4]byte, port int, timeout time.Duration) (*UDPConnected, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return nil, fmt.Errorf("dnsquery/transport: opening UDP socket: %w", err)
	}
	addr := &unix.SockaddrInet4{Port: port, Addr: ip}
	if err := unix.Connect(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("dnsquery/transport: SO_REUSEADDR: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &UDPConnected{fd: fd, peer: ip, timeout: timeout}, nil
}

// Exchange sends query via send(2) and waits for one datagram back via
// recv(2).
func (u *UDPConnected) Exchange(ctx context.Context, query []byte) ([]byte, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return nil, ErrClosed
	}
	u.isTimeout = false
	start := time.Now()
	defer func() { u.elapsed = time.Since(start) }()

	deadline := deadlineFor(ctx, u.timeout)

	if ready, err := waitWritable(u.fd, deadline); err != nil {
		return nil, err
	} else if !ready {
		u.isTimeout = true
		return nil, ErrTimeout
	}
	if err := unix.Send(u.fd, query, 0); err != nil {
		u.closeOnError()
		return nil, fmt.Errorf("dnsquery/transport: send: %w", err)
	}

	if ready, err := waitReadable(u.fd, deadline); err != nil {
		return nil, err
	} else if !ready {
		u.isTimeout = true
		return nil, ErrTimeout
	}
	buf := make([]byte, MaxUDPResponseSize)
	n, err := unix.Read(u.fd, buf)
	if err != nil {
		u.closeOnError()
		return nil, fmt.Errorf("dnsquery/transport: recv: %w", err)
	}
	return buf[:n], nil
}

func (u *UDPConnected) closeOnError() {
	if u.fd != -1 {
		unix.Close(u.fd)
		u.fd = -1
		u.closed = true
	}
}

// Close releases the socket.
func (u *UDPConnected) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return nil
	}
	u.closed = true
	return unix.Close(u.fd)
}

// Elapsed returns the wall-clock duration of the most recent Exchange call.
func (u *UDPConnected) Elapsed() time.Duration { return u.elapsed }

// IsTimeout reports whether the most recent Exchange call timed out.
func (u *UDPConnected) IsTimeout() bool { return u.isTimeout }

// rawFd exposes the underlying descriptor to [PathTrace], which is built as a
// companion raw ICMP socket bound to the same connected UDP socket.
func (u *UDPConnected) rawFd() int { return u.fd }

// peerAddr renders the connected peer's address, used by [PathTrace] to
// report the final hop (the resolver itself) once it replies directly.
func (u *UDPConnected) peerAddr() string {
	return net.IP(u.peer[:]).String()
}

func deadlineFor(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		return cd
	}
	return d
}
