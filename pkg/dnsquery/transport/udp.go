package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// UDP is a connectionless UDP transport: every Exchange call addresses the
// resolver explicitly with sendto/recvfrom, mirroring SocketUdp in the
// client this package is modeled on.
type UDP struct {
	mu      sync.Mutex
	fd      int
	addr    unix.SockaddrInet4
	timeout time.Duration
	closed  bool

	elapsed   time.Duration
	isTimeout bool
}

// NewUDP opens a UDP socket with SO_REUSEADDR set and targets it at ip:port.
func NewUDP(ip [4]byte, port int, timeout time.Duration) (*UDP, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return nil, fmt.Errorf("dnsquery/transport: opening UDP socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("dnsquery/transport: SO_REUSEADDR: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &UDP{
		fd:      fd,
		addr:    unix.SockaddrInet4{Port: port, Addr: ip},
		timeout: timeout,
	}, nil
}

// Exchange sends query via sendto and waits for one datagram back via
// recvfrom, each guarded by its own readiness wait.
func (u *UDP) Exchange(ctx context.Context, query []byte) ([]byte, error) {
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

	if err := unix.Sendto(u.fd, query, 0, &u.addr); err != nil {
		u.closeOnError()
		return nil, fmt.Errorf("dnsquery/transport: sendto: %w", err)
	}

	if ready, err := waitReadable(u.fd, deadline); err != nil {
		return nil, err
	} else if !ready {
		u.isTimeout = true
		return nil, ErrTimeout
	}

	buf := make([]byte, MaxUDPResponseSize)
	n, _, err := unix.Recvfrom(u.fd, buf, 0)
	if err != nil {
		u.closeOnError()
		return nil, fmt.Errorf("dnsquery/transport: recvfrom: %w", err)
	}
	return buf[:n], nil
}

func (u *UDP) closeOnError() {
	if u.fd != -1 {
		unix.Close(u.fd)
		u.fd = -1
		u.closed = true
	}
}

// Close releases the socket.
func (u *UDP) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return nil
	}
	u.closed = true
	return unix.Close(u.fd)
}

// Elapsed returns the wall-clock duration of the most recent Exchange call.
func (u *UDP) Elapsed() time.Duration { return u.elapsed }

// IsTimeout reports whether the most recent Exchange call timed out.
func (u *UDP) IsTimeout() bool { return u.isTimeout }
