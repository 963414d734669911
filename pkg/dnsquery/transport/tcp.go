package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// TCP is a length-framed TCP transport: query must already carry its
// 2-octet length prefix (see [wire.Query] with TCP set), and Exchange
// strips the equivalent prefix from the response before returning it.
// Connection setup mirrors SocketTcp in the client this package is
// modeled on: non-blocking connect, wait for write-readiness, check
// SO_ERROR, then restore blocking mode.
type TCP struct {
	mu      sync.Mutex
	fd      int
	timeout time.Duration
	closed  bool

	elapsed   time.Duration
	isTimeout bool
	warning   string
}

// NewTCP opens a TCP socket, connects it to ip:port with a bounded
// non-blocking connect, and sets SO_REUSEADDR.
func NewTCP(ctx context.Context, ip [4]byte, port int, timeout time.Duration) (*TCP, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("dnsquery/transport: opening TCP socket: %w", err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("dnsquery/transport: setting non-blocking: %w", err)
	}

	addr := &unix.SockaddrInet4{Port: port, Addr: ip}
	deadline := deadlineFor(ctx, timeout)

	err = unix.Connect(fd, addr)
	if err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	if err == unix.EINPROGRESS {
		ready, werr := waitWritable(fd, deadline)
		if werr != nil {
			unix.Close(fd)
			return nil, werr
		}
		if !ready {
			unix.Close(fd)
			return nil, fmt.Errorf("%w: connect timed out", ErrTimeout)
		}
		soerr, gerr := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if gerr != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("dnsquery/transport: SO_ERROR: %w", gerr)
		}
		if soerr != 0 {
			unix.Close(fd)
			return nil, fmt.Errorf("%w: %v", ErrConnect, unix.Errno(soerr))
		}
	}

	if err := unix.SetNonblock(fd, false); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("dnsquery/transport: restoring blocking mode: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("dnsquery/transport: SO_REUSEADDR: %w", err)
	}

	return &TCP{fd: fd, timeout: timeout}, nil
}

// Exchange writes the length-prefixed query and reads a length-framed
// response, looping on partial reads until the declared length has been
// received or the read side gives up: an EAGAIN-equivalent timeout with
// data already read yields what was read plus a warning; a zero-byte read
// with data already read does the same; a zero-byte read with nothing
// read yet is a hard failure.
func (c *TCP) Exchange(ctx context.Context, query []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	c.isTimeout = false
	c.warning = ""
	start := time.Now()
	defer func() { c.elapsed = time.Since(start) }()

	deadline := deadlineFor(ctx, c.timeout)

	if ready, err := waitWritable(c.fd, deadline); err != nil {
		return nil, err
	} else if !ready {
		c.isTimeout = true
		return nil, ErrTimeout
	}
	if _, err := unix.Write(c.fd, query); err != nil {
		c.closeOnError()
		return nil, fmt.Errorf("dnsquery/transport: tcp write: %w", err)
	}

	scratch := make([]byte, 2, MaxTCPResponseSize+2)
	pos := 0
	declared := -1

	for declared == -1 || pos < 2+declared {
		ready, err := waitReadable(c.fd, deadline)
		if err != nil {
			return nil, err
		}
		if !ready {
			c.isTimeout = true
			if pos > 2 {
				c.warning = "tcp read: timed out with partial response"
				return scratch[2:pos], nil
			}
			return nil, ErrTimeout
		}

		if len(scratch) < pos+4096 {
			grown := make([]byte, pos+4096)
			copy(grown, scratch[:pos])
			scratch = grown
		}
		n, err := unix.Read(c.fd, scratch[pos:])
		if err != nil {
			if err == unix.EAGAIN && pos > 2 {
				c.warning = "tcp read: EAGAIN with partial response"
				return scratch[2:pos], nil
			}
			c.closeOnError()
			return nil, fmt.Errorf("dnsquery/transport: tcp read: %w", err)
		}
		if n == 0 {
			if pos > 2 {
				c.warning = "tcp read: peer closed with partial response"
				return scratch[2:pos], nil
			}
			c.closeOnError()
			return nil, fmt.Errorf("dnsquery/transport: tcp read: peer closed before sending any data")
		}
		pos += n

		if declared == -1 && pos >= 2 {
			declared = int(binary.BigEndian.Uint16(scratch[0:2]))
			if declared > MaxTCPResponseSize {
				c.closeOnError()
				return nil, fmt.Errorf("%w: declared length %d", ErrResponseTooLarge, declared)
			}
		}
	}

	return scratch[2 : 2+declared], nil
}

func (c *TCP) closeOnError() {
	if c.fd != -1 {
		unix.Close(c.fd)
		c.fd = -1
		c.closed = true
	}
}

// Close releases the socket.
func (c *TCP) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return unix.Close(c.fd)
}

// Elapsed returns the wall-clock duration of the most recent Exchange call.
func (c *TCP) Elapsed() time.Duration { return c.elapsed }

// IsTimeout reports whether the most recent Exchange call timed out.
func (c *TCP) IsTimeout() bool { return c.isTimeout }

// Warning returns a non-fatal warning recorded on the most recent Exchange
// call (a partial read that still returned data), or "" if none occurred.
func (c *TCP) Warning() string { return c.warning }
