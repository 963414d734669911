package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultMaxTTL is the hop ceiling a [PathTrace] stops at if the resolver
// is never reached, matching the original client's compiled-in default.
const DefaultMaxTTL = 35

const probesPerHop = 3

// HopObserver receives one callback per probe sent during [PathTrace.Run].
// reachedDest is true exactly once, on the probe whose response was the
// actual DNS answer rather than an ICMP Time Exceeded.
type HopObserver func(ttl, probe int, addr string, elapsed time.Duration, reachedDest bool)

// PathTrace sends the same UDP query repeatedly with increasing TTL,
// reporting the router address that emits an ICMP Time Exceeded (code 0)
// at each hop, until either a real DNS response arrives (destination
// reached) or ttl exceeds MaxTTL. It is built on a connected UDP socket
// plus a companion raw ICMP socket; the raw socket requires CAP_NET_RAW
// and its creation failure is reported as [ErrPrivilegeDenied] rather than
// a generic transport error.
type PathTrace struct {
	mu      sync.Mutex
	udp     *UDPConnected
	icmpFd  int
	timeout time.Duration
	MaxTTL  int

	closed bool
	exit   atomic.Bool

	elapsed   time.Duration
	isTimeout bool
}

// NewPathTrace opens a connected UDP socket to ip:port plus a raw ICMP
// socket. ICMP socket creation failure is reported as
// [ErrPrivilegeDenied]: the caller is expected to hold CAP_NET_RAW (or run
// as root) before calling this constructor.
func NewPathTrace(ip [4]byte, port int, timeout time.Duration) (*PathTrace, error) {
	udp, err := NewUDPConnected(ip, port, timeout)
	if err != nil {
		return nil, err
	}

	icmpFd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, unix.IPPROTO_ICMP)
	if err != nil {
		udp.Close()
		return nil, fmt.Errorf("%w: opening raw ICMP socket: %v", ErrPrivilegeDenied, err)
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &PathTrace{
		udp:     udp,
		icmpFd:  icmpFd,
		timeout: timeout,
		MaxTTL:  DefaultMaxTTL,
	}, nil
}

// Stop requests that an in-progress [PathTrace.Run] return at the next hop
// boundary, mirroring the original client's process-wide exit flag polled
// once per hop.
func (p *PathTrace) Stop() { p.exit.Store(true) }

// Close releases the connected UDP socket and the raw ICMP socket. It is
// safe to call more than once.
func (p *PathTrace) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	udpErr := p.udp.Close()
	icmpErr := unix.Close(p.icmpFd)
	if udpErr != nil {
		return udpErr
	}
	return icmpErr
}

// Elapsed returns the duration of the most recent probe.
func (p *PathTrace) Elapsed() time.Duration { return p.elapsed }

// IsTimeout reports whether the most recent probe timed out.
func (p *PathTrace) IsTimeout() bool { return p.isTimeout }

// Run sends query with TTL starting at 1, incrementing once per hop, up to
// p.MaxTTL, invoking observe once per probe. It returns the final response
// bytes once the destination replies, or an error if every hop through
// MaxTTL times out or p.Stop is called first.
func (p *PathTrace) Run(ctx context.Context, query []byte, observe HopObserver) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}

	ttl := 0
	for !p.exit.Load() {
		ttl++
		if ttl > p.MaxTTL {
			return nil, fmt.Errorf("dnsquery/transport: no response within %d hops", p.MaxTTL)
		}
		if err := unix.SetsockoptInt(p.udp.rawFd(), unix.IPPROTO_IP, unix.IP_TTL, ttl); err != nil {
			return nil, fmt.Errorf("dnsquery/transport: setting IP_TTL: %w", err)
		}

		for probe := 0; probe < probesPerHop; probe++ {
			resp, addr, reachedDest, err := p.probe(ctx, query)
			if observe != nil {
				observe(ttl, probe, addr, p.elapsed, reachedDest)
			}
			if err != nil {
				continue // probe timed out or got no ICMP reply; try the next probe
			}
			if reachedDest {
				return resp, nil
			}
		}
	}
	return nil, fmt.Errorf("dnsquery/transport: path trace stopped")
}

// probe sends one query and waits for either an ICMP Time Exceeded on the
// raw socket or the real DNS response on the connected UDP socket,
// whichever arrives first within the timeout.
func (p *PathTrace) probe(ctx context.Context, query []byte) (resp []byte, addr string, reachedDest bool, err error) {
	p.isTimeout = false
	start := time.Now()
	defer func() { p.elapsed = time.Since(start) }()

	deadline := deadlineFor(ctx, p.timeout)

	if ready, werr := waitWritable(p.udp.rawFd(), deadline); werr != nil {
		return nil, "", false, werr
	} else if !ready {
		p.isTimeout = true
		return nil, "", false, ErrTimeout
	}
	if err := unix.Send(p.udp.rawFd(), query, 0); err != nil {
		return nil, "", false, fmt.Errorf("dnsquery/transport: send: %w", err)
	}

	icmpReady, ierr := waitReadable(p.icmpFd, deadline)
	if ierr != nil {
		return nil, "", false, ierr
	}
	if icmpReady {
		buf := make([]byte, 512)
		n, from, rerr := unix.Recvfrom(p.icmpFd, buf, 0)
		if rerr == nil && isTimeExceeded(buf[:n]) {
			return nil, sourceAddr(from), false, nil
		}
	}

	udpReady, uerr := waitReadable(p.udp.rawFd(), deadline)
	if uerr != nil {
		return nil, "", false, uerr
	}
	if !udpReady {
		p.isTimeout = true
		return nil, "", false, ErrTimeout
	}
	buf := make([]byte, MaxUDPResponseSize)
	n, rerr := unix.Read(p.udp.rawFd(), buf)
	if rerr != nil {
		return nil, "", false, fmt.Errorf("dnsquery/transport: recv: %w", rerr)
	}
	return buf[:n], p.udp.peerAddr(), true, nil
}

// isTimeExceeded reports whether an ICMP packet (including its prepended
// IPv4 header, as raw ICMP sockets deliver on Linux) is a Time Exceeded
// message (type 11, code 0).
func isTimeExceeded(pkt []byte) bool {
	ihl := 0
	if len(pkt) > 0 {
		ihl = int(pkt[0]&0x0f) * 4
	}
	if len(pkt) < ihl+2 {
		return false
	}
	icmpType := pkt[ihl]
	icmpCode := pkt[ihl+1]
	return icmpType == 11 && icmpCode == 0
}

func sourceAddr(sa unix.Sockaddr) string {
	if v4, ok := sa.(*unix.SockaddrInet4); ok {
		return net.IP(v4.Addr[:]).String()
	}
	return ""
}
