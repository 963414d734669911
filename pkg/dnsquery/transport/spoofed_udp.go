//go:build linux

package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// SpoofedUDP sends a query as a hand-built IPv4+UDP datagram over an
// IP_HDRINCL raw socket, with the source address set to an address other
// than this host's own. It exists as a real, wireable transport for
// offensive-tooling callers rather than a dead stub; this module's own CLI
// does not expose a flag that reaches it. Grounded on the original
// client's SocketRawUdp and this module's own [UDPConnected]/checksum
// conventions borrowed from the teacher's netstack/udp package.
type SpoofedUDP struct {
	mu      sync.Mutex
	fd      int
	dstIP   [4]byte
	dstPort int
	srcIP   [4]byte
	srcPort int
	timeout time.Duration
	closed  bool

	elapsed   time.Duration
	isTimeout bool
}

// NewSpoofedUDP opens a raw IP_HDRINCL socket. Creation fails with
// [ErrPrivilegeDenied] if the raw socket cannot be created, which on Linux
// almost always means the caller lacks CAP_NET_RAW.
func NewSpoofedUDP(dstIP [4]byte, dstPort int, srcIP [4]byte, srcPort int, timeout time.Duration) (*SpoofedUDP, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, unix.IPPROTO_RAW)
	if err != nil {
		return nil, fmt.Errorf("%w: opening raw UDP socket: %v", ErrPrivilegeDenied, err)
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_HDRINCL, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("dnsquery/transport: IP_HDRINCL: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &SpoofedUDP{
		fd: fd, dstIP: dstIP, dstPort: dstPort,
		srcIP: srcIP, srcPort: srcPort, timeout: timeout,
	}, nil
}

// Exchange sends a spoofed-source UDP datagram carrying query and waits for
// a reply on the same raw socket. Because the reply is addressed to the
// spoofed source, not this host, it will only be observed here if the
// caller also controls routing back to this socket (e.g. a test harness or
// a LAN the spoofed address belongs to) — this mirrors the original tool's
// documented limitation.
func (s *SpoofedUDP) Exchange(ctx context.Context, query []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	s.isTimeout = false
	start := time.Now()
	defer func() { s.elapsed = time.Since(start) }()

	deadline := deadlineFor(ctx, s.timeout)

	pkt := buildIPv4UDP(s.srcIP, s.srcPort, s.dstIP, s.dstPort, query)

	if ready, err := waitWritable(s.fd, deadline); err != nil {
		return nil, err
	} else if !ready {
		s.isTimeout = true
		return nil, ErrTimeout
	}
	dst := &unix.SockaddrInet4{Port: s.dstPort, Addr: s.dstIP}
	if err := unix.Sendto(s.fd, pkt, 0, dst); err != nil {
		s.closeOnError()
		return nil, fmt.Errorf("dnsquery/transport: raw sendto: %w", err)
	}

	if ready, err := waitReadable(s.fd, deadline); err != nil {
		return nil, err
	} else if !ready {
		s.isTimeout = true
		return nil, ErrTimeout
	}
	buf := make([]byte, MaxUDPResponseSize+28)
	n, _, err := unix.Recvfrom(s.fd, buf, 0)
	if err != nil {
		s.closeOnError()
		return nil, fmt.Errorf("dnsquery/transport: raw recvfrom: %w", err)
	}
	return stripIPv4UDPHeaders(buf[:n])
}

func (s *SpoofedUDP) closeOnError() {
	if s.fd != -1 {
		unix.Close(s.fd)
		s.fd = -1
		s.closed = true
	}
}

// Close releases the socket.
func (s *SpoofedUDP) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return unix.Close(s.fd)
}

// Elapsed returns the wall-clock duration of the most recent Exchange call.
func (s *SpoofedUDP) Elapsed() time.Duration { return s.elapsed }

// IsTimeout reports whether the most recent Exchange call timed out.
func (s *SpoofedUDP) IsTimeout() bool { return s.isTimeout }

// buildIPv4UDP assembles a minimal 20-octet IPv4 header (no options) plus
// an 8-octet UDP header plus payload, with both checksums computed.
func buildIPv4UDP(srcIP [4]byte, srcPort int, dstIP [4]byte, dstPort int, payload []byte) []byte {
	udpLen := 8 + len(payload)
	udp := make([]byte, udpLen)
	binary.BigEndian.PutUint16(udp[0:2], uint16(srcPort))
	binary.BigEndian.PutUint16(udp[2:4], uint16(dstPort))
	binary.BigEndian.PutUint16(udp[4:6], uint16(udpLen))
	copy(udp[8:], payload)
	binary.BigEndian.PutUint16(udp[6:8], udpChecksum(srcIP, dstIP, udp))

	totalLen := 20 + udpLen
	ip := make([]byte, totalLen)
	ip[0] = 0x45 // version 4, IHL 5 (no options)
	ip[1] = 0
	binary.BigEndian.PutUint16(ip[2:4], uint16(totalLen))
	binary.BigEndian.PutUint16(ip[4:6], 0) // identification
	binary.BigEndian.PutUint16(ip[6:8], 0) // flags/fragment offset
	ip[8] = 64                             // TTL
	ip[9] = unix.IPPROTO_UDP
	copy(ip[12:16], srcIP[:])
	copy(ip[16:20], dstIP[:])
	binary.BigEndian.PutUint16(ip[10:12], ipChecksum(ip[0:20]))
	copy(ip[20:], udp)

	return ip
}

// stripIPv4UDPHeaders removes a raw socket's inbound IPv4 header (whose
// length is derived from the IHL nibble, not assumed to be 20) and the
// 8-octet UDP header, leaving just the DNS payload.
func stripIPv4UDPHeaders(pkt []byte) ([]byte, error) {
	if len(pkt) < 1 {
		return nil, fmt.Errorf("dnsquery/transport: empty raw packet")
	}
	ihl := int(pkt[0]&0x0f) * 4
	if len(pkt) < ihl+8 {
		return nil, fmt.Errorf("dnsquery/transport: raw packet shorter than IPv4+UDP headers")
	}
	return pkt[ihl+8:], nil
}

func ipChecksum(hdr []byte) uint16 {
	return ones16Sum(hdr)
}

func udpChecksum(srcIP, dstIP [4]byte, udp []byte) uint16 {
	pseudo := make([]byte, 12+len(udp)+len(udp)%2)
	copy(pseudo[0:4], srcIP[:])
	copy(pseudo[4:8], dstIP[:])
	pseudo[8] = 0
	pseudo[9] = unix.IPPROTO_UDP
	binary.BigEndian.PutUint16(pseudo[10:12], uint16(len(udp)))
	copy(pseudo[12:], udp)
	sum := ones16Sum(pseudo)
	if sum == 0 {
		return 0xFFFF
	}
	return sum
}

// ones16Sum computes the one's-complement 16-bit checksum of data, padding
// with a trailing zero byte if its length is odd.
func ones16Sum(data []byte) uint16 {
	if len(data)%2 != 0 {
		data = append(data, 0)
	}
	var sum uint32
	for i := 0; i < len(data); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(data[i : i+2]))
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum)
}
