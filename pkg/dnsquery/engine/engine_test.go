package engine

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func buildHeader(id uint16, b1, b2 byte, qd, an, ns, ar uint16) []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint16(buf[0:2], id)
	buf[2], buf[3] = b1, b2
	binary.BigEndian.PutUint16(buf[4:6], qd)
	binary.BigEndian.PutUint16(buf[6:8], an)
	binary.BigEndian.PutUint16(buf[8:10], ns)
	binary.BigEndian.PutUint16(buf[10:12], ar)
	return buf
}

func appendName(buf []byte, labels ...string) []byte {
	for _, l := range labels {
		buf = append(buf, byte(len(l)))
		buf = append(buf, l...)
	}
	return append(buf, 0)
}

// buildAResponse builds a well-formed response to a standard A query for
// "example.com" carrying the given IPv4 answers, echoing id and setting TC
// per truncated.
func buildAResponse(id uint16, truncated bool, answers ...[4]byte) []byte {
	b1 := byte(0b1000_0000) // QR
	if truncated {
		b1 |= 0b0000_0010 // TC
	}
	buf := buildHeader(id, b1, 0, 1, uint16(len(answers)), 0, 0)
	buf = appendName(buf, "example", "com")
	buf = append(buf, 0, 1, 0, 1) // QTYPE=A, QCLASS=IN
	for _, a := range answers {
		buf = append(buf, 0xC0, 0x0C) // pointer to question name
		buf = append(buf, 0, 1, 0, 1) // TYPE=A, CLASS=IN
		buf = append(buf, 0, 0, 0, 60)
		buf = append(buf, 0, 4)
		buf = append(buf, a[0], a[1], a[2], a[3])
	}
	return buf
}

func readTranID(query []byte) uint16 {
	return binary.BigEndian.Uint16(query[0:2])
}

// fakeUDPResolver answers exactly one UDP query with respond(tranID),
// echoing whatever transaction ID it was sent. A zero wantPort binds an
// ephemeral port; otherwise it binds exactly that port number.
func fakeUDPResolver(t *testing.T, wantPort int, respond func(id uint16) []byte) (port int, stop func()) {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: wantPort})
	require.NoError(t, err)

	go func() {
		buf := make([]byte, 512)
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		id := readTranID(buf[:n])
		conn.WriteToUDP(respond(id), addr)
	}()

	return conn.LocalAddr().(*net.UDPAddr).Port, func() { conn.Close() }
}

// fakeTCPResolver accepts one connection and replies to each length-framed
// request with respond(tranID), itself length-framed. A zero wantPort
// binds an ephemeral port; otherwise it binds exactly that port number.
func fakeTCPResolver(t *testing.T, wantPort int, respond func(id uint16) []byte) (port int, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp4", fmt.Sprintf("127.0.0.1:%d", wantPort))
	require.NoError(t, err)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		lenBuf := make([]byte, 2)
		if _, err := readFullConn(conn, lenBuf); err != nil {
			return
		}
		reqLen := binary.BigEndian.Uint16(lenBuf)
		req := make([]byte, reqLen)
		if _, err := readFullConn(conn, req); err != nil {
			return
		}
		id := readTranID(req)
		body := respond(id)
		out := make([]byte, 2+len(body))
		binary.BigEndian.PutUint16(out[0:2], uint16(len(body)))
		copy(out[2:], body)
		conn.Write(out)
	}()

	return ln.Addr().(*net.TCPAddr).Port, func() { ln.Close() }
}

func readFullConn(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func newTestEngine(t *testing.T, ip string, port int) *Engine {
	t.Helper()
	e := New()
	require.NoError(t, e.SetResolver(ip))
	require.NoError(t, e.SetSite("example.com"))
	e.SetTimeout(2)
	e.port = port
	return e
}

// freeTCPPort picks an ephemeral port by briefly binding to it, then
// releases it so both a UDP and a TCP fake resolver can share the number
// (the two protocols have independent port namespaces).
func freeTCPPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

// TestSendARecord exercises a mock resolver that replies with a single A
// record and RCODE 0.
func TestSendARecord(t *testing.T) {
	port, stop := fakeUDPResolver(t, 0, func(id uint16) []byte {
		return buildAResponse(id, false, [4]byte{93, 184, 216, 34})
	})
	defer stop()

	e := newTestEngine(t, "127.0.0.1", port)

	err := e.Send(context.Background())
	require.NoError(t, err)

	require.Equal(t, "93.184.216.34", e.OneOfType("A"))
	require.Equal(t, byte(0), e.ReturnCode())
	require.False(t, e.IsTimeout())
}

// TestSendTruncationUpgrade is scenario 2: a UDP reply with TC=1 and zero
// answers, followed by a three-answer TCP reply.
func TestSendTruncationUpgrade(t *testing.T) {
	shared := freeTCPPort(t)

	_, stopUDP := fakeUDPResolver(t, shared, func(id uint16) []byte {
		return buildAResponse(id, true)
	})
	defer stopUDP()

	want := [][4]byte{{1, 2, 3, 4}, {1, 2, 3, 5}, {1, 2, 3, 6}}
	_, stopTCP := fakeTCPResolver(t, shared, func(id uint16) []byte {
		return buildAResponse(id, false, want...)
	})
	defer stopTCP()

	e := newTestEngine(t, "127.0.0.1", shared)
	err := e.Send(context.Background())
	require.NoError(t, err)

	got := e.AllOfType("A")
	require.Equal(t, "1.2.3.4\n1.2.3.5\n1.2.3.6", got)
	require.False(t, e.IsTimeout())
	require.Equal(t, 2, e.TransportCount())
}

// TestSendTimeout is scenario 5: a resolver that never responds.
func TestSendTimeout(t *testing.T) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer conn.Close()
	port := conn.LocalAddr().(*net.UDPAddr).Port

	e := newTestEngine(t, "127.0.0.1", port)
	e.SetTimeout(1)

	start := time.Now()
	err = e.Send(context.Background())
	elapsed := time.Since(start)

	require.Error(t, err)
	require.True(t, e.IsTimeout())
	require.Less(t, elapsed, 3*time.Second)
}

func TestReverseQueryRoundTrip(t *testing.T) {
	name, err := ReverseQuery("10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, "1.0.0.10.in-addr.arpa", name)

	_, err = ReverseQuery("not-an-address")
	require.ErrorIs(t, err, ErrInvalidReverseAddr)
}

func TestRCodeTextBands(t *testing.T) {
	require.Equal(t, "NOERROR", RCodeText(0))
	require.Equal(t, "NXDOMAIN", RCodeText(3))
	require.Equal(t, "unassigned", RCodeText(15))
	require.Equal(t, "unassigned (reserved for future IETF use)", RCodeText(100))
	require.Equal(t, "reserved for private use", RCodeText(4000))
	require.Equal(t, "reserved, can be allocated by Standards Action", RCodeText(65535))
}
