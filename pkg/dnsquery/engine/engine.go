// Package engine implements the transaction orchestrator: it composes a
// wire query, picks a transport, exchanges it with a resolver, and exposes
// the parsed result. It is the only package in this module most callers
// need to import directly.
package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/seanrobmerriam/dnsquery-go/pkg/dnsquery/entropy"
	"github.com/seanrobmerriam/dnsquery-go/pkg/dnsquery/transport"
	"github.com/seanrobmerriam/dnsquery-go/pkg/dnsquery/wire"
)

const (
	minTimeoutSecs = 1
	maxTimeoutSecs = 120
)

// Engine is the DNS transaction orchestrator: configure it with the
// setters, then call [Engine.Send]. It is reusable — a second Send starts
// a fresh transaction, discarding any previously parsed response.
type Engine struct {
	resolver    [4]byte
	resolverSet bool
	port        int
	site        string
	kind        wire.QueryKind
	recursion   bool
	forceTCP    bool
	timeout     time.Duration

	entropy *entropy.Source
	logger  *slog.Logger

	lastQueryText  string
	lastResponse   *wire.Response
	respLength     int
	elapsed        time.Duration
	isTimeout      bool
	warning        string
	transportCount int
}

// Option configures an [Engine] at construction time.
type Option func(*Engine)

// WithLogger sets the [*slog.Logger] the engine reports transport
// selection, truncation upgrades, and timeouts to. The default is
// [slog.Default]().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithEntropySource overrides the single-reader random source used for
// transaction IDs, primarily so tests can inject a deterministic one.
func WithEntropySource(s *entropy.Source) Option {
	return func(e *Engine) { e.entropy = s }
}

// New constructs an Engine with recursion desired on and the default
// timeout, matching DnsBase's constructor defaults in the original client.
func New(opts ...Option) *Engine {
	e := &Engine{
		recursion: true,
		port:      transport.DNSPort,
		timeout:   transport.DefaultTimeout,
		entropy:   entropy.NewSource(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetResolver sets the resolver address literal (IPv4 dotted-quad).
func (e *Engine) SetResolver(addr string) error {
	ip, err := parseIPv4(addr)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidResolver, addr)
	}
	e.resolver = ip
	e.resolverSet = true
	return nil
}

// SetSite sets the name being queried. It fails with [wire.ErrNameTooLong]
// if name exceeds 253 octets; the precise IDNA-normalized length check
// happens again at assembly time in [wire.Query.Assemble].
func (e *Engine) SetSite(name string) error {
	if len(name) > 253 {
		return fmt.Errorf("%w: %q is %d octets", wire.ErrNameTooLong, name, len(name))
	}
	e.site = name
	return nil
}

// SetQueryKind sets the query kind from a [wire.QueryKind] value.
func (e *Engine) SetQueryKind(kind wire.QueryKind) {
	e.kind = kind
}

// SetQueryKindDescriptor sets the query kind from its CLI descriptor
// (std|dump|ping|info|mail|locate), returning false for an unrecognized
// one, matching DnsClient::setQueryType(const string&)'s bool return.
func (e *Engine) SetQueryKindDescriptor(descriptor string) bool {
	kind, ok := wire.ParseQueryKind(descriptor)
	if !ok {
		return false
	}
	e.kind = kind
	return true
}

// SetRecursionDesired toggles the RD bit on subsequent queries.
func (e *Engine) SetRecursionDesired(b bool) { e.recursion = b }

// SetForceTCP forces every Send to use the TCP transport directly rather
// than UDP-then-upgrade-on-truncation.
func (e *Engine) SetForceTCP(b bool) { e.forceTCP = b }

// SetTimeout sets the per-exchange readiness-wait ceiling. Values are
// clamped to [1, 120] seconds.
func (e *Engine) SetTimeout(secs int) {
	if secs < minTimeoutSecs {
		secs = minTimeoutSecs
	}
	if secs > maxTimeoutSecs {
		secs = maxTimeoutSecs
	}
	e.timeout = time.Duration(secs) * time.Second
}

// Send assembles a query, exchanges it with the configured resolver, and
// parses the response:
//  1. route through TCP if ForceTCP, else UDP;
//  2. assemble, drawing a fresh random transaction ID;
//  3. exchange; on timeout, propagate and stop;
//  4. parse the response, validating tran-id before anything else;
//  5. on UDP with TC=1, release the UDP transport and retry once over TCP.
func (e *Engine) Send(ctx context.Context) error {
	if !e.resolverSet {
		return fmt.Errorf("dnsquery/engine: Send called before SetResolver")
	}

	e.lastResponse = nil
	e.isTimeout = false
	e.warning = ""
	e.transportCount = 0

	useTCP := e.forceTCP
	resp, elapsed, err := e.exchangeOnce(ctx, useTCP)
	if err != nil {
		e.elapsed = elapsed
		return err
	}
	e.elapsed = elapsed

	if !useTCP && resp.Flags.TC() {
		e.logger.Debug("dnsquery: response truncated, upgrading to TCP", "site", e.site)
		resp, elapsed, err = e.exchangeOnce(ctx, true)
		if err != nil {
			e.elapsed = elapsed
			return err
		}
		e.elapsed = elapsed
	}

	e.lastResponse = resp
	return nil
}

// exchangeOnce assembles one query, picks the transport named by useTCP,
// exchanges it, and parses the result. It increments transportCount once
// per transport instance it creates (used by tests to assert the
// UDP→TCP upgrade opens exactly one additional transport).
func (e *Engine) exchangeOnce(ctx context.Context, useTCP bool) (*wire.Response, time.Duration, error) {
	var idBuf [2]byte
	if err := e.entropy.Fill(idBuf[:]); err != nil {
		return nil, 0, fmt.Errorf("dnsquery/engine: drawing transaction id: %w", err)
	}
	id := binary.BigEndian.Uint16(idBuf[:])

	q := wire.Query{
		Site:             e.site,
		Kind:             e.kind,
		RecursionDesired: e.recursion,
		TCP:              useTCP,
	}
	buf, err := q.Assemble(id)
	if err != nil {
		return nil, 0, err
	}
	e.lastQueryText = e.site
	if e.kind == wire.Info {
		e.lastQueryText = "version.bind"
	}

	var tr transport.Transport
	e.transportCount++
	if useTCP {
		e.logger.Debug("dnsquery: using TCP transport", "site", e.site)
		tr, err = transport.NewTCP(ctx, e.resolver, e.port, e.timeout)
	} else {
		e.logger.Debug("dnsquery: using UDP transport", "site", e.site)
		tr, err = transport.NewUDP(e.resolver, e.port, e.timeout)
	}
	if err != nil {
		if errors.Is(err, transport.ErrTimeout) {
			e.isTimeout = true
		}
		return nil, 0, fmt.Errorf("dnsquery/engine: %w", err)
	}
	defer tr.Close()

	respBuf, err := tr.Exchange(ctx, buf)
	elapsed := tr.Elapsed()
	if warner, ok := tr.(interface{ Warning() string }); ok {
		if w := warner.Warning(); w != "" {
			e.warning = w
			e.logger.Warn("dnsquery: transport warning", "site", e.site, "warning", w)
		}
	}
	if err != nil {
		if tr.IsTimeout() {
			e.isTimeout = true
			e.logger.Warn("dnsquery: exchange timed out", "site", e.site, "timeout", e.timeout)
		}
		return nil, elapsed, err
	}

	resp, err := wire.ParseResponse(respBuf, id)
	if err != nil {
		return nil, elapsed, err
	}
	e.respLength = len(respBuf)
	return resp, elapsed, nil
}

// LastQueryText returns the QNAME most recently queried (accounting for
// Info's override to "version.bind").
func (e *Engine) LastQueryText() string { return e.lastQueryText }

// AllOfType returns the text rendering of every decoded record of the
// given type name ("A", "AAAA", "NS", "CNAME", "SOA", "MX", "TXT", "LOC"),
// one per line, or "" if there is no response yet or no records of that
// type.
func (e *Engine) AllOfType(typeName string) string {
	t, ok := recordTypeByName(typeName)
	if !ok || e.lastResponse == nil {
		return ""
	}
	var lines []string
	for _, rec := range e.lastResponse.OfType(t) {
		lines = append(lines, rec.Text)
	}
	return strings.Join(lines, "\n")
}

// OneOfType returns the text rendering of the first decoded record of the
// given type, or "" if there is none.
func (e *Engine) OneOfType(typeName string) string {
	t, ok := recordTypeByName(typeName)
	if !ok || e.lastResponse == nil {
		return ""
	}
	recs := e.lastResponse.OfType(t)
	if len(recs) == 0 {
		return ""
	}
	return recs[0].Text
}

// ReturnCode returns the 4-bit RCODE of the most recent response. The
// result is meaningless (zero) if Send has not succeeded.
func (e *Engine) ReturnCode() byte {
	if e.lastResponse == nil {
		return 0
	}
	return e.lastResponse.Flags.RCODE()
}

// Elapsed returns the wall-clock duration of the most recent Send call.
func (e *Engine) Elapsed() time.Duration { return e.elapsed }

// ResponseLength returns the byte length of the most recently decoded
// response, or 0 if Send has not succeeded.
func (e *Engine) ResponseLength() int { return e.respLength }

// IsTimeout reports whether the most recent Send call failed because a
// readiness wait expired.
func (e *Engine) IsTimeout() bool { return e.isTimeout }

// Warning returns a non-fatal warning recorded during the most recent
// Send call (currently only the TCP transport's partial-read warnings),
// or "" if none occurred.
func (e *Engine) Warning() string { return e.warning }

// TransportCount returns the number of transport instances the most
// recent Send call opened (1, or 2 if a UDP→TCP truncation upgrade
// occurred).
func (e *Engine) TransportCount() int { return e.transportCount }

var dottedQuadRe = regexp.MustCompile(`^([0-9]{1,3})\.([0-9]{1,3})\.([0-9]{1,3})\.([0-9]{1,3})$`)

// ReverseQuery builds the in-addr.arpa name for addr, reversing its
// octets. addr must be a well-formed dotted-quad IPv4 address (each octet
// 0-255); this mirrors the original client's isAnAddr validation ahead of
// reverseQueryHostString.
func ReverseQuery(addr string) (string, error) {
	m := dottedQuadRe.FindStringSubmatch(addr)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidReverseAddr, addr)
	}
	octets := make([]string, 4)
	for i := 1; i <= 4; i++ {
		v, err := strconv.Atoi(m[i])
		if err != nil || v > 255 {
			return "", fmt.Errorf("%w: %q", ErrInvalidReverseAddr, addr)
		}
		octets[i-1] = m[i]
	}
	return fmt.Sprintf("%s.%s.%s.%s.in-addr.arpa", octets[3], octets[2], octets[1], octets[0]), nil
}

// RCodeText renders a 16-bit response code as a human-readable string.
// Codes 0-10 are named per IANA; 11-22 and 4096-65534 are "unassigned";
// 23-3840 is "unassigned (reserved for future IETF use)"; 3841-4095 is
// "reserved for private use"; 65535 is "reserved, can be allocated by
// Standards Action". This mirrors DnsClient::getDnsErrorTxt's ERR_GROUPS
// bands in the original client, generalized from its four group constants.
func RCodeText(code uint16) string {
	if named, ok := namedRCodes[code]; ok {
		return named
	}
	switch {
	case code <= 22:
		return "unassigned"
	case code <= 3840:
		return "unassigned (reserved for future IETF use)"
	case code <= 4095:
		return "reserved for private use"
	case code <= 65534:
		return "unassigned"
	default:
		return "reserved, can be allocated by Standards Action"
	}
}

var namedRCodes = map[uint16]string{
	0:  "NOERROR",
	1:  "FORMERR",
	2:  "SERVFAIL",
	3:  "NXDOMAIN",
	4:  "NOTIMP",
	5:  "REFUSED",
	6:  "YXDOMAIN",
	7:  "YXRRSET",
	8:  "NXRRSET",
	9:  "NOTAUTH",
	10: "NOTZONE",
}

func recordTypeByName(name string) (uint16, bool) {
	switch strings.ToUpper(name) {
	case "A":
		return wire.TypeA, true
	case "AAAA":
		return wire.TypeAAAA, true
	case "NS":
		return wire.TypeNS, true
	case "CNAME":
		return wire.TypeCNAME, true
	case "SOA":
		return wire.TypeSOA, true
	case "MX":
		return wire.TypeMX, true
	case "TXT":
		return wire.TypeTXT, true
	case "LOC":
		return wire.TypeLOC, true
	default:
		return 0, false
	}
}

func parseIPv4(addr string) ([4]byte, error) {
	ip := net.ParseIP(addr)
	if ip == nil {
		return [4]byte{}, fmt.Errorf("not an IP address")
	}
	v4 := ip.To4()
	if v4 == nil {
		return [4]byte{}, fmt.Errorf("not an IPv4 address")
	}
	return [4]byte{v4[0], v4[1], v4[2], v4[3]}, nil
}
