package wire

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/net/idna"
)

// QueryKind selects the QTYPE/QCLASS pair a query is assembled with, and
// (for the repeating/verbose kinds) how the engine drives the transport.
// The wire codec only cares about the QTYPE/QCLASS mapping below; the repeat
// and verbosity behavior lives in the engine.
type QueryKind int

const (
	// Standard issues a plain A-record query.
	Standard QueryKind = iota
	// Dump issues a plain A-record query; the dnsq command also prints the
	// queried name and the elapsed time. No hex dump of the exchange is made.
	Dump
	// Ping repeats a Standard exchange once per second until cancelled.
	Ping
	// Info probes the resolver's BIND version (TXT/CH against version.bind).
	Info
	// Mail issues an MX query.
	Mail
	// Locate issues a LOC query.
	Locate
)

// String returns the CLI descriptor for a query kind, matching
// DnsBase::queryTypeToDescription in the original client.
func (k QueryKind) String() string {
	switch k {
	case Standard:
		return "std"
	case Dump:
		return "dump"
	case Ping:
		return "ping"
	case Info:
		return "info"
	case Mail:
		return "mail"
	case Locate:
		return "locate"
	default:
		return "unknown"
	}
}

// ParseQueryKind maps a CLI descriptor to a [QueryKind]. It returns false
// for an unrecognized descriptor, mirroring
// DnsClient::setQueryType(const string&)'s bool return in the original
// client.
func ParseQueryKind(descriptor string) (QueryKind, bool) {
	switch descriptor {
	case "std":
		return Standard, true
	case "dump":
		return Dump, true
	case "ping":
		return Ping, true
	case "info":
		return Info, true
	case "mail":
		return Mail, true
	case "locate":
		return Locate, true
	default:
		return 0, false
	}
}

// Record types and classes used on the wire. Only the types this codec can
// decode RDATA for are named beyond what's needed for QTYPE selection; see
// [ErrUnsupportedType].
const (
	TypeA     uint16 = 1
	TypeNS    uint16 = 2
	TypeCNAME uint16 = 5
	TypeSOA   uint16 = 6
	TypePTR   uint16 = 12 // named only; no query kind uses it and it is not decoded
	TypeMX    uint16 = 15
	TypeTXT   uint16 = 16
	TypeAAAA  uint16 = 28
	TypeLOC   uint16 = 29

	ClassIN uint16 = 1
	ClassCH uint16 = 3
)

// qtypeQclass returns the QTYPE/QCLASS pair and the QNAME override (used
// only by Info, which always queries "version.bind" regardless of the
// caller's configured site) for a query kind.
func qtypeQclass(kind QueryKind, site string) (qtype, qclass uint16, name string) {
	switch kind {
	case Info:
		return TypeTXT, ClassCH, "version.bind"
	case Mail:
		return TypeMX, ClassIN, site
	case Locate:
		return TypeLOC, ClassIN, site
	default: // Standard, Dump, Ping
		return TypeA, ClassIN, site
	}
}

const (
	maxLabelLength = 63
	maxNameLength  = 253
	headerLength   = 12
)

// Query describes the fields needed to assemble a wire query buffer, per
// the Query Descriptor of the data model.
type Query struct {
	// Site is the name being queried. Ignored for [Info], which always
	// queries "version.bind".
	Site string
	// Kind selects the QTYPE/QCLASS pair.
	Kind QueryKind
	// RecursionDesired sets the RD bit.
	RecursionDesired bool
	// TCP prepends a 2-octet length prefix sized for TCP framing.
	TCP bool
}

// Assemble builds the wire query buffer for q, using id as the transaction
// ID. The caller (the engine) is responsible for sourcing id from the
// entropy source; this package has no dependency on randomness so that its
// output is fully deterministic and easy to test.
func (q Query) Assemble(id uint16) ([]byte, error) {
	name, err := normalizeName(q.Site)
	if err != nil {
		return nil, err
	}

	qtype, qclass, qname := qtypeQclass(q.Kind, name)

	labels, err := splitLabels(qname)
	if err != nil {
		return nil, err
	}

	lenPrefix := 0
	if q.TCP {
		lenPrefix = 2
	}

	buf := make([]byte, lenPrefix+headerLength, lenPrefix+headerLength+len(qname)+16)

	header := buf[lenPrefix : lenPrefix+headerLength]
	binary.BigEndian.PutUint16(header[0:2], id)

	var flags Flags
	flags.SetRD(q.RecursionDesired)
	b1, b2 := flags.Bytes()
	header[2], header[3] = b1, b2

	binary.BigEndian.PutUint16(header[4:6], 1) // QDCOUNT

	for _, label := range labels {
		buf = append(buf, byte(len(label)))
		buf = append(buf, label...)
	}
	buf = append(buf, 0) // root terminator

	qtBuf := make([]byte, 4)
	binary.BigEndian.PutUint16(qtBuf[0:2], qtype)
	binary.BigEndian.PutUint16(qtBuf[2:4], qclass)
	buf = append(buf, qtBuf...)

	if q.TCP {
		binary.BigEndian.PutUint16(buf[0:2], uint16(len(buf)-2))
	}

	return buf, nil
}

// normalizeName validates and IDNA-normalizes a site name, matching the
// spot dnscodec.NewQuery normalizes a name in the sibling library this
// codec is modeled on. A pure-ASCII name is passed through unchanged: spec.md
// §8's assemble/decode round-trip invariant covers any ASCII label, including
// ones (e.g. "_dmarc", "_sip._tcp") that idna.Lookup's STD3 rules would
// otherwise reject despite being valid on the wire.
func normalizeName(site string) (string, error) {
	if site == "" || site == "." {
		return "", nil
	}
	if isASCII(site) {
		if len(site) > maxNameLength {
			return "", fmt.Errorf("%w: %q is %d octets", ErrNameTooLong, site, len(site))
		}
		return site, nil
	}
	ascii, err := idna.Lookup.ToASCII(site)
	if err != nil {
		return "", fmt.Errorf("dnsquery/wire: invalid site name %q: %w", site, err)
	}
	if len(ascii) > maxNameLength {
		return "", fmt.Errorf("%w: %q is %d octets", ErrNameTooLong, site, len(ascii))
	}
	return ascii, nil
}

// isASCII reports whether s contains only 7-bit ASCII bytes.
func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// splitLabels splits a dotted name into its wire labels, enforcing the
// per-label and total-name length limits.
func splitLabels(name string) ([]string, error) {
	if name == "" {
		return nil, nil
	}
	labels := strings.Split(strings.TrimSuffix(name, "."), ".")

	total := 0
	for _, label := range labels {
		if len(label) == 0 || len(label) > maxLabelLength {
			return nil, fmt.Errorf("%w: label %q is %d octets", ErrNameTooLong, label, len(label))
		}
		total += len(label) + 1
	}
	total-- // no dot after the last label
	if total > maxNameLength {
		return nil, fmt.Errorf("%w: name %q is %d octets", ErrNameTooLong, name, total)
	}
	return labels, nil
}
