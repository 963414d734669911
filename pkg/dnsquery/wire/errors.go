// Package wire implements the DNS wire-protocol codec: assembling a query
// buffer (header, QNAME, QTYPE/QCLASS, optional TCP length prefix) and
// decoding a response buffer back into structured records, including
// name-compression pointers and the per-type RDATA layouts of A, AAAA, NS,
// CNAME, SOA, MX, TXT, and LOC. Every decoder reads through bounds-checked
// accessors; nothing in this package performs network I/O.
package wire

import "errors"

// Sentinel errors for the wire codec. Callers should compare with
// [errors.Is].
var (
	// ErrNameTooLong is returned when a name exceeds 253 octets or a label
	// exceeds 63 octets, on either assembly or decode.
	ErrNameTooLong = errors.New("dnsquery/wire: name too long")

	// ErrBadPointer is returned when a compression pointer targets an
	// offset that is not strictly less than the pointer's own offset
	// (forward or cyclic pointer).
	ErrBadPointer = errors.New("dnsquery/wire: bad compression pointer")

	// ErrShortRead is returned when a decoder would read past the end of
	// the received buffer.
	ErrShortRead = errors.New("dnsquery/wire: short read")

	// ErrUnsupportedType is returned when a resource record's type is not
	// one of the types this codec decodes.
	ErrUnsupportedType = errors.New("dnsquery/wire: unsupported record type")

	// ErrProtocolMismatch is returned when a response fails a structural
	// sanity check: transaction ID mismatch, QR not set, or QDCOUNT != 1.
	ErrProtocolMismatch = errors.New("dnsquery/wire: protocol mismatch")
)
