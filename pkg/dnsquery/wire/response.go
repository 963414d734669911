package wire

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/seanrobmerriam/dnsquery-go/pkg/dnsquery/bits"
)

// Record is one decoded resource record: the common header fields plus a
// type-specific text rendering of RDATA, per the data model's "Parsed
// Record" tuple.
type Record struct {
	Name     string
	Type     uint16
	Class    uint16
	TTL      uint32
	RDLength uint16
	Text     string
}

// Response is the ordered set of records decoded from a reply, plus an
// index from record type to positions for fast retrieval.
type Response struct {
	ID      uint16
	Flags   Flags
	QName   string
	QType   uint16
	QClass  uint16
	Records []Record

	byType map[uint16][]int
}

// OfType returns every decoded record of the given type, in wire order.
func (r *Response) OfType(t uint16) []Record {
	var out []Record
	for _, i := range r.byType[t] {
		out = append(out, r.Records[i])
	}
	return out
}

// ParseResponse decodes a complete response message (the buffer must NOT
// include the TCP 2-octet length prefix, if any; strip it first). id is the
// transaction ID the engine sent; it is validated before anything else is
// read.
func ParseResponse(buf []byte, id uint16) (*Response, error) {
	if len(buf) < headerLength {
		return nil, fmt.Errorf("%w: response of %d bytes shorter than header", ErrShortRead, len(buf))
	}

	gotID := binary.BigEndian.Uint16(buf[0:2])
	if gotID != id {
		return nil, fmt.Errorf("%w: response id %d does not match query id %d", ErrProtocolMismatch, gotID, id)
	}

	flags := DecodeFlags(buf[2], buf[3])
	if !flags.QR() {
		return nil, fmt.Errorf("%w: QR bit not set in response", ErrProtocolMismatch)
	}

	qdcount := binary.BigEndian.Uint16(buf[4:6])
	ancount := binary.BigEndian.Uint16(buf[6:8])
	nscount := binary.BigEndian.Uint16(buf[8:10])

	if qdcount != 1 {
		return nil, fmt.Errorf("%w: QDCOUNT %d, want 1", ErrProtocolMismatch, qdcount)
	}

	qname, pos, err := decodeName(buf, headerLength)
	if err != nil {
		return nil, err
	}
	qtqc, err := bits.CheckedSlice(buf, pos, 4)
	if err != nil {
		return nil, fmt.Errorf("%w: reading question QTYPE/QCLASS: %v", ErrShortRead, err)
	}
	qtype := binary.BigEndian.Uint16(qtqc[0:2])
	qclass := binary.BigEndian.Uint16(qtqc[2:4])
	pos += 4

	resp := &Response{
		ID:     gotID,
		Flags:  flags,
		QName:  qname,
		QType:  qtype,
		QClass: qclass,
		byType: make(map[uint16][]int),
	}

	total := int(ancount) + int(nscount)
	for i := 0; i < total; i++ {
		var rec Record
		rec, pos, err = decodeRecord(buf, pos)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		resp.byType[rec.Type] = append(resp.byType[rec.Type], len(resp.Records))
		resp.Records = append(resp.Records, rec)
	}

	return resp, nil
}

// decodeRecord decodes one resource record (name, type, class, ttl,
// rdlength, RDATA) starting at pos, dispatching the RDATA decode by type
// per the wire codec's decode table. It returns the decoded record and the
// offset of the byte after it, which always equals pos-on-entry plus the
// name length plus 10 plus rdlength, regardless of whether the RDATA
// decoder itself consumed exactly rdlength bytes.
func decodeRecord(buf []byte, pos int) (Record, int, error) {
	name, afterName, err := decodeName(buf, pos)
	if err != nil {
		return Record{}, 0, err
	}

	header, err := bits.CheckedSlice(buf, afterName, 10)
	if err != nil {
		return Record{}, 0, fmt.Errorf("%w: reading record header at %d: %v", ErrShortRead, afterName, err)
	}
	rtype := binary.BigEndian.Uint16(header[0:2])
	rclass := binary.BigEndian.Uint16(header[2:4])
	ttl := binary.BigEndian.Uint32(header[4:8])
	rdlength := binary.BigEndian.Uint16(header[8:10])

	rdataStart := afterName + 10
	rdata, err := bits.CheckedSlice(buf, rdataStart, int(rdlength))
	if err != nil {
		return Record{}, 0, fmt.Errorf("%w: reading %d-byte RDATA at %d: %v", ErrShortRead, rdlength, rdataStart, err)
	}

	text, err := decodeRDATA(buf, rdataStart, rtype, rdlength, rdata)
	if err != nil {
		return Record{}, 0, err
	}

	rec := Record{
		Name:     name,
		Type:     rtype,
		Class:    rclass,
		TTL:      ttl,
		RDLength: rdlength,
		Text:     text,
	}
	return rec, rdataStart + int(rdlength), nil
}

// decodeRDATA renders the type-specific RDATA text for one record, per the
// wire codec's decode table. buf/start are passed in (rather than just
// rdata) because NS/CNAME/SOA/MX RDATA can itself contain compression
// pointers into the whole message.
func decodeRDATA(buf []byte, start int, rtype uint16, rdlength uint16, rdata []byte) (string, error) {
	switch rtype {
	case TypeA:
		if rdlength != 4 {
			return "", fmt.Errorf("dnsquery/wire: A record RDLENGTH %d, want 4", rdlength)
		}
		return net.IP(rdata).String(), nil

	case TypeAAAA:
		if rdlength != 16 {
			return "", fmt.Errorf("dnsquery/wire: AAAA record RDLENGTH %d, want 16", rdlength)
		}
		return net.IP(rdata).String(), nil

	case TypeNS, TypeCNAME:
		name, _, err := decodeName(buf, start)
		return name, err

	case TypeSOA:
		name, _, err := decodeName(buf, start)
		if err != nil {
			return "", err
		}
		return name + ";", nil

	case TypeMX:
		if len(rdata) < 2 {
			return "", fmt.Errorf("%w: MX RDATA shorter than the 2-octet preference field", ErrShortRead)
		}
		pref := binary.BigEndian.Uint16(rdata[0:2])
		exchange, _, err := decodeName(buf, start+2)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(int(pref)) + ";" + exchange, nil

	case TypeTXT:
		if len(rdata) < 1 {
			return "", fmt.Errorf("%w: TXT RDATA has no length octet", ErrShortRead)
		}
		n := int(rdata[0])
		if len(rdata) < 1+n {
			return "", fmt.Errorf("%w: TXT character-string of %d bytes exceeds RDATA", ErrShortRead, n)
		}
		return string(rdata[1 : 1+n]), nil

	case TypeLOC:
		return decodeLOC(rdata)

	default:
		return "", fmt.Errorf("%w: type %d", ErrUnsupportedType, rtype)
	}
}

// decodeLOC renders a LOC record's fixed fields as
// "Ver;Sz;Hp;Vp;La;Lo;Al;" per the data model's LOC rendering rule.
func decodeLOC(rdata []byte) (string, error) {
	if len(rdata) < 16 {
		return "", fmt.Errorf("%w: LOC RDATA of %d bytes, want at least 16", ErrShortRead, len(rdata))
	}
	ver, size, hp, vp := rdata[0], rdata[1], rdata[2], rdata[3]
	lat := binary.BigEndian.Uint32(rdata[4:8])
	lon := binary.BigEndian.Uint32(rdata[8:12])
	alt := binary.BigEndian.Uint32(rdata[12:16])

	fields := []string{
		strconv.Itoa(int(ver)),
		strconv.Itoa(int(size)),
		strconv.Itoa(int(hp)),
		strconv.Itoa(int(vp)),
		strconv.Itoa(int(lat)),
		strconv.Itoa(int(lon)),
		strconv.Itoa(int(alt)),
	}
	return strings.Join(fields, ";") + ";", nil
}
