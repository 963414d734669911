package wire

import (
	"encoding/binary"
	"errors"
	"testing"
)

// buildHeader writes a 12-octet header with the given counts and flag
// bytes into a fresh buffer.
func buildHeader(id uint16, flagsB1, flagsB2 byte, qd, an, ns, ar uint16) []byte {
	buf := make([]byte, headerLength)
	binary.BigEndian.PutUint16(buf[0:2], id)
	buf[2], buf[3] = flagsB1, flagsB2
	binary.BigEndian.PutUint16(buf[4:6], qd)
	binary.BigEndian.PutUint16(buf[6:8], an)
	binary.BigEndian.PutUint16(buf[8:10], ns)
	binary.BigEndian.PutUint16(buf[10:12], ar)
	return buf
}

func appendLabels(buf []byte, labels ...string) []byte {
	for _, l := range labels {
		buf = append(buf, byte(len(l)))
		buf = append(buf, l...)
	}
	return append(buf, 0)
}

func TestParseResponseARecord(t *testing.T) {
	buf := buildHeader(0x1234, flagByte1QR, 0, 1, 1, 0, 0)
	buf = appendLabels(buf, "example", "com")
	buf = append(buf, 0, 1, 0, 1) // QTYPE=A, QCLASS=IN

	// answer: name via pointer to offset 12, type A, class IN, ttl, rdlength 4, 4 octets
	buf = append(buf, 0xC0, 0x0C) // pointer to offset 12 (the question name)
	buf = append(buf, 0, 1, 0, 1)
	buf = append(buf, 0, 0, 0, 60) // TTL
	buf = append(buf, 0, 4)        // RDLENGTH
	buf = append(buf, 93, 184, 216, 34)

	resp, err := ParseResponse(buf, 0x1234)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if resp.QName != "example.com" {
		t.Fatalf("QName = %q, want example.com", resp.QName)
	}
	if len(resp.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(resp.Records))
	}
	rec := resp.Records[0]
	if rec.Name != "example.com" {
		t.Errorf("record name = %q, want example.com", rec.Name)
	}
	if rec.Text != "93.184.216.34" {
		t.Errorf("record text = %q, want 93.184.216.34", rec.Text)
	}
	of := resp.OfType(TypeA)
	if len(of) != 1 {
		t.Errorf("OfType(TypeA) returned %d records, want 1", len(of))
	}
}

func TestParseResponseCompressionPointer(t *testing.T) {
	buf := buildHeader(0x5, flagByte1QR, 0, 1, 2, 0, 0)
	buf = appendLabels(buf, "mail", "example", "com")
	buf = append(buf, 0, 15, 0, 1) // QTYPE=MX, QCLASS=IN

	// first answer: NS pointing at "example.com" suffix (offset of "example" label).
	// question starts at offset 12: len('mail')=4 -> 1+4=5, then 'example' label at 12+5=17
	exampleOffset := headerLength + 1 + len("mail")
	buf = append(buf, 0xC0, byte(exampleOffset))
	buf = append(buf, 0, 2, 0, 1)
	buf = append(buf, 0, 0, 1, 0)
	nsName := appendLabels(nil, "ns1")
	nsName = nsName[:len(nsName)-1] // drop the terminator: the pointer ends this name
	nsName = append(nsName, 0xC0, byte(exampleOffset))
	buf = append(buf, 0, byte(len(nsName)))
	buf = append(buf, nsName...)

	// second answer: pointer straight back to the question's full name (offset 12)
	buf = append(buf, 0xC0, 0x0C)
	buf = append(buf, 0, 1, 0, 1)
	buf = append(buf, 0, 0, 0, 30)
	buf = append(buf, 0, 4)
	buf = append(buf, 1, 2, 3, 4)

	resp, err := ParseResponse(buf, 0x5)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if len(resp.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(resp.Records))
	}
	if resp.Records[0].Name != "example.com" {
		t.Errorf("record[0] name = %q, want example.com", resp.Records[0].Name)
	}
	if resp.Records[0].Text != "ns1.example.com" {
		t.Errorf("record[0] text = %q, want ns1.example.com", resp.Records[0].Text)
	}
	if resp.Records[1].Text != "1.2.3.4" {
		t.Errorf("record[1] text = %q, want 1.2.3.4", resp.Records[1].Text)
	}
}

func TestParseResponseForwardPointerRejected(t *testing.T) {
	buf := buildHeader(0x9, flagByte1QR, 0, 1, 1, 0, 0)
	buf = appendLabels(buf, "a")
	buf = append(buf, 0, 1, 0, 1)

	// pointer targeting an offset past itself: malicious forward reference.
	badTarget := len(buf) + 10
	buf = append(buf, 0xC0|byte(badTarget>>8), byte(badTarget))
	buf = append(buf, 0, 1, 0, 1)
	buf = append(buf, 0, 0, 0, 1)
	buf = append(buf, 0, 4)
	buf = append(buf, 1, 1, 1, 1)

	_, err := ParseResponse(buf, 0x9)
	if !errors.Is(err, ErrBadPointer) {
		t.Fatalf("err = %v, want ErrBadPointer", err)
	}
}

func TestParseResponseIDMismatch(t *testing.T) {
	buf := buildHeader(0x1, flagByte1QR, 0, 1, 0, 0, 0)
	buf = appendLabels(buf, "a")
	buf = append(buf, 0, 1, 0, 1)

	_, err := ParseResponse(buf, 0x2)
	if !errors.Is(err, ErrProtocolMismatch) {
		t.Fatalf("err = %v, want ErrProtocolMismatch", err)
	}
}

func TestParseResponseTruncatedFlag(t *testing.T) {
	buf := buildHeader(0x7, flagByte1QR|flagByte1TC, 0, 1, 0, 0, 0)
	buf = appendLabels(buf, "a")
	buf = append(buf, 0, 1, 0, 1)

	resp, err := ParseResponse(buf, 0x7)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if !resp.Flags.TC() {
		t.Error("Flags.TC() = false, want true")
	}
}

func TestParseResponseShortBuffer(t *testing.T) {
	_, err := ParseResponse([]byte{0, 1, 2}, 1)
	if !errors.Is(err, ErrShortRead) {
		t.Fatalf("err = %v, want ErrShortRead", err)
	}
}
