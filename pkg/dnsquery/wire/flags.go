package wire

import "github.com/seanrobmerriam/dnsquery-go/pkg/dnsquery/bits"

// Header flag masks, byte 1 (offset 2 in the wire header).
const (
	flagByte1QR   byte = 0b1000_0000
	flagByte1AA   byte = 0b0000_0100
	flagByte1TC   byte = 0b0000_0010
	flagByte1RD   byte = 0b0000_0001
	opcodeMask    byte = 0b0111_1000
	opcodeShift        = 3
)

// Header flag masks, byte 2 (offset 3 in the wire header).
const (
	flagByte2RA    byte = 0b1000_0000
	flagByte2Z     byte = 0b0111_0000
	flagByte2RCODE byte = 0b0000_1111
)

// Flags is the two-octet DNS header flags field, exposed as named logical
// fields instead of raw bit twiddling. Construct the zero value and use the
// setters, or decode one from the wire with [DecodeFlags].
type Flags struct {
	b1, b2 byte
}

// DecodeFlags splits the two raw flag octets into a [Flags] value.
func DecodeFlags(b1, b2 byte) Flags {
	return Flags{b1: b1, b2: b2}
}

// Bytes returns the two raw octets in wire order.
func (f Flags) Bytes() (byte, byte) {
	return f.b1, f.b2
}

// QR reports the query/response bit: false for a query, true for a response.
func (f Flags) QR() bool { return bits.Test(flagByte1QR, f.b1) }

// SetQR sets the query/response bit.
func (f *Flags) SetQR(v bool) { setBit(&f.b1, flagByte1QR, v) }

// Opcode returns the 4-bit operation code.
func (f Flags) Opcode() byte { return bits.Extract(opcodeMask, f.b1) >> opcodeShift }

// SetOpcode sets the 4-bit operation code.
func (f *Flags) SetOpcode(v byte) {
	bits.Clear(opcodeMask, &f.b1)
	bits.Set((v<<opcodeShift)&opcodeMask, &f.b1)
}

// AA reports the authoritative-answer bit.
func (f Flags) AA() bool { return bits.Test(flagByte1AA, f.b1) }

// SetAA sets the authoritative-answer bit.
func (f *Flags) SetAA(v bool) { setBit(&f.b1, flagByte1AA, v) }

// TC reports the truncation bit.
func (f Flags) TC() bool { return bits.Test(flagByte1TC, f.b1) }

// SetTC sets the truncation bit.
func (f *Flags) SetTC(v bool) { setBit(&f.b1, flagByte1TC, v) }

// RD reports the recursion-desired bit.
func (f Flags) RD() bool { return bits.Test(flagByte1RD, f.b1) }

// SetRD sets the recursion-desired bit.
func (f *Flags) SetRD(v bool) { setBit(&f.b1, flagByte1RD, v) }

// RA reports the recursion-available bit.
func (f Flags) RA() bool { return bits.Test(flagByte2RA, f.b2) }

// SetRA sets the recursion-available bit.
func (f *Flags) SetRA(v bool) { setBit(&f.b2, flagByte2RA, v) }

// Z returns the reserved Z bits, which must be zero on both queries and
// responses.
func (f Flags) Z() byte { return bits.Extract(flagByte2Z, f.b2) >> 4 }

// RCODE returns the 4-bit response code.
func (f Flags) RCODE() byte { return bits.Extract(flagByte2RCODE, f.b2) }

// SetRCODE sets the 4-bit response code.
func (f *Flags) SetRCODE(v byte) {
	bits.Clear(flagByte2RCODE, &f.b2)
	bits.Set(v&flagByte2RCODE, &f.b2)
}

func setBit(dest *byte, mask byte, v bool) {
	if v {
		bits.Set(mask, dest)
	} else {
		bits.Clear(mask, dest)
	}
}
