package wire

import (
	"fmt"
	"strings"

	"github.com/seanrobmerriam/dnsquery-go/pkg/dnsquery/bits"
)

const rootName = "<ROOT>"

// pointerMask identifies a compression pointer: the top two bits of the
// length octet are both set.
const pointerMask = 0b1100_0000

// decodeName decodes a (possibly compressed) domain name starting at
// offset start in buf. It returns the rendered name, the offset of the
// first byte after the name as seen by the *caller* (frozen at the first
// pointer's own two octets, per the data model's invariant that the outer
// cursor never advances past a pointer), and an error.
//
// Every pointer target must be strictly less than the offset of the
// pointer itself; this, plus a 253-octet budget on accumulated label
// bytes, makes pointer loops and forward references unrepresentable.
func decodeName(buf []byte, start int) (name string, next int, err error) {
	var labels []string
	pos := start
	budget := 0
	frozen := -1

	for {
		length, err := bits.CheckedAt(buf, pos)
		if err != nil {
			return "", 0, fmt.Errorf("%w: reading name length at %d: %v", ErrShortRead, pos, err)
		}

		if length&pointerMask == pointerMask {
			hi, err := bits.CheckedAt(buf, pos)
			if err != nil {
				return "", 0, fmt.Errorf("%w: %v", ErrShortRead, err)
			}
			lo, err := bits.CheckedAt(buf, pos+1)
			if err != nil {
				return "", 0, fmt.Errorf("%w: reading pointer low byte at %d: %v", ErrShortRead, pos+1, err)
			}
			target := int(bits.Extract(^byte(pointerMask), hi))<<8 | int(lo)

			if target >= pos {
				return "", 0, fmt.Errorf("%w: pointer at %d targets %d", ErrBadPointer, pos, target)
			}

			if frozen == -1 {
				frozen = pos + 2
			}
			pos = target
			continue
		}

		if length == 0 {
			break
		}

		labelStart := pos + 1
		label, err := bits.CheckedSlice(buf, labelStart, int(length))
		if err != nil {
			return "", 0, fmt.Errorf("%w: reading %d-byte label at %d: %v", ErrShortRead, length, labelStart, err)
		}

		budget += int(length)
		if budget > maxNameLength {
			return "", 0, fmt.Errorf("%w: more than %d octets of label material", ErrNameTooLong, maxNameLength)
		}

		labels = append(labels, string(label))
		pos = labelStart + int(length)
	}

	if frozen == -1 {
		frozen = pos + 1 // plain name: next byte is past the zero terminator
	}

	if len(labels) == 0 {
		return rootName, frozen, nil
	}
	return strings.Join(labels, "."), frozen, nil
}
