// Package header holds owned header records that can be marshaled to wire
// format, with length and checksum fields derived from their contents.
//
// The decoder's zero-copy views produce these records via ToHeader. Numeric
// fields hold host values; checksums are stored as the numeric value of the
// big endian wire field.
package header

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"firestige.xyz/hdrview/internal/checksum"
	"firestige.xyz/hdrview/internal/core"
)

// maxPacketLength is the largest length the IPv4 total length and UDP
// length fields can express.
const maxPacketLength = math.MaxUint16

var (
	// ErrSmallBuffer is returned when Marshal receives a buffer too small to
	// contain the header.
	ErrSmallBuffer = errors.New("header: buffer too small")
	// ErrLargePacket is returned when a payload is larger than the length
	// fields can represent.
	ErrLargePacket = errors.New("header: packet too large")
)

// Header is a packet header capable of marshaling itself into a byte buffer.
type Header interface {
	// Len returns the length of the marshaled header.
	Len() int
	// Marshal serializes the header into buf, which must be at least Len()
	// bytes long. Derived fields (IHL, data offset, extension length
	// bytes, the IPv4 header checksum) are computed from the record.
	// Marshal does not allocate.
	Marshal(buf []byte) error
}

// ValueError reports a field value that cannot be encoded.
type ValueError struct {
	Field string
	Value uint64
	Max   uint64
	// Multiple is the required alignment of length-like values, zero when
	// there is none.
	Multiple uint64
}

func (e *ValueError) Error() string {
	if e.Multiple != 0 && e.Value%e.Multiple != 0 {
		return fmt.Sprintf("header: %s %d is not a multiple of %d", e.Field, e.Value, e.Multiple)
	}
	return fmt.Sprintf("header: %s %d exceeds maximum %d", e.Field, e.Value, e.Max)
}

func checkMax(field string, v, maxValue uint64) error {
	if v > maxValue {
		return &ValueError{Field: field, Value: v, Max: maxValue}
	}
	return nil
}

// checkLen validates a variable length section against a maximum and an
// alignment.
func checkLen(field string, n, maxValue, multiple int) error {
	if n > maxValue || n%multiple != 0 {
		return &ValueError{Field: field, Value: uint64(n), Max: uint64(maxValue), Multiple: uint64(multiple)}
	}
	return nil
}

// Generate returns a new buffer holding the marshaled header followed by
// payload. It allocates; use Header.Marshal for an allocation-free option.
func Generate(h Header, payload []byte) ([]byte, error) {
	hlen := h.Len()
	buf := make([]byte, hlen+len(payload))
	copy(buf[hlen:], payload)
	if err := h.Marshal(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Concat marshals a stack of headers followed by payload into one buffer.
func Concat(payload []byte, hs ...Header) ([]byte, error) {
	n := len(payload)
	for _, h := range hs {
		n += h.Len()
	}
	buf := make([]byte, n)
	off := 0
	for _, h := range hs {
		if err := h.Marshal(buf[off:]); err != nil {
			return nil, err
		}
		off += h.Len()
	}
	copy(buf[off:], payload)
	return buf, nil
}

func put16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }
func put32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }

func ipv4PseudoSum(src, dst [4]byte, proto core.IPNumber, length uint16) checksum.Sum {
	return checksum.New().
		Add4Bytes(src).
		Add4Bytes(dst).
		AddUint16(uint16(proto)).
		AddUint16(length)
}

func ipv6PseudoSum(src, dst [16]byte, next core.IPNumber, length uint32) checksum.Sum {
	return checksum.New().
		Add16Bytes(src).
		Add16Bytes(dst).
		AddUint32(length).
		AddUint32(uint32(next))
}
