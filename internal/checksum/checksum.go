// Package checksum implements the 16-bit one's complement sum used by the
// IPv4, UDP, TCP and ICMP checksums (RFC 1071).
//
// Words are read in native byte order and the folded result is also in native
// byte order, which is valid because one's complement addition is
// byte-order independent. Write the result with binary.NativeEndian to get the
// correct wire bytes, or convert it with ToBigEndian for a numeric field.
package checksum

import (
	"encoding/binary"
	"math/bits"
)

// Sum accumulates 16-bit words in a 64-bit state. Every method returns the
// updated value, the receiver is never modified.
type Sum struct {
	sum uint64
}

// New returns an empty accumulator.
func New() Sum {
	return Sum{}
}

func (s Sum) add(v uint64) Sum {
	sum, carry := bits.Add64(s.sum, v, 0)
	return Sum{sum: sum + carry}
}

// Add2Bytes adds a 2-byte word.
func (s Sum) Add2Bytes(b [2]byte) Sum {
	return s.add(uint64(binary.NativeEndian.Uint16(b[:])))
}

// Add4Bytes adds a 4-byte word.
func (s Sum) Add4Bytes(b [4]byte) Sum {
	return s.add(uint64(binary.NativeEndian.Uint32(b[:])))
}

// Add8Bytes adds an 8-byte word.
func (s Sum) Add8Bytes(b [8]byte) Sum {
	return s.add(binary.NativeEndian.Uint64(b[:]))
}

// Add16Bytes adds a 16-byte word, e.g. an IPv6 address.
func (s Sum) Add16Bytes(b [16]byte) Sum {
	return s.add(binary.NativeEndian.Uint64(b[:8])).add(binary.NativeEndian.Uint64(b[8:]))
}

// AddUint16 adds a numeric value as it would appear on the wire in big
// endian order (e.g. a pseudo header length field).
func (s Sum) AddUint16(v uint16) Sum {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return s.Add2Bytes(b)
}

// AddUint32 adds a numeric big endian 32-bit value.
func (s Sum) AddUint32(v uint32) Sum {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return s.Add4Bytes(b)
}

// AddUint64 adds a numeric big endian 64-bit value.
func (s Sum) AddUint64(v uint64) Sum {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return s.Add8Bytes(b)
}

// AddBytes adds an arbitrary buffer. A trailing odd byte is padded with a
// zero byte.
func (s Sum) AddBytes(b []byte) Sum {
	for len(b) >= 8 {
		s = s.add(binary.NativeEndian.Uint64(b))
		b = b[8:]
	}
	if len(b) >= 4 {
		s = s.add(uint64(binary.NativeEndian.Uint32(b)))
		b = b[4:]
	}
	if len(b) >= 2 {
		s = s.add(uint64(binary.NativeEndian.Uint16(b)))
		b = b[2:]
	}
	if len(b) == 1 {
		s = s.Add2Bytes([2]byte{b[0], 0})
	}
	return s
}

// fold reduces the state to 16 bits with end-around carry.
func (s Sum) fold() uint16 {
	hi, lo := uint32(s.sum>>32), uint32(s.sum)
	v32, c := bits.Add32(hi, lo, 0)
	v32 += c
	v16 := uint32(v32>>16) + uint32(v32&0xffff)
	v16 = (v16 >> 16) + (v16 & 0xffff)
	return uint16(v16)
}

// Finish returns the one's complement of the folded sum, in native byte
// order.
func (s Sum) Finish() uint16 {
	return ^s.fold()
}

// FinishNoZero is Finish, but a result of zero is reported as 0xffff. UDP
// uses it because a transmitted zero means "no checksum".
func (s Sum) FinishNoZero() uint16 {
	if r := s.Finish(); r != 0 {
		return r
	}
	return 0xffff
}

// Sum32 is the 32-bit state variant of Sum. It is useful where the input is
// known to be small and the state has to fit a uint32.
type Sum32 struct {
	sum uint32
}

// New32 returns an empty 32-bit accumulator.
func New32() Sum32 {
	return Sum32{}
}

// AddUint32 adds a raw 32-bit state word with end-around carry.
func (s Sum32) AddUint32(v uint32) Sum32 {
	sum, carry := bits.Add32(s.sum, v, 0)
	return Sum32{sum: sum + carry}
}

// Add2Bytes adds a 2-byte word.
func (s Sum32) Add2Bytes(b [2]byte) Sum32 {
	return s.AddUint32(uint32(binary.NativeEndian.Uint16(b[:])))
}

// Add4Bytes adds a 4-byte word.
func (s Sum32) Add4Bytes(b [4]byte) Sum32 {
	return s.AddUint32(binary.NativeEndian.Uint32(b[:]))
}

// AddBytes adds an arbitrary buffer, padding a trailing odd byte.
func (s Sum32) AddBytes(b []byte) Sum32 {
	for len(b) >= 4 {
		s = s.AddUint32(binary.NativeEndian.Uint32(b))
		b = b[4:]
	}
	if len(b) >= 2 {
		s = s.AddUint32(uint32(binary.NativeEndian.Uint16(b)))
		b = b[2:]
	}
	if len(b) == 1 {
		s = s.Add2Bytes([2]byte{b[0], 0})
	}
	return s
}

// Value returns the raw accumulator state.
func (s Sum32) Value() uint32 {
	return s.sum
}

// Finish returns the one's complement of the folded sum.
func (s Sum32) Finish() uint16 {
	v := (s.sum >> 16) + (s.sum & 0xffff)
	v = (v >> 16) + (v & 0xffff)
	return ^uint16(v)
}

// FinishNoZero is Finish with zero mapped to 0xffff.
func (s Sum32) FinishNoZero() uint16 {
	if r := s.Finish(); r != 0 {
		return r
	}
	return 0xffff
}

// ToBigEndian converts a native byte order checksum into the numeric value
// of the big endian wire field.
func ToBigEndian(v uint16) uint16 {
	var b [2]byte
	binary.NativeEndian.PutUint16(b[:], v)
	return binary.BigEndian.Uint16(b[:])
}

// FromBigEndian is the inverse of ToBigEndian.
func FromBigEndian(v uint16) uint16 {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return binary.NativeEndian.Uint16(b[:])
}
