package header

import (
	"firestige.xyz/hdrview/internal/checksum"
	"firestige.xyz/hdrview/internal/core"
)

const (
	// ICMPv4HeaderLen is the common ICMPv4 header length.
	ICMPv4HeaderLen = 8
	// ICMPv4TimestampLen is the length of timestamp and timestamp reply
	// messages.
	ICMPv4TimestampLen = 20
	// ICMPv6HeaderLen is the common ICMPv6 header length.
	ICMPv6HeaderLen = 8
)

// ICMPv4 message types with a non-default length.
const (
	ICMPv4TypeTimestamp      = 13
	ICMPv4TypeTimestampReply = 14
)

// IsICMPv4Timestamp reports whether an ICMPv4 message of this type and code
// carries the three timestamp fields.
func IsICMPv4Timestamp(typ, code uint8) bool {
	return code == 0 && (typ == ICMPv4TypeTimestamp || typ == ICMPv4TypeTimestampReply)
}

// ICMPv4Header is the ICMPv4 header. Timestamps are only carried by
// timestamp and timestamp reply messages.
type ICMPv4Header struct {
	Type     uint8
	Code     uint8
	Checksum uint16
	// Rest is the type dependent second word (identifier and sequence
	// for echo, unused for most errors).
	Rest [4]byte
	// Timestamps holds originate, receive and transmit time.
	Timestamps [3]uint32
}

func (h ICMPv4Header) Len() int {
	if IsICMPv4Timestamp(h.Type, h.Code) {
		return ICMPv4TimestampLen
	}
	return ICMPv4HeaderLen
}

func (h ICMPv4Header) Marshal(buf []byte) error {
	n := h.Len()
	if len(buf) < n {
		return ErrSmallBuffer
	}
	buf[0] = h.Type
	buf[1] = h.Code
	put16(buf[2:4], h.Checksum)
	copy(buf[4:8], h.Rest[:])
	if n == ICMPv4TimestampLen {
		put32(buf[8:12], h.Timestamps[0])
		put32(buf[12:16], h.Timestamps[1])
		put32(buf[16:20], h.Timestamps[2])
	}
	return nil
}

// CalcChecksum computes the checksum over the header and payload.
func (h ICMPv4Header) CalcChecksum(payload []byte) uint16 {
	var b [ICMPv4TimestampLen]byte
	c := h
	c.Checksum = 0
	_ = c.Marshal(b[:])
	s := checksum.New().AddBytes(b[:h.Len()]).AddBytes(payload)
	return checksum.ToBigEndian(s.Finish())
}

// ICMPv6Header is the ICMPv6 header.
type ICMPv6Header struct {
	Type     uint8
	Code     uint8
	Checksum uint16
	Rest     [4]byte
}

func (ICMPv6Header) Len() int { return ICMPv6HeaderLen }

func (h ICMPv6Header) Marshal(buf []byte) error {
	if len(buf) < ICMPv6HeaderLen {
		return ErrSmallBuffer
	}
	buf[0] = h.Type
	buf[1] = h.Code
	put16(buf[2:4], h.Checksum)
	copy(buf[4:8], h.Rest[:])
	return nil
}

// CalcChecksum computes the checksum over the IPv6 pseudo header, the
// header and payload.
func (h ICMPv6Header) CalcChecksum(src, dst [16]byte, payload []byte) (uint16, error) {
	n := uint64(len(payload)) + ICMPv6HeaderLen
	if n > 0xffffffff {
		return 0, ErrLargePacket
	}
	s := ipv6PseudoSum(src, dst, core.IPNumberICMPv6, uint32(n)).
		Add2Bytes([2]byte{h.Type, h.Code}).
		Add4Bytes(h.Rest).
		AddBytes(payload)
	return checksum.ToBigEndian(s.Finish()), nil
}
