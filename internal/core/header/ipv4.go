package header

import (
	"encoding/binary"

	"firestige.xyz/hdrview/internal/checksum"
	"firestige.xyz/hdrview/internal/core"
)

const (
	// IPv4MinHeaderLen is the header length without options.
	IPv4MinHeaderLen = 20
	// IPv4MaxHeaderLen is the header length with IHL 15.
	IPv4MaxHeaderLen = 60
	// IPv4MaxOptionsLen is the largest options section.
	IPv4MaxOptionsLen = IPv4MaxHeaderLen - IPv4MinHeaderLen
)

const (
	maxDSCP           = 0x3f
	maxECN            = 0x3
	maxFragmentOffset = 0x1fff
)

// IPv4Header is an IPv4 header. IHL is derived from Options.
type IPv4Header struct {
	DSCP uint8
	ECN  uint8
	// TotalLen covers header and payload. Use SetPayloadLen to derive it.
	TotalLen       uint16
	Identification uint16
	DontFragment   bool
	MoreFragments  bool
	// FragmentOffset is in units of 8 bytes, 13 bits.
	FragmentOffset uint16
	TTL            uint8
	Protocol       core.IPNumber
	// Checksum is the value read from the wire. Marshal always writes the
	// computed header checksum.
	Checksum    uint16
	Source      [4]byte
	Destination [4]byte
	// Options must be a multiple of 4 bytes, at most 40.
	Options []byte
}

func (h IPv4Header) Len() int { return IPv4MinHeaderLen + len(h.Options) }

// IHL returns the header length in 32-bit words.
func (h IPv4Header) IHL() uint8 { return uint8(h.Len() / 4) }

// PayloadLen returns the payload length announced by TotalLen.
func (h IPv4Header) PayloadLen() (int, error) {
	n := int(h.TotalLen) - h.Len()
	if n < 0 {
		return 0, &core.HeaderError{
			Layer:  core.LayerIPv4Header,
			Reason: core.ReasonTotalLenTooSmall,
			Value:  uint32(h.TotalLen),
		}
	}
	return n, nil
}

// SetPayloadLen derives TotalLen from the header length and n.
func (h *IPv4Header) SetPayloadLen(n int) error {
	total := h.Len() + n
	if total > maxPacketLength {
		return ErrLargePacket
	}
	h.TotalLen = uint16(total)
	return nil
}

// IsFragmenting reports whether the packet is part of a fragmented
// datagram.
func (h IPv4Header) IsFragmenting() bool {
	return h.MoreFragments || h.FragmentOffset != 0
}

func (h IPv4Header) validate() error {
	if err := checkLen("ipv4 options length", len(h.Options), IPv4MaxOptionsLen, 4); err != nil {
		return err
	}
	if err := checkMax("ipv4 dscp", uint64(h.DSCP), maxDSCP); err != nil {
		return err
	}
	if err := checkMax("ipv4 ecn", uint64(h.ECN), maxECN); err != nil {
		return err
	}
	return checkMax("ipv4 fragment offset", uint64(h.FragmentOffset), maxFragmentOffset)
}

// marshalFields writes everything except the checksum, which is zeroed.
func (h IPv4Header) marshalFields(buf []byte) {
	buf[0] = 4<<4 | h.IHL()
	buf[1] = h.DSCP<<2 | h.ECN
	put16(buf[2:4], h.TotalLen)
	put16(buf[4:6], h.Identification)
	flags := h.FragmentOffset
	if h.DontFragment {
		flags |= 0x4000
	}
	if h.MoreFragments {
		flags |= 0x2000
	}
	put16(buf[6:8], flags)
	buf[8] = h.TTL
	buf[9] = uint8(h.Protocol)
	buf[10], buf[11] = 0, 0
	copy(buf[12:16], h.Source[:])
	copy(buf[16:20], h.Destination[:])
	copy(buf[20:], h.Options)
}

func (h IPv4Header) Marshal(buf []byte) error {
	hl := h.Len()
	if err := h.validate(); err != nil {
		return err
	}
	if len(buf) < hl {
		return ErrSmallBuffer
	}
	h.marshalFields(buf[:hl])
	binary.NativeEndian.PutUint16(buf[10:12], checksum.New().AddBytes(buf[:hl]).Finish())
	return nil
}

// HeaderChecksum computes the header checksum without marshaling into a
// caller buffer.
func (h IPv4Header) HeaderChecksum() (uint16, error) {
	if err := h.validate(); err != nil {
		return 0, err
	}
	var b [IPv4MaxHeaderLen]byte
	hl := h.Len()
	h.marshalFields(b[:hl])
	return checksum.ToBigEndian(checksum.New().AddBytes(b[:hl]).Finish()), nil
}
