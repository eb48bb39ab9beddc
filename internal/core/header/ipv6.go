package header

import "firestige.xyz/hdrview/internal/core"

const (
	// IPv6HeaderLen is the fixed IPv6 header length.
	IPv6HeaderLen = 40
	// IPv6RawExtMinLen is the smallest generic extension header.
	IPv6RawExtMinLen = 8
	// IPv6RawExtMaxLen is the largest generic extension header.
	IPv6RawExtMaxLen = (0xff + 1) * 8
	// IPv6FragmentHeaderLen is the fixed fragment header length.
	IPv6FragmentHeaderLen = 8
)

const maxFlowLabel = 0xfffff

// IPv6Header is the fixed IPv6 header.
type IPv6Header struct {
	TrafficClass uint8
	// FlowLabel is 20 bits.
	FlowLabel   uint32
	PayloadLen  uint16
	NextHeader  core.IPNumber
	HopLimit    uint8
	Source      [16]byte
	Destination [16]byte
}

func (IPv6Header) Len() int { return IPv6HeaderLen }

// SetPayloadLen sets PayloadLen, which covers extension headers and the
// upper layer.
func (h *IPv6Header) SetPayloadLen(n int) error {
	if n > maxPacketLength {
		return ErrLargePacket
	}
	h.PayloadLen = uint16(n)
	return nil
}

func (h IPv6Header) Marshal(buf []byte) error {
	if len(buf) < IPv6HeaderLen {
		return ErrSmallBuffer
	}
	if err := checkMax("ipv6 flow label", uint64(h.FlowLabel), maxFlowLabel); err != nil {
		return err
	}
	put32(buf[0:4], 6<<28|uint32(h.TrafficClass)<<20|h.FlowLabel)
	put16(buf[4:6], h.PayloadLen)
	buf[6] = uint8(h.NextHeader)
	buf[7] = h.HopLimit
	copy(buf[8:24], h.Source[:])
	copy(buf[24:40], h.Destination[:])
	return nil
}

// IPv6RawExtHeader is a generic extension header that uses the 8-octet
// length encoding: hop-by-hop, destination options and routing.
type IPv6RawExtHeader struct {
	NextHeader core.IPNumber
	// Payload follows the next header and length bytes. Its length plus 2
	// must be a multiple of 8.
	Payload []byte
}

func (h IPv6RawExtHeader) Len() int { return 2 + len(h.Payload) }

func (h IPv6RawExtHeader) Marshal(buf []byte) error {
	n := h.Len()
	if n < IPv6RawExtMinLen || n > IPv6RawExtMaxLen || n%8 != 0 {
		return &ValueError{
			Field:    "ipv6 extension header length",
			Value:    uint64(n),
			Max:      IPv6RawExtMaxLen,
			Multiple: 8,
		}
	}
	if len(buf) < n {
		return ErrSmallBuffer
	}
	buf[0] = uint8(h.NextHeader)
	buf[1] = uint8(n/8 - 1)
	copy(buf[2:n], h.Payload)
	return nil
}

// IPv6FragmentHeader is the IPv6 fragment extension header.
type IPv6FragmentHeader struct {
	NextHeader core.IPNumber
	// FragmentOffset is in units of 8 bytes, 13 bits.
	FragmentOffset uint16
	MoreFragments  bool
	Identification uint32
}

func (IPv6FragmentHeader) Len() int { return IPv6FragmentHeaderLen }

// IsFragmenting reports whether the header describes an actual fragment. A
// header with offset 0 and MF unset is an atomic fragment.
func (h IPv6FragmentHeader) IsFragmenting() bool {
	return h.MoreFragments || h.FragmentOffset != 0
}

func (h IPv6FragmentHeader) Marshal(buf []byte) error {
	if len(buf) < IPv6FragmentHeaderLen {
		return ErrSmallBuffer
	}
	if err := checkMax("ipv6 fragment offset", uint64(h.FragmentOffset), maxFragmentOffset); err != nil {
		return err
	}
	buf[0] = uint8(h.NextHeader)
	buf[1] = 0
	v := h.FragmentOffset << 3
	if h.MoreFragments {
		v |= 1
	}
	put16(buf[2:4], v)
	put32(buf[4:8], h.Identification)
	return nil
}
