package header

import "firestige.xyz/hdrview/internal/core"

const (
	// Ethernet2HeaderLen is the length of an Ethernet II header.
	Ethernet2HeaderLen = 14
	// SingleVLANHeaderLen is the length of one 802.1Q tag.
	SingleVLANHeaderLen = 4
	// DoubleVLANHeaderLen is the length of two stacked tags.
	DoubleVLANHeaderLen = 2 * SingleVLANHeaderLen
)

// Ethernet2Header is an Ethernet II header.
type Ethernet2Header struct {
	Destination [6]byte
	Source      [6]byte
	EtherType   core.EtherType
}

func (Ethernet2Header) Len() int { return Ethernet2HeaderLen }

func (h Ethernet2Header) Marshal(buf []byte) error {
	if len(buf) < Ethernet2HeaderLen {
		return ErrSmallBuffer
	}
	copy(buf[0:6], h.Destination[:])
	copy(buf[6:12], h.Source[:])
	put16(buf[12:14], uint16(h.EtherType))
	return nil
}

// SingleVLANHeader is an 802.1Q tag without the preceding tag protocol
// identifier, which lives in the enclosing header's EtherType.
type SingleVLANHeader struct {
	// PriorityCodePoint is 3 bits.
	PriorityCodePoint uint8
	DropEligible      bool
	// VLANID is 12 bits.
	VLANID    uint16
	EtherType core.EtherType
}

const (
	maxPriorityCodePoint = 0x7
	maxVLANID            = 0xfff
)

func (SingleVLANHeader) Len() int { return SingleVLANHeaderLen }

func (h SingleVLANHeader) Marshal(buf []byte) error {
	if len(buf) < SingleVLANHeaderLen {
		return ErrSmallBuffer
	}
	if err := checkMax("vlan priority code point", uint64(h.PriorityCodePoint), maxPriorityCodePoint); err != nil {
		return err
	}
	if err := checkMax("vlan id", uint64(h.VLANID), maxVLANID); err != nil {
		return err
	}
	tci := uint16(h.PriorityCodePoint)<<13 | h.VLANID
	if h.DropEligible {
		tci |= 1 << 12
	}
	put16(buf[0:2], tci)
	put16(buf[2:4], uint16(h.EtherType))
	return nil
}

// DoubleVLANHeader is two stacked tags. Outer.EtherType must itself be a
// VLAN EtherType for a decoder to recognise the inner tag.
type DoubleVLANHeader struct {
	Outer SingleVLANHeader
	Inner SingleVLANHeader
}

func (DoubleVLANHeader) Len() int { return DoubleVLANHeaderLen }

func (h DoubleVLANHeader) Marshal(buf []byte) error {
	if len(buf) < DoubleVLANHeaderLen {
		return ErrSmallBuffer
	}
	if err := h.Outer.Marshal(buf); err != nil {
		return err
	}
	return h.Inner.Marshal(buf[SingleVLANHeaderLen:])
}
