package decoder

import (
	"firestige.xyz/hdrview/internal/core"
	"firestige.xyz/hdrview/internal/core/header"
)

// Ethernet2Slice is a validated view of an Ethernet II header. The frame
// check sequence is never part of the view.
type Ethernet2Slice struct {
	b []byte
}

// DecodeEthernet2 splits an Ethernet II header off data.
func DecodeEthernet2(data []byte) (Ethernet2Slice, []byte, error) {
	hdr, rest, err := splitHeader(data, ethernet2Kind, core.LenSourceSlice)
	if err != nil {
		return Ethernet2Slice{}, nil, err
	}
	return Ethernet2Slice{b: hdr}, rest, nil
}

// IsZero reports whether the view is unset.
func (s Ethernet2Slice) IsZero() bool { return s.b == nil }

// Bytes returns the header bytes.
func (s Ethernet2Slice) Bytes() []byte { return s.b }

func (s Ethernet2Slice) Len() int { return len(s.b) }

func (s Ethernet2Slice) Destination() [6]byte { return [6]byte(s.b[0:6]) }

func (s Ethernet2Slice) Source() [6]byte { return [6]byte(s.b[6:12]) }

func (s Ethernet2Slice) EtherType() core.EtherType { return core.EtherType(be16(s.b[12:14])) }

// ToHeader copies the view into an owned record.
func (s Ethernet2Slice) ToHeader() header.Ethernet2Header {
	return header.Ethernet2Header{
		Destination: s.Destination(),
		Source:      s.Source(),
		EtherType:   s.EtherType(),
	}
}

// SingleVLANSlice is a validated view of one 802.1Q tag.
type SingleVLANSlice struct {
	b []byte
}

// DecodeSingleVLAN splits one VLAN tag off data.
func DecodeSingleVLAN(data []byte) (SingleVLANSlice, []byte, error) {
	hdr, rest, err := splitHeader(data, singleVLANKind, core.LenSourceSlice)
	if err != nil {
		return SingleVLANSlice{}, nil, err
	}
	return SingleVLANSlice{b: hdr}, rest, nil
}

func (s SingleVLANSlice) IsZero() bool  { return s.b == nil }
func (s SingleVLANSlice) Bytes() []byte { return s.b }
func (s SingleVLANSlice) Len() int      { return len(s.b) }

func (s SingleVLANSlice) PriorityCodePoint() uint8 { return s.b[0] >> 5 }

func (s SingleVLANSlice) DropEligible() bool { return s.b[0]&0x10 != 0 }

func (s SingleVLANSlice) VLANID() uint16 { return be16(s.b[0:2]) & 0x0fff }

func (s SingleVLANSlice) EtherType() core.EtherType { return core.EtherType(be16(s.b[2:4])) }

func (s SingleVLANSlice) ToHeader() header.SingleVLANHeader {
	return header.SingleVLANHeader{
		PriorityCodePoint: s.PriorityCodePoint(),
		DropEligible:      s.DropEligible(),
		VLANID:            s.VLANID(),
		EtherType:         s.EtherType(),
	}
}

// DoubleVLANSlice is a validated view of two stacked tags.
type DoubleVLANSlice struct {
	b []byte
}

// DecodeDoubleVLAN splits two VLAN tags off data. It does not check that
// the outer tag's EtherType announces a second tag.
func DecodeDoubleVLAN(data []byte) (DoubleVLANSlice, []byte, error) {
	hdr, rest, err := splitHeader(data, doubleVLANKind, core.LenSourceSlice)
	if err != nil {
		return DoubleVLANSlice{}, nil, err
	}
	return DoubleVLANSlice{b: hdr}, rest, nil
}

func (s DoubleVLANSlice) IsZero() bool  { return s.b == nil }
func (s DoubleVLANSlice) Bytes() []byte { return s.b }
func (s DoubleVLANSlice) Len() int      { return len(s.b) }

func (s DoubleVLANSlice) Outer() SingleVLANSlice {
	return SingleVLANSlice{b: s.b[:header.SingleVLANHeaderLen:header.SingleVLANHeaderLen]}
}

func (s DoubleVLANSlice) Inner() SingleVLANSlice {
	return SingleVLANSlice{b: s.b[header.SingleVLANHeaderLen:]}
}

func (s DoubleVLANSlice) ToHeader() header.DoubleVLANHeader {
	return header.DoubleVLANHeader{Outer: s.Outer().ToHeader(), Inner: s.Inner().ToHeader()}
}
