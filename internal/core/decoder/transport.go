package decoder

import (
	"firestige.xyz/hdrview/internal/core"
	"firestige.xyz/hdrview/internal/core/header"
)

// UDPHeaderSlice is a validated view of a UDP header.
type UDPHeaderSlice struct {
	b []byte
}

func (s UDPHeaderSlice) IsZero() bool    { return s.b == nil }
func (s UDPHeaderSlice) Bytes() []byte   { return s.b }
func (s UDPHeaderSlice) Len() int        { return len(s.b) }
func (s UDPHeaderSlice) SrcPort() uint16 { return be16(s.b[0:2]) }
func (s UDPHeaderSlice) DstPort() uint16 { return be16(s.b[2:4]) }
func (s UDPHeaderSlice) Length() uint16  { return be16(s.b[4:6]) }

func (s UDPHeaderSlice) Checksum() uint16 { return be16(s.b[6:8]) }

func (s UDPHeaderSlice) ToHeader() header.UDPHeader {
	return header.UDPHeader{
		SrcPort:  s.SrcPort(),
		DstPort:  s.DstPort(),
		Length:   s.Length(),
		Checksum: s.Checksum(),
	}
}

// UDPSlice is a UDP header and the payload bounded by its length field.
type UDPSlice struct {
	Header  UDPHeaderSlice
	Payload []byte
}

// DecodeUDP decodes a UDP datagram. A length field of 0 is accepted and the
// payload runs to the end of data, as used by IPv6 jumbograms. Bytes beyond
// a non-zero length are not part of the payload.
func DecodeUDP(data []byte) (UDPSlice, error) {
	hdr, _, err := splitHeader(data, udpKind, core.LenSourceSlice)
	if err != nil {
		return UDPSlice{}, err
	}
	h := UDPHeaderSlice{b: hdr}
	n := int(h.Length())
	if n == 0 {
		return UDPSlice{Header: h, Payload: data[header.UDPHeaderLen:]}, nil
	}
	if n < header.UDPHeaderLen {
		return UDPSlice{}, &core.LenError{
			Required: header.UDPHeaderLen,
			Len:      n,
			Source:   core.LenSourceUDPHeaderLen,
			Layer:    core.LayerUDPHeader,
		}
	}
	if len(data) < n {
		return UDPSlice{}, &core.LenError{
			Required: n,
			Len:      len(data),
			Source:   core.LenSourceSlice,
			Layer:    core.LayerUDPPayload,
		}
	}
	return UDPSlice{Header: h, Payload: data[header.UDPHeaderLen:n]}, nil
}

// TCPHeaderSlice is a validated view of a TCP header including options.
type TCPHeaderSlice struct {
	b []byte
}

func tcpHeaderLen(hdr []byte) (int, error) {
	off := hdr[12] >> 4
	if off < 5 {
		return 0, &core.HeaderError{Layer: core.LayerTCPHeader, Reason: core.ReasonDataOffsetTooSmall, Value: uint32(off)}
	}
	return int(off) * 4, nil
}

func (s TCPHeaderSlice) IsZero() bool      { return s.b == nil }
func (s TCPHeaderSlice) Bytes() []byte     { return s.b }
func (s TCPHeaderSlice) Len() int          { return len(s.b) }
func (s TCPHeaderSlice) SrcPort() uint16   { return be16(s.b[0:2]) }
func (s TCPHeaderSlice) DstPort() uint16   { return be16(s.b[2:4]) }
func (s TCPHeaderSlice) Seq() uint32       { return be32(s.b[4:8]) }
func (s TCPHeaderSlice) Ack() uint32       { return be32(s.b[8:12]) }
func (s TCPHeaderSlice) DataOffset() uint8 { return s.b[12] >> 4 }
func (s TCPHeaderSlice) Flags() uint16     { return be16(s.b[12:14]) & 0x01ff }
func (s TCPHeaderSlice) Window() uint16    { return be16(s.b[14:16]) }
func (s TCPHeaderSlice) Checksum() uint16  { return be16(s.b[16:18]) }
func (s TCPHeaderSlice) UrgentPtr() uint16 { return be16(s.b[18:20]) }
func (s TCPHeaderSlice) Options() []byte   { return s.b[header.TCPMinHeaderLen:] }
func (s TCPHeaderSlice) Has(f uint16) bool { return s.Flags()&f == f }

func (s TCPHeaderSlice) ToHeader() header.TCPHeader {
	h := header.TCPHeader{
		SrcPort:   s.SrcPort(),
		DstPort:   s.DstPort(),
		Seq:       s.Seq(),
		Ack:       s.Ack(),
		Flags:     s.Flags(),
		Window:    s.Window(),
		Checksum:  s.Checksum(),
		UrgentPtr: s.UrgentPtr(),
	}
	if opts := s.Options(); len(opts) > 0 {
		h.Options = append([]byte(nil), opts...)
	}
	return h
}

// TCPSlice is a TCP header and the rest of the window as payload.
type TCPSlice struct {
	Header  TCPHeaderSlice
	Payload []byte
}

// DecodeTCP decodes a TCP segment.
func DecodeTCP(data []byte) (TCPSlice, error) {
	hdr, rest, err := splitHeader(data, tcpKind, core.LenSourceSlice)
	if err != nil {
		return TCPSlice{}, err
	}
	return TCPSlice{Header: TCPHeaderSlice{b: hdr}, Payload: rest}, nil
}

// ICMPv4Slice is an ICMPv4 header and its payload.
type ICMPv4Slice struct {
	hdr     []byte
	Payload []byte
}

// DecodeICMPv4 decodes an ICMPv4 message. Timestamp and timestamp reply
// messages with code 0 have a 20 byte header.
func DecodeICMPv4(data []byte) (ICMPv4Slice, error) {
	k := icmpv4Kind
	if len(data) >= 2 && header.IsICMPv4Timestamp(data[0], data[1]) {
		k = icmpv4TimestampKind
		if data[0] == header.ICMPv4TypeTimestampReply {
			k = icmpv4TimestampReplyKind
		}
	}
	hdr, rest, err := splitHeader(data, k, core.LenSourceSlice)
	if err != nil {
		return ICMPv4Slice{}, err
	}
	return ICMPv4Slice{hdr: hdr, Payload: rest}, nil
}

func (s ICMPv4Slice) IsZero() bool     { return s.hdr == nil }
func (s ICMPv4Slice) Bytes() []byte    { return s.hdr }
func (s ICMPv4Slice) Len() int         { return len(s.hdr) }
func (s ICMPv4Slice) Type() uint8      { return s.hdr[0] }
func (s ICMPv4Slice) Code() uint8      { return s.hdr[1] }
func (s ICMPv4Slice) Checksum() uint16 { return be16(s.hdr[2:4]) }
func (s ICMPv4Slice) Rest() [4]byte    { return [4]byte(s.hdr[4:8]) }

func (s ICMPv4Slice) ToHeader() header.ICMPv4Header {
	h := header.ICMPv4Header{
		Type:     s.Type(),
		Code:     s.Code(),
		Checksum: s.Checksum(),
		Rest:     s.Rest(),
	}
	if len(s.hdr) == header.ICMPv4TimestampLen {
		h.Timestamps = [3]uint32{be32(s.hdr[8:12]), be32(s.hdr[12:16]), be32(s.hdr[16:20])}
	}
	return h
}

// ICMPv6Slice is an ICMPv6 header and its payload.
type ICMPv6Slice struct {
	hdr     []byte
	Payload []byte
}

// DecodeICMPv6 decodes an ICMPv6 message.
func DecodeICMPv6(data []byte) (ICMPv6Slice, error) {
	hdr, rest, err := splitHeader(data, icmpv6Kind, core.LenSourceSlice)
	if err != nil {
		return ICMPv6Slice{}, err
	}
	return ICMPv6Slice{hdr: hdr, Payload: rest}, nil
}

func (s ICMPv6Slice) IsZero() bool     { return s.hdr == nil }
func (s ICMPv6Slice) Bytes() []byte    { return s.hdr }
func (s ICMPv6Slice) Len() int         { return len(s.hdr) }
func (s ICMPv6Slice) Type() uint8      { return s.hdr[0] }
func (s ICMPv6Slice) Code() uint8      { return s.hdr[1] }
func (s ICMPv6Slice) Checksum() uint16 { return be16(s.hdr[2:4]) }
func (s ICMPv6Slice) Rest() [4]byte    { return [4]byte(s.hdr[4:8]) }

func (s ICMPv6Slice) ToHeader() header.ICMPv6Header {
	return header.ICMPv6Header{
		Type:     s.Type(),
		Code:     s.Code(),
		Checksum: s.Checksum(),
		Rest:     s.Rest(),
	}
}
