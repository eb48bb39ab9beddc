package decoder

import (
	"net/netip"

	"firestige.xyz/hdrview/internal/core"
	"firestige.xyz/hdrview/internal/core/header"
)

// IPv4HeaderSlice is a validated view of an IPv4 header including options.
type IPv4HeaderSlice struct {
	b []byte
}

func ipv4HeaderLen(hdr []byte) (int, error) {
	if v := hdr[0] >> 4; v != 4 {
		return 0, &core.HeaderError{Layer: core.LayerIPv4Header, Reason: core.ReasonUnexpectedVersion, Value: uint32(v)}
	}
	ihl := hdr[0] & 0x0f
	if ihl < 5 {
		return 0, &core.HeaderError{Layer: core.LayerIPv4Header, Reason: core.ReasonHeaderLenTooSmall, Value: uint32(ihl)}
	}
	return int(ihl) * 4, nil
}

// DecodeIPv4Header splits an IPv4 header off data. The remainder is not
// bounded by the total length field, see DecodeIPv4 for that.
func DecodeIPv4Header(data []byte) (IPv4HeaderSlice, []byte, error) {
	hdr, rest, err := splitHeader(data, ipv4Kind, core.LenSourceSlice)
	if err != nil {
		return IPv4HeaderSlice{}, nil, err
	}
	return IPv4HeaderSlice{b: hdr}, rest, nil
}

func (s IPv4HeaderSlice) IsZero() bool  { return s.b == nil }
func (s IPv4HeaderSlice) Bytes() []byte { return s.b }
func (s IPv4HeaderSlice) Len() int      { return len(s.b) }

func (s IPv4HeaderSlice) Version() uint8 { return s.b[0] >> 4 }
func (s IPv4HeaderSlice) IHL() uint8     { return s.b[0] & 0x0f }
func (s IPv4HeaderSlice) DSCP() uint8    { return s.b[1] >> 2 }
func (s IPv4HeaderSlice) ECN() uint8     { return s.b[1] & 0x03 }

func (s IPv4HeaderSlice) TotalLen() uint16       { return be16(s.b[2:4]) }
func (s IPv4HeaderSlice) Identification() uint16 { return be16(s.b[4:6]) }
func (s IPv4HeaderSlice) DontFragment() bool     { return s.b[6]&0x40 != 0 }
func (s IPv4HeaderSlice) MoreFragments() bool    { return s.b[6]&0x20 != 0 }

// FragmentOffset is in units of 8 bytes.
func (s IPv4HeaderSlice) FragmentOffset() uint16 { return be16(s.b[6:8]) & 0x1fff }

func (s IPv4HeaderSlice) TTL() uint8                  { return s.b[8] }
func (s IPv4HeaderSlice) Protocol() core.IPNumber     { return core.IPNumber(s.b[9]) }
func (s IPv4HeaderSlice) HeaderChecksum() uint16      { return be16(s.b[10:12]) }
func (s IPv4HeaderSlice) Source() [4]byte             { return [4]byte(s.b[12:16]) }
func (s IPv4HeaderSlice) Destination() [4]byte        { return [4]byte(s.b[16:20]) }
func (s IPv4HeaderSlice) SourceAddr() netip.Addr      { return netip.AddrFrom4(s.Source()) }
func (s IPv4HeaderSlice) DestinationAddr() netip.Addr { return netip.AddrFrom4(s.Destination()) }

// Options returns the options bytes, empty when IHL is 5.
func (s IPv4HeaderSlice) Options() []byte { return s.b[header.IPv4MinHeaderLen:] }

// IsFragmenting reports whether the payload is a fragment of a larger
// datagram.
func (s IPv4HeaderSlice) IsFragmenting() bool {
	return s.MoreFragments() || s.FragmentOffset() != 0
}

// ToHeader copies the view into an owned record. Options are copied.
func (s IPv4HeaderSlice) ToHeader() header.IPv4Header {
	h := header.IPv4Header{
		DSCP:           s.DSCP(),
		ECN:            s.ECN(),
		TotalLen:       s.TotalLen(),
		Identification: s.Identification(),
		DontFragment:   s.DontFragment(),
		MoreFragments:  s.MoreFragments(),
		FragmentOffset: s.FragmentOffset(),
		TTL:            s.TTL(),
		Protocol:       s.Protocol(),
		Checksum:       s.HeaderChecksum(),
		Source:         s.Source(),
		Destination:    s.Destination(),
	}
	if opts := s.Options(); len(opts) > 0 {
		h.Options = append([]byte(nil), opts...)
	}
	return h
}

// IPv6HeaderSlice is a validated view of the fixed IPv6 header.
type IPv6HeaderSlice struct {
	b []byte
}

func ipv6HeaderLen(hdr []byte) (int, error) {
	if v := hdr[0] >> 4; v != 6 {
		return 0, &core.HeaderError{Layer: core.LayerIPv6Header, Reason: core.ReasonUnexpectedVersion, Value: uint32(v)}
	}
	return header.IPv6HeaderLen, nil
}

// DecodeIPv6Header splits the fixed IPv6 header off data.
func DecodeIPv6Header(data []byte) (IPv6HeaderSlice, []byte, error) {
	hdr, rest, err := splitHeader(data, ipv6Kind, core.LenSourceSlice)
	if err != nil {
		return IPv6HeaderSlice{}, nil, err
	}
	return IPv6HeaderSlice{b: hdr}, rest, nil
}

func (s IPv6HeaderSlice) IsZero() bool  { return s.b == nil }
func (s IPv6HeaderSlice) Bytes() []byte { return s.b }
func (s IPv6HeaderSlice) Len() int      { return len(s.b) }

func (s IPv6HeaderSlice) Version() uint8      { return s.b[0] >> 4 }
func (s IPv6HeaderSlice) TrafficClass() uint8 { return uint8(be16(s.b[0:2]) >> 4) }
func (s IPv6HeaderSlice) FlowLabel() uint32   { return be32(s.b[0:4]) & 0x000fffff }
func (s IPv6HeaderSlice) PayloadLen() uint16  { return be16(s.b[4:6]) }

func (s IPv6HeaderSlice) NextHeader() core.IPNumber { return core.IPNumber(s.b[6]) }
func (s IPv6HeaderSlice) HopLimit() uint8           { return s.b[7] }
func (s IPv6HeaderSlice) Source() [16]byte          { return [16]byte(s.b[8:24]) }
func (s IPv6HeaderSlice) Destination() [16]byte     { return [16]byte(s.b[24:40]) }
func (s IPv6HeaderSlice) SourceAddr() netip.Addr    { return netip.AddrFrom16(s.Source()) }

func (s IPv6HeaderSlice) DestinationAddr() netip.Addr { return netip.AddrFrom16(s.Destination()) }

func (s IPv6HeaderSlice) ToHeader() header.IPv6Header {
	return header.IPv6Header{
		TrafficClass: s.TrafficClass(),
		FlowLabel:    s.FlowLabel(),
		PayloadLen:   s.PayloadLen(),
		NextHeader:   s.NextHeader(),
		HopLimit:     s.HopLimit(),
		Source:       s.Source(),
		Destination:  s.Destination(),
	}
}

// IPPayload is the part of an IP packet after the header and extension
// chain.
type IPPayload struct {
	// IPNumber is the protocol of Data, the terminal number of the
	// extension chain.
	IPNumber core.IPNumber
	// Fragmented is set when Data is a fragment and cannot be parsed as
	// a transport header.
	Fragmented bool
	// LenSource is the field that bounded Data.
	LenSource core.LenSource
	// Incomplete is set by lax decoding when the length field promised
	// more bytes than the buffer held and Data was cut at its end.
	Incomplete bool
	Data       []byte
}

// IPv4Slice is an IPv4 header with its extension chain and payload, bounded
// by the total length field.
type IPv4Slice struct {
	Header  IPv4HeaderSlice
	Exts    IPv4Extensions
	Payload IPPayload
}

// DecodeIPv4 decodes an IPv4 packet. Bytes beyond the total length (e.g.
// Ethernet padding) are not part of the result.
func DecodeIPv4(data []byte) (IPv4Slice, error) {
	h, _, err := DecodeIPv4Header(data)
	if err != nil {
		return IPv4Slice{}, err
	}
	total := int(h.TotalLen())
	if total < h.Len() {
		return IPv4Slice{}, &core.HeaderError{
			Layer:  core.LayerIPv4Header,
			Reason: core.ReasonTotalLenTooSmall,
			Value:  uint32(total),
		}
	}
	if len(data) < total {
		return IPv4Slice{}, &core.LenError{
			Required: total,
			Len:      len(data),
			Source:   core.LenSourceSlice,
			Layer:    core.LayerIPv4Packet,
		}
	}
	exts, next, rest, err := resolveIPv4Extensions(h.Protocol(), data[h.Len():total])
	if err != nil {
		return IPv4Slice{}, core.WithLenSource(core.WithOffset(err, h.Len()), core.LenSourceIPv4HeaderTotalLen)
	}
	return IPv4Slice{
		Header: h,
		Exts:   exts,
		Payload: IPPayload{
			IPNumber:   next,
			Fragmented: h.IsFragmenting(),
			LenSource:  core.LenSourceIPv4HeaderTotalLen,
			Data:       rest,
		},
	}, nil
}

// IPv6Slice is an IPv6 header with its extension chain and payload, bounded
// by the payload length field.
type IPv6Slice struct {
	Header  IPv6HeaderSlice
	Exts    IPv6Extensions
	Payload IPPayload
}

// DecodeIPv6 decodes an IPv6 packet. A payload length of zero with data
// following the header is taken as a jumbogram and the payload runs to the
// end of data.
func DecodeIPv6(data []byte) (IPv6Slice, error) {
	h, _, err := DecodeIPv6Header(data)
	if err != nil {
		return IPv6Slice{}, err
	}
	var (
		window []byte
		source core.LenSource
	)
	if h.PayloadLen() == 0 && len(data) > header.IPv6HeaderLen {
		window, source = data[header.IPv6HeaderLen:], core.LenSourceSlice
	} else {
		end := header.IPv6HeaderLen + int(h.PayloadLen())
		if len(data) < end {
			return IPv6Slice{}, &core.LenError{
				Required: end,
				Len:      len(data),
				Source:   core.LenSourceSlice,
				Layer:    core.LayerIPv6Packet,
			}
		}
		window, source = data[header.IPv6HeaderLen:end], core.LenSourceIPv6HeaderPayloadLen
	}
	exts, next, rest, err := resolveIPv6Extensions(h.NextHeader(), window)
	if err != nil {
		return IPv6Slice{}, core.WithLenSource(core.WithOffset(err, header.IPv6HeaderLen), source)
	}
	return IPv6Slice{
		Header: h,
		Exts:   exts,
		Payload: IPPayload{
			IPNumber:   next,
			Fragmented: exts.IsFragmenting(),
			LenSource:  source,
			Data:       rest,
		},
	}, nil
}
