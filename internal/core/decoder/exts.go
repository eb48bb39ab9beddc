package decoder

import (
	"firestige.xyz/hdrview/internal/core"
	"firestige.xyz/hdrview/internal/core/header"
)

const (
	// MaxIPv4Extensions is the number of extension headers an IPv4 chain
	// can hold: one authentication header.
	MaxIPv4Extensions = 1
	// MaxIPv6Extensions is the number of extension headers an IPv6 chain
	// can hold, one per slot of IPv6Extensions.
	MaxIPv6Extensions = 6
)

// IPAuthHeaderSlice is a validated view of an authentication header.
type IPAuthHeaderSlice struct {
	b []byte
}

func ipAuthLen(hdr []byte) (int, error) {
	if hdr[1] == 0 {
		return 0, &core.HeaderError{Layer: core.LayerIPAuthHeader, Reason: core.ReasonZeroPayloadLen}
	}
	return (int(hdr[1]) + 2) * 4, nil
}

// DecodeIPAuthHeader splits an authentication header off data.
func DecodeIPAuthHeader(data []byte) (IPAuthHeaderSlice, []byte, error) {
	hdr, rest, err := splitHeader(data, ipAuthKind, core.LenSourceSlice)
	if err != nil {
		return IPAuthHeaderSlice{}, nil, err
	}
	return IPAuthHeaderSlice{b: hdr}, rest, nil
}

func (s IPAuthHeaderSlice) IsZero() bool  { return s.b == nil }
func (s IPAuthHeaderSlice) Bytes() []byte { return s.b }
func (s IPAuthHeaderSlice) Len() int      { return len(s.b) }

func (s IPAuthHeaderSlice) NextHeader() core.IPNumber { return core.IPNumber(s.b[0]) }
func (s IPAuthHeaderSlice) SPI() uint32               { return be32(s.b[4:8]) }
func (s IPAuthHeaderSlice) SequenceNumber() uint32    { return be32(s.b[8:12]) }
func (s IPAuthHeaderSlice) ICV() []byte               { return s.b[header.IPAuthMinLen:] }

func (s IPAuthHeaderSlice) ToHeader() header.IPAuthHeader {
	return header.IPAuthHeader{
		NextHeader:     s.NextHeader(),
		SPI:            s.SPI(),
		SequenceNumber: s.SequenceNumber(),
		ICV:            append([]byte(nil), s.ICV()...),
	}
}

// IPv6RawExtHeaderSlice is a validated view of a hop-by-hop, destination
// options or routing header.
type IPv6RawExtHeaderSlice struct {
	b []byte
}

func ipv6RawExtLen(hdr []byte) (int, error) {
	return (int(hdr[1]) + 1) * 8, nil
}

func decodeIPv6RawExt(data []byte, layer core.Layer) (IPv6RawExtHeaderSlice, []byte, error) {
	hdr, rest, err := splitHeader(data, ipv6RawExtKind(layer), core.LenSourceSlice)
	if err != nil {
		return IPv6RawExtHeaderSlice{}, nil, err
	}
	return IPv6RawExtHeaderSlice{b: hdr}, rest, nil
}

// DecodeIPv6RawExtHeader splits a generic IPv6 extension header off data.
func DecodeIPv6RawExtHeader(data []byte) (IPv6RawExtHeaderSlice, []byte, error) {
	return decodeIPv6RawExt(data, core.LayerIPv6ExtHeader)
}

func (s IPv6RawExtHeaderSlice) IsZero() bool  { return s.b == nil }
func (s IPv6RawExtHeaderSlice) Bytes() []byte { return s.b }
func (s IPv6RawExtHeaderSlice) Len() int      { return len(s.b) }

func (s IPv6RawExtHeaderSlice) NextHeader() core.IPNumber { return core.IPNumber(s.b[0]) }

// Payload returns the bytes after the next header and length fields.
func (s IPv6RawExtHeaderSlice) Payload() []byte { return s.b[2:] }

func (s IPv6RawExtHeaderSlice) ToHeader() header.IPv6RawExtHeader {
	return header.IPv6RawExtHeader{
		NextHeader: s.NextHeader(),
		Payload:    append([]byte(nil), s.Payload()...),
	}
}

// IPv6FragmentHeaderSlice is a validated view of an IPv6 fragment header.
type IPv6FragmentHeaderSlice struct {
	b []byte
}

// DecodeIPv6FragmentHeader splits a fragment header off data.
func DecodeIPv6FragmentHeader(data []byte) (IPv6FragmentHeaderSlice, []byte, error) {
	hdr, rest, err := splitHeader(data, ipv6FragKind, core.LenSourceSlice)
	if err != nil {
		return IPv6FragmentHeaderSlice{}, nil, err
	}
	return IPv6FragmentHeaderSlice{b: hdr}, rest, nil
}

func (s IPv6FragmentHeaderSlice) IsZero() bool  { return s.b == nil }
func (s IPv6FragmentHeaderSlice) Bytes() []byte { return s.b }
func (s IPv6FragmentHeaderSlice) Len() int      { return len(s.b) }

func (s IPv6FragmentHeaderSlice) NextHeader() core.IPNumber { return core.IPNumber(s.b[0]) }
func (s IPv6FragmentHeaderSlice) FragmentOffset() uint16    { return be16(s.b[2:4]) >> 3 }
func (s IPv6FragmentHeaderSlice) MoreFragments() bool       { return s.b[3]&0x01 != 0 }
func (s IPv6FragmentHeaderSlice) Identification() uint32    { return be32(s.b[4:8]) }

// IsFragmenting reports whether the header describes a real fragment.
// Offset 0 with MF unset is an atomic fragment and the payload is complete.
func (s IPv6FragmentHeaderSlice) IsFragmenting() bool {
	return s.b[2] != 0 || s.b[3]&0xf9 != 0
}

func (s IPv6FragmentHeaderSlice) ToHeader() header.IPv6FragmentHeader {
	return header.IPv6FragmentHeader{
		NextHeader:     s.NextHeader(),
		FragmentOffset: s.FragmentOffset(),
		MoreFragments:  s.MoreFragments(),
		Identification: s.Identification(),
	}
}

// IPv4Extensions holds the extension headers of an IPv4 packet.
type IPv4Extensions struct {
	Auth IPAuthHeaderSlice
}

// Count returns the number of extension headers present.
func (e IPv4Extensions) Count() int {
	if e.Auth.IsZero() {
		return 0
	}
	return 1
}

// resolveIPv4Extensions walks the IPv4 extension chain starting with
// protocol. Only the authentication header is an IPv4 extension.
//
// On error the headers before the failing one are returned, with the
// failing header's number and the bytes starting at it.
func resolveIPv4Extensions(protocol core.IPNumber, data []byte) (IPv4Extensions, core.IPNumber, []byte, error) {
	var exts IPv4Extensions
	if protocol != core.IPNumberAuth {
		return exts, protocol, data, nil
	}
	auth, rest, err := DecodeIPAuthHeader(data)
	if err != nil {
		return exts, protocol, data, err
	}
	exts.Auth = auth
	next := auth.NextHeader()
	if next == core.IPNumberAuth {
		return exts, next, rest, &core.HeaderError{
			Layer:  core.LayerIPAuthHeader,
			Reason: core.ReasonTooManyExtensions,
			Value:  uint32(next),
			Offset: auth.Len(),
		}
	}
	return exts, next, rest, nil
}

// IPv6Extensions holds the extension headers of an IPv6 packet, one slot
// per kind. A destination options header before the routing header goes to
// DestinationOptions, one after it to FinalDestinationOptions.
type IPv6Extensions struct {
	HopByHop                IPv6RawExtHeaderSlice
	DestinationOptions      IPv6RawExtHeaderSlice
	Routing                 IPv6RawExtHeaderSlice
	FinalDestinationOptions IPv6RawExtHeaderSlice
	Fragment                IPv6FragmentHeaderSlice
	Auth                    IPAuthHeaderSlice
	count                   uint8
}

// Count returns the number of extension headers present.
func (e IPv6Extensions) Count() int { return int(e.count) }

// IsFragmenting reports whether a fragment header marks the payload as a
// fragment.
func (e IPv6Extensions) IsFragmenting() bool {
	return !e.Fragment.IsZero() && e.Fragment.IsFragmenting()
}

// Len returns the summed length of all extension headers.
func (e IPv6Extensions) Len() int {
	return e.HopByHop.Len() + e.DestinationOptions.Len() + e.Routing.Len() +
		e.FinalDestinationOptions.Len() + e.Fragment.Len() + e.Auth.Len()
}

// IsIPv6Extension reports whether n is a header kind the resolver walks
// through.
func IsIPv6Extension(n core.IPNumber) bool {
	switch n {
	case core.IPNumberHopByHop, core.IPNumberIPv6Opts, core.IPNumberIPv6Route,
		core.IPNumberIPv6Frag, core.IPNumberAuth:
		return true
	}
	return false
}

func tooManyIPv6Extensions(layer core.Layer, n core.IPNumber, offset int) error {
	return &core.HeaderError{
		Layer:  layer,
		Reason: core.ReasonTooManyExtensions,
		Value:  uint32(n),
		Offset: offset,
	}
}

// resolveIPv6Extensions walks the IPv6 extension chain starting with
// next. It stops at the first number that is not an extension and returns
// it with the remaining bytes.
//
// Each kind has one slot, so a repeated kind or a chain longer than
// MaxIPv6Extensions is an error. A cyclic chain is therefore rejected
// after at most MaxIPv6Extensions+1 steps.
func resolveIPv6Extensions(next core.IPNumber, data []byte) (IPv6Extensions, core.IPNumber, []byte, error) {
	var exts IPv6Extensions
	rest := data
	off := 0

	if next == core.IPNumberHopByHop {
		h, r, err := decodeIPv6RawExt(rest, core.LayerIPv6HopByHopHeader)
		if err != nil {
			return exts, next, rest, err
		}
		exts.HopByHop, exts.count = h, 1
		off += h.Len()
		next, rest = h.NextHeader(), r
	}

	for IsIPv6Extension(next) {
		if next == core.IPNumberHopByHop {
			return exts, next, rest, &core.HeaderError{
				Layer:  core.LayerIPv6HopByHopHeader,
				Reason: core.ReasonHopByHopNotAtStart,
				Value:  uint32(next),
				Offset: off,
			}
		}

		// A kind whose slot is taken is reported against its own layer.
		// Six headers fill every slot, so the count check only backs that up.
		var (
			layer    core.Layer
			occupied bool
			destSlot = &exts.DestinationOptions
		)
		switch next {
		case core.IPNumberIPv6Opts:
			if !exts.Routing.IsZero() {
				destSlot = &exts.FinalDestinationOptions
			}
			layer, occupied = core.LayerIPv6DestOptionsHeader, !destSlot.IsZero()
		case core.IPNumberIPv6Route:
			layer, occupied = core.LayerIPv6RouteHeader, !exts.Routing.IsZero()
		case core.IPNumberIPv6Frag:
			layer, occupied = core.LayerIPv6FragHeader, !exts.Fragment.IsZero()
		case core.IPNumberAuth:
			layer, occupied = core.LayerIPAuthHeader, !exts.Auth.IsZero()
		}
		if occupied || exts.count >= MaxIPv6Extensions {
			return exts, next, rest, tooManyIPv6Extensions(layer, next, off)
		}

		var (
			n   int
			nh  core.IPNumber
			r   []byte
			err error
		)
		switch next {
		case core.IPNumberIPv6Opts:
			var h IPv6RawExtHeaderSlice
			if h, r, err = decodeIPv6RawExt(rest, core.LayerIPv6DestOptionsHeader); err == nil {
				*destSlot, n, nh = h, h.Len(), h.NextHeader()
			}
		case core.IPNumberIPv6Route:
			var h IPv6RawExtHeaderSlice
			if h, r, err = decodeIPv6RawExt(rest, core.LayerIPv6RouteHeader); err == nil {
				exts.Routing, n, nh = h, h.Len(), h.NextHeader()
			}
		case core.IPNumberIPv6Frag:
			var h IPv6FragmentHeaderSlice
			if h, r, err = DecodeIPv6FragmentHeader(rest); err == nil {
				exts.Fragment, n, nh = h, h.Len(), h.NextHeader()
			}
		case core.IPNumberAuth:
			var h IPAuthHeaderSlice
			if h, r, err = DecodeIPAuthHeader(rest); err == nil {
				exts.Auth, n, nh = h, h.Len(), h.NextHeader()
			}
		}
		if err != nil {
			return exts, next, rest, core.WithOffset(err, off)
		}
		exts.count++
		off += n
		next, rest = nh, r
	}
	return exts, next, rest, nil
}
