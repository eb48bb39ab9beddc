package decoder

import (
	"firestige.xyz/hdrview/internal/core"
	"firestige.xyz/hdrview/internal/core/header"
)

// LaxPacket is a packet decoded as far as its bytes allowed.
//
// Lax decoding is meant for truncated captures (a snap length shorter
// than the packet) and for looking at broken packets. An IP length field
// that promises more than the buffer holds does not fail: the payload is
// cut at the end of the buffer and marked Incomplete. A layer that cannot
// be decoded ends the walk; its error is kept in Stop and its bytes are
// left in Payload.
type LaxPacket struct {
	SlicedPacket
	// Stop is the error that ended the walk early, nil when every layer
	// decoded. Its layer and offset point at the undecoded bytes.
	Stop error
}

// LaxFromEthernet decodes a buffer that starts with an Ethernet II header.
// It fails only when the Ethernet header itself is too short.
func LaxFromEthernet(data []byte) (LaxPacket, error) {
	c := newCursor(data, 0)
	c.lax = true
	c.ethernet()
	return c.laxResult(EntryEthernet)
}

// LaxFromEtherType decodes a buffer whose first header is announced by
// et. It never fails; a first header that does not decode is the Stop.
func LaxFromEtherType(et core.EtherType, data []byte) LaxPacket {
	c := newCursor(data, 0)
	c.lax = true
	c.etherType(et)
	pkt, _ := c.laxResult(EntryEtherType)
	return pkt
}

// LaxFromIP decodes a buffer that starts with an IPv4 or IPv6 header. It
// fails only when the fixed IP header itself is short or malformed.
func LaxFromIP(data []byte) (LaxPacket, error) {
	c := newCursor(data, 0)
	c.lax = true
	c.ip()
	return c.laxResult(EntryIP)
}

// laxResult finishes a lax walk. A stop in the entry header is returned as
// the error: the buffer is not a packet of the requested kind.
func (c *cursor) laxResult(entry Entry) (LaxPacket, error) {
	switch {
	case entry == EntryEthernet && c.pkt.Link.Kind == LinkNone,
		entry == EntryIP && c.pkt.Net.Kind == NetNone:
		return LaxPacket{}, c.stop
	}
	return LaxPacket{SlicedPacket: c.pkt, Stop: c.stop}, nil
}

// decodeIPv4Lax decodes an IPv4 packet without trusting the total length.
// A total length beyond the buffer cuts the payload at the buffer end, one
// below the header length is ignored. Only fixed header errors are
// returned as err. An authentication header that does not decode is
// returned as stop, with the payload starting at it.
func decodeIPv4Lax(data []byte) (s IPv4Slice, stop, err error) {
	h, rest, err := DecodeIPv4Header(data)
	if err != nil {
		return s, nil, err
	}

	window, source, incomplete := rest, core.LenSourceSlice, false
	switch total := int(h.TotalLen()); {
	case total < h.Len():
	case total > len(data):
		incomplete = true
	default:
		window, source = data[h.Len():total], core.LenSourceIPv4HeaderTotalLen
	}

	exts, next, payload, stop := resolveIPv4Extensions(h.Protocol(), window)
	if stop != nil {
		stop = core.WithLenSource(core.WithOffset(stop, h.Len()), source)
	}
	return IPv4Slice{
		Header: h,
		Exts:   exts,
		Payload: IPPayload{
			IPNumber:   next,
			Fragmented: h.IsFragmenting(),
			LenSource:  source,
			Incomplete: incomplete,
			Data:       payload,
		},
	}, stop, nil
}

// decodeIPv6Lax is decodeIPv4Lax for IPv6. The extension chain keeps the
// headers before a failing one.
func decodeIPv6Lax(data []byte) (s IPv6Slice, stop, err error) {
	h, rest, err := DecodeIPv6Header(data)
	if err != nil {
		return s, nil, err
	}

	window, source, incomplete := rest, core.LenSourceSlice, false
	if h.PayloadLen() != 0 || len(rest) == 0 {
		if n := int(h.PayloadLen()); n <= len(rest) {
			window, source = rest[:n], core.LenSourceIPv6HeaderPayloadLen
		} else {
			incomplete = true
		}
	}

	exts, next, payload, stop := resolveIPv6Extensions(h.NextHeader(), window)
	if stop != nil {
		stop = core.WithLenSource(core.WithOffset(stop, header.IPv6HeaderLen), source)
	}
	return IPv6Slice{
		Header: h,
		Exts:   exts,
		Payload: IPPayload{
			IPNumber:   next,
			Fragmented: exts.IsFragmenting(),
			LenSource:  source,
			Incomplete: incomplete,
			Data:       payload,
		},
	}, stop, nil
}

// decodeUDPLax is DecodeUDP for a datagram the capture cut short: a length
// field beyond the buffer keeps the bytes that are there and reports cut.
func decodeUDPLax(data []byte) (s UDPSlice, cut bool, err error) {
	s, err = DecodeUDP(data)
	if e, ok := err.(*core.LenError); !ok || e.Layer != core.LayerUDPPayload {
		return s, false, err
	}
	return UDPSlice{
		Header:  UDPHeaderSlice{b: data[:header.UDPHeaderLen]},
		Payload: data[header.UDPHeaderLen:],
	}, true, nil
}
