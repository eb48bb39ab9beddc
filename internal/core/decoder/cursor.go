package decoder

import (
	"firestige.xyz/hdrview/internal/core"
	"firestige.xyz/hdrview/internal/core/header"
)

// cursor walks a buffer layer by layer. off is the position of data in
// the buffer the caller handed in, source is what bounds data.
//
// A lax cursor does not fail: the first layer error is kept in stop and
// the layers decoded before it are returned, with the undecoded rest as
// payload.
type cursor struct {
	data   []byte
	off    int
	source core.LenSource
	pkt    SlicedPacket
	lax    bool
	stop   error
}

func newCursor(data []byte, base int) cursor {
	return cursor{data: data, off: base, source: core.LenSourceSlice}
}

// fail positions err at the current layer.
func (c *cursor) fail(err error) (SlicedPacket, error) {
	err = core.WithLenSource(core.WithOffset(err, c.off), c.source)
	if c.lax {
		c.stop = err
		return c.pkt, nil
	}
	return SlicedPacket{}, err
}

func (c *cursor) advance(n int) {
	c.data = c.data[n:]
	c.off += n
}

func (c *cursor) etherPayload(et core.EtherType) (SlicedPacket, error) {
	c.setEtherPayload(et)
	return c.pkt, nil
}

// setEtherPayload records the window as the payload of et. A lax cursor
// sets it before each layer so a stop leaves the undecoded bytes behind.
func (c *cursor) setEtherPayload(et core.EtherType) {
	c.pkt.Payload = Payload{
		Kind:      PayloadEther,
		Offset:    c.off,
		EtherType: et,
		LenSource: c.source,
		Data:      c.data,
	}
}

func (c *cursor) ethernet() (SlicedPacket, error) {
	eth, _, err := DecodeEthernet2(c.data)
	if err != nil {
		return c.fail(err)
	}
	c.pkt.Link = Link{Kind: LinkEthernet2, Ethernet2: eth}
	c.advance(eth.Len())
	return c.etherType(eth.EtherType())
}

func (c *cursor) etherType(et core.EtherType) (SlicedPacket, error) {
	if c.lax {
		c.setEtherPayload(et)
	}
	switch {
	case et == core.EtherTypeIPv4:
		return c.ipv4()
	case et == core.EtherTypeIPv6:
		return c.ipv6()
	case et.IsVLAN():
		return c.vlan()
	default:
		return c.etherPayload(et)
	}
}

func (c *cursor) vlan() (SlicedPacket, error) {
	outer, _, err := DecodeSingleVLAN(c.data)
	if err != nil {
		return c.fail(err)
	}
	if outer.EtherType().IsVLAN() {
		if c.lax {
			c.pkt.VLAN = VLAN{Kind: VLANSingle, Single: outer}
		}
		return c.doubleVLAN()
	}
	c.pkt.VLAN = VLAN{Kind: VLANSingle, Single: outer}
	c.advance(outer.Len())
	return c.afterVLAN(outer.EtherType())
}

func (c *cursor) doubleVLAN() (SlicedPacket, error) {
	d, _, err := DecodeDoubleVLAN(c.data)
	if err != nil {
		return c.fail(err)
	}
	c.pkt.VLAN = VLAN{Kind: VLANDouble, Double: d}
	c.advance(d.Len())
	return c.afterVLAN(d.Inner().EtherType())
}

// afterVLAN only continues into IP. A third VLAN tag is left as payload.
func (c *cursor) afterVLAN(et core.EtherType) (SlicedPacket, error) {
	if c.lax {
		c.setEtherPayload(et)
	}
	switch et {
	case core.EtherTypeIPv4:
		return c.ipv4()
	case core.EtherTypeIPv6:
		return c.ipv6()
	default:
		return c.etherPayload(et)
	}
}

// ip selects the IP version from the first nibble.
func (c *cursor) ip() (SlicedPacket, error) {
	if len(c.data) == 0 {
		return c.fail(&core.LenError{Required: 1, Len: 0, Source: core.LenSourceSlice, Layer: core.LayerIPHeader})
	}
	switch v := c.data[0] >> 4; v {
	case 4:
		return c.ipv4()
	case 6:
		return c.ipv6()
	default:
		return c.fail(&core.HeaderError{Layer: core.LayerIPHeader, Reason: core.ReasonUnsupportedIPVersion, Value: uint32(v)})
	}
}

func (c *cursor) ipv4() (SlicedPacket, error) {
	var (
		s         IPv4Slice
		stop, err error
	)
	if c.lax {
		s, stop, err = decodeIPv4Lax(c.data)
	} else {
		s, err = DecodeIPv4(c.data)
	}
	if err != nil {
		return c.fail(err)
	}
	c.pkt.Net = Net{Kind: NetIPv4, IPv4: s}
	return c.afterIP(s.Header.Len()+s.Exts.Auth.Len(), s.Payload, stop)
}

func (c *cursor) ipv6() (SlicedPacket, error) {
	var (
		s         IPv6Slice
		stop, err error
	)
	if c.lax {
		s, stop, err = decodeIPv6Lax(c.data)
	} else {
		s, err = DecodeIPv6(c.data)
	}
	if err != nil {
		return c.fail(err)
	}
	c.pkt.Net = Net{Kind: NetIPv6, IPv6: s}
	return c.afterIP(header.IPv6HeaderLen+s.Exts.Len(), s.Payload, stop)
}

// afterIP moves to the payload of the IP layer, which starts hdrLen bytes
// into the current window, and decodes the transport header unless the
// payload is a fragment. stop is an extension chain error of a lax decode,
// positioned relative to the IP header; the chain's rest becomes payload.
func (c *cursor) afterIP(hdrLen int, p IPPayload, stop error) (SlicedPacket, error) {
	if stop != nil {
		c.stop = core.WithOffset(stop, c.off)
	}
	c.off += hdrLen
	c.data = p.Data
	c.source = p.LenSource

	if p.Fragmented || stop != nil {
		return c.ipPayload(p)
	}
	if c.lax {
		c.setIPPayload(p)
	}
	switch p.IPNumber {
	case core.IPNumberICMP:
		s, err := DecodeICMPv4(c.data)
		if err != nil {
			return c.fail(err)
		}
		c.pkt.Transport = Transport{Kind: TransportICMPv4, ICMPv4: s}
		return c.transportPayload(p, s.Len(), s.Payload)
	case core.IPNumberICMPv6:
		s, err := DecodeICMPv6(c.data)
		if err != nil {
			return c.fail(err)
		}
		c.pkt.Transport = Transport{Kind: TransportICMPv6, ICMPv6: s}
		return c.transportPayload(p, s.Len(), s.Payload)
	case core.IPNumberUDP:
		var (
			s   UDPSlice
			cut bool
			err error
		)
		if c.lax && p.Incomplete {
			s, cut, err = decodeUDPLax(c.data)
		} else {
			s, err = DecodeUDP(c.data)
		}
		if err != nil {
			return c.fail(err)
		}
		c.pkt.Transport = Transport{Kind: TransportUDP, UDP: s}
		if s.Header.Length() != 0 && !cut {
			c.source = core.LenSourceUDPHeaderLen
		}
		return c.transportPayload(p, s.Header.Len(), s.Payload)
	case core.IPNumberTCP:
		s, err := DecodeTCP(c.data)
		if err != nil {
			return c.fail(err)
		}
		c.pkt.Transport = Transport{Kind: TransportTCP, TCP: s}
		return c.transportPayload(p, s.Header.Len(), s.Payload)
	default:
		return c.ipPayload(p)
	}
}

func (c *cursor) ipPayload(p IPPayload) (SlicedPacket, error) {
	c.setIPPayload(p)
	return c.pkt, nil
}

func (c *cursor) setIPPayload(p IPPayload) {
	c.pkt.Payload = Payload{
		Kind:       PayloadIP,
		Offset:     c.off,
		IPNumber:   p.IPNumber,
		Fragmented: p.Fragmented,
		Incomplete: p.Incomplete,
		LenSource:  p.LenSource,
		Data:       p.Data,
	}
}

func (c *cursor) transportPayload(p IPPayload, hdrLen int, data []byte) (SlicedPacket, error) {
	c.pkt.Payload = Payload{
		Kind:       PayloadTransport,
		Offset:     c.off + hdrLen,
		IPNumber:   p.IPNumber,
		Incomplete: p.Incomplete,
		LenSource:  c.source,
		Data:       data,
	}
	return c.pkt, nil
}

// FromEthernet decodes a buffer that starts with an Ethernet II header.
func FromEthernet(data []byte) (SlicedPacket, error) {
	c := newCursor(data, 0)
	return c.ethernet()
}

// FromEtherType decodes a buffer whose first header is announced by et,
// e.g. the payload of a Linux cooked capture or a GRE tunnel.
func FromEtherType(et core.EtherType, data []byte) (SlicedPacket, error) {
	c := newCursor(data, 0)
	return c.etherType(et)
}

// FromIP decodes a buffer that starts with an IPv4 or IPv6 header.
func FromIP(data []byte) (SlicedPacket, error) {
	c := newCursor(data, 0)
	return c.ip()
}
