package decoder

import (
	"encoding/binary"

	"firestige.xyz/hdrview/internal/core"
	"firestige.xyz/hdrview/internal/core/header"
)

// lenFunc reads the self-declared length of a header. hdr holds at least
// headerKind.lenAt bytes. It returns a content error when a field it reads
// is malformed.
type lenFunc func(hdr []byte) (int, error)

// headerKind describes how to bound one header kind.
type headerKind struct {
	minLen int
	layer  core.Layer
	// lenAt is the number of bytes needed to call declared.
	lenAt    int
	declared lenFunc
}

var (
	ethernet2Kind  = headerKind{minLen: header.Ethernet2HeaderLen, layer: core.LayerEthernet2Header}
	singleVLANKind = headerKind{minLen: header.SingleVLANHeaderLen, layer: core.LayerVLANHeader}
	doubleVLANKind = headerKind{minLen: header.DoubleVLANHeaderLen, layer: core.LayerVLANHeader}
	ipv4Kind       = headerKind{minLen: header.IPv4MinHeaderLen, layer: core.LayerIPv4Header, lenAt: 1, declared: ipv4HeaderLen}
	ipv6Kind       = headerKind{minLen: header.IPv6HeaderLen, layer: core.LayerIPv6Header, lenAt: 1, declared: ipv6HeaderLen}
	ipAuthKind     = headerKind{minLen: header.IPAuthMinLen, layer: core.LayerIPAuthHeader, lenAt: 2, declared: ipAuthLen}
	ipv6FragKind   = headerKind{minLen: header.IPv6FragmentHeaderLen, layer: core.LayerIPv6FragHeader}
	udpKind        = headerKind{minLen: header.UDPHeaderLen, layer: core.LayerUDPHeader}
	tcpKind        = headerKind{minLen: header.TCPMinHeaderLen, layer: core.LayerTCPHeader, lenAt: 13, declared: tcpHeaderLen}
	icmpv4Kind     = headerKind{minLen: header.ICMPv4HeaderLen, layer: core.LayerICMPv4}
	icmpv6Kind     = headerKind{minLen: header.ICMPv6HeaderLen, layer: core.LayerICMPv6}
	// Timestamp messages are selected by type and code, see DecodeICMPv4.
	icmpv4TimestampKind      = headerKind{minLen: header.ICMPv4TimestampLen, layer: core.LayerICMPv4Timestamp}
	icmpv4TimestampReplyKind = headerKind{minLen: header.ICMPv4TimestampLen, layer: core.LayerICMPv4TimestampReply}
)

// ipv6RawExtKind bounds hop-by-hop, destination options and routing
// headers, which differ only in the layer they report.
func ipv6RawExtKind(layer core.Layer) headerKind {
	return headerKind{minLen: header.IPv6RawExtMinLen, layer: layer, lenAt: 2, declared: ipv6RawExtLen}
}

// splitHeader validates window against a header kind and splits off the
// header. The returned error has offset 0; the caller adds its position.
//
// The declared length is used as soon as the bytes holding it are present,
// so a valid header of length L truncated anywhere past its length field
// always requires L. A window that does not even reach the length field
// requires minLen.
func splitHeader(window []byte, k headerKind, source core.LenSource) (hdr, rest []byte, err error) {
	n := k.minLen
	if k.declared != nil && len(window) >= k.lenAt {
		if n, err = k.declared(window); err != nil {
			return nil, nil, err
		}
	}
	if len(window) < n {
		return nil, nil, &core.LenError{
			Required: n,
			Len:      len(window),
			Source:   source,
			Layer:    k.layer,
		}
	}
	return window[:n:n], window[n:], nil
}

func be16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func be32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
