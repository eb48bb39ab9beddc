package core

// Layer identifies which header or payload section a decode error refers to.
type Layer uint8

const (
	LayerEthernet2Header Layer = iota
	LayerVLANHeader
	LayerIPHeader
	LayerIPv4Header
	LayerIPv4Packet
	LayerIPAuthHeader
	LayerIPv6Header
	LayerIPv6Packet
	LayerIPv6HopByHopHeader
	LayerIPv6DestOptionsHeader
	LayerIPv6RouteHeader
	LayerIPv6FragHeader
	LayerIPv6ExtHeader
	LayerTCPHeader
	LayerUDPHeader
	LayerUDPPayload
	LayerICMPv4
	LayerICMPv4Timestamp
	LayerICMPv4TimestampReply
	LayerICMPv6
	// LayerTunnelHeader is used by decapsulation for VXLAN, Geneve and GRE
	// headers.
	LayerTunnelHeader
	LayerLinuxSLLHeader
)

var layerNames = [...]string{
	LayerEthernet2Header:       "Ethernet II header",
	LayerVLANHeader:            "VLAN header",
	LayerIPHeader:              "IP header",
	LayerIPv4Header:            "IPv4 header",
	LayerIPv4Packet:            "IPv4 packet",
	LayerIPAuthHeader:          "IP authentication header",
	LayerIPv6Header:            "IPv6 header",
	LayerIPv6Packet:            "IPv6 packet",
	LayerIPv6HopByHopHeader:    "IPv6 hop-by-hop header",
	LayerIPv6DestOptionsHeader: "IPv6 destination options header",
	LayerIPv6RouteHeader:       "IPv6 routing header",
	LayerIPv6FragHeader:        "IPv6 fragment header",
	LayerIPv6ExtHeader:         "IPv6 extension header",
	LayerTCPHeader:             "TCP header",
	LayerUDPHeader:             "UDP header",
	LayerUDPPayload:            "UDP payload",
	LayerICMPv4:                "ICMPv4 packet",
	LayerICMPv4Timestamp:       "ICMPv4 timestamp packet",
	LayerICMPv4TimestampReply:  "ICMPv4 timestamp reply packet",
	LayerICMPv6:                "ICMPv6 packet",
	LayerTunnelHeader:          "tunnel header",
	LayerLinuxSLLHeader:        "Linux cooked capture header",
}

func (l Layer) String() string {
	if int(l) < len(layerNames) {
		return layerNames[l]
	}
	return "unknown layer"
}

// LenSource names what bounded the byte window a length check was made
// against.
type LenSource uint8

const (
	// LenSourceSlice means the window was the remaining caller buffer.
	LenSourceSlice LenSource = iota
	LenSourceIPv4HeaderTotalLen
	LenSourceIPv6HeaderPayloadLen
	LenSourceUDPHeaderLen
	LenSourceTCPHeaderLen
)

func (s LenSource) String() string {
	switch s {
	case LenSourceSlice:
		return "slice length"
	case LenSourceIPv4HeaderTotalLen:
		return "IPv4 header total length"
	case LenSourceIPv6HeaderPayloadLen:
		return "IPv6 header payload length"
	case LenSourceUDPHeaderLen:
		return "UDP header length"
	case LenSourceTCPHeaderLen:
		return "TCP header length"
	default:
		return "unknown length source"
	}
}
