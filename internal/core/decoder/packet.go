package decoder

import "firestige.xyz/hdrview/internal/core"

// LinkKind tells which link-layer header a packet starts with.
type LinkKind uint8

const (
	LinkNone LinkKind = iota
	LinkEthernet2
)

// Link is the link-layer section of a packet.
type Link struct {
	Kind      LinkKind
	Ethernet2 Ethernet2Slice
}

// VLANKind tells how many VLAN tags a packet carries.
type VLANKind uint8

const (
	VLANNone VLANKind = iota
	VLANSingle
	VLANDouble
)

// VLAN is the VLAN section of a packet.
type VLAN struct {
	Kind   VLANKind
	Single SingleVLANSlice
	Double DoubleVLANSlice
}

// IDs returns the VLAN ids, outermost first. The zero entries of the
// result are padding beyond Kind.
func (v VLAN) IDs() (ids [2]uint16, n int) {
	switch v.Kind {
	case VLANSingle:
		return [2]uint16{v.Single.VLANID()}, 1
	case VLANDouble:
		return [2]uint16{v.Double.Outer().VLANID(), v.Double.Inner().VLANID()}, 2
	}
	return ids, 0
}

// NetKind tells which network-layer header a packet carries.
type NetKind uint8

const (
	NetNone NetKind = iota
	NetIPv4
	NetIPv6
)

// Net is the network-layer section of a packet.
type Net struct {
	Kind NetKind
	IPv4 IPv4Slice
	IPv6 IPv6Slice
}

// IPPayload returns the payload of the IP layer and whether there is one.
func (n *Net) IPPayload() (IPPayload, bool) {
	switch n.Kind {
	case NetIPv4:
		return n.IPv4.Payload, true
	case NetIPv6:
		return n.IPv6.Payload, true
	}
	return IPPayload{}, false
}

// TransportKind tells which transport header a packet carries.
type TransportKind uint8

const (
	TransportNone TransportKind = iota
	TransportICMPv4
	TransportICMPv6
	TransportUDP
	TransportTCP
)

func (k TransportKind) String() string {
	switch k {
	case TransportICMPv4:
		return "icmpv4"
	case TransportICMPv6:
		return "icmpv6"
	case TransportUDP:
		return "udp"
	case TransportTCP:
		return "tcp"
	default:
		return "none"
	}
}

// Transport is the transport-layer section of a packet.
type Transport struct {
	Kind   TransportKind
	ICMPv4 ICMPv4Slice
	ICMPv6 ICMPv6Slice
	UDP    UDPSlice
	TCP    TCPSlice
}

// PayloadKind tells which layer the innermost payload belongs to.
type PayloadKind uint8

const (
	// PayloadEther follows a link or VLAN header with an EtherType the
	// decoder does not handle.
	PayloadEther PayloadKind = iota + 1
	// PayloadIP follows an IP header and its extensions, with a protocol
	// the decoder does not handle or a fragment.
	PayloadIP
	// PayloadTransport follows a transport header.
	PayloadTransport
)

// Payload is the innermost undecoded part of a packet.
type Payload struct {
	Kind PayloadKind
	// Offset is the position of Data in the decoded buffer.
	Offset int
	// EtherType is set for PayloadEther.
	EtherType core.EtherType
	// IPNumber is set for PayloadIP and PayloadTransport.
	IPNumber   core.IPNumber
	Fragmented bool
	// Incomplete is set by lax decoding when Data was cut short by the end
	// of the buffer.
	Incomplete bool
	LenSource  core.LenSource
	Data       []byte
}

// SlicedPacket is a buffer decomposed into zero-copy views. Sections that
// are not present have Kind None. The views alias the decoded buffer, which
// must not be modified while they are in use.
type SlicedPacket struct {
	Link      Link
	VLAN      VLAN
	Net       Net
	Transport Transport
	Payload   Payload
}

// EtherType returns the EtherType announcing the network layer (or the
// Ether payload), taking VLAN tags into account.
func (p *SlicedPacket) EtherType() (core.EtherType, bool) {
	switch p.VLAN.Kind {
	case VLANSingle:
		return p.VLAN.Single.EtherType(), true
	case VLANDouble:
		return p.VLAN.Double.Inner().EtherType(), true
	}
	if p.Link.Kind == LinkEthernet2 {
		return p.Link.Ethernet2.EtherType(), true
	}
	return 0, false
}

// Ports returns the transport ports for UDP and TCP.
func (p *SlicedPacket) Ports() (src, dst uint16, ok bool) {
	switch p.Transport.Kind {
	case TransportUDP:
		return p.Transport.UDP.Header.SrcPort(), p.Transport.UDP.Header.DstPort(), true
	case TransportTCP:
		return p.Transport.TCP.Header.SrcPort(), p.Transport.TCP.Header.DstPort(), true
	}
	return 0, 0, false
}
