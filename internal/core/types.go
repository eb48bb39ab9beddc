package core

import "fmt"

// EtherType is the 16-bit protocol identifier of an Ethernet II or VLAN
// header.
type EtherType uint16

const (
	EtherTypeIPv4 EtherType = 0x0800
	EtherTypeARP  EtherType = 0x0806
	EtherTypeWOL  EtherType = 0x0842
	// EtherTypeVLANTagged is the IEEE 802.1Q customer tag.
	EtherTypeVLANTagged EtherType = 0x8100
	EtherTypeIPv6       EtherType = 0x86DD
	// EtherTypeProviderBridging is the IEEE 802.1ad service tag (QinQ).
	EtherTypeProviderBridging EtherType = 0x88A8
	// EtherTypeVLANDoubleTagged is the legacy pre-802.1ad QinQ tag.
	EtherTypeVLANDoubleTagged EtherType = 0x9100
	// EtherTypeTransparentBridging carries an Ethernet frame inside GRE.
	EtherTypeTransparentBridging EtherType = 0x6558
)

// IsVLAN reports whether e introduces a VLAN tag.
func (e EtherType) IsVLAN() bool {
	switch e {
	case EtherTypeVLANTagged, EtherTypeProviderBridging, EtherTypeVLANDoubleTagged:
		return true
	}
	return false
}

func (e EtherType) String() string {
	switch e {
	case EtherTypeIPv4:
		return "IPv4"
	case EtherTypeARP:
		return "ARP"
	case EtherTypeWOL:
		return "WakeOnLan"
	case EtherTypeVLANTagged:
		return "VLAN"
	case EtherTypeIPv6:
		return "IPv6"
	case EtherTypeProviderBridging:
		return "ProviderBridging"
	case EtherTypeVLANDoubleTagged:
		return "VLANDoubleTagged"
	case EtherTypeTransparentBridging:
		return "TransparentEthernetBridging"
	default:
		return fmt.Sprintf("0x%04x", uint16(e))
	}
}

// IPNumber is the IPv4 protocol / IPv6 next header number.
type IPNumber uint8

const (
	IPNumberHopByHop   IPNumber = 0
	IPNumberICMP       IPNumber = 1
	IPNumberIGMP       IPNumber = 2
	IPNumberIPv4       IPNumber = 4
	IPNumberTCP        IPNumber = 6
	IPNumberUDP        IPNumber = 17
	IPNumberIPv6       IPNumber = 41
	IPNumberIPv6Route  IPNumber = 43
	IPNumberIPv6Frag   IPNumber = 44
	IPNumberGRE        IPNumber = 47
	IPNumberESP        IPNumber = 50
	IPNumberAuth       IPNumber = 51
	IPNumberICMPv6     IPNumber = 58
	IPNumberIPv6NoNext IPNumber = 59
	IPNumberIPv6Opts   IPNumber = 60
	IPNumberSCTP       IPNumber = 132
)

var ipNumberNames = map[IPNumber]string{
	IPNumberHopByHop:   "IPv6HopByHop",
	IPNumberICMP:       "ICMP",
	IPNumberIGMP:       "IGMP",
	IPNumberIPv4:       "IPv4",
	IPNumberTCP:        "TCP",
	IPNumberUDP:        "UDP",
	IPNumberIPv6:       "IPv6",
	IPNumberIPv6Route:  "IPv6Route",
	IPNumberIPv6Frag:   "IPv6Frag",
	IPNumberGRE:        "GRE",
	IPNumberESP:        "ESP",
	IPNumberAuth:       "AH",
	IPNumberICMPv6:     "ICMPv6",
	IPNumberIPv6NoNext: "IPv6NoNext",
	IPNumberIPv6Opts:   "IPv6Opts",
	IPNumberSCTP:       "SCTP",
}

func (n IPNumber) String() string {
	if s, ok := ipNumberNames[n]; ok {
		return s
	}
	return fmt.Sprintf("%d", uint8(n))
}
