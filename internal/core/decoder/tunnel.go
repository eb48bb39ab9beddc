package decoder

import (
	"firestige.xyz/hdrview/internal/core"
)

const (
	// Well-known UDP ports
	DefaultVXLANPort  = 4789
	DefaultGenevePort = 6081

	// Header lengths
	vxlanHeaderLen  = 8
	geneveHeaderLen = 8
	greHeaderMinLen = 4

	vxlanFlagVNI = 0x08

	greFlagChecksum = 0x8000
	greFlagKey      = 0x2000
	greFlagSequence = 0x1000
	greVersionMask  = 0x0007
)

// TunnelKind identifies an encapsulation.
type TunnelKind uint8

const (
	TunnelNone TunnelKind = iota
	TunnelVXLAN
	TunnelGeneve
	TunnelGRE
	TunnelIPIP
)

func (k TunnelKind) String() string {
	switch k {
	case TunnelVXLAN:
		return "vxlan"
	case TunnelGeneve:
		return "geneve"
	case TunnelGRE:
		return "gre"
	case TunnelIPIP:
		return "ipip"
	default:
		return "none"
	}
}

// TunnelConfig selects the encapsulations Decapsulate looks into.
type TunnelConfig struct {
	VXLAN  bool
	Geneve bool
	GRE    bool
	IPIP   bool
	// VXLANPort and GenevePort override the well-known ports when set.
	VXLANPort  uint16
	GenevePort uint16
	// MaxDepth bounds the number of nested tunnels Decoder.Decode walks.
	// Zero means 1 when any tunnel is enabled.
	MaxDepth int
}

// DefaultTunnelConfig enables every encapsulation on its default port.
func DefaultTunnelConfig() TunnelConfig {
	return TunnelConfig{VXLAN: true, Geneve: true, GRE: true, IPIP: true, MaxDepth: 2}
}

func (c TunnelConfig) enabled() bool { return c.VXLAN || c.Geneve || c.GRE || c.IPIP }

func (c TunnelConfig) maxDepth() int {
	if !c.enabled() {
		return 0
	}
	if c.MaxDepth <= 0 {
		return 1
	}
	return c.MaxDepth
}

func (c TunnelConfig) vxlanPort() uint16 {
	if c.VXLANPort != 0 {
		return c.VXLANPort
	}
	return DefaultVXLANPort
}

func (c TunnelConfig) genevePort() uint16 {
	if c.GenevePort != 0 {
		return c.GenevePort
	}
	return DefaultGenevePort
}

// Tunnel is an encapsulation header and the packet it carries. Offsets in
// Inner, and in errors of a failed inner decode, are relative to the outer
// buffer.
type Tunnel struct {
	Kind TunnelKind
	// Header is the encapsulation header, nil for IP in IP.
	Header []byte
	// Offset is the position of Header (or of the inner IP header).
	Offset int
	// VNI is the VXLAN or Geneve network identifier, or the GRE key.
	VNI    uint32
	HasVNI bool
	// Protocol is the EtherType announced by Geneve or GRE.
	Protocol core.EtherType
	Inner    SlicedPacket
}

// Decapsulate looks for a tunnel in the payload of pkt and decodes the
// packet inside it. ok is false when the payload is not an enabled tunnel.
// A payload that claims to be a tunnel but is truncated, or whose inner
// packet is malformed, returns an error.
func Decapsulate(pkt *SlicedPacket, cfg TunnelConfig) (t Tunnel, ok bool, err error) {
	p := pkt.Payload
	switch p.Kind {
	case PayloadTransport:
		if pkt.Transport.Kind != TransportUDP {
			return t, false, nil
		}
		dst := pkt.Transport.UDP.Header.DstPort()
		switch {
		case cfg.VXLAN && dst == cfg.vxlanPort():
			return decodeVXLAN(p.Data, p.Offset)
		case cfg.Geneve && dst == cfg.genevePort():
			return decodeGeneve(p.Data, p.Offset)
		}
	case PayloadIP:
		if p.Fragmented {
			return t, false, nil
		}
		switch {
		case cfg.GRE && p.IPNumber == core.IPNumberGRE:
			return decodeGRE(p.Data, p.Offset)
		case cfg.IPIP && (p.IPNumber == core.IPNumberIPv4 || p.IPNumber == core.IPNumberIPv6):
			return decodeIPIP(p.Data, p.Offset, p.IPNumber)
		}
	}
	return t, false, nil
}

func tunnelTooShort(required, n, off int) error {
	return &core.LenError{
		Required: required,
		Len:      n,
		Source:   core.LenSourceSlice,
		Layer:    core.LayerTunnelHeader,
		Offset:   off,
	}
}

// decodeVXLAN decapsulates VXLAN. A header without the VNI flag is not
// treated as VXLAN.
func decodeVXLAN(data []byte, off int) (Tunnel, bool, error) {
	t := Tunnel{Kind: TunnelVXLAN, Offset: off}
	if len(data) < vxlanHeaderLen {
		return t, false, tunnelTooShort(vxlanHeaderLen, len(data), off)
	}

	// VXLAN header format:
	// 0-3: Flags (1 byte) + Reserved (3 bytes)
	// 4-7: VNI (3 bytes) + Reserved (1 byte)
	if data[0]&vxlanFlagVNI == 0 {
		return Tunnel{}, false, nil
	}
	t.Header = data[:vxlanHeaderLen]
	t.VNI, t.HasVNI = be32(data[4:8])>>8, true

	// Inner Ethernet frame starts after VXLAN header
	c := newCursor(data[vxlanHeaderLen:], off+vxlanHeaderLen)
	inner, err := c.ethernet()
	if err != nil {
		return t, false, err
	}
	t.Inner = inner
	return t, true, nil
}

// decodeGeneve decapsulates Geneve. Only version 0 is known.
func decodeGeneve(data []byte, off int) (Tunnel, bool, error) {
	t := Tunnel{Kind: TunnelGeneve, Offset: off}
	if len(data) < geneveHeaderLen {
		return t, false, tunnelTooShort(geneveHeaderLen, len(data), off)
	}

	// Geneve header format:
	// 0: Version (2 bits) + Opt Len (6 bits)
	// 1: Flags
	// 2-3: Protocol Type
	// 4-6: VNI
	// 7: Reserved
	if version := data[0] >> 6; version != 0 {
		return Tunnel{}, false, nil
	}
	headerLen := geneveHeaderLen + int(data[0]&0x3f)*4
	if len(data) < headerLen {
		return t, false, tunnelTooShort(headerLen, len(data), off)
	}
	t.Header = data[:headerLen]
	t.Protocol = core.EtherType(be16(data[2:4]))
	t.VNI, t.HasVNI = be32(data[4:8])>>8, true

	inner, err := decodeByEtherType(t.Protocol, data[headerLen:], off+headerLen)
	if err != nil {
		return t, false, err
	}
	t.Inner = inner
	return t, true, nil
}

// decodeGRE decapsulates GRE version 0 (RFC 2784 with the RFC 2890 key and
// sequence number extensions).
func decodeGRE(data []byte, off int) (Tunnel, bool, error) {
	t := Tunnel{Kind: TunnelGRE, Offset: off}
	if len(data) < greHeaderMinLen {
		return t, false, tunnelTooShort(greHeaderMinLen, len(data), off)
	}

	// GRE header format:
	// 0-1: Flags and Version
	// 2-3: Protocol Type
	flags := be16(data[0:2])
	if flags&greVersionMask != 0 {
		return Tunnel{}, false, nil
	}
	t.Protocol = core.EtherType(be16(data[2:4]))

	headerLen := greHeaderMinLen
	if flags&greFlagChecksum != 0 {
		headerLen += 4
	}
	keyAt := headerLen
	if flags&greFlagKey != 0 {
		headerLen += 4
	}
	if flags&greFlagSequence != 0 {
		headerLen += 4
	}
	if len(data) < headerLen {
		return t, false, tunnelTooShort(headerLen, len(data), off)
	}
	t.Header = data[:headerLen]
	if flags&greFlagKey != 0 {
		t.VNI, t.HasVNI = be32(data[keyAt:keyAt+4]), true
	}

	inner, err := decodeByEtherType(t.Protocol, data[headerLen:], off+headerLen)
	if err != nil {
		return t, false, err
	}
	t.Inner = inner
	return t, true, nil
}

// decodeIPIP decapsulates IP in IP. The outer protocol number fixes the
// inner version.
func decodeIPIP(data []byte, off int, proto core.IPNumber) (Tunnel, bool, error) {
	t := Tunnel{Kind: TunnelIPIP, Offset: off}
	c := newCursor(data, off)
	var (
		inner SlicedPacket
		err   error
	)
	if proto == core.IPNumberIPv4 {
		inner, err = c.ipv4()
	} else {
		inner, err = c.ipv6()
	}
	if err != nil {
		return t, false, err
	}
	t.Inner = inner
	return t, true, nil
}

// decodeByEtherType continues with an inner Ethernet frame for transparent
// bridging, or with the layer the EtherType announces.
func decodeByEtherType(et core.EtherType, data []byte, off int) (SlicedPacket, error) {
	c := newCursor(data, off)
	if et == core.EtherTypeTransparentBridging {
		return c.ethernet()
	}
	return c.etherType(et)
}
