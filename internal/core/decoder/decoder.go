// Package decoder decomposes packets into zero-copy header views.
//
// Decoding never allocates and never modifies the input. Malformed headers
// produce a *core.LenError or *core.HeaderError positioned at the failing
// layer; protocols the decoder does not know end the walk and are reported
// as payload.
package decoder

import (
	"fmt"
	"strings"

	"firestige.xyz/hdrview/internal/core"
)

// Entry selects the first layer of a buffer.
type Entry uint8

const (
	// EntryAuto derives the entry from the capture link type.
	EntryAuto Entry = iota
	EntryEthernet
	EntryEtherType
	EntryIP
)

func (e Entry) String() string {
	switch e {
	case EntryEthernet:
		return "ethernet"
	case EntryEtherType:
		return "ethertype"
	case EntryIP:
		return "ip"
	default:
		return "auto"
	}
}

// UnmarshalText lets configuration and flags name an entry.
func (e *Entry) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "auto":
		*e = EntryAuto
	case "ethernet", "link", "eth":
		*e = EntryEthernet
	case "ethertype":
		*e = EntryEtherType
	case "ip":
		*e = EntryIP
	default:
		return fmt.Errorf("%w: unknown decode entry %q", core.ErrConfigInvalid, text)
	}
	return nil
}

// Linux cooked capture (SLL) header layout.
const (
	linuxSLLHeaderLen     = 16
	linuxSLLProtocolStart = 14
)

// Config configures a Decoder.
type Config struct {
	Entry Entry
	// EtherType announces the first header for EntryEtherType.
	EtherType core.EtherType
	Tunnel    TunnelConfig
	// Lax decodes the outer packet with LaxFromEthernet and friends:
	// truncated packets are reported up to the layer that is cut.
	Lax bool
}

// Result is a decoded packet and the tunnels found inside it, outermost
// first. Tunnels[i].Inner is the packet carried by the i-th tunnel.
type Result struct {
	Packet  SlicedPacket
	Tunnels []Tunnel
	// Stop is the error that ended a lax decode early. Tunnels are only
	// opened in packets without one.
	Stop error
}

// Innermost returns the most deeply nested decoded packet.
func (r *Result) Innermost() *SlicedPacket {
	if n := len(r.Tunnels); n > 0 {
		return &r.Tunnels[n-1].Inner
	}
	return &r.Packet
}

// Decoder decodes raw packets with a fixed configuration. It is safe for
// concurrent use.
type Decoder struct {
	cfg Config
}

// New returns a Decoder for cfg.
func New(cfg Config) *Decoder {
	return &Decoder{cfg: cfg}
}

// Decode decodes raw and, when tunnels are enabled, the packets they carry.
// A tunnel whose inner packet fails to decode is reported by the error
// together with the partial result up to the outer packet.
func (d *Decoder) Decode(raw core.RawPacket) (Result, error) {
	var res Result
	pkt, err := d.decodeOuter(raw)
	if err != nil {
		return res, err
	}
	res.Packet, res.Stop = pkt.SlicedPacket, pkt.Stop
	if res.Stop != nil {
		return res, nil
	}

	cur := &res.Packet
	for depth := 0; depth < d.cfg.Tunnel.maxDepth(); depth++ {
		t, ok, err := Decapsulate(cur, d.cfg.Tunnel)
		if err != nil {
			return res, fmt.Errorf("decapsulate %s: %w", t.Kind, err)
		}
		if !ok {
			break
		}
		res.Tunnels = append(res.Tunnels, t)
		cur = &res.Tunnels[len(res.Tunnels)-1].Inner
	}
	return res, nil
}

func (d *Decoder) decodeOuter(raw core.RawPacket) (LaxPacket, error) {
	entry, et := d.cfg.Entry, d.cfg.EtherType
	data, base := raw.Data, 0
	if entry == EntryAuto {
		switch raw.LinkType {
		case core.LinkTypeRaw, core.LinkTypeIPv4, core.LinkTypeIPv6:
			entry = EntryIP
		case core.LinkTypeLinuxSLL:
			// The cooked capture header is skipped and its protocol field
			// announces the first header.
			if len(data) < linuxSLLHeaderLen {
				return LaxPacket{}, &core.LenError{
					Required: linuxSLLHeaderLen,
					Len:      len(data),
					Source:   core.LenSourceSlice,
					Layer:    core.LayerLinuxSLLHeader,
				}
			}
			entry, et = EntryEtherType, core.EtherType(be16(data[linuxSLLProtocolStart:linuxSLLHeaderLen]))
			data, base = data[linuxSLLHeaderLen:], linuxSLLHeaderLen
		case core.LinkTypeEthernet, 0:
			entry = EntryEthernet
		default:
			return LaxPacket{}, fmt.Errorf("%w: link type %d", core.ErrUnsupportedProto, raw.LinkType)
		}
	}

	c := newCursor(data, base)
	c.lax = d.cfg.Lax
	var err error
	switch entry {
	case EntryEthernet:
		_, err = c.ethernet()
	case EntryEtherType:
		_, err = c.etherType(et)
	default:
		_, err = c.ip()
	}
	if err != nil {
		return LaxPacket{}, err
	}
	return c.laxResult(entry)
}
