// Package report renders decoded packets as summary records.
package report

import (
	"encoding/hex"
	"errors"
	"net"
	"strings"
	"time"

	"firestige.xyz/hdrview/internal/core"
	"firestige.xyz/hdrview/internal/core/decoder"
	"firestige.xyz/hdrview/internal/core/header"
)

// Options select the optional parts of a record.
type Options struct {
	ShowPayload     bool
	VerifyChecksums bool
}

// Record summarises one decoded packet.
type Record struct {
	Index  uint64 `json:"index,omitempty" yaml:"index,omitempty"`
	Time   string `json:"time,omitempty" yaml:"time,omitempty"`
	Length int    `json:"length" yaml:"length"`
	Packet `yaml:",inline"`
	// Tunnels are outermost first; each carries the packet inside it.
	Tunnels   []Tunnel   `json:"tunnels,omitempty" yaml:"tunnels,omitempty"`
	Checksums []Checksum `json:"checksums,omitempty" yaml:"checksums,omitempty"`
	Error     *Error     `json:"error,omitempty" yaml:"error,omitempty"`
	// Stop is the layer a lax decode could not read; the layers before it
	// are reported.
	Stop *Error `json:"stop,omitempty" yaml:"stop,omitempty"`
}

// Packet is the layer summary of one (possibly inner) packet.
type Packet struct {
	Link      *Link      `json:"link,omitempty" yaml:"link,omitempty"`
	VLANs     []uint16   `json:"vlans,omitempty" yaml:"vlans,omitempty"`
	Net       *Net       `json:"net,omitempty" yaml:"net,omitempty"`
	Transport *Transport `json:"transport,omitempty" yaml:"transport,omitempty"`
	Payload   *Payload   `json:"payload,omitempty" yaml:"payload,omitempty"`
}

type Link struct {
	Src       string `json:"src" yaml:"src"`
	Dst       string `json:"dst" yaml:"dst"`
	EtherType string `json:"ether_type" yaml:"ether_type"`
}

type Net struct {
	Version    int      `json:"version" yaml:"version"`
	Src        string   `json:"src" yaml:"src"`
	Dst        string   `json:"dst" yaml:"dst"`
	Protocol   string   `json:"protocol" yaml:"protocol"`
	TTL        uint8    `json:"ttl" yaml:"ttl"`
	Extensions []string `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	Fragmented bool     `json:"fragmented,omitempty" yaml:"fragmented,omitempty"`
}

type Transport struct {
	Kind    string `json:"kind" yaml:"kind"`
	SrcPort uint16 `json:"src_port,omitempty" yaml:"src_port,omitempty"`
	DstPort uint16 `json:"dst_port,omitempty" yaml:"dst_port,omitempty"`
	Flags   string `json:"flags,omitempty" yaml:"flags,omitempty"`
	Seq     uint32 `json:"seq,omitempty" yaml:"seq,omitempty"`
	Ack     uint32 `json:"ack,omitempty" yaml:"ack,omitempty"`
	// Options are the TCP options read before OptionsError, if any.
	Options      []string `json:"options,omitempty" yaml:"options,omitempty"`
	OptionsError string   `json:"options_error,omitempty" yaml:"options_error,omitempty"`
	ICMP         *ICMP    `json:"icmp,omitempty" yaml:"icmp,omitempty"`
}

type ICMP struct {
	Type uint8 `json:"type" yaml:"type"`
	Code uint8 `json:"code" yaml:"code"`
}

type Payload struct {
	Kind       string `json:"kind" yaml:"kind"`
	Offset     int    `json:"offset" yaml:"offset"`
	Len        int    `json:"len" yaml:"len"`
	Protocol   string `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	Fragmented bool   `json:"fragmented,omitempty" yaml:"fragmented,omitempty"`
	// Incomplete is set when the capture ended before the payload did.
	Incomplete bool   `json:"incomplete,omitempty" yaml:"incomplete,omitempty"`
	Data       string `json:"data,omitempty" yaml:"data,omitempty"`
}

type Tunnel struct {
	Kind     string  `json:"kind" yaml:"kind"`
	Offset   int     `json:"offset" yaml:"offset"`
	VNI      *uint32 `json:"vni,omitempty" yaml:"vni,omitempty"`
	Protocol string  `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	Inner    Packet  `json:"inner" yaml:"inner"`
}

// Checksum is the result of recomputing one checksum field. Depth is 0
// for the outer packet and i+1 for the packet inside the i-th tunnel.
type Checksum struct {
	Depth int    `json:"depth" yaml:"depth"`
	Layer string `json:"layer" yaml:"layer"`
	Got   uint16 `json:"got" yaml:"got"`
	Want  uint16 `json:"want" yaml:"want"`
	Valid bool   `json:"valid" yaml:"valid"`
}

// Error describes why decoding stopped.
type Error struct {
	Message string `json:"message" yaml:"message"`
	// Type is "length", "header" or "other".
	Type   string `json:"type" yaml:"type"`
	Layer  string `json:"layer,omitempty" yaml:"layer,omitempty"`
	Offset int    `json:"offset,omitempty" yaml:"offset,omitempty"`
}

// NewError classifies a decode error. It returns nil for a nil error.
func NewError(err error) *Error {
	if err == nil {
		return nil
	}
	e := &Error{Message: err.Error(), Type: "other"}
	var de core.DecodeError
	if errors.As(err, &de) {
		e.Layer = de.FailedLayer().String()
		e.Offset = de.ByteOffset()
		e.Type = "header"
		if _, ok := core.AsLenError(err); ok {
			e.Type = "length"
		}
	}
	return e
}

// Build summarises a decode result. err is the error returned alongside
// res, whose successfully decoded parts are still reported.
func Build(raw core.RawPacket, res decoder.Result, err error, opts Options) Record {
	rec := Record{
		Index:  raw.Index,
		Length: len(raw.Data),
		Error:  NewError(err),
		Stop:   NewError(res.Stop),
	}
	if !raw.Timestamp.IsZero() {
		rec.Time = raw.Timestamp.UTC().Format(time.RFC3339Nano)
	}

	rec.Packet = summarise(&res.Packet, opts)
	if opts.VerifyChecksums {
		rec.Checksums = verifyChecksums(&res.Packet, 0)
	}
	for i := range res.Tunnels {
		t := &res.Tunnels[i]
		rt := Tunnel{
			Kind:   t.Kind.String(),
			Offset: t.Offset,
			Inner:  summarise(&t.Inner, opts),
		}
		if t.HasVNI {
			vni := t.VNI
			rt.VNI = &vni
		}
		if t.Protocol != 0 {
			rt.Protocol = t.Protocol.String()
		}
		rec.Tunnels = append(rec.Tunnels, rt)
		if opts.VerifyChecksums {
			rec.Checksums = append(rec.Checksums, verifyChecksums(&t.Inner, i+1)...)
		}
	}
	return rec
}

func summarise(p *decoder.SlicedPacket, opts Options) Packet {
	var out Packet

	if p.Link.Kind == decoder.LinkEthernet2 {
		eth := p.Link.Ethernet2
		src, dst := eth.Source(), eth.Destination()
		out.Link = &Link{
			Src:       net.HardwareAddr(src[:]).String(),
			Dst:       net.HardwareAddr(dst[:]).String(),
			EtherType: eth.EtherType().String(),
		}
	}

	if ids, n := p.VLAN.IDs(); n > 0 {
		out.VLANs = append([]uint16(nil), ids[:n]...)
	}

	switch p.Net.Kind {
	case decoder.NetIPv4:
		h := p.Net.IPv4.Header
		out.Net = &Net{
			Version:    4,
			Src:        h.SourceAddr().String(),
			Dst:        h.DestinationAddr().String(),
			Protocol:   h.Protocol().String(),
			TTL:        h.TTL(),
			Fragmented: h.IsFragmenting(),
		}
		if p.Net.IPv4.Exts.Count() > 0 {
			out.Net.Extensions = []string{core.IPNumberAuth.String()}
		}
	case decoder.NetIPv6:
		h := p.Net.IPv6.Header
		out.Net = &Net{
			Version:    6,
			Src:        h.SourceAddr().String(),
			Dst:        h.DestinationAddr().String(),
			Protocol:   h.NextHeader().String(),
			TTL:        h.HopLimit(),
			Extensions: ipv6ExtensionNames(p.Net.IPv6.Exts),
			Fragmented: p.Net.IPv6.Exts.IsFragmenting(),
		}
	}

	out.Transport = summariseTransport(&p.Transport)

	if p.Payload.Kind != 0 {
		pl := &Payload{
			Kind:       payloadKindName(p.Payload.Kind),
			Offset:     p.Payload.Offset,
			Len:        len(p.Payload.Data),
			Fragmented: p.Payload.Fragmented,
			Incomplete: p.Payload.Incomplete,
		}
		switch p.Payload.Kind {
		case decoder.PayloadEther:
			pl.Protocol = p.Payload.EtherType.String()
		case decoder.PayloadIP:
			pl.Protocol = p.Payload.IPNumber.String()
		}
		if opts.ShowPayload && len(p.Payload.Data) > 0 {
			pl.Data = hex.EncodeToString(p.Payload.Data)
		}
		out.Payload = pl
	}
	return out
}

func summariseTransport(t *decoder.Transport) *Transport {
	switch t.Kind {
	case decoder.TransportUDP:
		h := t.UDP.Header
		return &Transport{Kind: t.Kind.String(), SrcPort: h.SrcPort(), DstPort: h.DstPort()}
	case decoder.TransportTCP:
		h := t.TCP.Header
		out := &Transport{
			Kind:    t.Kind.String(),
			SrcPort: h.SrcPort(),
			DstPort: h.DstPort(),
			Flags:   tcpFlags(h.Flags()),
			Seq:     h.Seq(),
			Ack:     h.Ack(),
		}
		it := h.OptionsIterator()
		for it.Next() {
			if opt := it.Option(); opt.Kind != decoder.TCPOptionKindNop {
				out.Options = append(out.Options, opt.String())
			}
		}
		if err := it.Err(); err != nil {
			out.OptionsError = err.Error()
		}
		return out
	case decoder.TransportICMPv4:
		return &Transport{Kind: t.Kind.String(), ICMP: &ICMP{Type: t.ICMPv4.Type(), Code: t.ICMPv4.Code()}}
	case decoder.TransportICMPv6:
		return &Transport{Kind: t.Kind.String(), ICMP: &ICMP{Type: t.ICMPv6.Type(), Code: t.ICMPv6.Code()}}
	}
	return nil
}

// ipv6ExtensionNames lists the present extensions in slot order.
func ipv6ExtensionNames(e decoder.IPv6Extensions) []string {
	var names []string
	if !e.HopByHop.IsZero() {
		names = append(names, "hop-by-hop")
	}
	if !e.DestinationOptions.IsZero() {
		names = append(names, "destination-options")
	}
	if !e.Routing.IsZero() {
		names = append(names, "routing")
	}
	if !e.Fragment.IsZero() {
		names = append(names, "fragment")
	}
	if !e.Auth.IsZero() {
		names = append(names, "authentication")
	}
	if !e.FinalDestinationOptions.IsZero() {
		names = append(names, "final-destination-options")
	}
	return names
}

func payloadKindName(k decoder.PayloadKind) string {
	switch k {
	case decoder.PayloadEther:
		return "ether"
	case decoder.PayloadIP:
		return "ip"
	case decoder.PayloadTransport:
		return "transport"
	}
	return "none"
}

var tcpFlagNames = []struct {
	flag uint16
	name string
}{
	{header.TCPFlagNS, "NS"},
	{header.TCPFlagCWR, "CWR"},
	{header.TCPFlagECE, "ECE"},
	{header.TCPFlagURG, "URG"},
	{header.TCPFlagACK, "ACK"},
	{header.TCPFlagPSH, "PSH"},
	{header.TCPFlagRST, "RST"},
	{header.TCPFlagSYN, "SYN"},
	{header.TCPFlagFIN, "FIN"},
}

func tcpFlags(f uint16) string {
	var names []string
	for _, n := range tcpFlagNames {
		if f&n.flag != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}
