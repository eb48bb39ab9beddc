package report

import (
	"firestige.xyz/hdrview/internal/core/decoder"
)

// verifyChecksums recomputes the IPv4 header checksum and the transport
// checksum of p. Checksums that cannot be recomputed are skipped: a UDP
// checksum of 0 over IPv4 (not computed by the sender) and transport
// headers over fragments, which decoding leaves undecoded anyway, and
// transport checksums over payloads a lax decode found cut short.
func verifyChecksums(p *decoder.SlicedPacket, depth int) []Checksum {
	var out []Checksum
	add := func(layer string, got, want uint16) {
		out = append(out, Checksum{Depth: depth, Layer: layer, Got: got, Want: want, Valid: got == want})
	}

	switch p.Net.Kind {
	case decoder.NetIPv4:
		ip := p.Net.IPv4.Header
		if want, err := ip.ToHeader().HeaderChecksum(); err == nil {
			add("ipv4", ip.HeaderChecksum(), want)
		}
		src, dst := ip.Source(), ip.Destination()
		if p.Payload.Incomplete {
			break
		}

		switch t := &p.Transport; t.Kind {
		case decoder.TransportUDP:
			if got := t.UDP.Header.Checksum(); got != 0 {
				if want, err := t.UDP.Header.ToHeader().ChecksumIPv4(src, dst, t.UDP.Payload); err == nil {
					add("udp", got, want)
				}
			}
		case decoder.TransportTCP:
			if want, err := t.TCP.Header.ToHeader().ChecksumIPv4(src, dst, t.TCP.Payload); err == nil {
				add("tcp", t.TCP.Header.Checksum(), want)
			}
		case decoder.TransportICMPv4:
			add("icmpv4", t.ICMPv4.Checksum(), t.ICMPv4.ToHeader().CalcChecksum(t.ICMPv4.Payload))
		}

	case decoder.NetIPv6:
		ip := p.Net.IPv6.Header
		src, dst := ip.Source(), ip.Destination()
		if p.Payload.Incomplete {
			break
		}

		switch t := &p.Transport; t.Kind {
		case decoder.TransportUDP:
			if want, err := t.UDP.Header.ToHeader().ChecksumIPv6(src, dst, t.UDP.Payload); err == nil {
				add("udp", t.UDP.Header.Checksum(), want)
			}
		case decoder.TransportTCP:
			if want, err := t.TCP.Header.ToHeader().ChecksumIPv6(src, dst, t.TCP.Payload); err == nil {
				add("tcp", t.TCP.Header.Checksum(), want)
			}
		case decoder.TransportICMPv6:
			if want, err := t.ICMPv6.ToHeader().CalcChecksum(src, dst, t.ICMPv6.Payload); err == nil {
				add("icmpv6", t.ICMPv6.Checksum(), want)
			}
		}
	}
	return out
}
