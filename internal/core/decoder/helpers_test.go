package decoder

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"firestige.xyz/hdrview/internal/core"
	"firestige.xyz/hdrview/internal/core/header"
)

var (
	testDstMAC = [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	testSrcMAC = [6]byte{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb}

	testSrc4 = [4]byte{192, 168, 1, 1}
	testDst4 = [4]byte{192, 168, 1, 2}

	testSrc6 = netip.MustParseAddr("2001:db8::1").As16()
	testDst6 = netip.MustParseAddr("2001:db8::2").As16()
)

// ethIPv4UDP is Ethernet II + IPv4 (total length 32) + UDP (length 12) + 4
// bytes of payload.
var ethIPv4UDP = []byte{
	// Ethernet II
	0x00, 0x11, 0x22, 0x33, 0x44, 0x55, // Destination
	0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb, // Source
	0x08, 0x00, // EtherType: IPv4
	// IPv4
	0x45,       // Version 4, IHL 5
	0x00,       // DSCP, ECN
	0x00, 0x20, // Total Length: 32
	0x12, 0x34, // Identification
	0x40, 0x00, // Flags: DF
	0x40,       // TTL: 64
	0x11,       // Protocol: UDP
	0x00, 0x00, // Checksum
	192, 168, 1, 1, // Src IP
	192, 168, 1, 2, // Dst IP
	// UDP
	0x30, 0x39, // Src Port: 12345
	0x00, 0x35, // Dst Port: 53
	0x00, 0x0c, // Length: 12
	0x00, 0x00, // Checksum
	0xde, 0xad, 0xbe, 0xef, // Payload
}

func mustConcat(t testing.TB, payload []byte, hs ...header.Header) []byte {
	t.Helper()
	b, err := header.Concat(payload, hs...)
	require.NoError(t, err)
	return b
}

func ethHdr(et core.EtherType) header.Ethernet2Header {
	return header.Ethernet2Header{Destination: testDstMAC, Source: testSrcMAC, EtherType: et}
}

func ipv4Hdr(t testing.TB, proto core.IPNumber, payloadLen int) header.IPv4Header {
	t.Helper()
	h := header.IPv4Header{TTL: 64, Protocol: proto, Source: testSrc4, Destination: testDst4}
	require.NoError(t, h.SetPayloadLen(payloadLen))
	return h
}

func ipv6Hdr(t testing.TB, next core.IPNumber, payloadLen int) header.IPv6Header {
	t.Helper()
	h := header.IPv6Header{NextHeader: next, HopLimit: 64, Source: testSrc6, Destination: testDst6}
	require.NoError(t, h.SetPayloadLen(payloadLen))
	return h
}

func udpHdr(t testing.TB, src, dst uint16, payloadLen int) header.UDPHeader {
	t.Helper()
	h := header.UDPHeader{SrcPort: src, DstPort: dst}
	require.NoError(t, h.SetPayloadLen(payloadLen))
	return h
}

// rawExt returns an 8 byte hop-by-hop, destination options or routing
// header pointing at next.
func rawExt(next core.IPNumber) header.IPv6RawExtHeader {
	return header.IPv6RawExtHeader{NextHeader: next, Payload: make([]byte, 6)}
}

// ipv6Packet builds an IPv6 packet whose extension headers are chained in
// the given order and end with proto.
func ipv6Packet(t testing.TB, first core.IPNumber, payload []byte, exts ...header.Header) []byte {
	t.Helper()
	n := len(payload)
	for _, e := range exts {
		n += e.Len()
	}
	hs := append([]header.Header{ipv6Hdr(t, first, n)}, exts...)
	return mustConcat(t, payload, hs...)
}

func requireLenError(t testing.TB, err error) *core.LenError {
	t.Helper()
	require.Error(t, err)
	e, ok := core.AsLenError(err)
	require.Truef(t, ok, "expected *core.LenError, got %T: %v", err, err)
	require.ErrorIs(t, err, core.ErrPacketTooShort)
	return e
}

func requireHeaderError(t testing.TB, err error) *core.HeaderError {
	t.Helper()
	require.Error(t, err)
	e, ok := core.AsHeaderError(err)
	require.Truef(t, ok, "expected *core.HeaderError, got %T: %v", err, err)
	require.ErrorIs(t, err, core.ErrMalformedHeader)
	return e
}
