package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"firestige.xyz/hdrview/internal/core"
	"firestige.xyz/hdrview/internal/core/decoder"
	"firestige.xyz/hdrview/internal/core/header"
)

var (
	dstMAC = [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	srcMAC = [6]byte{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb}
	srcIP  = [4]byte{192, 168, 1, 1}
	dstIP  = [4]byte{192, 168, 1, 2}
)

func ipv4Over(t *testing.T, proto core.IPNumber, payloadLen int) header.IPv4Header {
	t.Helper()
	h := header.IPv4Header{TTL: 64, Protocol: proto, Source: srcIP, Destination: dstIP}
	require.NoError(t, h.SetPayloadLen(payloadLen))
	return h
}

// udpFrame is Ethernet II + IPv4 + UDP with valid checksums.
func udpFrame(t *testing.T, dstPort uint16, payload []byte) []byte {
	t.Helper()
	udp := header.UDPHeader{SrcPort: 12345, DstPort: dstPort}
	require.NoError(t, udp.SetPayloadLen(len(payload)))
	sum, err := udp.ChecksumIPv4(srcIP, dstIP, payload)
	require.NoError(t, err)
	udp.Checksum = sum

	eth := header.Ethernet2Header{Destination: dstMAC, Source: srcMAC, EtherType: core.EtherTypeIPv4}
	b, err := header.Concat(payload, eth, ipv4Over(t, core.IPNumberUDP, udp.Len()+len(payload)), udp)
	require.NoError(t, err)
	return b
}

// tcpFrame is Ethernet II + IPv4 + TCP (ACK|PSH) with valid checksums.
func tcpFrame(t *testing.T, payload []byte) []byte {
	t.Helper()
	tcp := header.TCPHeader{
		SrcPort: 443,
		DstPort: 50000,
		Seq:     1000,
		Ack:     2000,
		Flags:   header.TCPFlagACK | header.TCPFlagPSH,
		Window:  512,
	}
	sum, err := tcp.ChecksumIPv4(srcIP, dstIP, payload)
	require.NoError(t, err)
	tcp.Checksum = sum

	eth := header.Ethernet2Header{Destination: dstMAC, Source: srcMAC, EtherType: core.EtherTypeIPv4}
	b, err := header.Concat(payload, eth, ipv4Over(t, core.IPNumberTCP, tcp.Len()+len(payload)), tcp)
	require.NoError(t, err)
	return b
}

func decode(t *testing.T, data []byte) (decoder.Result, error) {
	t.Helper()
	d := decoder.New(decoder.Config{Tunnel: decoder.DefaultTunnelConfig()})
	return d.Decode(core.RawPacket{Data: data, LinkType: core.LinkTypeEthernet})
}

func TestBuildUDP(t *testing.T) {
	data := udpFrame(t, 53, []byte{0xde, 0xad, 0xbe, 0xef})
	res, err := decode(t, data)
	require.NoError(t, err)

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	raw := core.RawPacket{Data: data, Index: 3, Timestamp: ts}
	rec := Build(raw, res, nil, Options{ShowPayload: true, VerifyChecksums: true})

	want := Record{
		Index:  3,
		Time:   "2024-05-01T12:00:00Z",
		Length: 46,
		Packet: Packet{
			Link: &Link{Src: "66:77:88:99:aa:bb", Dst: "00:11:22:33:44:55", EtherType: "IPv4"},
			Net: &Net{
				Version:  4,
				Src:      "192.168.1.1",
				Dst:      "192.168.1.2",
				Protocol: "UDP",
				TTL:      64,
			},
			Transport: &Transport{Kind: "udp", SrcPort: 12345, DstPort: 53},
			Payload:   &Payload{Kind: "transport", Offset: 42, Len: 4, Data: "deadbeef"},
		},
		Checksums: []Checksum{
			{Layer: "ipv4", Got: res.Packet.Net.IPv4.Header.HeaderChecksum(), Want: res.Packet.Net.IPv4.Header.HeaderChecksum(), Valid: true},
			{Layer: "udp", Got: res.Packet.Transport.UDP.Header.Checksum(), Want: res.Packet.Transport.UDP.Header.Checksum(), Valid: true},
		},
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("Build() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildBadChecksum(t *testing.T) {
	data := udpFrame(t, 53, []byte{0xde, 0xad, 0xbe, 0xef})
	data[len(data)-1] ^= 0xff

	res, err := decode(t, data)
	require.NoError(t, err)
	rec := Build(core.RawPacket{Data: data}, res, nil, Options{VerifyChecksums: true})

	require.Len(t, rec.Checksums, 2)
	assert.True(t, rec.Checksums[0].Valid)
	assert.False(t, rec.Checksums[1].Valid)
	assert.NotEqual(t, rec.Checksums[1].Got, rec.Checksums[1].Want)
	assert.Empty(t, rec.Payload.Data)
}

func TestBuildSkipsZeroUDPChecksum(t *testing.T) {
	data := udpFrame(t, 53, []byte{1, 2})
	data[40], data[41] = 0, 0

	res, err := decode(t, data)
	require.NoError(t, err)
	rec := Build(core.RawPacket{Data: data}, res, nil, Options{VerifyChecksums: true})

	require.Len(t, rec.Checksums, 1)
	assert.Equal(t, "ipv4", rec.Checksums[0].Layer)
}

func TestBuildTunnel(t *testing.T) {
	inner := tcpFrame(t, []byte("hello"))
	vxlan := append([]byte{0x08, 0x00, 0x00, 0x00, 0x00, 0x12, 0x34, 0x00}, inner...)
	data := udpFrame(t, decoder.DefaultVXLANPort, vxlan)

	res, err := decode(t, data)
	require.NoError(t, err)
	rec := Build(core.RawPacket{Data: data}, res, nil, Options{VerifyChecksums: true})

	require.Len(t, rec.Tunnels, 1)
	tun := rec.Tunnels[0]
	assert.Equal(t, "vxlan", tun.Kind)
	assert.Equal(t, 42, tun.Offset)
	require.NotNil(t, tun.VNI)
	assert.Equal(t, uint32(0x1234), *tun.VNI)

	require.NotNil(t, tun.Inner.Transport)
	assert.Equal(t, &Transport{Kind: "tcp", SrcPort: 443, DstPort: 50000, Flags: "ACK|PSH", Seq: 1000, Ack: 2000}, tun.Inner.Transport)
	assert.Equal(t, &Payload{Kind: "transport", Offset: 104, Len: 5}, tun.Inner.Payload)

	var layers []string
	for _, c := range rec.Checksums {
		assert.True(t, c.Valid, "%s@%d", c.Layer, c.Depth)
		layers = append(layers, fmt.Sprintf("%s@%d", c.Layer, c.Depth))
	}
	assert.Equal(t, []string{"ipv4@0", "udp@0", "ipv4@1", "tcp@1"}, layers)
}

func TestBuildIPv6Extensions(t *testing.T) {
	ip := header.IPv6Header{NextHeader: core.IPNumberHopByHop, HopLimit: 32, Source: [16]byte{0x20, 0x01, 0x0d, 0xb8, 15: 1}, Destination: [16]byte{0x20, 0x01, 0x0d, 0xb8, 15: 2}}
	hbh := header.IPv6RawExtHeader{NextHeader: core.IPNumberIPv6Frag, Payload: make([]byte, 6)}
	frag := header.IPv6FragmentHeader{NextHeader: core.IPNumberUDP, FragmentOffset: 10, Identification: 7}
	require.NoError(t, ip.SetPayloadLen(hbh.Len()+frag.Len()+3))
	data, err := header.Concat([]byte{1, 2, 3}, ip, hbh, frag)
	require.NoError(t, err)

	pkt, err := decoder.FromIP(data)
	require.NoError(t, err)
	rec := Build(core.RawPacket{Data: data}, decoder.Result{Packet: pkt}, nil, Options{VerifyChecksums: true})

	require.NotNil(t, rec.Net)
	assert.Equal(t, 6, rec.Net.Version)
	assert.Equal(t, "2001:db8::1", rec.Net.Src)
	assert.Equal(t, []string{"hop-by-hop", "fragment"}, rec.Net.Extensions)
	assert.True(t, rec.Net.Fragmented)
	assert.Nil(t, rec.Transport)
	assert.Equal(t, &Payload{Kind: "ip", Offset: 56, Len: 3, Protocol: "UDP", Fragmented: true}, rec.Payload)
	assert.Empty(t, rec.Checksums)
}

func TestBuildError(t *testing.T) {
	data := udpFrame(t, 53, nil)[:20]
	res, err := decode(t, data)
	require.Error(t, err)

	rec := Build(core.RawPacket{Data: data}, res, err, Options{})
	require.NotNil(t, rec.Error)
	assert.Equal(t, "length", rec.Error.Type)
	assert.Equal(t, core.LayerIPv4Header.String(), rec.Error.Layer)
	assert.Equal(t, 14, rec.Error.Offset)
	assert.Nil(t, rec.Net)
}

func TestBuildLaxStop(t *testing.T) {
	data := udpFrame(t, 53, []byte{0xde, 0xad, 0xbe, 0xef})[:40]
	d := decoder.New(decoder.Config{Lax: true, Tunnel: decoder.DefaultTunnelConfig()})
	res, err := d.Decode(core.RawPacket{Data: data, LinkType: core.LinkTypeEthernet})
	require.NoError(t, err)

	rec := Build(core.RawPacket{Data: data}, res, nil, Options{})
	assert.Nil(t, rec.Error)
	require.NotNil(t, rec.Stop)
	assert.Equal(t, "length", rec.Stop.Type)
	assert.Equal(t, core.LayerUDPHeader.String(), rec.Stop.Layer)
	assert.Equal(t, 34, rec.Stop.Offset)
	require.NotNil(t, rec.Net)
	assert.Nil(t, rec.Transport)
	assert.Equal(t, &Payload{Kind: "ip", Offset: 34, Len: 6, Protocol: "UDP", Incomplete: true}, rec.Payload)
}

func TestBuildLaxSkipsCutChecksums(t *testing.T) {
	data := udpFrame(t, 53, []byte{0xde, 0xad, 0xbe, 0xef})[:44]
	d := decoder.New(decoder.Config{Lax: true})
	res, err := d.Decode(core.RawPacket{Data: data, LinkType: core.LinkTypeEthernet})
	require.NoError(t, err)
	require.NoError(t, res.Stop)

	rec := Build(core.RawPacket{Data: data}, res, nil, Options{VerifyChecksums: true})
	require.NotNil(t, rec.Transport)
	assert.Equal(t, "udp", rec.Transport.Kind)
	assert.True(t, rec.Payload.Incomplete)
	require.Len(t, rec.Checksums, 1)
	assert.Equal(t, "ipv4", rec.Checksums[0].Layer)
	assert.True(t, rec.Checksums[0].Valid)
}

func TestBuildTCPOptions(t *testing.T) {
	tcp := header.TCPHeader{
		SrcPort: 50000,
		DstPort: 443,
		Flags:   header.TCPFlagSYN,
		Window:  64240,
		Options: []byte{
			0x02, 0x04, 0x05, 0xb4, // mss 1460
			0x01, 0x03, 0x03, 0x07, // nop, wscale 7
		},
	}
	eth := header.Ethernet2Header{Destination: dstMAC, Source: srcMAC, EtherType: core.EtherTypeIPv4}
	data, err := header.Concat(nil, eth, ipv4Over(t, core.IPNumberTCP, tcp.Len()), tcp)
	require.NoError(t, err)

	res, err := decode(t, data)
	require.NoError(t, err)
	rec := Build(core.RawPacket{Data: data}, res, nil, Options{})
	require.NotNil(t, rec.Transport)
	assert.Equal(t, []string{"mss 1460", "wscale 7"}, rec.Transport.Options)
	assert.Empty(t, rec.Transport.OptionsError)

	// Unknown option kind.
	data[len(data)-4] = 0x1e
	res, err = decode(t, data)
	require.NoError(t, err)
	rec = Build(core.RawPacket{Data: data}, res, nil, Options{})
	assert.Equal(t, []string{"mss 1460"}, rec.Transport.Options)
	assert.Contains(t, rec.Transport.OptionsError, "unknown kind 30")
}

func TestNewError(t *testing.T) {
	assert.Nil(t, NewError(nil))

	e := NewError(fmt.Errorf("decapsulate gre: %w", &core.HeaderError{
		Layer:  core.LayerIPv4Header,
		Reason: core.ReasonHeaderLenTooSmall,
		Offset: 38,
	}))
	assert.Equal(t, "header", e.Type)
	assert.Equal(t, 38, e.Offset)
	assert.True(t, strings.HasPrefix(e.Message, "decapsulate gre: "))

	e = NewError(errors.New("link type 147"))
	assert.Equal(t, &Error{Message: "link type 147", Type: "other"}, e)
}

func TestTextWriter(t *testing.T) {
	data := udpFrame(t, 53, []byte{0xde, 0xad, 0xbe, 0xef})
	res, err := decode(t, data)
	require.NoError(t, err)
	rec := Build(core.RawPacket{Data: data, Index: 1}, res, nil, Options{})

	var buf bytes.Buffer
	w, err := NewWriter("text", &buf)
	require.NoError(t, err)
	require.NoError(t, w.Write(&rec))
	require.NoError(t, w.Flush())

	assert.Equal(t, "#1 len=46"+
		" | eth 66:77:88:99:aa:bb > 00:11:22:33:44:55 IPv4"+
		" | ipv4 192.168.1.1 > 192.168.1.2 UDP ttl=64"+
		" | udp 12345 > 53"+
		" | payload transport offset=42 len=4\n", buf.String())
}

func TestTextWriterTunnelAndError(t *testing.T) {
	vni := uint32(9)
	rec := Record{
		Length: 60,
		Tunnels: []Tunnel{{
			Kind:   "geneve",
			Offset: 42,
			VNI:    &vni,
			Inner:  Packet{Transport: &Transport{Kind: "icmpv4", ICMP: &ICMP{Type: 8}}},
		}},
		Checksums: []Checksum{{Depth: 1, Layer: "icmpv4", Got: 0x1234, Want: 0xabcd}},
		Error:     &Error{Message: "boom", Type: "other"},
	}

	var buf bytes.Buffer
	w, err := NewWriter("", &buf)
	require.NoError(t, err)
	require.NoError(t, w.Write(&rec))
	require.NoError(t, w.Flush())

	assert.Equal(t, "len=60 | checksums icmpv4@1=bad(0x1234!=0xabcd) | error: boom\n"+
		"  -> geneve offset=42 vni=9 | icmpv4 type=8 code=0\n", buf.String())
}

func TestTextWriterLax(t *testing.T) {
	rec := Record{
		Length: 40,
		Packet: Packet{
			Transport: &Transport{Kind: "tcp", SrcPort: 1, DstPort: 2, Flags: "SYN", Options: []string{"mss 1460", "sackOK"}},
			Payload:   &Payload{Kind: "transport", Offset: 54, Len: 3, Incomplete: true},
		},
		Stop: &Error{Message: "cut", Type: "length"},
	}

	var buf bytes.Buffer
	w, err := NewWriter("text", &buf)
	require.NoError(t, err)
	require.NoError(t, w.Write(&rec))
	require.NoError(t, w.Flush())

	assert.Equal(t, "len=40 | tcp 1 > 2 [SYN] <mss 1460,sackOK>"+
		" | payload transport offset=54 len=3 incomplete | stop: cut\n", buf.String())
}

func TestStructuredWriters(t *testing.T) {
	inner := tcpFrame(t, []byte("hello"))
	vxlan := append([]byte{0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 0x2a, 0x00}, inner...)
	data := udpFrame(t, decoder.DefaultVXLANPort, vxlan)
	res, err := decode(t, data)
	require.NoError(t, err)
	rec := Build(core.RawPacket{Data: data, Index: 2}, res, nil, Options{VerifyChecksums: true, ShowPayload: true})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		w, err := NewWriter("json", &buf)
		require.NoError(t, err)
		require.NoError(t, w.Write(&rec))
		require.NoError(t, w.Write(&rec))
		require.NoError(t, w.Flush())

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		assert.Contains(t, lines[0], `"transport":{"kind":"udp","src_port":12345,"dst_port":4789}`)

		var back Record
		require.NoError(t, json.Unmarshal([]byte(lines[1]), &back))
		if diff := cmp.Diff(rec, back); diff != "" {
			t.Errorf("json mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		w, err := NewWriter("yaml", &buf)
		require.NoError(t, err)
		require.NoError(t, w.Write(&rec))
		require.NoError(t, w.Flush())

		assert.Contains(t, buf.String(), "vni: 42")
		var back Record
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
		if diff := cmp.Diff(rec, back); diff != "" {
			t.Errorf("yaml mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestNewWriterUnknownFormat(t *testing.T) {
	_, err := NewWriter("xml", &bytes.Buffer{})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}
