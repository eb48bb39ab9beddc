package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/hdrview/internal/core"
	"firestige.xyz/hdrview/internal/core/header"
)

func TestDecodeIPv4Basic(t *testing.T) {
	s, err := DecodeIPv4(ethIPv4UDP[14:])
	require.NoError(t, err)

	assert.Equal(t, uint8(4), s.Header.Version())
	assert.Equal(t, uint8(5), s.Header.IHL())
	assert.Equal(t, 20, s.Header.Len())
	assert.Equal(t, core.IPNumberUDP, s.Header.Protocol())
	assert.Empty(t, s.Header.Options())
	assert.False(t, s.Header.IsFragmenting())

	assert.Equal(t, core.IPNumberUDP, s.Payload.IPNumber)
	assert.Equal(t, core.LenSourceIPv4HeaderTotalLen, s.Payload.LenSource)
	assert.Len(t, s.Payload.Data, 12)
}

func TestDecodeIPv4Options(t *testing.T) {
	h := ipv4Hdr(t, core.IPNumberTCP, 0)
	h.Options = []byte{0x94, 0x04, 0x00, 0x00} // Router Alert
	require.NoError(t, h.SetPayloadLen(0))
	data := mustConcat(t, nil, h)

	s, err := DecodeIPv4(data)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), s.Header.IHL())
	assert.Equal(t, h.Options, s.Header.Options())
	assert.Empty(t, s.Payload.Data)
}

func TestDecodeIPv4HeaderErrors(t *testing.T) {
	valid := mustConcat(t, make([]byte, 4), ipv4Hdr(t, core.IPNumberUDP, 4))

	t.Run("ihl too small", func(t *testing.T) {
		data := append([]byte(nil), valid...)
		data[0] = 0x44
		_, err := DecodeIPv4(data)
		e := requireHeaderError(t, err)
		assert.Equal(t, core.LayerIPv4Header, e.Layer)
		assert.Equal(t, core.ReasonHeaderLenTooSmall, e.Reason)
		assert.Equal(t, uint32(4), e.Value)
	})

	t.Run("wrong version", func(t *testing.T) {
		data := append([]byte(nil), valid...)
		data[0] = 0x65
		_, err := DecodeIPv4(data)
		e := requireHeaderError(t, err)
		assert.Equal(t, core.ReasonUnexpectedVersion, e.Reason)
		assert.Equal(t, uint32(6), e.Value)
	})

	t.Run("total length below header length", func(t *testing.T) {
		h := ipv4Hdr(t, core.IPNumberUDP, 0)
		h.TotalLen = 19
		_, err := DecodeIPv4(mustConcat(t, nil, h))
		e := requireHeaderError(t, err)
		assert.Equal(t, core.ReasonTotalLenTooSmall, e.Reason)
		assert.Equal(t, uint32(19), e.Value)
	})

	t.Run("total length beyond buffer", func(t *testing.T) {
		_, err := DecodeIPv4(valid[:22])
		e := requireLenError(t, err)
		assert.Equal(t, core.LenError{Required: 24, Len: 22, Layer: core.LayerIPv4Packet}, *e)
	})

	t.Run("options truncated", func(t *testing.T) {
		data := append([]byte(nil), valid[:22]...)
		data[0] = 0x46
		_, err := DecodeIPv4(data)
		e := requireLenError(t, err)
		assert.Equal(t, core.LenError{Required: 24, Len: 22, Layer: core.LayerIPv4Header}, *e)
	})
}

func TestDecodeIPv4Auth(t *testing.T) {
	udp := udpHdr(t, 500, 500, 0)
	auth := header.IPAuthHeader{NextHeader: core.IPNumberUDP, SPI: 0x100, SequenceNumber: 7, ICV: []byte{1, 2, 3, 4}}
	ip := ipv4Hdr(t, core.IPNumberAuth, auth.Len()+udp.Len())

	pkt, err := FromIP(mustConcat(t, nil, ip, auth, udp))
	require.NoError(t, err)

	exts := pkt.Net.IPv4.Exts
	require.Equal(t, 1, exts.Count())
	assert.Equal(t, 16, exts.Auth.Len())
	assert.Equal(t, uint32(0x100), exts.Auth.SPI())
	assert.Equal(t, uint32(7), exts.Auth.SequenceNumber())
	assert.Equal(t, []byte{1, 2, 3, 4}, exts.Auth.ICV())
	assert.Equal(t, core.IPNumberUDP, pkt.Net.IPv4.Payload.IPNumber)
	assert.Equal(t, TransportUDP, pkt.Transport.Kind)
	assert.Equal(t, 20+16+8, pkt.Payload.Offset)
}

func TestDecodeIPv4AuthErrors(t *testing.T) {
	t.Run("second auth header", func(t *testing.T) {
		auth := header.IPAuthHeader{NextHeader: core.IPNumberAuth, ICV: make([]byte, 4)}
		tail := header.IPAuthHeader{NextHeader: core.IPNumberUDP, ICV: make([]byte, 4)}
		ip := ipv4Hdr(t, core.IPNumberAuth, auth.Len()+tail.Len())

		_, err := FromIP(mustConcat(t, nil, ip, auth, tail))
		e := requireHeaderError(t, err)
		assert.Equal(t, core.LayerIPAuthHeader, e.Layer)
		assert.Equal(t, core.ReasonTooManyExtensions, e.Reason)
		assert.Equal(t, 36, e.Offset)
	})

	t.Run("zero length", func(t *testing.T) {
		auth := header.IPAuthHeader{NextHeader: core.IPNumberUDP, ICV: make([]byte, 4)}
		ip := ipv4Hdr(t, core.IPNumberAuth, auth.Len())
		data := mustConcat(t, nil, ip, auth)
		data[21] = 0

		_, err := FromIP(data)
		e := requireHeaderError(t, err)
		assert.Equal(t, core.LayerIPAuthHeader, e.Layer)
		assert.Equal(t, core.ReasonZeroPayloadLen, e.Reason)
		assert.Equal(t, 20, e.Offset)
	})

	t.Run("bounded by total length", func(t *testing.T) {
		auth := header.IPAuthHeader{NextHeader: core.IPNumberUDP, ICV: make([]byte, 4)}
		ip := ipv4Hdr(t, core.IPNumberAuth, 8)
		data := mustConcat(t, nil, ip, auth)

		_, err := FromIP(data)
		e := requireLenError(t, err)
		assert.Equal(t, core.LenError{
			Required: 16,
			Len:      8,
			Source:   core.LenSourceIPv4HeaderTotalLen,
			Layer:    core.LayerIPAuthHeader,
			Offset:   20,
		}, *e)
	})
}

func TestDecodeIPv6Basic(t *testing.T) {
	h := ipv6Hdr(t, core.IPNumberUDP, 4)
	h.TrafficClass = 0xb8
	h.FlowLabel = 0x12345
	data := mustConcat(t, []byte{1, 2, 3, 4}, h)

	s, err := DecodeIPv6(data)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), s.Header.Version())
	assert.Equal(t, uint8(0xb8), s.Header.TrafficClass())
	assert.Equal(t, uint32(0x12345), s.Header.FlowLabel())
	assert.Equal(t, uint16(4), s.Header.PayloadLen())
	assert.Equal(t, uint8(64), s.Header.HopLimit())
	assert.Equal(t, testSrc6, s.Header.Source())
	assert.Equal(t, testDst6, s.Header.Destination())
	assert.Equal(t, 0, s.Exts.Count())
	assert.Equal(t, IPPayload{
		IPNumber:  core.IPNumberUDP,
		LenSource: core.LenSourceIPv6HeaderPayloadLen,
		Data:      []byte{1, 2, 3, 4},
	}, s.Payload)
}

func TestDecodeIPv6Lengths(t *testing.T) {
	t.Run("payload beyond buffer", func(t *testing.T) {
		data := mustConcat(t, make([]byte, 4), ipv6Hdr(t, core.IPNumberUDP, 10))
		_, err := DecodeIPv6(data)
		e := requireLenError(t, err)
		assert.Equal(t, core.LenError{Required: 50, Len: 44, Layer: core.LayerIPv6Packet}, *e)
	})

	t.Run("truncated header", func(t *testing.T) {
		data := mustConcat(t, nil, ipv6Hdr(t, core.IPNumberUDP, 0))
		_, err := DecodeIPv6(data[:39])
		e := requireLenError(t, err)
		assert.Equal(t, core.LenError{Required: 40, Len: 39, Layer: core.LayerIPv6Header}, *e)
	})

	t.Run("jumbogram", func(t *testing.T) {
		udp := header.UDPHeader{SrcPort: 1, DstPort: 2}
		data := mustConcat(t, []byte{5, 6, 7, 8}, ipv6Hdr(t, core.IPNumberUDP, 0), udp)

		pkt, err := FromIP(data)
		require.NoError(t, err)
		assert.Equal(t, core.LenSourceSlice, pkt.Net.IPv6.Payload.LenSource)
		assert.Equal(t, TransportUDP, pkt.Transport.Kind)
		assert.Equal(t, []byte{5, 6, 7, 8}, pkt.Payload.Data)
		assert.Equal(t, core.LenSourceSlice, pkt.Payload.LenSource)
	})

	t.Run("zero payload length without data", func(t *testing.T) {
		data := mustConcat(t, nil, ipv6Hdr(t, core.IPNumberUDP, 0))
		_, err := FromIP(data)
		e := requireLenError(t, err)
		assert.Equal(t, core.LenError{
			Required: 8,
			Len:      0,
			Source:   core.LenSourceIPv6HeaderPayloadLen,
			Layer:    core.LayerUDPHeader,
			Offset:   40,
		}, *e)
	})

	t.Run("extension truncated by payload length", func(t *testing.T) {
		data := mustConcat(t, make([]byte, 4), ipv6Hdr(t, core.IPNumberHopByHop, 4))
		_, err := FromIP(data)
		e := requireLenError(t, err)
		assert.Equal(t, core.LenError{
			Required: 8,
			Len:      4,
			Source:   core.LenSourceIPv6HeaderPayloadLen,
			Layer:    core.LayerIPv6HopByHopHeader,
			Offset:   40,
		}, *e)
	})
}

func TestDecodeIPv6FullChain(t *testing.T) {
	udp := udpHdr(t, 7, 9, 2)
	auth := header.IPAuthHeader{NextHeader: core.IPNumberIPv6Opts, SPI: 1, ICV: make([]byte, 4)}
	data := ipv6Packet(t, core.IPNumberHopByHop, []byte{0xaa, 0xbb},
		rawExt(core.IPNumberIPv6Opts),
		rawExt(core.IPNumberIPv6Route),
		rawExt(core.IPNumberIPv6Frag),
		header.IPv6FragmentHeader{NextHeader: core.IPNumberAuth, Identification: 42},
		auth,
		rawExt(core.IPNumberUDP),
		udp,
	)

	pkt, err := FromIP(data)
	require.NoError(t, err)

	exts := pkt.Net.IPv6.Exts
	assert.Equal(t, MaxIPv6Extensions, exts.Count())
	assert.False(t, exts.HopByHop.IsZero())
	assert.False(t, exts.DestinationOptions.IsZero())
	assert.False(t, exts.Routing.IsZero())
	assert.False(t, exts.FinalDestinationOptions.IsZero())
	assert.False(t, exts.Fragment.IsZero())
	assert.False(t, exts.Auth.IsZero())
	assert.Equal(t, 8+8+8+8+16+8, exts.Len())
	assert.Equal(t, uint32(42), exts.Fragment.Identification())
	assert.False(t, exts.IsFragmenting())

	assert.Equal(t, core.IPNumberUDP, pkt.Net.IPv6.Payload.IPNumber)
	require.Equal(t, TransportUDP, pkt.Transport.Kind)
	assert.Equal(t, 40+56+8, pkt.Payload.Offset)
	assert.Equal(t, []byte{0xaa, 0xbb}, pkt.Payload.Data)
}

func TestDecodeIPv6DestinationOptionsSlots(t *testing.T) {
	// Without a routing header a single destination options header takes
	// the first slot.
	data := ipv6Packet(t, core.IPNumberIPv6Opts, nil, rawExt(core.IPNumberIPv6NoNext))
	s, err := DecodeIPv6(data)
	require.NoError(t, err)
	assert.False(t, s.Exts.DestinationOptions.IsZero())
	assert.True(t, s.Exts.FinalDestinationOptions.IsZero())
	assert.Equal(t, core.IPNumberIPv6NoNext, s.Payload.IPNumber)

	data = ipv6Packet(t, core.IPNumberIPv6Route, nil,
		rawExt(core.IPNumberIPv6Opts), rawExt(core.IPNumberIPv6NoNext))
	s, err = DecodeIPv6(data)
	require.NoError(t, err)
	assert.True(t, s.Exts.DestinationOptions.IsZero())
	assert.False(t, s.Exts.FinalDestinationOptions.IsZero())
	assert.Equal(t, 2, s.Exts.Count())
}

func TestDecodeIPv6ChainErrors(t *testing.T) {
	tests := []struct {
		name   string
		first  core.IPNumber
		exts   []header.Header
		layer  core.Layer
		reason core.Reason
		offset int
	}{
		{
			name:   "hop-by-hop after destination options",
			first:  core.IPNumberIPv6Opts,
			exts:   []header.Header{rawExt(core.IPNumberHopByHop), rawExt(core.IPNumberUDP)},
			layer:  core.LayerIPv6HopByHopHeader,
			reason: core.ReasonHopByHopNotAtStart,
			offset: 48,
		},
		{
			name:   "repeated routing",
			first:  core.IPNumberIPv6Route,
			exts:   []header.Header{rawExt(core.IPNumberIPv6Route), rawExt(core.IPNumberUDP)},
			layer:  core.LayerIPv6RouteHeader,
			reason: core.ReasonTooManyExtensions,
			offset: 48,
		},
		{
			name:   "repeated destination options",
			first:  core.IPNumberIPv6Opts,
			exts:   []header.Header{rawExt(core.IPNumberIPv6Opts), rawExt(core.IPNumberUDP)},
			layer:  core.LayerIPv6DestOptionsHeader,
			reason: core.ReasonTooManyExtensions,
			offset: 48,
		},
		{
			name:  "repeated fragment",
			first: core.IPNumberIPv6Frag,
			exts: []header.Header{
				header.IPv6FragmentHeader{NextHeader: core.IPNumberIPv6Frag},
				header.IPv6FragmentHeader{NextHeader: core.IPNumberUDP},
			},
			layer:  core.LayerIPv6FragHeader,
			reason: core.ReasonTooManyExtensions,
			offset: 48,
		},
		{
			name:  "repeated auth",
			first: core.IPNumberAuth,
			exts: []header.Header{
				header.IPAuthHeader{NextHeader: core.IPNumberAuth, ICV: make([]byte, 4)},
				header.IPAuthHeader{NextHeader: core.IPNumberUDP, ICV: make([]byte, 4)},
			},
			layer:  core.LayerIPAuthHeader,
			reason: core.ReasonTooManyExtensions,
			offset: 56,
		},
		{
			name:  "seventh extension repeats destination options",
			first: core.IPNumberHopByHop,
			exts: []header.Header{
				rawExt(core.IPNumberIPv6Opts),
				rawExt(core.IPNumberIPv6Route),
				rawExt(core.IPNumberIPv6Frag),
				header.IPv6FragmentHeader{NextHeader: core.IPNumberAuth},
				header.IPAuthHeader{NextHeader: core.IPNumberIPv6Opts, ICV: make([]byte, 4)},
				rawExt(core.IPNumberIPv6Opts),
				rawExt(core.IPNumberUDP),
			},
			layer:  core.LayerIPv6DestOptionsHeader,
			reason: core.ReasonTooManyExtensions,
			offset: 96,
		},
		{
			name:  "cycle through routing",
			first: core.IPNumberHopByHop,
			exts: []header.Header{
				rawExt(core.IPNumberIPv6Route),
				rawExt(core.IPNumberIPv6Opts),
				rawExt(core.IPNumberIPv6Route),
			},
			layer:  core.LayerIPv6RouteHeader,
			reason: core.ReasonTooManyExtensions,
			offset: 64,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := ipv6Packet(t, tt.first, nil, tt.exts...)
			_, err := FromIP(data)
			e := requireHeaderError(t, err)
			assert.Equal(t, tt.layer, e.Layer)
			assert.Equal(t, tt.reason, e.Reason)
			assert.Equal(t, tt.offset, e.Offset)
		})
	}
}

func TestDecodeIPv6Fragment(t *testing.T) {
	frag := header.IPv6FragmentHeader{NextHeader: core.IPNumberUDP, MoreFragments: true, Identification: 9}
	data := ipv6Packet(t, core.IPNumberIPv6Frag, make([]byte, 16), frag)

	pkt, err := FromIP(data)
	require.NoError(t, err)
	assert.True(t, pkt.Net.IPv6.Exts.IsFragmenting())
	assert.Equal(t, TransportNone, pkt.Transport.Kind)
	assert.Equal(t, PayloadIP, pkt.Payload.Kind)
	assert.True(t, pkt.Payload.Fragmented)
	assert.Equal(t, core.IPNumberUDP, pkt.Payload.IPNumber)
	assert.Equal(t, 48, pkt.Payload.Offset)
	assert.Len(t, pkt.Payload.Data, 16)
}

func TestDecodeIPv6FragmentHeaderFields(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		offset      uint16
		more        bool
		fragmenting bool
	}{
		{"atomic", []byte{17, 0, 0x00, 0x00, 0, 0, 0, 1}, 0, false, false},
		{"reserved bits ignored", []byte{17, 0, 0x00, 0x06, 0, 0, 0, 1}, 0, false, false},
		{"more fragments", []byte{17, 0, 0x00, 0x01, 0, 0, 0, 1}, 0, true, true},
		{"offset", []byte{17, 0, 0x00, 0x08, 0, 0, 0, 1}, 1, false, true},
		{"max offset", []byte{17, 0, 0xff, 0xf9, 0, 0, 0, 1}, 0x1fff, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, rest, err := DecodeIPv6FragmentHeader(tt.data)
			require.NoError(t, err)
			assert.Empty(t, rest)
			assert.Equal(t, tt.offset, s.FragmentOffset())
			assert.Equal(t, tt.more, s.MoreFragments())
			assert.Equal(t, tt.fragmenting, s.IsFragmenting())
			assert.Equal(t, uint32(1), s.Identification())

			if tt.name == "reserved bits ignored" {
				return
			}
			b, err := header.Generate(s.ToHeader(), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.data, b)
		})
	}
}

func TestDecodeIPv6RawExtHeader(t *testing.T) {
	data := []byte{
		0x11, // Next Header: UDP
		0x01, // Hdr Ext Len: 1 (16 bytes)
		0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0,
		0xff, // Next header's data
	}
	s, rest, err := DecodeIPv6RawExtHeader(data)
	require.NoError(t, err)
	assert.Equal(t, 16, s.Len())
	assert.Equal(t, core.IPNumberUDP, s.NextHeader())
	assert.Len(t, s.Payload(), 14)
	assert.Equal(t, []byte{0xff}, rest)

	_, _, err = DecodeIPv6RawExtHeader(data[:12])
	e := requireLenError(t, err)
	assert.Equal(t, core.LenError{Required: 16, Len: 12, Layer: core.LayerIPv6ExtHeader}, *e)

	_, _, err = DecodeIPv6RawExtHeader(data[:1])
	e = requireLenError(t, err)
	assert.Equal(t, 8, e.Required)
}

func TestIsIPv6Extension(t *testing.T) {
	for _, n := range []core.IPNumber{
		core.IPNumberHopByHop, core.IPNumberIPv6Opts, core.IPNumberIPv6Route,
		core.IPNumberIPv6Frag, core.IPNumberAuth,
	} {
		assert.Truef(t, IsIPv6Extension(n), "%s", n)
	}
	for _, n := range []core.IPNumber{
		core.IPNumberTCP, core.IPNumberUDP, core.IPNumberICMPv6,
		core.IPNumberIPv6NoNext, core.IPNumberESP,
	} {
		assert.Falsef(t, IsIPv6Extension(n), "%s", n)
	}
}
