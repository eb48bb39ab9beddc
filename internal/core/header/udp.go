package header

import (
	"firestige.xyz/hdrview/internal/checksum"
	"firestige.xyz/hdrview/internal/core"
)

// UDPHeaderLen is the UDP header length.
const UDPHeaderLen = 8

// UDPHeader is a UDP header.
type UDPHeader struct {
	SrcPort uint16
	DstPort uint16
	// Length covers header and payload. Zero is tolerated by the decoder
	// for jumbograms.
	Length   uint16
	Checksum uint16
}

func (UDPHeader) Len() int { return UDPHeaderLen }

// SetPayloadLen derives Length.
func (h *UDPHeader) SetPayloadLen(n int) error {
	if n+UDPHeaderLen > maxPacketLength {
		return ErrLargePacket
	}
	h.Length = uint16(n + UDPHeaderLen)
	return nil
}

func (h UDPHeader) Marshal(buf []byte) error {
	if len(buf) < UDPHeaderLen {
		return ErrSmallBuffer
	}
	put16(buf[0:2], h.SrcPort)
	put16(buf[2:4], h.DstPort)
	put16(buf[4:6], h.Length)
	put16(buf[6:8], h.Checksum)
	return nil
}

func (h UDPHeader) sum(s checksum.Sum) checksum.Sum {
	return s.AddUint16(h.SrcPort).AddUint16(h.DstPort).AddUint16(h.Length)
}

// ChecksumIPv4 computes the checksum over an IPv4 pseudo header, the
// header and payload. The pseudo header uses Length. A computed zero is
// returned as 0xffff.
func (h UDPHeader) ChecksumIPv4(src, dst [4]byte, payload []byte) (uint16, error) {
	if len(payload)+UDPHeaderLen > maxPacketLength {
		return 0, ErrLargePacket
	}
	s := h.sum(ipv4PseudoSum(src, dst, core.IPNumberUDP, h.Length)).AddBytes(payload)
	return checksum.ToBigEndian(s.FinishNoZero()), nil
}

// ChecksumIPv6 computes the checksum over an IPv6 pseudo header, the
// header and payload. The pseudo header length is the real upper layer
// length so jumbograms with Length 0 are covered.
func (h UDPHeader) ChecksumIPv6(src, dst [16]byte, payload []byte) (uint16, error) {
	n := uint64(len(payload)) + UDPHeaderLen
	if n > 0xffffffff {
		return 0, ErrLargePacket
	}
	s := h.sum(ipv6PseudoSum(src, dst, core.IPNumberUDP, uint32(n))).AddBytes(payload)
	return checksum.ToBigEndian(s.FinishNoZero()), nil
}
