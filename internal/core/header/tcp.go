package header

import (
	"firestige.xyz/hdrview/internal/checksum"
	"firestige.xyz/hdrview/internal/core"
)

const (
	// TCPMinHeaderLen is the header length without options.
	TCPMinHeaderLen = 20
	// TCPMaxHeaderLen is the header length with data offset 15.
	TCPMaxHeaderLen = 60
	// TCPMaxOptionsLen is the largest options section.
	TCPMaxOptionsLen = TCPMaxHeaderLen - TCPMinHeaderLen
)

// TCP flag bits in the order they appear in bytes 12 and 13.
const (
	TCPFlagFIN uint16 = 1 << iota
	TCPFlagSYN
	TCPFlagRST
	TCPFlagPSH
	TCPFlagACK
	TCPFlagURG
	TCPFlagECE
	TCPFlagCWR
	TCPFlagNS
)

// TCPHeader is a TCP header. The data offset is derived from Options.
type TCPHeader struct {
	SrcPort   uint16
	DstPort   uint16
	Seq       uint32
	Ack       uint32
	Flags     uint16
	Window    uint16
	Checksum  uint16
	UrgentPtr uint16
	// Options must be a multiple of 4 bytes, at most 40.
	Options []byte
}

func (h TCPHeader) Len() int { return TCPMinHeaderLen + len(h.Options) }

// DataOffset returns the header length in 32-bit words.
func (h TCPHeader) DataOffset() uint8 { return uint8(h.Len() / 4) }

// Has reports whether every bit in flag is set.
func (h TCPHeader) Has(flag uint16) bool { return h.Flags&flag == flag }

func (h TCPHeader) validate() error {
	if err := checkLen("tcp options length", len(h.Options), TCPMaxOptionsLen, 4); err != nil {
		return err
	}
	return checkMax("tcp flags", uint64(h.Flags), 0x1ff)
}

func (h TCPHeader) Marshal(buf []byte) error {
	if err := h.validate(); err != nil {
		return err
	}
	n := h.Len()
	if len(buf) < n {
		return ErrSmallBuffer
	}
	put16(buf[0:2], h.SrcPort)
	put16(buf[2:4], h.DstPort)
	put32(buf[4:8], h.Seq)
	put32(buf[8:12], h.Ack)
	put16(buf[12:14], uint16(h.DataOffset())<<12|h.Flags)
	put16(buf[14:16], h.Window)
	put16(buf[16:18], h.Checksum)
	put16(buf[18:20], h.UrgentPtr)
	copy(buf[20:n], h.Options)
	return nil
}

// sum adds the header with a zero checksum field.
func (h TCPHeader) sum(s checksum.Sum) checksum.Sum {
	var b [TCPMaxHeaderLen]byte
	c := h
	c.Checksum = 0
	// validated by the callers
	_ = c.Marshal(b[:])
	return s.AddBytes(b[:h.Len()])
}

// ChecksumIPv4 computes the checksum over an IPv4 pseudo header, the
// header and payload.
func (h TCPHeader) ChecksumIPv4(src, dst [4]byte, payload []byte) (uint16, error) {
	if err := h.validate(); err != nil {
		return 0, err
	}
	n := h.Len() + len(payload)
	if n > maxPacketLength {
		return 0, ErrLargePacket
	}
	s := h.sum(ipv4PseudoSum(src, dst, core.IPNumberTCP, uint16(n))).AddBytes(payload)
	return checksum.ToBigEndian(s.Finish()), nil
}

// ChecksumIPv6 computes the checksum over an IPv6 pseudo header, the
// header and payload.
func (h TCPHeader) ChecksumIPv6(src, dst [16]byte, payload []byte) (uint16, error) {
	if err := h.validate(); err != nil {
		return 0, err
	}
	n := h.Len() + len(payload)
	if uint64(n) > 0xffffffff {
		return 0, ErrLargePacket
	}
	s := h.sum(ipv6PseudoSum(src, dst, core.IPNumberTCP, uint32(n))).AddBytes(payload)
	return checksum.ToBigEndian(s.Finish()), nil
}
