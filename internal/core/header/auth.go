package header

import "firestige.xyz/hdrview/internal/core"

const (
	// IPAuthMinLen is the authentication header without ICV.
	IPAuthMinLen = 12
	// IPAuthMaxLen is the largest authentication header.
	IPAuthMaxLen = (0xff + 2) * 4
	// IPAuthMaxICVLen is the largest integrity check value.
	IPAuthMaxICVLen = IPAuthMaxLen - IPAuthMinLen
)

// IPAuthHeader is the IP authentication header (RFC 4302), usable after
// both IPv4 and IPv6.
type IPAuthHeader struct {
	NextHeader     core.IPNumber
	SPI            uint32
	SequenceNumber uint32
	// ICV must be a multiple of 4 bytes.
	ICV []byte
}

func (h IPAuthHeader) Len() int { return IPAuthMinLen + len(h.ICV) }

func (h IPAuthHeader) Marshal(buf []byte) error {
	if err := checkLen("ip auth icv length", len(h.ICV), IPAuthMaxICVLen, 4); err != nil {
		return err
	}
	n := h.Len()
	if len(buf) < n {
		return ErrSmallBuffer
	}
	buf[0] = uint8(h.NextHeader)
	buf[1] = uint8(n/4 - 2)
	buf[2], buf[3] = 0, 0
	put32(buf[4:8], h.SPI)
	put32(buf[8:12], h.SequenceNumber)
	copy(buf[12:n], h.ICV)
	return nil
}
