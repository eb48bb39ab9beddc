package decoder

import (
	"fmt"

	"firestige.xyz/hdrview/internal/core"
)

// TCP option kinds (RFC 9293, RFC 7323, RFC 2018).
const (
	TCPOptionKindEnd           uint8 = 0
	TCPOptionKindNop           uint8 = 1
	TCPOptionKindMSS           uint8 = 2
	TCPOptionKindWindowScale   uint8 = 3
	TCPOptionKindSACKPermitted uint8 = 4
	TCPOptionKindSACK          uint8 = 5
	TCPOptionKindTimestamp     uint8 = 8
)

// Fixed option lengths, kind and length bytes included.
const (
	tcpOptionLenMSS           = 4
	tcpOptionLenWindowScale   = 3
	tcpOptionLenSACKPermitted = 2
	tcpOptionLenTimestamp     = 10
)

// MaxSACKBlocks is the number of blocks a SACK option can carry within the
// 40 bytes of TCP option space.
const MaxSACKBlocks = 4

// SACKBlock is one [Left, Right) range of a SACK option.
type SACKBlock struct {
	Left, Right uint32
}

// TCPOption is one decoded TCP option. Kind selects which fields are set.
type TCPOption struct {
	Kind        uint8
	MSS         uint16
	WindowScale uint8
	// SACK holds SACKLen blocks.
	SACK    [MaxSACKBlocks]SACKBlock
	SACKLen int
	TSVal   uint32
	TSEcr   uint32
}

// Blocks returns the SACK blocks of the option.
func (o TCPOption) Blocks() []SACKBlock { return o.SACK[:o.SACKLen] }

func (o TCPOption) String() string {
	switch o.Kind {
	case TCPOptionKindNop:
		return "nop"
	case TCPOptionKindMSS:
		return fmt.Sprintf("mss %d", o.MSS)
	case TCPOptionKindWindowScale:
		return fmt.Sprintf("wscale %d", o.WindowScale)
	case TCPOptionKindSACKPermitted:
		return "sackOK"
	case TCPOptionKindSACK:
		s := "sack"
		for _, b := range o.Blocks() {
			s += fmt.Sprintf(" %d-%d", b.Left, b.Right)
		}
		return s
	case TCPOptionKindTimestamp:
		return fmt.Sprintf("ts val %d ecr %d", o.TSVal, o.TSEcr)
	}
	return fmt.Sprintf("kind %d", o.Kind)
}

// TCPOptionReason tells why an option could not be read.
type TCPOptionReason uint8

const (
	// TCPOptionUnexpectedEnd: the option runs past the option space.
	TCPOptionUnexpectedEnd TCPOptionReason = iota + 1
	// TCPOptionUnexpectedSize: the length byte does not fit the kind.
	TCPOptionUnexpectedSize
	// TCPOptionUnknownKind: the kind is not one the iterator decodes.
	TCPOptionUnknownKind
)

// TCPOptionError reports an option that could not be read. Offset is the
// position of the option within the option bytes.
type TCPOptionError struct {
	Kind   uint8
	Reason TCPOptionReason
	// Size is the option's length byte, Expected the length the kind
	// needs and Len the bytes left.
	Size     uint8
	Expected int
	Len      int
	Offset   int
}

func (e *TCPOptionError) Error() string {
	switch e.Reason {
	case TCPOptionUnexpectedEnd:
		return fmt.Sprintf("tcp option kind %d at %d: need %d bytes, %d left", e.Kind, e.Offset, e.Expected, e.Len)
	case TCPOptionUnexpectedSize:
		return fmt.Sprintf("tcp option kind %d at %d: unexpected length %d", e.Kind, e.Offset, e.Size)
	default:
		return fmt.Sprintf("tcp option at %d: unknown kind %d", e.Offset, e.Kind)
	}
}

func (e *TCPOptionError) Is(target error) bool { return target == core.ErrMalformedHeader }

// TCPOptionsIterator reads TCP options one at a time without allocating:
//
//	it := tcp.Header.OptionsIterator()
//	for it.Next() {
//		opt := it.Option()
//		...
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
//
// Iteration ends at the end-of-options kind, at the end of the option
// bytes, or at the first option that cannot be read.
type TCPOptionsIterator struct {
	b   []byte
	off int
	opt TCPOption
	err error
}

// NewTCPOptionsIterator iterates over raw option bytes.
func NewTCPOptionsIterator(options []byte) TCPOptionsIterator {
	return TCPOptionsIterator{b: options}
}

// OptionsIterator iterates over the header's options.
func (s TCPHeaderSlice) OptionsIterator() TCPOptionsIterator {
	return NewTCPOptionsIterator(s.Options())
}

// Next reads the next option and reports whether there was one.
func (it *TCPOptionsIterator) Next() bool {
	if len(it.b) == 0 {
		return false
	}
	kind := it.b[0]
	n, err := it.read(kind)
	if err != nil || n == 0 {
		it.err = err
		it.off += len(it.b)
		it.b = it.b[len(it.b):]
		return false
	}
	it.off += n
	it.b = it.b[n:]
	return true
}

// read decodes the option of the given kind at the head of the remaining
// bytes and returns its length, 0 at the end of the option list.
func (it *TCPOptionsIterator) read(kind uint8) (int, error) {
	it.opt = TCPOption{Kind: kind}
	switch kind {
	case TCPOptionKindEnd:
		return 0, nil
	case TCPOptionKindNop:
		return 1, nil
	case TCPOptionKindMSS:
		if err := it.expectLen(tcpOptionLenMSS); err != nil {
			return 0, err
		}
		it.opt.MSS = be16(it.b[2:4])
		return tcpOptionLenMSS, nil
	case TCPOptionKindWindowScale:
		if err := it.expectLen(tcpOptionLenWindowScale); err != nil {
			return 0, err
		}
		it.opt.WindowScale = it.b[2]
		return tcpOptionLenWindowScale, nil
	case TCPOptionKindSACKPermitted:
		if err := it.expectLen(tcpOptionLenSACKPermitted); err != nil {
			return 0, err
		}
		return tcpOptionLenSACKPermitted, nil
	case TCPOptionKindSACK:
		return it.readSACK()
	case TCPOptionKindTimestamp:
		if err := it.expectLen(tcpOptionLenTimestamp); err != nil {
			return 0, err
		}
		it.opt.TSVal = be32(it.b[2:6])
		it.opt.TSEcr = be32(it.b[6:10])
		return tcpOptionLenTimestamp, nil
	}
	return 0, &TCPOptionError{Kind: kind, Reason: TCPOptionUnknownKind, Len: len(it.b), Offset: it.off}
}

// expectLen checks a fixed-length option.
func (it *TCPOptionsIterator) expectLen(n int) error {
	if len(it.b) < n {
		return &TCPOptionError{Kind: it.b[0], Reason: TCPOptionUnexpectedEnd, Expected: n, Len: len(it.b), Offset: it.off}
	}
	if int(it.b[1]) != n {
		return &TCPOptionError{Kind: it.b[0], Reason: TCPOptionUnexpectedSize, Size: it.b[1], Expected: n, Len: len(it.b), Offset: it.off}
	}
	return nil
}

// readSACK reads a SACK option of one to four blocks.
func (it *TCPOptionsIterator) readSACK() (int, error) {
	if len(it.b) < 2 {
		return 0, &TCPOptionError{Kind: TCPOptionKindSACK, Reason: TCPOptionUnexpectedEnd, Expected: 2, Len: len(it.b), Offset: it.off}
	}
	size := it.b[1]
	blocks := (int(size) - 2) / 8
	if size < 10 || (size-2)%8 != 0 || blocks > MaxSACKBlocks {
		return 0, &TCPOptionError{Kind: TCPOptionKindSACK, Reason: TCPOptionUnexpectedSize, Size: size, Len: len(it.b), Offset: it.off}
	}
	if len(it.b) < int(size) {
		return 0, &TCPOptionError{Kind: TCPOptionKindSACK, Reason: TCPOptionUnexpectedEnd, Expected: int(size), Len: len(it.b), Offset: it.off}
	}
	for i := 0; i < blocks; i++ {
		b := it.b[2+i*8:]
		it.opt.SACK[i] = SACKBlock{Left: be32(b[0:4]), Right: be32(b[4:8])}
	}
	it.opt.SACKLen = blocks
	return int(size), nil
}

// Option returns the option read by the last successful Next.
func (it *TCPOptionsIterator) Option() TCPOption { return it.opt }

// Err returns the error that ended the iteration, if any.
func (it *TCPOptionsIterator) Err() error { return it.err }

// Rest returns the option bytes not read yet.
func (it *TCPOptionsIterator) Rest() []byte { return it.b }
