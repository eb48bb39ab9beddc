// Package file reads packets from pcap and pcapng capture files.
package file

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/hdrview/internal/core"
	"firestige.xyz/hdrview/internal/log"
)

// pcapngMagic is the block type of a pcapng section header.
var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
}

// Stats are the running totals of a Source.
type Stats struct {
	Packets uint64
	Bytes   uint64
	Errors  uint64
}

// Source is a capture file opened for sequential reading.
type Source struct {
	name     string
	closer   io.Closer
	reader   packetReader
	linkType core.LinkType
	format   string

	index   uint64
	packets atomic.Uint64
	bytes   atomic.Uint64
	errors  atomic.Uint64
}

// Open opens a pcap or pcapng file, telling them apart by the leading magic.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file %s: %w", path, err)
	}
	s, err := NewSource(path, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// NewSource reads a capture from r. name identifies the source in logs
// and metrics.
func NewSource(name string, r io.Reader) (*Source, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(pcapngMagic))
	if err != nil {
		return nil, fmt.Errorf("failed to read capture header of %s: %w", name, err)
	}

	s := &Source{name: name}
	if bytes.Equal(magic, pcapngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to read pcapng header of %s: %w", name, err)
		}
		s.reader, s.linkType, s.format = ng, core.LinkType(ng.LinkType()), "pcapng"
	} else {
		pr, err := pcapgo.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to read pcap header of %s: %w", name, err)
		}
		s.reader, s.linkType, s.format = pr, core.LinkType(pr.LinkType()), "pcap"
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"source":    name,
		"format":    s.format,
		"link_type": uint16(s.linkType),
	}).Debug("capture opened")
	return s, nil
}

// Name returns the name the source was opened with.
func (s *Source) Name() string { return s.name }

// LinkType returns the link type declared by the capture header.
func (s *Source) LinkType() core.LinkType { return s.linkType }

// Format returns "pcap" or "pcapng".
func (s *Source) Format() string { return s.format }

// Next returns the next packet, or io.EOF after the last one. The packet
// data is owned by the caller.
func (s *Source) Next() (core.RawPacket, error) {
	data, ci, err := s.reader.ReadPacketData()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return core.RawPacket{}, io.EOF
		}
		s.errors.Add(1)
		return core.RawPacket{}, fmt.Errorf("failed to read packet %d of %s: %w", s.index+1, s.name, err)
	}

	s.index++
	s.packets.Add(1)
	s.bytes.Add(uint64(len(data)))
	return core.RawPacket{
		Data:       data,
		Timestamp:  ci.Timestamp,
		CaptureLen: uint32(ci.CaptureLength),
		OrigLen:    uint32(ci.Length),
		LinkType:   s.linkType,
		Index:      s.index,
	}, nil
}

// Capture sends every packet to output until the file ends or ctx is done.
// It does not close output.
func (s *Source) Capture(ctx context.Context, output chan<- core.RawPacket) error {
	for {
		pkt, err := s.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		select {
		case output <- pkt:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stats returns the running totals.
func (s *Source) Stats() Stats {
	return Stats{
		Packets: s.packets.Load(),
		Bytes:   s.bytes.Load(),
		Errors:  s.errors.Load(),
	}
}

// Close releases the underlying file, if the source opened one.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}
