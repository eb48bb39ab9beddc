package core

import "time"

// RawPacket is a captured frame handed to the decoder. Data is borrowed from
// the source and must not be retained after processing.
type RawPacket struct {
	Data       []byte    // Raw frame data
	Timestamp  time.Time // Capture timestamp
	CaptureLen uint32    // Actual captured length
	OrigLen    uint32    // Original frame length
	LinkType   LinkType  // Capture link type, selects the decode entry point
	Index      uint64    // Position in the capture, starting at 1
}

// LinkType is the pcap link-layer header type of a capture.
type LinkType uint16

const (
	LinkTypeEthernet LinkType = 1
	LinkTypeRaw      LinkType = 101
	LinkTypeLinuxSLL LinkType = 113
	LinkTypeIPv4     LinkType = 228
	LinkTypeIPv6     LinkType = 229
)
