// Package core defines the decode error taxonomy, protocol numbers and the
// raw packet type shared by the decoder, the encoders and the pipeline.
package core

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every *LenError matches ErrPacketTooShort and every
// *HeaderError matches ErrMalformedHeader under errors.Is.
var (
	// Packet decoding errors
	ErrPacketTooShort   = errors.New("hdrview: packet too short")
	ErrMalformedHeader  = errors.New("hdrview: malformed header")
	ErrUnsupportedProto = errors.New("hdrview: unsupported protocol")

	// Pipeline errors
	ErrPipelineStopped = errors.New("hdrview: pipeline stopped")

	// Configuration errors
	ErrConfigInvalid = errors.New("hdrview: invalid configuration")
)

// DecodeError is implemented by *LenError and *HeaderError.
type DecodeError interface {
	error
	// FailedLayer returns the layer the error was detected in.
	FailedLayer() Layer
	// ByteOffset returns the offset of the failing layer, counted from the
	// start of the buffer handed to the decoder.
	ByteOffset() int
	decodeError()
}

// LenError reports that a window was too short for the header or payload
// it had to contain.
type LenError struct {
	// Required is the number of bytes the layer needs.
	Required int
	// Len is the number of bytes that were available.
	Len int
	// Source is what bounded the window.
	Source LenSource
	Layer  Layer
	Offset int
}

func (e *LenError) Error() string {
	return fmt.Sprintf("%s: need %d bytes, %s is %d (offset %d)",
		e.Layer, e.Required, e.Source, e.Len, e.Offset)
}

func (e *LenError) Is(target error) bool { return target == ErrPacketTooShort }

func (e *LenError) FailedLayer() Layer { return e.Layer }
func (e *LenError) ByteOffset() int    { return e.Offset }
func (*LenError) decodeError()         {}

// AddOffset returns a copy moved n bytes further into the buffer.
func (e LenError) AddOffset(n int) *LenError {
	e.Offset += n
	return &e
}

// Reason tells why a header's content failed validation.
type Reason uint8

const (
	// ReasonUnsupportedIPVersion: version nibble is neither 4 nor 6.
	ReasonUnsupportedIPVersion Reason = iota + 1
	// ReasonUnexpectedVersion: the version nibble does not match the header
	// kind that was requested.
	ReasonUnexpectedVersion
	// ReasonHeaderLenTooSmall: IPv4 IHL below 5.
	ReasonHeaderLenTooSmall
	// ReasonTotalLenTooSmall: IPv4 total length below the header length.
	ReasonTotalLenTooSmall
	// ReasonZeroPayloadLen: authentication header length byte is 0.
	ReasonZeroPayloadLen
	// ReasonHopByHopNotAtStart: hop-by-hop header after the first position.
	ReasonHopByHopNotAtStart
	// ReasonTooManyExtensions: an extension kind repeated or the chain
	// exceeded the maximum count.
	ReasonTooManyExtensions
	// ReasonDataOffsetTooSmall: TCP data offset below 5.
	ReasonDataOffsetTooSmall
)

func (r Reason) String() string {
	switch r {
	case ReasonUnsupportedIPVersion:
		return "unsupported IP version"
	case ReasonUnexpectedVersion:
		return "unexpected version"
	case ReasonHeaderLenTooSmall:
		return "header length smaller than minimum"
	case ReasonTotalLenTooSmall:
		return "total length smaller than header length"
	case ReasonZeroPayloadLen:
		return "payload length is zero"
	case ReasonHopByHopNotAtStart:
		return "hop-by-hop header not at start of chain"
	case ReasonTooManyExtensions:
		return "too many extension headers"
	case ReasonDataOffsetTooSmall:
		return "data offset smaller than minimum"
	default:
		return "unknown reason"
	}
}

// HeaderError reports a header whose fields are malformed. Value carries the
// offending field (version, IHL, total length, data offset, protocol number).
type HeaderError struct {
	Layer  Layer
	Reason Reason
	Value  uint32
	Offset int
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("%s: %s (value %d, offset %d)", e.Layer, e.Reason, e.Value, e.Offset)
}

func (e *HeaderError) Is(target error) bool { return target == ErrMalformedHeader }

func (e *HeaderError) FailedLayer() Layer { return e.Layer }
func (e *HeaderError) ByteOffset() int    { return e.Offset }
func (*HeaderError) decodeError()         {}

// AddOffset returns a copy moved n bytes further into the buffer.
func (e HeaderError) AddOffset(n int) *HeaderError {
	e.Offset += n
	return &e
}

// WithOffset moves a decode error n bytes further into the buffer. Other
// errors are returned unchanged.
func WithOffset(err error, n int) error {
	switch e := err.(type) {
	case *LenError:
		return e.AddOffset(n)
	case *HeaderError:
		return e.AddOffset(n)
	default:
		return err
	}
}

// WithLenSource replaces the source of a length error that was checked
// against the raw slice with src, the field that bounded the window.
func WithLenSource(err error, src LenSource) error {
	if e, ok := err.(*LenError); ok && e.Source == LenSourceSlice && src != LenSourceSlice {
		c := *e
		c.Source = src
		return &c
	}
	return err
}

// AsLenError returns err as a *LenError when it is one.
func AsLenError(err error) (*LenError, bool) {
	var e *LenError
	ok := errors.As(err, &e)
	return e, ok
}

// AsHeaderError returns err as a *HeaderError when it is one.
func AsHeaderError(err error) (*HeaderError, bool) {
	var e *HeaderError
	ok := errors.As(err, &e)
	return e, ok
}
