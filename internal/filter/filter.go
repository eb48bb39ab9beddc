// Package filter selects the packets a pipeline decodes.
package filter

import (
	"sync/atomic"

	"firestige.xyz/hdrview/internal/core"
)

// Filter reports whether a packet should be decoded.
type Filter interface {
	Match(pkt core.RawPacket) bool
}

// Chain matches when every filter in it matches. An empty chain matches
// everything.
type Chain struct {
	filters []Filter
}

func NewChain(filters ...Filter) *Chain {
	all := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			all = append(all, f)
		}
	}
	return &Chain{filters: all}
}

func (c *Chain) Match(pkt core.RawPacket) bool {
	for _, f := range c.filters {
		if !f.Match(pkt) {
			return false
		}
	}
	return true
}

// Len returns the number of filters in the chain.
func (c *Chain) Len() int {
	return len(c.filters)
}

// CounterFilter counts the packets another filter accepts and rejects.
type CounterFilter struct {
	inner    Filter
	accepted atomic.Uint64
	rejected atomic.Uint64
}

func NewCounterFilter(inner Filter) *CounterFilter {
	return &CounterFilter{inner: inner}
}

func (f *CounterFilter) Match(pkt core.RawPacket) bool {
	if f.inner == nil || f.inner.Match(pkt) {
		f.accepted.Add(1)
		return true
	}
	f.rejected.Add(1)
	return false
}

func (f *CounterFilter) Accepted() uint64 { return f.accepted.Load() }
func (f *CounterFilter) Rejected() uint64 { return f.rejected.Load() }
