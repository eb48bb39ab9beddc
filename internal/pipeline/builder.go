package pipeline

import (
	"time"

	"firestige.xyz/hdrview/internal/core/decoder"
	"firestige.xyz/hdrview/internal/filter"
	"firestige.xyz/hdrview/internal/report"
)

// Builder provides a fluent interface for building pipelines.
// This is an alternative to using Config directly.
type Builder struct {
	config Config
}

// NewBuilder creates a new pipeline builder.
func NewBuilder() *Builder {
	return &Builder{
		config: Config{
			BufferSize: 1024, // default
		},
	}
}

// WithSource sets the packet source.
func (b *Builder) WithSource(s Source) *Builder {
	b.config.Source = s
	return b
}

// WithDecoder sets the packet decoder.
func (b *Builder) WithDecoder(d *decoder.Decoder) *Builder {
	b.config.Decoder = d
	return b
}

// WithFilter sets the filter packets must match to be decoded.
func (b *Builder) WithFilter(f filter.Filter) *Builder {
	b.config.Filter = f
	return b
}

// WithSink sets the record sink.
func (b *Builder) WithSink(s Sink) *Builder {
	b.config.Sink = s
	return b
}

// WithReportOptions sets what records include.
func (b *Builder) WithReportOptions(opts report.Options) *Builder {
	b.config.Report = opts
	return b
}

// WithBufferSize sets the raw packet channel buffer size.
func (b *Builder) WithBufferSize(size int) *Builder {
	b.config.BufferSize = size
	return b
}

// WithStatsInterval sets how often running totals are logged.
func (b *Builder) WithStatsInterval(d time.Duration) *Builder {
	b.config.StatsInterval = d
	return b
}

// Build creates the pipeline.
func (b *Builder) Build() *Pipeline {
	return New(b.config)
}
