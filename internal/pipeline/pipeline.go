// Package pipeline implements the packet processing pipeline engine.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"firestige.xyz/hdrview/internal/core"
	"firestige.xyz/hdrview/internal/core/decoder"
	"firestige.xyz/hdrview/internal/filter"
	"firestige.xyz/hdrview/internal/log"
	"firestige.xyz/hdrview/internal/metrics"
	"firestige.xyz/hdrview/internal/report"
)

// Source produces raw packets. Capture returns when the source is
// exhausted or ctx is done, and must not close output.
type Source interface {
	Name() string
	Capture(ctx context.Context, output chan<- core.RawPacket) error
}

// Sink receives one record per packet.
type Sink interface {
	Write(rec *report.Record) error
	Flush() error
}

// Pipeline reads packets from a source, decodes the ones its filter
// accepts and reports the result to a sink, one packet at a time.
type Pipeline struct {
	source        Source
	filter        filter.Filter
	decoder       *decoder.Decoder
	sink          Sink
	opts          report.Options
	statsInterval time.Duration
	metrics       *Metrics

	// Runtime state
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	captureErr error

	// Channel for backpressure control
	rawPacketChan chan core.RawPacket
}

// Config contains pipeline configuration.
type Config struct {
	Source        Source
	Filter        filter.Filter // nil accepts every packet
	Decoder       *decoder.Decoder
	Sink          Sink
	Report        report.Options
	BufferSize    int           // Raw packet channel buffer size
	StatsInterval time.Duration // Period of the running totals log, 0 disables
}

// New creates a new pipeline. A nil decoder decodes from the capture link
// type without tunnels.
func New(cfg Config) *Pipeline {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024 // Default buffer size
	}
	if cfg.Decoder == nil {
		cfg.Decoder = decoder.New(decoder.Config{})
	}

	return &Pipeline{
		source:        cfg.Source,
		filter:        cfg.Filter,
		decoder:       cfg.Decoder,
		sink:          cfg.Sink,
		opts:          cfg.Report,
		statsInterval: cfg.StatsInterval,
		metrics:       NewMetrics(),
		rawPacketChan: make(chan core.RawPacket, cfg.BufferSize),
	}
}

// Start starts the capture and processing goroutines.
func (p *Pipeline) Start(ctx context.Context) error {
	if p.source == nil {
		return fmt.Errorf("%w: pipeline has no source", core.ErrConfigInvalid)
	}
	if p.ctx != nil {
		return errors.New("pipeline already started")
	}
	p.ctx, p.cancel = context.WithCancel(ctx)

	log.GetLogger().WithField("source", p.source.Name()).Info("pipeline starting")

	p.wg.Add(1)
	go p.captureLoop()

	p.wg.Add(1)
	go p.processLoop()

	return nil
}

// Wait blocks until the source is exhausted and every packet it produced
// has been reported, or the pipeline is stopped. It flushes the sink and
// returns the capture error, if any.
func (p *Pipeline) Wait() error {
	p.wg.Wait()

	if p.sink != nil {
		if err := p.sink.Flush(); err != nil {
			log.GetLogger().WithError(err).Error("sink flush failed")
		}
	}
	p.logStats("pipeline stopped")
	return p.captureErr
}

// Stop stops the pipeline without draining queued packets.
func (p *Pipeline) Stop() error {
	if p.cancel == nil {
		return nil
	}
	log.GetLogger().WithField("source", p.source.Name()).Info("pipeline stopping")
	p.cancel()
	err := p.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Run starts the pipeline and waits for it to finish.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	return p.Wait()
}

// captureLoop reads packets from the source and sends them to processing.
func (p *Pipeline) captureLoop() {
	defer p.wg.Done()

	if err := p.source.Capture(p.ctx, p.rawPacketChan); err != nil {
		p.captureErr = err
		if p.ctx.Err() == nil {
			log.GetLogger().WithError(err).WithField("source", p.source.Name()).Error("capture failed")
		}
	}

	// Close channel when capture ends
	close(p.rawPacketChan)
}

// processLoop is the main processing loop.
func (p *Pipeline) processLoop() {
	defer p.wg.Done()

	var tick <-chan time.Time
	if p.statsInterval > 0 {
		ticker := time.NewTicker(p.statsInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-p.ctx.Done():
			return

		case <-tick:
			p.logStats("pipeline stats")

		case raw, ok := <-p.rawPacketChan:
			if !ok {
				// Channel closed, source exhausted
				return
			}

			p.metrics.Received.Add(1)
			if p.filter != nil && !p.filter.Match(raw) {
				p.metrics.Filtered.Add(1)
				metrics.PacketsTotal.WithLabelValues(p.source.Name(), "filtered").Inc()
				continue
			}
			if err := p.processPacket(raw); err != nil {
				log.GetLogger().WithError(err).WithField("index", raw.Index).Warn("report write failed")
			}
		}
	}
}

// processPacket decodes one packet and reports it. Decode errors are
// reported too; only sink failures are returned.
func (p *Pipeline) processPacket(raw core.RawPacket) error {
	src := p.source.Name()

	start := time.Now()
	res, err := p.decoder.Decode(raw)
	metrics.DecodeLatencySeconds.WithLabelValues(src).Observe(time.Since(start).Seconds())

	rec := report.Build(raw, res, err, p.opts)

	if err != nil {
		p.metrics.DecodeErrors.Add(1)
		metrics.PacketsTotal.WithLabelValues(src, "error").Inc()
		metrics.DecodeErrorsTotal.WithLabelValues(src, rec.Error.Layer, rec.Error.Type).Inc()
		if l := log.GetLogger(); l.IsDebugEnabled() {
			l.WithFields(map[string]interface{}{
				"index":  raw.Index,
				"layer":  rec.Error.Layer,
				"offset": rec.Error.Offset,
			}).Debugf("decode failed: %v", err)
		}
	} else if res.Stop != nil {
		p.metrics.Truncated.Add(1)
		metrics.PacketsTotal.WithLabelValues(src, "partial").Inc()
		metrics.DecodeErrorsTotal.WithLabelValues(src, rec.Stop.Layer, rec.Stop.Type).Inc()
	} else {
		p.metrics.Decoded.Add(1)
		metrics.PacketsTotal.WithLabelValues(src, "ok").Inc()
		metrics.TransportTotal.WithLabelValues(src, res.Innermost().Transport.Kind.String()).Inc()
	}

	for _, t := range res.Tunnels {
		p.metrics.Tunnels.Add(1)
		metrics.TunnelsTotal.WithLabelValues(src, t.Kind.String()).Inc()
	}
	for _, c := range rec.Checksums {
		if !c.Valid {
			p.metrics.BadChecksums.Add(1)
		}
	}

	if p.sink == nil {
		return nil
	}
	if err := p.sink.Write(&rec); err != nil {
		p.metrics.ReportErrors.Add(1)
		metrics.SinkErrorsTotal.WithLabelValues(src).Inc()
		return fmt.Errorf("report packet %d: %w", raw.Index, err)
	}
	p.metrics.Reported.Add(1)
	return nil
}

func (p *Pipeline) logStats(msg string) {
	s := p.Stats()
	log.GetLogger().WithFields(map[string]interface{}{
		"source":        p.source.Name(),
		"received":      s.Received,
		"filtered":      s.Filtered,
		"decoded":       s.Decoded,
		"decode_errors": s.DecodeErrors,
		"truncated":     s.Truncated,
		"tunnels":       s.Tunnels,
		"bad_checksums": s.BadChecksums,
		"reported":      s.Reported,
		"report_errors": s.ReportErrors,
	}).Info(msg)
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Received:     p.metrics.Received.Load(),
		Filtered:     p.metrics.Filtered.Load(),
		Decoded:      p.metrics.Decoded.Load(),
		DecodeErrors: p.metrics.DecodeErrors.Load(),
		Truncated:    p.metrics.Truncated.Load(),
		Tunnels:      p.metrics.Tunnels.Load(),
		BadChecksums: p.metrics.BadChecksums.Load(),
		Reported:     p.metrics.Reported.Load(),
		ReportErrors: p.metrics.ReportErrors.Load(),
	}
}

// Stats represents pipeline statistics.
type Stats struct {
	Received     uint64
	Filtered     uint64
	Decoded      uint64
	DecodeErrors uint64
	// Truncated counts packets a lax decoder reported only in part.
	Truncated    uint64
	Tunnels      uint64
	BadChecksums uint64
	Reported     uint64
	ReportErrors uint64
}
