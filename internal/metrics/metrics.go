// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PacketsTotal counts packets read from a source by decode outcome
	PacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hdrview_packets_total",
			Help: "Total number of packets decoded, by outcome",
		},
		[]string{"source", "outcome"},
	)

	// DecodeErrorsTotal counts decode failures by the layer that failed
	DecodeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hdrview_decode_errors_total",
			Help: "Total number of decode errors, by failing layer and error type",
		},
		[]string{"source", "layer", "error_type"},
	)

	// TransportTotal counts decoded packets by innermost transport
	TransportTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hdrview_transport_total",
			Help: "Total number of decoded packets, by innermost transport header",
		},
		[]string{"source", "transport"},
	)

	// TunnelsTotal counts decapsulated tunnels by kind
	TunnelsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hdrview_tunnels_total",
			Help: "Total number of tunnels decapsulated, by kind",
		},
		[]string{"source", "kind"},
	)

	// DecodeLatencySeconds measures the time to decode one packet
	DecodeLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hdrview_decode_latency_seconds",
			Help:    "Latency of decoding one packet in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00000001, 2, 20), // 10ns to ~5ms
		},
		[]string{"source"},
	)

	// SinkErrorsTotal counts records the sink failed to write
	SinkErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hdrview_sink_errors_total",
			Help: "Total number of report records that could not be written",
		},
		[]string{"source"},
	)
)
