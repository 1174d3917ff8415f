// Package metrics exposes Prometheus counters for the streaming client.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the streaming client.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Outbound audio
	FramesSent    prometheus.Counter
	FramesDropped prometheus.Counter
	BytesSent     prometheus.Counter

	// Connection
	ReconnectAttempts prometheus.Counter
	ConnectionState   prometheus.Gauge

	// Inbound
	Transcripts     *prometheus.CounterVec
	IgnoredMessages prometheus.Counter
}

// New creates the metrics on their own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_frames_sent_total",
			Help: "Total number of audio frames written to the socket",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_frames_dropped_total",
			Help: "Total number of audio frames dropped while the socket was not open",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_bytes_sent_total",
			Help: "Total number of wire bytes written to the socket",
		}),
		ReconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_reconnect_attempts_total",
			Help: "Total number of scheduled reconnect attempts",
		}),
		ConnectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stream_connection_state",
			Help: "Current connection state (0=disconnected, 1=connecting, 2=open, 3=closing)",
		}),
		Transcripts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_transcripts_total",
			Help: "Total number of transcript messages received by kind",
		}, []string{"kind"}),
		IgnoredMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_ignored_messages_total",
			Help: "Total number of inbound messages with an unrecognized shape",
		}),
	}

	reg.MustRegister(
		m.FramesSent,
		m.FramesDropped,
		m.BytesSent,
		m.ReconnectAttempts,
		m.ConnectionState,
		m.Transcripts,
		m.IgnoredMessages,
		collectors.NewGoCollector(),
	)

	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// FrameSent records one delivered frame of n bytes
func (m *Metrics) FrameSent(n int) {
	if m == nil {
		return
	}
	m.FramesSent.Inc()
	m.BytesSent.Add(float64(n))
}

// FrameDropped records one frame lost because the socket was not open
func (m *Metrics) FrameDropped() {
	if m == nil {
		return
	}
	m.FramesDropped.Inc()
}

// ReconnectScheduled records one scheduled reconnect
func (m *Metrics) ReconnectScheduled() {
	if m == nil {
		return
	}
	m.ReconnectAttempts.Inc()
}

// SetConnectionState records the numeric connection state
func (m *Metrics) SetConnectionState(state int) {
	if m == nil {
		return
	}
	m.ConnectionState.Set(float64(state))
}

// TranscriptReceived records one recognized transcript message
func (m *Metrics) TranscriptReceived(kind string) {
	if m == nil {
		return
	}
	m.Transcripts.WithLabelValues(kind).Inc()
}

// MessageIgnored records one unrecognized inbound message
func (m *Metrics) MessageIgnored() {
	if m == nil {
		return
	}
	m.IgnoredMessages.Inc()
}
