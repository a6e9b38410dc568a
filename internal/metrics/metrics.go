// Package metrics provides Prometheus metrics for the gateway's client
// streams, upstream multicast joins, and admission control.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "rtp2httpd"
)

// Metrics contains all Prometheus metrics for the gateway.
type Metrics struct {
	// Client stream metrics
	StreamsActive     prometheus.Gauge
	StreamsOpened     prometheus.Counter
	StreamsClosed     *prometheus.CounterVec
	StreamOpenLatency prometheus.Histogram

	// Admission control
	ClientsAdmitted prometheus.Counter
	ClientsRefused  prometheus.Counter

	// Relay data transfer
	BytesRelayed      *prometheus.CounterVec
	PacketsReceived   *prometheus.CounterVec
	PacketsDropped    *prometheus.CounterVec
	PacketsDuplicate  *prometheus.CounterVec
	PacketsOutOfOrder *prometheus.CounterVec

	// Upstream multicast
	UpstreamJoins        prometheus.Counter
	UpstreamJoinFailures *prometheus.CounterVec
	UpstreamJoinLatency  prometheus.Histogram

	// Request handling
	RequestErrors *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the default metrics instance.
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewMetrics creates a new Metrics instance with all metrics registered
// against the global Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a new Metrics instance with a custom registry.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		StreamsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams_active",
			Help:      "Number of currently active client streams",
		}),
		StreamsOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_opened_total",
			Help:      "Total number of client streams opened",
		}),
		StreamsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_closed_total",
			Help:      "Total client streams closed, by reason",
		}, []string{"reason"}),
		StreamOpenLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_open_latency_seconds",
			Help:      "Histogram of time from accepted connection to the start of relaying",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),

		ClientsAdmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clients_admitted_total",
			Help:      "Total clients admitted under the configured concurrency limit",
		}),
		ClientsRefused: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clients_refused_total",
			Help:      "Total clients refused with 503 because the concurrency limit was reached",
		}),

		BytesRelayed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_relayed_total",
			Help:      "Total payload bytes written to clients, by service path",
		}, []string{"service"}),
		PacketsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "Total upstream datagrams received, by service path",
		}, []string{"service"}),
		PacketsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_dropped_total",
			Help:      "Total datagrams dropped as malformed, by service path",
		}, []string{"service"}),
		PacketsDuplicate: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_duplicate_total",
			Help:      "Total RTP packets observed repeating the previous sequence number",
		}, []string{"service"}),
		PacketsOutOfOrder: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_out_of_order_total",
			Help:      "Total RTP packets observed with an unexpected sequence-number jump",
		}, []string{"service"}),

		UpstreamJoins: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_joins_total",
			Help:      "Total successful multicast group joins",
		}),
		UpstreamJoinFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_join_failures_total",
			Help:      "Total failed multicast group joins, by service path",
		}, []string{"service"}),
		UpstreamJoinLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_join_latency_seconds",
			Help:      "Histogram of multicast group join latency",
			Buckets:   []float64{.0001, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),

		RequestErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_errors_total",
			Help:      "Total malformed or unservable HTTP requests, by status",
		}, []string{"status"}),
	}
}

// RecordStreamOpen records a new client stream being admitted and opened.
func (m *Metrics) RecordStreamOpen(latencySeconds float64) {
	m.StreamsActive.Inc()
	m.StreamsOpened.Inc()
	m.ClientsAdmitted.Inc()
	m.StreamOpenLatency.Observe(latencySeconds)
}

// RecordStreamClose records a client stream ending, tagged with why.
func (m *Metrics) RecordStreamClose(reason string) {
	m.StreamsActive.Dec()
	m.StreamsClosed.WithLabelValues(reason).Inc()
}

// RecordClientRefused records a client refused admission (503).
func (m *Metrics) RecordClientRefused() {
	m.ClientsRefused.Inc()
}

// RecordBytesRelayed records payload bytes forwarded to a client.
func (m *Metrics) RecordBytesRelayed(service string, n int) {
	m.BytesRelayed.WithLabelValues(service).Add(float64(n))
}

// RecordPacketReceived records one upstream datagram received.
func (m *Metrics) RecordPacketReceived(service string) {
	m.PacketsReceived.WithLabelValues(service).Inc()
}

// RecordPacketDropped records one datagram rejected as malformed.
func (m *Metrics) RecordPacketDropped(service string) {
	m.PacketsDropped.WithLabelValues(service).Inc()
}

// RecordPacketDuplicate records one RTP packet with a repeated sequence number.
func (m *Metrics) RecordPacketDuplicate(service string) {
	m.PacketsDuplicate.WithLabelValues(service).Inc()
}

// RecordPacketOutOfOrder records one RTP packet with a sequence-number gap.
func (m *Metrics) RecordPacketOutOfOrder(service string) {
	m.PacketsOutOfOrder.WithLabelValues(service).Inc()
}

// RecordUpstreamJoin records a successful multicast group join.
func (m *Metrics) RecordUpstreamJoin(latencySeconds float64) {
	m.UpstreamJoins.Inc()
	m.UpstreamJoinLatency.Observe(latencySeconds)
}

// RecordUpstreamJoinFailure records a failed multicast group join.
func (m *Metrics) RecordUpstreamJoinFailure(service string) {
	m.UpstreamJoinFailures.WithLabelValues(service).Inc()
}

// RecordRequestError records a request the gateway could not service.
func (m *Metrics) RecordRequestError(status string) {
	m.RequestErrors.WithLabelValues(status).Inc()
}
