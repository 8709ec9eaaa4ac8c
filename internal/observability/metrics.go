package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ithmonitor"

// Webhook outcomes, used as the "outcome" label of WebhookRequests.
const (
	OutcomeStored            = "stored"
	OutcomeMalformed         = "malformed"
	OutcomeMissingIdentifier = "missing_identifier"
	OutcomeInvalidReading    = "invalid_reading"
	OutcomeStorageError      = "storage_error"
)

// Downlink outcomes, used as the "outcome" label of DownlinkRequests.
const (
	DownlinkSent           = "sent"
	DownlinkInvalid        = "invalid_request"
	DownlinkNotFound       = "not_found"
	DownlinkNotLinked      = "not_linked"
	DownlinkNoCredential   = "no_credential"
	DownlinkUpstreamError  = "upstream_error"
	DownlinkTransportError = "transport_error"
)

// Metrics holds the Prometheus collectors for ingestion, the sensor registry,
// fan-out sinks and the downlink relay.
type Metrics struct {
	WebhookRequests       *prometheus.CounterVec // labels: outcome
	IngestDuration        prometheus.Histogram
	SensorsAutoRegistered prometheus.Counter
	LastITH               *prometheus.GaugeVec   // labels: dev_eui
	SinkErrors            *prometheus.CounterVec // labels: sink

	DownlinkRequests *prometheus.CounterVec // labels: outcome
	DownlinkDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.WebhookRequests,
		m.IngestDuration,
		m.SensorsAutoRegistered,
		m.LastITH,
		m.SinkErrors,
		m.DownlinkRequests,
		m.DownlinkDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as
// many as they like without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		WebhookRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_requests_total",
			Help:      "Uplink webhook deliveries by outcome.",
		}, []string{"outcome"}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Time from webhook receipt to measurement stored.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		SensorsAutoRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensors_auto_registered_total",
			Help:      "Placeholder sensors created on first sighting of an EUI.",
		}),
		LastITH: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ith_last",
			Help:      "Most recent ITH value accepted per device.",
		}, []string{"dev_eui"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Best-effort fan-out failures by sink.",
		}, []string{"sink"}),
		DownlinkRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downlink_requests_total",
			Help:      "Downlink relay attempts by outcome.",
		}, []string{"outcome"}),
		DownlinkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "downlink_duration_seconds",
			Help:      "Network-server downlink push round-trip time.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}
