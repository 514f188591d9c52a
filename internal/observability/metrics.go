// Package observability define las métricas Prometheus del relay de chat.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "biopaper"
	relaySubsystem   = "relay"
)

// Estados con los que termina un stream.
const (
	StatusSuccess         = "success"
	StatusUpstreamError   = "upstream_error"
	StatusPersistError    = "persist_error"
	StatusClientCancelled = "client_cancelled"
)

// Metrics agrupa contadores del relay. Todos los métodos aceptan receptor nil
// para que los tests y herramientas puedan omitirlas.
type Metrics struct {
	StreamsTotal    *prometheus.CounterVec
	DeltasTotal     prometheus.Counter
	MalformedFrames prometheus.Counter
	ActiveStreams   prometheus.Gauge
	StreamDuration  *prometheus.HistogramVec
}

// NewMetrics registra las métricas en reg. main usa un registry propio
// (prometheus.NewRegistry) que también expone /metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StreamsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: relaySubsystem,
			Name:      "streams_total",
			Help:      "Chat streams relayed, by final status.",
		}, []string{"status"}),
		DeltasTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: relaySubsystem,
			Name:      "deltas_total",
			Help:      "Content deltas forwarded to clients.",
		}),
		MalformedFrames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: relaySubsystem,
			Name:      "malformed_frames_total",
			Help:      "Upstream frames skipped because their payload was not valid JSON.",
		}),
		ActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: relaySubsystem,
			Name:      "active_streams",
			Help:      "Streams currently being relayed.",
		}),
		StreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: relaySubsystem,
			Name:      "stream_duration_seconds",
			Help:      "Wall time from upstream open to stream end.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"status"}),
	}
}

func (m *Metrics) StreamStarted() {
	if m == nil {
		return
	}
	m.ActiveStreams.Inc()
}

func (m *Metrics) StreamFinished(status string, started time.Time) {
	if m == nil {
		return
	}
	m.ActiveStreams.Dec()
	m.StreamsTotal.WithLabelValues(status).Inc()
	m.StreamDuration.WithLabelValues(status).Observe(time.Since(started).Seconds())
}

func (m *Metrics) DeltaForwarded() {
	if m == nil {
		return
	}
	m.DeltasTotal.Inc()
}

func (m *Metrics) FrameMalformed() {
	if m == nil {
		return
	}
	m.MalformedFrames.Inc()
}
