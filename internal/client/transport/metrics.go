package transport

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "atmadmin"

// Metrics records classified request outcomes.
type Metrics struct {
	// RequestsTotal labels: method, kind (see Kind.String).
	RequestsTotal *prometheus.CounterVec
	// RequestDuration labels: method.
	RequestDuration *prometheus.HistogramVec
	// AuthEventsTotal counts published authentication failures.
	AuthEventsTotal prometheus.Counter
}

// NewMetrics registers the transport collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "requests_total",
				Help:      "API requests by method and classified outcome.",
			},
			[]string{"method", "kind"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "request_duration_seconds",
				Help:      "API round-trip latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		AuthEventsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "auth_events_total",
				Help:      "Authentication failures published to the session.",
			},
		),
	}
}

func (m *Metrics) observe(method string, kind Kind, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, kind.String()).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) authEvent() {
	if m == nil {
		return
	}
	m.AuthEventsTotal.Inc()
}
