package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	KindLabel    = "kind"
	OutcomeLabel = "outcome"
	Succeeded    = "succeeded"
	Failed       = "failed"
)

// Metrics holds the Prometheus collectors for executed statements.
type Metrics struct {
	registry   *prometheus.Registry
	statements *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		statements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "litebrowse_statements_total",
				Help: "Monotonic count of statements executed against the open database",
			},
			[]string{KindLabel, OutcomeLabel},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "litebrowse_statement_duration_seconds",
				Help:    "Statement execution latency",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 9),
			},
			[]string{KindLabel},
		),
	}
	m.registry.MustRegister(m.statements, m.duration)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observe(kind string, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	outcome := Succeeded
	if failed {
		outcome = Failed
	}
	m.statements.WithLabelValues(kind, outcome).Inc()
	m.duration.WithLabelValues(kind).Observe(d.Seconds())
}
