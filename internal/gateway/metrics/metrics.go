package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gateway's Prometheus instruments.
type Metrics struct {
	Decisions    *prometheus.CounterVec
	RiskScore    prometheus.Histogram
	QuotedPrice  prometheus.Histogram
	PipelineTime prometheus.Histogram
}

// New creates and registers all gateway metrics.
func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustgate_decisions_total",
			Help: "Admission decisions by outcome",
		}, []string{"outcome"}),
		RiskScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "trustgate_risk_score",
			Help:    "Computed risk scores",
			Buckets: []float64{0, 10, 25, 50, 80, 100},
		}),
		QuotedPrice: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "trustgate_quoted_price",
			Help:    "Final quoted prices",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		PipelineTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "trustgate_pipeline_duration_ms",
			Help:    "Latency of full admission pipeline runs in milliseconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100},
		}),
	}
}

// ObserveDecision records one decision outcome.
func (m *Metrics) ObserveDecision(outcome string) {
	m.Decisions.WithLabelValues(outcome).Inc()
}
