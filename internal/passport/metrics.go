package passport

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics observes score API calls.
type Metrics struct {
	LookupLatency *prometheus.HistogramVec
	CircuitOpen   prometheus.Gauge
}

// NewMetrics registers the score API collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LookupLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scorevc_score_api_duration_seconds",
			Help:    "Duration of reputation score lookups by outcome",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"outcome"}), // outcome: "ok" or an error category
		CircuitOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scorevc_score_api_circuit_open",
			Help: "1 while the score API circuit breaker is open",
		}),
	}
}

func (m *Metrics) ObserveLookup(outcome string, d time.Duration) {
	if m != nil {
		m.LookupLatency.WithLabelValues(outcome).Observe(d.Seconds())
	}
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitOpen.Set(1)
		return
	}
	m.CircuitOpen.Set(0)
}
