package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for credential issuance.
type Metrics struct {
	// Issuance outcomes by operation and error code ("ok" on success)
	Outcomes *prometheus.CounterVec
	// Pending certified signatures after the last prepare
	PendingSignatures prometheus.Gauge
}

// New registers the issuance collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scorevc_issuance_outcomes_total",
			Help: "Prepare and fetch outcomes by operation and result code",
		}, []string{"operation", "outcome"}),
		PendingSignatures: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scorevc_pending_signatures",
			Help: "Certified signatures held in the signature map",
		}),
	}
}

// IncrementOutcome records the result of a prepare or fetch.
func (m *Metrics) IncrementOutcome(operation, outcome string) {
	if m != nil {
		m.Outcomes.WithLabelValues(operation, outcome).Inc()
	}
}

func (m *Metrics) SetPendingSignatures(n int) {
	if m != nil {
		m.PendingSignatures.Set(float64(n))
	}
}
