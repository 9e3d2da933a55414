package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for address linking.
type Metrics struct {
	// Link and refresh outcomes by operation and error code ("ok" on success)
	Outcomes *prometheus.CounterVec

	LinkedPrincipals prometheus.Counter
}

// New registers the linkage collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scorevc_linkage_outcomes_total",
			Help: "Link and refresh outcomes by operation and result code",
		}, []string{"operation", "outcome"}),
		LinkedPrincipals: factory.NewCounter(prometheus.CounterOpts{
			Name: "scorevc_linkage_new_links_total",
			Help: "Principals linked to an address for the first time",
		}),
	}
}

// IncrementOutcome records the result of a link or refresh.
func (m *Metrics) IncrementOutcome(operation, outcome string) {
	if m != nil {
		m.Outcomes.WithLabelValues(operation, outcome).Inc()
	}
}

func (m *Metrics) IncrementNewLinks() {
	if m != nil {
		m.LinkedPrincipals.Inc()
	}
}
