package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the use-case counters. Register them on the server's registry.
type Metrics struct {
	Submissions prometheus.Counter
	BatchItems  *prometheus.CounterVec
}

// NewMetrics registers the counters on reg. A nil reg yields unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Submissions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "submissions_total",
			Help:      "Participants that reached the submitted state.",
		}),
		BatchItems: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "batch_items_total",
			Help:      "Items touched by question batch actions.",
		}, []string{"action"}),
	}
}
