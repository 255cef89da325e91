package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the outbox relay.
type Metrics struct {
	Published prometheus.Counter
	Failed    prometheus.Counter
}

// NewMetrics registers the relay metrics with reg. Pass nil to use the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Published: factory.NewCounter(prometheus.CounterOpts{
			Name: "eap_audit_outbox_published_total",
			Help: "Total number of audit outbox entries delivered to Kafka",
		}),
		Failed: factory.NewCounter(prometheus.CounterOpts{
			Name: "eap_audit_outbox_failed_total",
			Help: "Total number of audit outbox entries the broker rejected",
		}),
	}
}

func (m *Metrics) observe(published, failed int) {
	if m == nil {
		return
	}
	m.Published.Add(float64(published))
	m.Failed.Add(float64(failed))
}
