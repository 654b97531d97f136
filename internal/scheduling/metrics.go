package scheduling

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments a Policy
type Metrics struct {
	groupsDispatched *prometheus.CounterVec
	itemsSent        prometheus.Counter
	itemsRequeued    prometheus.Counter
	pendingItems     prometheus.Gauge
}

// NewMetrics registers the scheduling metrics with reg. A nil reg creates
// unregistered metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		groupsDispatched: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ptd_scheduler_groups_dispatched_total",
			Help: "Number of item groups handed to workers, by group name.",
		}, []string{"group"}),
		itemsSent: f.NewCounter(prometheus.CounterOpts{
			Name: "ptd_scheduler_items_sent_total",
			Help: "Number of work items sent to workers.",
		}),
		itemsRequeued: f.NewCounter(prometheus.CounterOpts{
			Name: "ptd_scheduler_items_requeued_total",
			Help: "Number of work items taken back from crashed workers.",
		}),
		pendingItems: f.NewGauge(prometheus.GaugeOpts{
			Name: "ptd_scheduler_pending_items",
			Help: "Number of work items not yet sent to any worker.",
		}),
	}
}
