package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments a Session
type Metrics struct {
	workersSpawned prometheus.Counter
	workersCrashed prometheus.Counter
	activeWorkers  prometheus.Gauge
	itemsReported  *prometheus.CounterVec
	eventsHandled  *prometheus.CounterVec
}

// NewMetrics registers the coordinator metrics with reg. A nil reg creates
// unregistered metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		workersSpawned: f.NewCounter(prometheus.CounterOpts{
			Name: "ptd_workers_spawned_total",
			Help: "Number of workers started, replacements included.",
		}),
		workersCrashed: f.NewCounter(prometheus.CounterOpts{
			Name: "ptd_workers_crashed_total",
			Help: "Number of workers that went down unexpectedly.",
		}),
		activeWorkers: f.NewGauge(prometheus.GaugeOpts{
			Name: "ptd_workers_active",
			Help: "Number of workers the coordinator is waiting on.",
		}),
		itemsReported: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ptd_items_reported_total",
			Help: "Number of item results received, by outcome.",
		}, []string{"outcome"}),
		eventsHandled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ptd_events_handled_total",
			Help: "Number of worker events processed, by kind.",
		}, []string{"kind"}),
	}
}
