package purge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for purge runs.
var (
	// ItemsProcessed tracks sink actions by mode and result
	ItemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purge_items_processed_total",
		Help: "Total items handled by a sink by mode and result",
	}, []string{"mode", "result"})

	// ItemsDiscarded tracks queued items dropped when a run was cut short
	ItemsDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purge_items_discarded_total",
		Help: "Total queued items discarded unprocessed after a run was cancelled",
	})

	// QueueOutstanding is the outstanding count of the current run's queue
	QueueOutstanding = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "purge_queue_outstanding",
		Help: "Items pushed but not yet marked done in the current run",
	})

	// RunDuration tracks whole-run duration by outcome
	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "purge_run_duration_seconds",
		Help:    "Duration of purge runs in seconds by outcome",
		Buckets: []float64{0.5, 1, 5, 15, 30, 60, 300},
	}, []string{"outcome"})
)
