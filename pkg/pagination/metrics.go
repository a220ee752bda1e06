package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesFetched tracks page fetches by outcome
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purge_pages_fetched_total",
			Help: "Total number of collection pages fetched",
		},
		[]string{"result"}, // "items", "exhausted", "error"
	)

	// ItemsEnqueued tracks identifiers pushed onto the work queue
	ItemsEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "purge_items_enqueued_total",
			Help: "Total number of item identifiers pushed onto the work queue",
		},
	)
)
