package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesAppended counts pages merged into any controller.
	PagesAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blogfeed_feed_pages_appended_total",
		Help: "Total number of pages appended to feed controllers",
	})

	// ItemsAppended counts posts merged into any controller.
	ItemsAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blogfeed_feed_items_appended_total",
		Help: "Total number of posts appended to feed controllers",
	})

	// DuplicatesDropped counts posts dropped by dedup.
	DuplicatesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blogfeed_feed_duplicates_dropped_total",
		Help: "Total number of already-held posts dropped on append",
	})

	// LoadErrors counts data source failures seen by LoadMore.
	LoadErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blogfeed_feed_load_errors_total",
		Help: "Total number of failed page loads",
	})

	// LoadRejected counts LoadMore calls rejected without fetching.
	LoadRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogfeed_feed_load_rejected_total",
		Help: "Total number of load requests rejected by reason",
	}, []string{"reason"}) // "exhausted", "in_progress"
)
