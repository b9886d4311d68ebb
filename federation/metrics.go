package federation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DeliveriesTotal tracks delivery attempts by outcome.
	DeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worknet_deliveries_total",
		Help: "Total outbound delivery attempts by outcome",
	}, []string{"outcome"})

	// DeliveriesDeferredTotal tracks deliveries deferred by rate limiting.
	DeliveriesDeferredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worknet_deliveries_deferred_total",
		Help: "Total deliveries deferred because the target host is rate limited",
	})

	// DeadLettersTotal tracks items moved to the dead-letter state.
	DeadLettersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worknet_dead_letters_total",
		Help: "Total queue items dead-lettered",
	})

	// ActorCacheHitsTotal tracks remote actor cache hits.
	ActorCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worknet_actor_cache_hits_total",
		Help: "Total remote actor cache hits",
	})

	// ActorCacheMissesTotal tracks remote actor cache misses.
	ActorCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worknet_actor_cache_misses_total",
		Help: "Total remote actor cache misses (absent or expired)",
	})

	// ActorFetchesTotal tracks remote actor document fetches.
	ActorFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worknet_actor_fetches_total",
		Help: "Total remote actor document fetches by result",
	}, []string{"result"})

	// CleanupRowsTotal tracks rows removed by the retention scheduler.
	CleanupRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worknet_cleanup_rows_total",
		Help: "Total rows removed by the retention cleanup per category",
	}, []string{"category"})

	// QueuePendingGauge tracks the pending queue depth.
	QueuePendingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "worknet_queue_pending",
		Help: "Current number of pending delivery queue items",
	})
)
