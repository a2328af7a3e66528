package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for store operations.
var (
	// ThoughtsStored counts thoughts written to the store.
	ThoughtsStored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "thoughtd",
		Subsystem: "store",
		Name:      "thoughts_stored_total",
		Help:      "Total number of thoughts written to the store",
	})

	// SessionsUpserted counts session create and update operations.
	SessionsUpserted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "thoughtd",
		Subsystem: "store",
		Name:      "sessions_upserted_total",
		Help:      "Total number of session rows created or updated",
	})

	// BatchSize observes the number of thoughts per batch write.
	BatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "thoughtd",
		Subsystem: "store",
		Name:      "put_batch_size",
		Help:      "Number of thoughts per batch write",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 9),
	})

	// QueryDuration observes read-path latency by operation.
	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "thoughtd",
		Subsystem: "store",
		Name:      "query_duration_seconds",
		Help:      "Duration of store queries in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	// SearchResults observes how many results each search returned.
	SearchResults = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "thoughtd",
		Subsystem: "store",
		Name:      "search_results",
		Help:      "Number of results returned per search",
		Buckets:   prometheus.LinearBuckets(0, 5, 11),
	})
)
