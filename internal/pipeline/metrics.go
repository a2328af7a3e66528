package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ThoughtsIngested counts thoughts stored through the ingestion path.
	ThoughtsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "thoughtd",
		Subsystem: "pipeline",
		Name:      "thoughts_ingested_total",
		Help:      "Total thoughts extracted and stored by the ingestion pipeline.",
	})

	// LinearFallbacks counts ingests where the linear engine replaced the
	// lazy result.
	LinearFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "thoughtd",
		Subsystem: "pipeline",
		Name:      "linear_fallbacks_total",
		Help:      "Total ingest calls resolved by the linear parse engine.",
	})

	// IngestDuration observes end-to-end ingest latency.
	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "thoughtd",
		Subsystem: "pipeline",
		Name:      "ingest_duration_seconds",
		Help:      "Latency of full ingest calls including embedding and storage.",
		Buckets:   prometheus.DefBuckets,
	})

	// SpoolImports counts spool file imports by outcome.
	SpoolImports = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "thoughtd",
		Subsystem: "pipeline",
		Name:      "spool_imports_total",
		Help:      "Total spool files imported, labeled by outcome.",
	}, []string{"status"})
)
