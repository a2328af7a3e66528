package reflection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for reflection cycles.
var (
	// ReflectionsRun counts completed reflection cycles by mode.
	ReflectionsRun = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "thoughtd",
		Subsystem: "reflection",
		Name:      "cycles_total",
		Help:      "Completed reflection cycles by mode.",
	}, []string{"mode"})

	// ReflectionsStored counts meta-thoughts persisted by reflection.
	ReflectionsStored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "thoughtd",
		Subsystem: "reflection",
		Name:      "thoughts_stored_total",
		Help:      "Meta-thoughts persisted by reflection cycles.",
	})

	// ReflectionLatency observes full-cycle latency in seconds.
	ReflectionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "thoughtd",
		Subsystem: "reflection",
		Name:      "cycle_duration_seconds",
		Help:      "Reflection cycle latency from recall through storage.",
		Buckets:   prometheus.DefBuckets,
	})
)
