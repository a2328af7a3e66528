package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CompletionsRun counts integrated completions by provider.
	CompletionsRun = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "thoughtd",
		Subsystem: "agent",
		Name:      "completions_total",
		Help:      "Total completions integrated into thought memory, labeled by provider.",
	}, []string{"provider"})

	// CompletionLatency observes provider call through reflection latency.
	CompletionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "thoughtd",
		Subsystem: "agent",
		Name:      "completion_duration_seconds",
		Help:      "Latency of completions including ingestion and reflection.",
		Buckets:   prometheus.DefBuckets,
	})

	// LoopTurns counts agent loop turns.
	LoopTurns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "thoughtd",
		Subsystem: "agent",
		Name:      "loop_turns_total",
		Help:      "Total turns executed by agent loops.",
	})
)
