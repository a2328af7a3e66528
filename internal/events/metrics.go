package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for event publishing.
var (
	// EventsPublished counts successfully published events by kind.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "thoughtd",
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Events published to NATS by kind.",
	}, []string{"kind"})

	// PublishFailures counts dropped events by kind.
	PublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "thoughtd",
		Subsystem: "events",
		Name:      "publish_failures_total",
		Help:      "Events dropped due to marshal or publish errors.",
	}, []string{"kind"})
)
