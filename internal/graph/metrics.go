package graph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for graph writes.
var (
	// NodesAdded counts thoughts registered as graph nodes.
	NodesAdded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "thoughtd",
		Subsystem: "graph",
		Name:      "nodes_added_total",
		Help:      "Total number of thoughts registered as graph nodes",
	})

	// EdgesCreated counts edges by relation label.
	EdgesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "thoughtd",
		Subsystem: "graph",
		Name:      "edges_created_total",
		Help:      "Total number of edges created by relation",
	}, []string{"relation"})
)
