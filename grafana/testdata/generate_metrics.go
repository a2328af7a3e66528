// Package testdata provides utilities for generating sample metrics data
// to test Grafana dashboards without using real production data.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics for testing dashboards. Names and label sets mirror the ones
// registered by the daemon so dashboard queries work unchanged.
var (
	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thoughtd_http_requests_total",
			Help: "Total HTTP requests by method, route, and status code.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thoughtd_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds by method and route.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"method", "route"},
	)
	httpActiveRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "thoughtd_http_active_requests",
			Help: "Number of HTTP requests currently being served.",
		},
	)

	// Pipeline metrics
	pipelineThoughtsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "thoughtd_pipeline_thoughts_ingested_total",
			Help: "Total thoughts extracted and stored by the ingestion pipeline.",
		},
	)
	pipelineLinearFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "thoughtd_pipeline_linear_fallbacks_total",
			Help: "Total ingest calls resolved by the linear parse engine.",
		},
	)
	pipelineIngestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "thoughtd_pipeline_ingest_duration_seconds",
			Help:    "Latency of full ingest calls including embedding and storage.",
			Buckets: prometheus.DefBuckets,
		},
	)
	pipelineSpoolImports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thoughtd_pipeline_spool_imports_total",
			Help: "Total spool files imported, labeled by outcome.",
		},
		[]string{"status"},
	)

	// Store metrics
	storeThoughtsStored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "thoughtd_store_thoughts_stored_total",
			Help: "Total number of thoughts written to the store",
		},
	)
	storeSessionsUpserted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "thoughtd_store_sessions_upserted_total",
			Help: "Total number of session rows created or updated",
		},
	)
	storePutBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "thoughtd_store_put_batch_size",
			Help:    "Number of thoughts per batch write",
			Buckets: prometheus.ExponentialBuckets(1, 2, 9),
		},
	)
	storeQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thoughtd_store_query_duration_seconds",
			Help:    "Duration of store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	storeSearchResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "thoughtd_store_search_results",
			Help:    "Number of results returned per search",
			Buckets: prometheus.LinearBuckets(0, 5, 11),
		},
	)

	// Reflection metrics
	reflectionCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thoughtd_reflection_cycles_total",
			Help: "Completed reflection cycles by mode.",
		},
		[]string{"mode"},
	)
	reflectionThoughtsStored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "thoughtd_reflection_thoughts_stored_total",
			Help: "Meta-thoughts persisted by reflection cycles.",
		},
	)
	reflectionCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "thoughtd_reflection_cycle_duration_seconds",
			Help:    "Reflection cycle latency from recall through storage.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Agent metrics
	agentCompletions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thoughtd_agent_completions_total",
			Help: "Model completions run by the agent loop, by provider.",
		},
		[]string{"provider"},
	)
	agentCompletionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "thoughtd_agent_completion_duration_seconds",
			Help:    "Latency of model completions in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)
	agentLoopTurns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "thoughtd_agent_loop_turns_total",
			Help: "Total agent loop turns executed.",
		},
	)

	// Event bus metrics
	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thoughtd_events_published_total",
			Help: "Events published to NATS by kind.",
		},
		[]string{"kind"},
	)
	eventsPublishFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thoughtd_events_publish_failures_total",
			Help: "Event publish failures by kind.",
		},
		[]string{"kind"},
	)

	// Graph metrics
	graphNodesAdded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "thoughtd_graph_nodes_added_total",
			Help: "Total number of thought nodes added to the graph",
		},
	)
	graphEdgesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thoughtd_graph_edges_created_total",
			Help: "Total number of edges created by relation",
		},
		[]string{"relation"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		// HTTP
		httpRequestsTotal,
		httpRequestDuration,
		httpActiveRequests,
		// Pipeline
		pipelineThoughtsIngested,
		pipelineLinearFallbacks,
		pipelineIngestDuration,
		pipelineSpoolImports,
		// Store
		storeThoughtsStored,
		storeSessionsUpserted,
		storePutBatchSize,
		storeQueryDuration,
		storeSearchResults,
		// Reflection
		reflectionCycles,
		reflectionThoughtsStored,
		reflectionCycleDuration,
		// Agent
		agentCompletions,
		agentCompletionDuration,
		agentLoopTurns,
		// Events
		eventsPublished,
		eventsPublishFailures,
		// Graph
		graphNodesAdded,
		graphEdgesCreated,
	)
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "9091"
	}

	// Generate initial sample data
	generateSampleData()

	// Start background goroutine to continuously generate data
	ctx, cancel := context.WithCancel(context.Background())
	go generateContinuousData(ctx)

	// Serve metrics
	http.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    ":" + port,
		Handler: nil,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		cancel()
		server.Shutdown(context.Background())
	}()

	fmt.Printf("Sample metrics server running on http://localhost:%s/metrics\n", port)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println("\nTo use with Prometheus, add this to prometheus.yml:")
	fmt.Printf("  - job_name: 'thoughtd-test'\n    static_configs:\n      - targets: ['localhost:%s']\n", port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

func generateSampleData() {
	routes := []string{"/api/v1/parse", "/api/v1/store", "/api/v1/retrieve", "/api/v1/reflect", "/api/v1/graph/paths", "/health"}
	operations := []string{"search", "recall", "list"}
	modes := []string{"reasoning", "summarization", "contradiction_detection", "planning"}
	providers := []string{"openai", "anthropic", "ollama"}
	kinds := []string{"thought_stored", "reflection_created"}
	relations := []string{"semantic-similarity", "explicit-reference", "temporal-successor"}

	// Generate HTTP traffic with mostly successful requests
	for i := 0; i < 200; i++ {
		route := randomChoice(routes)
		method := "POST"
		if route == "/health" || route == "/api/v1/graph/paths" {
			method = "GET"
		}
		status := "200"
		if rand.Float64() > 0.95 {
			status = randomChoice([]string{"400", "404", "500"})
		}
		httpRequestsTotal.WithLabelValues(method, route, status).Inc()
		httpRequestDuration.WithLabelValues(method, route).Observe(rand.Float64() * 0.1)
	}
	httpActiveRequests.Set(float64(rand.Intn(5)))

	// Generate ingestion data
	for i := 0; i < 80; i++ {
		pipelineThoughtsIngested.Add(float64(rand.Intn(5) + 1))
		pipelineIngestDuration.Observe(rand.Float64() * 0.05)
		if rand.Float64() > 0.9 {
			pipelineLinearFallbacks.Inc()
		}
	}
	for i := 0; i < 10; i++ {
		pipelineSpoolImports.WithLabelValues(randomChoice([]string{"imported", "imported", "imported", "failed"})).Inc()
	}

	// Generate store data
	for i := 0; i < 100; i++ {
		storeThoughtsStored.Add(float64(rand.Intn(4) + 1))
		storePutBatchSize.Observe(float64(rand.Intn(8) + 1))
		storeQueryDuration.WithLabelValues(randomChoice(operations)).Observe(rand.Float64() * 0.02)
		storeSearchResults.Observe(float64(rand.Intn(15)))
	}
	for i := 0; i < 20; i++ {
		storeSessionsUpserted.Inc()
	}

	// Generate reflection data
	for i := 0; i < 30; i++ {
		reflectionCycles.WithLabelValues(randomChoice(modes)).Inc()
		reflectionThoughtsStored.Add(float64(rand.Intn(3) + 1))
		reflectionCycleDuration.Observe(0.1 + rand.Float64()*2.0)
	}

	// Generate agent loop data
	for i := 0; i < 40; i++ {
		agentCompletions.WithLabelValues(randomChoice(providers)).Inc()
		agentCompletionDuration.Observe(0.2 + rand.Float64()*3.0)
		agentLoopTurns.Inc()
	}

	// Generate event bus data
	for i := 0; i < 60; i++ {
		kind := randomChoice(kinds)
		eventsPublished.WithLabelValues(kind).Inc()
		if rand.Float64() > 0.95 {
			eventsPublishFailures.WithLabelValues(kind).Inc()
		}
	}

	// Generate graph data
	for i := 0; i < 50; i++ {
		graphNodesAdded.Inc()
		if rand.Float64() > 0.4 {
			graphEdgesCreated.WithLabelValues(randomChoice(relations)).Inc()
		}
	}
}

func generateContinuousData(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	routes := []string{"/api/v1/parse", "/api/v1/store", "/api/v1/retrieve", "/api/v1/reflect", "/api/v1/graph/paths", "/health"}
	operations := []string{"search", "recall", "list"}
	modes := []string{"reasoning", "summarization", "contradiction_detection", "planning"}
	providers := []string{"openai", "anthropic", "ollama"}
	kinds := []string{"thought_stored", "reflection_created"}
	relations := []string{"semantic-similarity", "explicit-reference", "temporal-successor"}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Add some random activity
			if rand.Float64() > 0.3 {
				route := randomChoice(routes)
				method := "POST"
				if route == "/health" || route == "/api/v1/graph/paths" {
					method = "GET"
				}
				status := "200"
				if rand.Float64() > 0.95 {
					status = randomChoice([]string{"400", "404", "500"})
				}
				httpRequestsTotal.WithLabelValues(method, route, status).Inc()
				httpRequestDuration.WithLabelValues(method, route).Observe(rand.Float64() * 0.1)
			}
			// Ingest a tagged transcript
			if rand.Float64() > 0.4 {
				n := rand.Intn(5) + 1
				pipelineThoughtsIngested.Add(float64(n))
				pipelineIngestDuration.Observe(rand.Float64() * 0.05)
				storeThoughtsStored.Add(float64(n))
				storePutBatchSize.Observe(float64(n))
				graphNodesAdded.Add(float64(n))
				if rand.Float64() > 0.9 {
					pipelineLinearFallbacks.Inc()
				}
			}
			// Spool imports trickle in
			if rand.Float64() > 0.8 {
				pipelineSpoolImports.WithLabelValues(randomChoice([]string{"imported", "imported", "imported", "failed"})).Inc()
			}
			// Retrieval traffic
			if rand.Float64() > 0.3 {
				storeQueryDuration.WithLabelValues(randomChoice(operations)).Observe(rand.Float64() * 0.02)
				storeSearchResults.Observe(float64(rand.Intn(15)))
			}
			// New sessions
			if rand.Float64() > 0.85 {
				storeSessionsUpserted.Inc()
			}
			// Reflection cycles
			if rand.Float64() > 0.7 {
				reflectionCycles.WithLabelValues(randomChoice(modes)).Inc()
				reflectionThoughtsStored.Add(float64(rand.Intn(3) + 1))
				reflectionCycleDuration.Observe(0.1 + rand.Float64()*2.0)
			}
			// Agent turns
			if rand.Float64() > 0.5 {
				agentCompletions.WithLabelValues(randomChoice(providers)).Inc()
				agentCompletionDuration.Observe(0.2 + rand.Float64()*3.0)
				agentLoopTurns.Inc()
			}
			// Event publishes
			if rand.Float64() > 0.4 {
				kind := randomChoice(kinds)
				eventsPublished.WithLabelValues(kind).Inc()
				if rand.Float64() > 0.95 {
					eventsPublishFailures.WithLabelValues(kind).Inc()
				}
			}
			// Edge creation follows semantic linking
			if rand.Float64() > 0.6 {
				graphEdgesCreated.WithLabelValues(randomChoice(relations)).Inc()
			}

			// Update the in-flight gauge
			httpActiveRequests.Set(float64(rand.Intn(5)))
		}
	}
}

func randomChoice(choices []string) string {
	return choices[rand.Intn(len(choices))]
}
