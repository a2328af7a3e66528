// Thoughtd is a thought memory daemon for coding agents.
//
// The daemon ingests tagged agent transcripts, extracts the annotated
// thoughts, embeds them into a local SQLite plus vector store, and serves
// recall, reflection, and graph traversal over HTTP or over the Model
// Context Protocol on stdio.
//
// Configuration is loaded from ~/.config/thoughtd/config.yaml and THOUGHTD_*
// environment variables. See internal/config for details.
//
// Usage:
//
//	# Start the HTTP daemon with defaults
//	thoughtd
//
//	# Configure via environment
//	THOUGHTD_SERVER_PORT=9090 THOUGHTD_STORE_PATH=~/.thoughtd/thoughts.db thoughtd
//
//	# Serve MCP to an agent runtime over stdio
//	thoughtd --mcp-stdio
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thoughtd/internal/config"
	"github.com/fyrsmithlabs/thoughtd/internal/embeddings"
	"github.com/fyrsmithlabs/thoughtd/internal/events"
	"github.com/fyrsmithlabs/thoughtd/internal/graph"
	"github.com/fyrsmithlabs/thoughtd/internal/httpapi"
	"github.com/fyrsmithlabs/thoughtd/internal/logging"
	"github.com/fyrsmithlabs/thoughtd/internal/pipeline"
	"github.com/fyrsmithlabs/thoughtd/internal/reflection"
	"github.com/fyrsmithlabs/thoughtd/internal/store"
	"github.com/fyrsmithlabs/thoughtd/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	configPath = flag.String("config", "", "config file path (default: ~/.config/thoughtd/config.yaml)")
	mcpStdio   = flag.Bool("mcp-stdio", false, "serve the Model Context Protocol on stdio instead of HTTP")
)

func main() {
	// Parse command-line arguments
	flag.Parse()
	args := flag.Args()

	// Handle subcommands
	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  thoughtd              Start the thoughtd daemon\n")
			fmt.Fprintf(os.Stderr, "  thoughtd --mcp-stdio  Serve MCP on stdio\n")
			fmt.Fprintf(os.Stderr, "  thoughtd version      Show version information\n")
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("thoughtd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the daemon and blocks until the context is cancelled.
//
// Initialization order:
//  1. Loads and validates configuration
//  2. Starts telemetry and the structured logger
//  3. Creates the embedder and opens the thought store
//  4. Wires the graph, ingest pipeline, and reflection engine
//  5. Connects NATS and starts the spool watcher when enabled
//  6. Serves HTTP, or MCP on stdio with --mcp-stdio
//
// Shutdown releases resources in reverse dependency order.
func run(ctx context.Context) error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	tel, err := initTelemetry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Telemetry.Shutdown.Duration())
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	logger, err := initLogger(cfg, tel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()
	zl := logger.Underlying()

	logger.Info(ctx, "Starting thoughtd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("mcp_stdio", *mcpStdio),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()))

	deps, err := initDependencies(cfg, zl)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	logger.Info(ctx, "Dependencies initialized",
		zap.String("vector_backend", deps.store.BackendName()),
		zap.Int("embedding_dim", deps.store.EmbeddingDim()),
		zap.Bool("nats_connected", deps.natsConn != nil))

	svcs, err := initServices(deps, zl)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	if cfg.Spool.Enabled {
		watcher, err := pipeline.NewWatcher(svcs.pipe, pipeline.WatcherConfig{Dir: cfg.Spool.Dir}, zl)
		if err != nil {
			return fmt.Errorf("failed to create spool watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start spool watcher: %w", err)
		}
		defer watcher.Stop()
		go drainImports(ctx, watcher, logger)

		logger.Info(ctx, "Spool watcher started", zap.String("dir", cfg.Spool.Dir))
	}

	if *mcpStdio {
		return runStdioServer(ctx, deps, svcs, zl)
	}

	srv, err := httpapi.NewServer(httpapi.Services{
		Store:     deps.store,
		Pipeline:  svcs.pipe,
		Reflector: svcs.reflector,
		Graph:     deps.graph,
		Bus:       deps.bus,
	}, zl, &httpapi.Config{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		Service: "thoughtd",
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	logger.Info(ctx, "Server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://%s:%d/health", cfg.Server.Host, cfg.Server.Port)),
		zap.String("metrics_endpoint", "/metrics"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// dependencies holds the infrastructure a running daemon owns.
type dependencies struct {
	embedder embeddings.Provider
	store    *store.Store
	graph    *graph.Graph
	natsConn *nats.Conn
	bus      *events.Bus
}

// Close releases infrastructure resources.
func (d *dependencies) Close() {
	if d.natsConn != nil {
		d.natsConn.Close()
	}
	if d.store != nil {
		_ = d.store.Close()
	}
}

// services holds the domain services built on the store.
type services struct {
	pipe      *pipeline.Pipeline
	reflector *reflection.Engine
}

// initTelemetry maps the telemetry config section onto the OTel bootstrap.
func initTelemetry(ctx context.Context, cfg *config.Config) (*telemetry.Telemetry, error) {
	telCfg := telemetry.NewDefaultConfig()
	telCfg.Enabled = cfg.Telemetry.Enabled
	telCfg.Endpoint = cfg.Telemetry.Endpoint
	telCfg.Protocol = cfg.Telemetry.Protocol
	telCfg.Insecure = cfg.Telemetry.Insecure
	telCfg.ServiceVersion = version
	telCfg.Sampling.Rate = cfg.Telemetry.SamplingRate
	telCfg.Shutdown.Timeout = cfg.Telemetry.Shutdown
	return telemetry.New(ctx, telCfg)
}

// initLogger maps the logging config section onto the process logger. In
// stdio mode logs go to stderr so stdout stays clean for the MCP stream.
func initLogger(cfg *config.Config, tel *telemetry.Telemetry) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}

	logCfg := logging.NewDefaultConfig()
	logCfg.Level = level
	logCfg.Format = cfg.Logging.Format
	logCfg.OTEL = cfg.Logging.OTEL
	logCfg.Stderr = *mcpStdio

	return logging.NewLogger(logCfg, tel.LoggerProvider())
}

// initDependencies creates the embedder, opens the store with its vector
// backend, builds the graph, and connects NATS when enabled.
func initDependencies(cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	embedder, err := embeddings.NewProvider(embeddings.Config{
		Provider:  cfg.Embeddings.Provider,
		Model:     cfg.Embeddings.Model,
		BaseURL:   cfg.Embeddings.BaseURL,
		APIKey:    cfg.Embeddings.APIKey.Value(),
		Dimension: cfg.Embeddings.Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}

	st, err := store.Open(store.Config{
		Path:          cfg.Store.Path,
		EmbeddingDim:  cfg.Store.EmbeddingDim,
		VectorBackend: cfg.Store.VectorBackend,
		ChromemPath:   cfg.Store.ChromemPath,
	}, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open thought store: %w", err)
	}

	g, err := graph.New(st, logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to create thought graph: %w", err)
	}

	deps := &dependencies{
		embedder: embedder,
		store:    st,
		graph:    g,
	}

	if cfg.NATS.Enabled {
		nc, err := nats.Connect(cfg.NATS.URL,
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(5),
			nats.ReconnectWait(1*time.Second),
		)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
		}
		deps.natsConn = nc
		deps.bus = events.New(nc, logger)

		logger.Info("Connected to NATS", zap.String("url", cfg.NATS.URL))
	}

	return deps, nil
}

// initServices wires the ingest pipeline and the reflection engine.
func initServices(deps *dependencies, logger *zap.Logger) (*services, error) {
	pipe, err := pipeline.New(deps.store, deps.graph, deps.embedder, deps.bus, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest pipeline: %w", err)
	}

	reflector, err := reflection.New(deps.store, deps.graph, deps.embedder, deps.bus, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create reflection engine: %w", err)
	}

	return &services{pipe: pipe, reflector: reflector}, nil
}

// drainImports logs spool import results until the watcher closes its
// result channel.
func drainImports(ctx context.Context, w *pipeline.Watcher, logger *logging.Logger) {
	for ev := range w.Results() {
		if ev.Err != nil {
			logger.Warn(ctx, "Spool import failed",
				zap.String("path", ev.Path),
				zap.Error(ev.Err))
			continue
		}
		logger.Info(ctx, "Spool file imported",
			zap.String("path", ev.Path),
			zap.Int("lines", ev.Stats.Lines),
			zap.Int("imported", ev.Stats.Imported),
			zap.Int("failed", ev.Stats.Failed))
	}
}
