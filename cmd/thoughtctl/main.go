// Package main implements the thoughtctl CLI for direct operations against
// a local thought store.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/thoughtd/internal/config"
	"github.com/fyrsmithlabs/thoughtd/internal/embeddings"
	"github.com/fyrsmithlabs/thoughtd/internal/graph"
	"github.com/fyrsmithlabs/thoughtd/internal/logging"
	"github.com/fyrsmithlabs/thoughtd/internal/pipeline"
	"github.com/fyrsmithlabs/thoughtd/internal/reflection"
	"github.com/fyrsmithlabs/thoughtd/internal/store"
)

var (
	// configFile is the optional config file path
	configFile string
	// dbPath overrides the configured store path
	dbPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "thoughtctl",
	Short: "CLI for thoughtd memory operations",
	Long: `thoughtctl is a command-line interface for working with a thoughtd
thought store directly, without a running daemon.

It provides commands for storing tagged agent output, retrieving thoughts,
running reflections, importing JSONL archives, and driving agent loops.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: ~/.config/thoughtd/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite store path (overrides the configured store.path)")
}

// memService bundles the services the CLI commands drive against the
// local store.
type memService struct {
	cfg       *config.Config
	embedder  embeddings.Provider
	store     *store.Store
	graph     *graph.Graph
	pipe      *pipeline.Pipeline
	reflector *reflection.Engine
	logger    *logging.Logger
}

// Close releases the store.
func (m *memService) Close() {
	if m.store != nil {
		_ = m.store.Close()
	}
}

// initMemService opens the configured thought store for direct access.
// Logging goes to stderr at warn level so stdout stays parseable.
func initMemService() (*memService, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if dbPath != "" {
		cfg.Store.Path = dbPath
	}

	logCfg := logging.NewDefaultConfig()
	logCfg.Level = zapcore.WarnLevel
	logCfg.Stderr = true
	logger, err := logging.NewLogger(logCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	embedder, err := embeddings.NewProvider(embeddings.Config{
		Provider:  cfg.Embeddings.Provider,
		Model:     cfg.Embeddings.Model,
		BaseURL:   cfg.Embeddings.BaseURL,
		APIKey:    cfg.Embeddings.APIKey.Value(),
		Dimension: cfg.Embeddings.Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings provider: %w", err)
	}

	st, err := store.Open(store.Config{
		Path:          cfg.Store.Path,
		EmbeddingDim:  cfg.Store.EmbeddingDim,
		VectorBackend: cfg.Store.VectorBackend,
		ChromemPath:   cfg.Store.ChromemPath,
	}, embedder, logger.Underlying())
	if err != nil {
		return nil, fmt.Errorf("failed to open thought store: %w", err)
	}

	g, err := graph.New(st, logger.Underlying())
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to create thought graph: %w", err)
	}

	pipe, err := pipeline.New(st, g, embedder, nil, logger.Underlying())
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to create ingest pipeline: %w", err)
	}

	reflector, err := reflection.New(st, g, embedder, nil, logger.Underlying())
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to create reflection engine: %w", err)
	}

	return &memService{
		cfg:       cfg,
		embedder:  embedder,
		store:     st,
		graph:     g,
		pipe:      pipe,
		reflector: reflector,
		logger:    logger,
	}, nil
}

// Helper functions

// readInput returns the positional argument as text, or reads stdin when
// the argument is missing or "-".
func readInput(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		return string(content), nil
	}
	return args[0], nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
