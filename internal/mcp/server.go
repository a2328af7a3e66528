package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thoughtd/internal/graph"
	"github.com/fyrsmithlabs/thoughtd/internal/pipeline"
	"github.com/fyrsmithlabs/thoughtd/internal/reflection"
	"github.com/fyrsmithlabs/thoughtd/internal/store"
)

// Server exposes the memory services as MCP tools.
type Server struct {
	mcp       *mcp.Server
	store     *store.Store
	pipe      *pipeline.Pipeline
	reflector *reflection.Engine
	graph     *graph.Graph
	metrics   *Metrics
	logger    *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "thoughtd").
	Name string

	// Version is the server version (default: "dev").
	Version string

	// Logger for structured logging.
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "thoughtd",
		Version: "dev",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates a new MCP server with the given services.
func NewServer(cfg *Config, st *store.Store, pipe *pipeline.Pipeline, reflector *reflection.Engine, g *graph.Graph) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if pipe == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if reflector == nil {
		return nil, fmt.Errorf("reflection engine is required")
	}
	// graph is optional; cross-session recall skips neighbor expansion without it

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		nil,
	)

	s := &Server{
		mcp:       mcpServer,
		store:     st,
		pipe:      pipe,
		reflector: reflector,
		graph:     g,
		metrics:   NewMetrics(cfg.Logger),
		logger:    cfg.Logger,
	}
	s.registerTools()

	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	transport := &mcp.StdioTransport{}
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}
