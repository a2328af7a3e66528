package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thoughtd/internal/mcp"
)

// runStdioServer serves the Model Context Protocol on stdin/stdout.
//
// The MCP server shares the daemon's in-process services, so an agent
// runtime spawning `thoughtd --mcp-stdio` gets the same store, pipeline,
// and reflection engine the HTTP daemon would serve. Stdout carries the
// protocol stream; initLogger has already routed all logging to stderr.
func runStdioServer(ctx context.Context, deps *dependencies, svcs *services, logger *zap.Logger) error {
	srv, err := mcp.NewServer(&mcp.Config{
		Name:    "thoughtd",
		Version: version,
		Logger:  logger,
	}, deps.store, svcs.pipe, svcs.reflector, deps.graph)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	// Startup notice goes to stderr; stdout belongs to the protocol.
	fmt.Fprintf(os.Stderr, "thoughtd MCP stdio mode started (version %s)\n", version)

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stdio server error: %w", err)
	}

	logger.Info("stdio MCP server shutdown complete")
	return nil
}
