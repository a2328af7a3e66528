package mcp

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thoughtd/internal/embeddings"
	"github.com/fyrsmithlabs/thoughtd/internal/graph"
	"github.com/fyrsmithlabs/thoughtd/internal/pipeline"
	"github.com/fyrsmithlabs/thoughtd/internal/reflection"
	"github.com/fyrsmithlabs/thoughtd/internal/store"
)

const testDim = 32

type testServices struct {
	store     *store.Store
	pipe      *pipeline.Pipeline
	reflector *reflection.Engine
	graph     *graph.Graph
}

func setupTestServices(t *testing.T) testServices {
	t.Helper()
	logger := zap.NewNop()

	provider, err := embeddings.NewHashProvider(testDim)
	require.NoError(t, err)

	st, err := store.Open(store.Config{Path: ":memory:", EmbeddingDim: testDim}, provider, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	g, err := graph.New(st, logger)
	require.NoError(t, err)

	pipe, err := pipeline.New(st, g, provider, nil, logger)
	require.NoError(t, err)

	reflector, err := reflection.New(st, g, provider, nil, logger)
	require.NoError(t, err)

	return testServices{store: st, pipe: pipe, reflector: reflector, graph: g}
}

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	svc := setupTestServices(t)

	server, err := NewServer(nil, svc.store, svc.pipe, svc.reflector, svc.graph)
	require.NoError(t, err)
	return server
}

func TestNewServer(t *testing.T) {
	svc := setupTestServices(t)

	t.Run("successful creation", func(t *testing.T) {
		cfg := &Config{
			Name:    "test-server",
			Version: "1.0.0",
			Logger:  zap.NewNop(),
		}

		server, err := NewServer(cfg, svc.store, svc.pipe, svc.reflector, svc.graph)
		require.NoError(t, err)
		require.NotNil(t, server)
		require.NotNil(t, server.mcp)
		require.NotNil(t, server.metrics)
	})

	t.Run("nil config uses defaults", func(t *testing.T) {
		server, err := NewServer(nil, svc.store, svc.pipe, svc.reflector, svc.graph)
		require.NoError(t, err)
		require.NotNil(t, server)
		require.NotNil(t, server.logger)
	})

	t.Run("graph is optional", func(t *testing.T) {
		server, err := NewServer(nil, svc.store, svc.pipe, svc.reflector, nil)
		require.NoError(t, err)
		require.NotNil(t, server)
	})

	t.Run("missing store", func(t *testing.T) {
		_, err := NewServer(nil, nil, svc.pipe, svc.reflector, svc.graph)
		require.Error(t, err)
		require.Contains(t, err.Error(), "store is required")
	})

	t.Run("missing pipeline", func(t *testing.T) {
		_, err := NewServer(nil, svc.store, nil, svc.reflector, svc.graph)
		require.Error(t, err)
		require.Contains(t, err.Error(), "pipeline is required")
	})

	t.Run("missing reflection engine", func(t *testing.T) {
		_, err := NewServer(nil, svc.store, svc.pipe, nil, svc.graph)
		require.Error(t, err)
		require.Contains(t, err.Error(), "reflection engine is required")
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)
	require.Equal(t, "thoughtd", cfg.Name)
	require.Equal(t, "dev", cfg.Version)
	require.NotNil(t, cfg.Logger)
}
