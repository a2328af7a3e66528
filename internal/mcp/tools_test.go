package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/thoughtd/internal/pipeline"
	"github.com/fyrsmithlabs/thoughtd/internal/reflection"
	"github.com/fyrsmithlabs/thoughtd/internal/store"
	"github.com/fyrsmithlabs/thoughtd/internal/thought"
)

// TestMemoryTools_StoreRetrieveIntegration drives the same service calls the
// store_thoughts and retrieve_thoughts handlers make, against a real
// in-memory store.
func TestMemoryTools_StoreRetrieveIntegration(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	result, err := server.pipe.Ingest(ctx, "Plan /thought[cache invalidation is the hard part] done", pipeline.IngestOptions{
		SessionID: "mcp-session",
	})
	require.NoError(t, err)
	require.Len(t, result.Thoughts, 1)
	assert.Equal(t, "Plan\ndone", result.CleanedOutput)

	hits, err := server.store.Search(ctx, "cache invalidation is the hard part", store.SearchOptions{
		Filters: thought.Filters{SessionID: "mcp-session"},
		Limit:   5,
		Alpha:   defaultRetrieveAlpha,
	})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, result.Thoughts[0].ID, hits[0].Thought.ID)
	assert.Equal(t, "cache invalidation is the hard part", hits[0].Thought.CleanedText)
}

// TestMemoryTools_CrossSessionIntegration exercises the lineage recall path
// the retrieve_thoughts handler takes when cross_session is set.
func TestMemoryTools_CrossSessionIntegration(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	require.NoError(t, server.store.PutSession(ctx, &thought.Session{ID: "parent"}))
	require.NoError(t, server.store.PutSession(ctx, &thought.Session{ID: "child", ParentID: "parent"}))

	_, err := server.pipe.Ingest(ctx, "/thought[the migration ran out of order]", pipeline.IngestOptions{
		SessionID: "parent",
	})
	require.NoError(t, err)

	hits, err := server.store.RecallFromPriorSessions(ctx, "the migration ran out of order", "child", store.RecallOptions{
		Limit: 5,
		Alpha: defaultRetrieveAlpha,
		Graph: server.graph,
	})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "parent", hits[0].Thought.SessionID)
}

// TestReflectionTools_ReflectIntegration runs a reflection cycle through the
// engine the reflect handler wraps. Without a completion function the
// deterministic fallback produces two reflections.
func TestReflectionTools_ReflectIntegration(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	_, err := server.pipe.Ingest(ctx, "/thought[retries masked the real bug] and /thought[the timeout was too low]", pipeline.IngestOptions{
		SessionID: "mcp-session",
	})
	require.NoError(t, err)

	result, err := server.reflector.Reflect(ctx, reflection.Request{
		Query:     "what went wrong",
		SessionID: "mcp-session",
	})
	require.NoError(t, err)
	assert.Len(t, result.Stored, 2)
	assert.Contains(t, result.ReflectionText, "<thought")
	assert.GreaterOrEqual(t, result.LatencyMS, 0.0)
}
