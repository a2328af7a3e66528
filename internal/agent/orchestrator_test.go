package agent

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thoughtd/internal/embeddings"
	"github.com/fyrsmithlabs/thoughtd/internal/graph"
	"github.com/fyrsmithlabs/thoughtd/internal/prompt"
	"github.com/fyrsmithlabs/thoughtd/internal/store"
	"github.com/fyrsmithlabs/thoughtd/internal/thought"
)

const testDim = 32

func newTestOrchestrator(t *testing.T, client Client, cfg Config) (*Orchestrator, *store.Store, *graph.Graph) {
	t.Helper()

	provider, err := embeddings.NewHashProvider(testDim)
	require.NoError(t, err)

	st, err := store.Open(store.Config{Path: ":memory:", EmbeddingDim: testDim}, provider, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	g, err := graph.New(st, zap.NewNop())
	require.NoError(t, err)

	if cfg.Model == "" {
		cfg.Model = "mock-model"
	}
	o, err := New(cfg, client, Deps{Store: st, Graph: g, Embedder: provider, Logger: zap.NewNop()})
	require.NoError(t, err)
	return o, st, g
}

func TestNewOrchestratorValidation(t *testing.T) {
	provider, err := embeddings.NewHashProvider(testDim)
	require.NoError(t, err)

	st, err := store.Open(store.Config{Path: ":memory:", EmbeddingDim: testDim}, provider, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := Config{Model: "mock-model"}

	_, err = New(cfg, nil, Deps{Store: st, Embedder: provider})
	require.ErrorContains(t, err, "client is required")

	_, err = New(cfg, NewMockClient(), Deps{Embedder: provider})
	require.ErrorContains(t, err, "store is required")

	_, err = New(cfg, NewMockClient(), Deps{Store: st})
	require.ErrorContains(t, err, "embedder is required")

	_, err = New(Config{Model: "   "}, NewMockClient(), Deps{Store: st, Embedder: provider})
	require.ErrorContains(t, err, "model is required")
}

func TestCompleteEmptySessionID(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, NewMockClient(), Config{})

	_, err := o.Complete(context.Background(), "hello", CompleteOptions{SessionID: "   "})
	require.ErrorIs(t, err, thought.ErrEmptySessionID)
}

func TestCompleteXMLIngestionAndCleaning(t *testing.T) {
	client := NewMockClient(
		`<thought id="th-1" category="reasoning" confidence="0.95">validate context</thought>` + "\nFinal answer: accepted.")
	o, st, _ := newTestOrchestrator(t, client, Config{
		Enforcement:       prompt.EnforcementXML,
		DisableReflection: true,
	})

	ctx := context.Background()
	out, err := o.Complete(ctx, "Run validation", CompleteOptions{SessionID: "s_xml"})
	require.NoError(t, err)

	require.Len(t, out.Stored, 1)
	assert.Equal(t, "th-1", out.Stored[0].ID)
	assert.Equal(t, thought.CategoryReasoning, out.Stored[0].Category)
	assert.InDelta(t, 0.95, out.Stored[0].Confidence, 1e-9)
	assert.Equal(t, "validate context", out.Stored[0].CleanedText)
	assert.NotContains(t, out.CleanedOutput, "<thought")
	assert.Contains(t, out.CleanedOutput, "Final answer")
	assert.Contains(t, out.RawOutput, "<thought")

	got, err := st.Get(ctx, "th-1")
	require.NoError(t, err)
	assert.Equal(t, "s_xml", got.SessionID)
	assert.Equal(t, testDim, got.EmbeddingDim)
}

func TestCompleteSlashEnforcementWithLinearFallback(t *testing.T) {
	client := NewMockClient("Plan /thought[first [nested] step] done")
	o, _, _ := newTestOrchestrator(t, client, Config{
		Enforcement:       prompt.EnforcementSlash,
		DisableReflection: true,
	})

	out, err := o.Complete(context.Background(), "Build plan", CompleteOptions{
		SessionID: "s_slash",
		Category:  thought.CategoryPlan,
	})
	require.NoError(t, err)

	require.Len(t, out.Stored, 1)
	assert.Equal(t, "first [nested] step", out.Stored[0].CleanedText)
	assert.Equal(t, thought.CategoryPlan, out.Stored[0].Category)
	assert.NotContains(t, out.CleanedOutput, "/thought[")
	assert.Equal(t, "Plan\ndone", out.CleanedOutput)
}

func TestCompleteXMLEnforcementWithoutBlocksFallsThrough(t *testing.T) {
	// XML enforcement with no XML blocks still harvests slash tags.
	client := NewMockClient("Check /thought[alpha] rest")
	o, _, _ := newTestOrchestrator(t, client, Config{
		Enforcement:       prompt.EnforcementXML,
		DisableReflection: true,
	})

	out, err := o.Complete(context.Background(), "check", CompleteOptions{SessionID: "s_fallthrough"})
	require.NoError(t, err)

	require.Len(t, out.Stored, 1)
	assert.Equal(t, "alpha", out.Stored[0].CleanedText)
	assert.Equal(t, thought.CategoryReasoning, out.Stored[0].Category)
	assert.InDelta(t, thought.DefaultConfidence, out.Stored[0].Confidence, 1e-9)
	assert.Equal(t, "Check\nrest", out.CleanedOutput)
}

func TestCompleteAutoEnforcement(t *testing.T) {
	t.Run("xml blocks win", func(t *testing.T) {
		client := NewMockClient(`<thought id="x1" category="reasoning" confidence="0.9">via xml</thought>` + "\nDone")
		o, _, _ := newTestOrchestrator(t, client, Config{
			Enforcement:       prompt.EnforcementAuto,
			DisableReflection: true,
		})

		out, err := o.Complete(context.Background(), "q", CompleteOptions{SessionID: "s_auto_xml"})
		require.NoError(t, err)
		require.Len(t, out.Stored, 1)
		assert.Equal(t, "x1", out.Stored[0].ID)
	})

	t.Run("slash tags as fallback", func(t *testing.T) {
		client := NewMockClient("Go /thought[via slash] on")
		o, _, _ := newTestOrchestrator(t, client, Config{
			Enforcement:       prompt.EnforcementAuto,
			DisableReflection: true,
		})

		out, err := o.Complete(context.Background(), "q", CompleteOptions{SessionID: "s_auto_slash"})
		require.NoError(t, err)
		require.Len(t, out.Stored, 1)
		assert.Equal(t, "via slash", out.Stored[0].CleanedText)
		assert.NotEmpty(t, out.Stored[0].ID)
	})
}

func TestCompleteReflectionFrequency(t *testing.T) {
	client := NewMockClient(
		`<thought id="a" category="reasoning" confidence="0.9">first</thought>`+"\nDone 1",
		`<thought id="b" category="reasoning" confidence="0.9">second</thought>`+"\nDone 2",
	)
	o, _, _ := newTestOrchestrator(t, client, Config{
		Enforcement:         prompt.EnforcementXML,
		ReflectionFrequency: 2,
	})

	ctx := context.Background()
	first, err := o.Complete(ctx, "step1", CompleteOptions{SessionID: "s_reflect"})
	require.NoError(t, err)
	second, err := o.Complete(ctx, "step2", CompleteOptions{SessionID: "s_reflect"})
	require.NoError(t, err)

	assert.Nil(t, first.Reflection)
	require.NotNil(t, second.Reflection)
	assert.NotEmpty(t, second.Reflection.Stored)
}

func TestCompleteCallCounterSpansSessions(t *testing.T) {
	// The counter tracks completions per orchestrator, not per session.
	o, _, _ := newTestOrchestrator(t, NewMockClient(), Config{ReflectionFrequency: 2})

	ctx := context.Background()
	first, err := o.Complete(ctx, "a", CompleteOptions{SessionID: "s1"})
	require.NoError(t, err)
	second, err := o.Complete(ctx, "b", CompleteOptions{SessionID: "s2"})
	require.NoError(t, err)

	assert.Nil(t, first.Reflection)
	assert.NotNil(t, second.Reflection)
}

func TestCompleteReflectOverride(t *testing.T) {
	t.Run("false suppresses configured reflection", func(t *testing.T) {
		o, _, _ := newTestOrchestrator(t, NewMockClient(), Config{})

		suppress := false
		out, err := o.Complete(context.Background(), "q", CompleteOptions{
			SessionID: "s_suppress",
			Reflect:   &suppress,
		})
		require.NoError(t, err)
		assert.Nil(t, out.Reflection)
	})

	t.Run("true forces disabled reflection", func(t *testing.T) {
		o, _, _ := newTestOrchestrator(t, NewMockClient(), Config{DisableReflection: true})

		force := true
		out, err := o.Complete(context.Background(), "q", CompleteOptions{
			SessionID: "s_force",
			Reflect:   &force,
		})
		require.NoError(t, err)
		assert.NotNil(t, out.Reflection)
	})
}

func TestCompleteNegativeFrequencyDisablesReflection(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, NewMockClient(), Config{ReflectionFrequency: -1})

	out, err := o.Complete(context.Background(), "q", CompleteOptions{SessionID: "s_neg"})
	require.NoError(t, err)
	assert.Nil(t, out.Reflection)
}

func TestCompleteCrossSessionRecallViaParentLineage(t *testing.T) {
	client := NewMockClient(`<thought id="c" category="reasoning" confidence="0.9">use parent memory</thought>` + "\nAnswer")
	o, st, g := newTestOrchestrator(t, client, Config{
		Enforcement:       prompt.EnforcementXML,
		DisableReflection: true,
	})

	ctx := context.Background()
	provider, err := embeddings.NewHashProvider(testDim)
	require.NoError(t, err)

	seedText := "launch readiness checklist includes rollback plan"
	vec, err := provider.Embed(ctx, seedText)
	require.NoError(t, err)
	seed := &thought.Thought{
		ID:           uuid.New().String(),
		SessionID:    "root",
		Category:     "fact",
		Confidence:   0.92,
		Tags:         []string{"seed"},
		RawText:      seedText,
		CleanedText:  seedText,
		Embedding:    vec,
		EmbeddingDim: testDim,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, g.AddThought(ctx, seed, graph.AddOptions{SemanticNeighbors: -1}))

	out, err := o.Complete(ctx, "launch readiness", CompleteOptions{
		SessionID:       "child",
		ParentSessionID: "root",
	})
	require.NoError(t, err)

	recalledIDs := make(map[string]struct{}, len(out.Recalled))
	for _, rt := range out.Recalled {
		recalledIDs[rt.ID] = struct{}{}
	}
	assert.Contains(t, recalledIDs, seed.ID)

	session, err := st.Session(ctx, "child")
	require.NoError(t, err)
	assert.Equal(t, "root", session.ParentID)
}

func TestCompleteDefaultsAndOverrides(t *testing.T) {
	client := NewMockClient()
	o, _, _ := newTestOrchestrator(t, client, Config{DisableReflection: true})

	ctx := context.Background()
	out, err := o.Complete(ctx, "first question", CompleteOptions{SessionID: "s_cfg"})
	require.NoError(t, err)

	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "mock-model", calls[0].Model)
	assert.InDelta(t, 0.2, calls[0].Temperature, 1e-9)
	assert.Equal(t, 1024, calls[0].MaxTokens)
	assert.Equal(t, "first question", calls[0].UserPrompt)
	assert.Contains(t, calls[0].SystemPrompt, "Use only XML")
	assert.Equal(t, calls[0].SystemPrompt, out.PromptUsed)
	assert.Equal(t, "mock-model", out.ModelName)
	assert.Equal(t, "mock", out.Provider)
	assert.Equal(t, "Final response only.", out.CleanedOutput)
	assert.Empty(t, out.Stored)
	assert.GreaterOrEqual(t, out.LatencyMS, 0.0)

	temp := 0.8
	over, err := o.Complete(ctx, "second question", CompleteOptions{
		SessionID:    "s_cfg",
		Model:        "other-model",
		Temperature:  &temp,
		MaxTokens:    64,
		SystemPrompt: "Custom base prompt.",
	})
	require.NoError(t, err)

	calls = client.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "other-model", calls[1].Model)
	assert.InDelta(t, 0.8, calls[1].Temperature, 1e-9)
	assert.Equal(t, 64, calls[1].MaxTokens)
	assert.Contains(t, calls[1].SystemPrompt, "Custom base prompt.")
	assert.Equal(t, "other-model", over.ModelName)

	zero := 0.0
	_, err = o.Complete(ctx, "third question", CompleteOptions{
		SessionID:   "s_cfg",
		Temperature: &zero,
	})
	require.NoError(t, err)
	calls = client.Calls()
	require.Len(t, calls, 3)
	assert.InDelta(t, 0.0, calls[2].Temperature, 1e-9)
}

func TestCompleteWrapsRecalledContext(t *testing.T) {
	client := NewMockClient(
		`<thought id="m1" category="fact" confidence="0.9">deploys happen on fridays</thought>`+"\nNoted.",
		"Final response only.",
	)
	o, _, _ := newTestOrchestrator(t, client, Config{DisableReflection: true})

	ctx := context.Background()
	_, err := o.Complete(ctx, "deploys happen when", CompleteOptions{SessionID: "s_ctx"})
	require.NoError(t, err)
	out, err := o.Complete(ctx, "when do deploys happen", CompleteOptions{SessionID: "s_ctx"})
	require.NoError(t, err)

	calls := client.Calls()
	require.Len(t, calls, 2)
	assert.NotContains(t, calls[0].UserPrompt, "Recalled memory context:")
	assert.Contains(t, calls[1].UserPrompt, "Recalled memory context:")
	assert.Contains(t, calls[1].UserPrompt, "deploys happen on fridays")

	require.Len(t, out.Recalled, 1)
	assert.Equal(t, "m1", out.Recalled[0].ID)
}

func TestCompleteRecallTopKTruncates(t *testing.T) {
	client := NewMockClient(
		`<thought id="r1" category="fact" confidence="0.9">release trains leave monthly</thought>`+
			`<thought id="r2" category="fact" confidence="0.9">release notes ship with trains</thought>`+
			`<thought id="r3" category="fact" confidence="0.9">release owners rotate weekly</thought>`+"\nSeeded.",
		"Final response only.",
	)
	o, _, _ := newTestOrchestrator(t, client, Config{DisableReflection: true})

	ctx := context.Background()
	_, err := o.Complete(ctx, "release process", CompleteOptions{SessionID: "s_topk"})
	require.NoError(t, err)

	out, err := o.Complete(ctx, "how do releases work", CompleteOptions{
		SessionID:  "s_topk",
		RecallTopK: 1,
	})
	require.NoError(t, err)
	assert.Len(t, out.Recalled, 1)
}
