package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thoughtd/internal/embeddings"
	"github.com/fyrsmithlabs/thoughtd/internal/events"
	"github.com/fyrsmithlabs/thoughtd/internal/graph"
	"github.com/fyrsmithlabs/thoughtd/internal/pipeline"
	"github.com/fyrsmithlabs/thoughtd/internal/prompt"
	"github.com/fyrsmithlabs/thoughtd/internal/reflection"
	"github.com/fyrsmithlabs/thoughtd/internal/store"
	"github.com/fyrsmithlabs/thoughtd/internal/thought"
)

const recallAlpha = 0.95

var agentTracer = otel.Tracer("thoughtd.agent")

// Config controls orchestration behavior. Zero fields take the documented
// defaults.
type Config struct {
	// Model is the provider-side model name. Required.
	Model string

	// Temperature is the sampling temperature. Zero means 0.2.
	Temperature float64

	// MaxTokens caps generated tokens. Zero means 1024.
	MaxTokens int

	// Enforcement selects the tagging instruction style. Empty means xml.
	Enforcement prompt.EnforcementStyle

	// ReflectionFrequency reflects every Nth completion. Zero means 1;
	// negative disables reflection.
	ReflectionFrequency int

	// DisableReflection turns reflection off entirely.
	DisableReflection bool

	// RecallTopK bounds memory recall per completion. Zero means 8.
	RecallTopK int

	// ReflectionMode is the default reflection mode. Empty means
	// reasoning.
	ReflectionMode string

	// SystemPrompt replaces the default agent system prompt.
	SystemPrompt string
}

func (c Config) applyDefaults() Config {
	if c.Temperature == 0 {
		c.Temperature = 0.2
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1024
	}
	if c.Enforcement == "" {
		c.Enforcement = prompt.EnforcementXML
	}
	if c.ReflectionFrequency == 0 {
		c.ReflectionFrequency = 1
	}
	if c.RecallTopK == 0 {
		c.RecallTopK = 8
	}
	if c.ReflectionMode == "" {
		c.ReflectionMode = prompt.ModeReasoning
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = prompt.SystemPromptAgent
	}
	return c
}

// Deps carries the memory infrastructure an orchestrator runs on. Store
// and Embedder are required; Graph, Bus and Logger are optional.
type Deps struct {
	Store    *store.Store
	Graph    *graph.Graph
	Embedder embeddings.Provider
	Bus      *events.Bus
	Logger   *zap.Logger
}

// Orchestrator runs completions with memory recall, tagged-output
// ingestion, and periodic reflection.
type Orchestrator struct {
	config    Config
	client    Client
	store     *store.Store
	graph     *graph.Graph
	embedder  embeddings.Provider
	pipeline  *pipeline.Pipeline
	reflector *reflection.Engine
	bus       *events.Bus
	logger    *zap.Logger

	mu    sync.Mutex
	calls int
}

// New creates an orchestrator around a provider client.
func New(cfg Config, client Client, deps Deps) (*Orchestrator, error) {
	if client == nil {
		return nil, errors.New("agent: client is required")
	}
	if deps.Store == nil {
		return nil, errors.New("agent: store is required")
	}
	if deps.Embedder == nil {
		return nil, errors.New("agent: embedder is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("agent: model is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pipe, err := pipeline.New(deps.Store, deps.Graph, deps.Embedder, deps.Bus, logger)
	if err != nil {
		return nil, err
	}
	reflector, err := reflection.New(deps.Store, deps.Graph, deps.Embedder, deps.Bus, logger)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		config:    cfg.applyDefaults(),
		client:    client,
		store:     deps.Store,
		graph:     deps.Graph,
		embedder:  deps.Embedder,
		pipeline:  pipe,
		reflector: reflector,
		bus:       deps.Bus,
		logger:    logger,
	}, nil
}

// CompleteOptions configures one completion. SessionID is required;
// every other field falls back to the orchestrator config. Temperature
// and Reflect are pointers because zero and false are meaningful
// overrides.
type CompleteOptions struct {
	SessionID       string
	ParentSessionID string
	SystemPrompt    string
	Model           string
	Temperature     *float64
	MaxTokens       int
	Category        string
	Tags            []string
	Reflect         *bool
	ReflectionMode  string
	Enforcement     prompt.EnforcementStyle
	RecallTopK      int
}

// CompletionResult is one completion integrated into thought memory.
type CompletionResult struct {
	// RawOutput is the model output verbatim.
	RawOutput string `json:"raw_output"`

	// CleanedOutput is the output with thought annotations removed.
	CleanedOutput string `json:"cleaned_output"`

	// Stored are the thoughts extracted and persisted from the output.
	Stored []*thought.Thought `json:"stored_thoughts"`

	// Recalled is the memory context injected into the prompt.
	Recalled []*thought.Thought `json:"recalled_context"`

	// Reflection is the reflection cycle run after this completion, when
	// one was due.
	Reflection *reflection.Result `json:"reflection,omitempty"`

	// ModelName and Provider identify what generated the output.
	ModelName string `json:"model_name"`
	Provider  string `json:"provider"`

	// LatencyMS spans the provider call through ingestion and
	// reflection.
	LatencyMS float64 `json:"latency_ms"`

	// PromptUsed is the enforced system prompt sent to the provider.
	PromptUsed string `json:"prompt_used"`
}

// Complete runs one model completion and integrates the output into
// thought memory: recall prior context, wrap the prompt, call the
// provider, ingest tagged output, and reflect when due.
func (o *Orchestrator) Complete(ctx context.Context, userPrompt string, opts CompleteOptions) (*CompletionResult, error) {
	if strings.TrimSpace(opts.SessionID) == "" {
		return nil, thought.ErrEmptySessionID
	}

	o.mu.Lock()
	o.calls++
	callIndex := o.calls
	o.mu.Unlock()

	ctx, span := agentTracer.Start(ctx, "Orchestrator.Complete")
	span.SetAttributes(attribute.String("session.id", opts.SessionID))
	defer span.End()

	session := &thought.Session{ID: opts.SessionID, ParentID: opts.ParentSessionID}
	if err := o.store.PutSession(ctx, session); err != nil {
		return nil, fmt.Errorf("ensuring session: %w", err)
	}

	recallK := opts.RecallTopK
	if recallK <= 0 {
		recallK = o.config.RecallTopK
	}
	recalled, err := o.recall(ctx, userPrompt, opts.SessionID, recallK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recall failed")
		return nil, err
	}

	style := opts.Enforcement
	if style == "" {
		style = o.config.Enforcement
	}
	base := opts.SystemPrompt
	if base == "" {
		base = o.config.SystemPrompt
	}
	enforced := prompt.ApplySystemEnforcement(base, style)
	finalUserPrompt := prompt.WrapUserPrompt(userPrompt, prompt.ContextBlock(recalled))

	model := opts.Model
	if model == "" {
		model = o.config.Model
	}
	temperature := o.config.Temperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.config.MaxTokens
	}

	start := time.Now()
	raw, err := o.client.Complete(ctx, CompletionRequest{
		SystemPrompt: enforced,
		UserPrompt:   finalUserPrompt,
		Model:        model,
		Temperature:  temperature,
		MaxTokens:    maxTokens,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return nil, fmt.Errorf("completing prompt: %w", err)
	}

	cleaned, stored, err := o.ingestOutput(ctx, raw, opts, style)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ingest failed")
		return nil, err
	}

	doReflect := !o.config.DisableReflection
	if opts.Reflect != nil {
		doReflect = *opts.Reflect
	}
	var reflected *reflection.Result
	if doReflect && o.config.ReflectionFrequency > 0 && callIndex%o.config.ReflectionFrequency == 0 {
		mode := opts.ReflectionMode
		if mode == "" {
			mode = o.config.ReflectionMode
		}
		reflected, err = o.reflector.Reflect(ctx, reflection.Request{
			Query:     userPrompt,
			SessionID: opts.SessionID,
			Mode:      mode,
			TopK:      recallK,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "reflection failed")
			return nil, fmt.Errorf("running reflection: %w", err)
		}
	}

	latency := time.Since(start)
	CompletionsRun.WithLabelValues(o.client.Provider()).Inc()
	CompletionLatency.Observe(latency.Seconds())

	o.logger.Debug("completion integrated",
		zap.String("session_id", opts.SessionID),
		zap.String("model", model),
		zap.Int("stored", len(stored)),
		zap.Int("recalled", len(recalled)),
		zap.Bool("reflected", reflected != nil),
		zap.Duration("latency", latency),
	)

	return &CompletionResult{
		RawOutput:     raw,
		CleanedOutput: cleaned,
		Stored:        stored,
		Recalled:      recalled,
		Reflection:    reflected,
		ModelName:     model,
		Provider:      o.client.Provider(),
		LatencyMS:     float64(latency) / float64(time.Millisecond),
		PromptUsed:    enforced,
	}, nil
}

// recall merges a store-wide semantic search with prior-session lineage
// recall, deduplicated by id in arrival order. Unlike reflection recall,
// the current search is not filtered to the session: older sessions'
// thoughts are fair context for a live completion.
func (o *Orchestrator) recall(ctx context.Context, query, sessionID string, limit int) ([]*thought.Thought, error) {
	currentHits, err := o.store.Search(ctx, query, store.SearchOptions{
		Limit: limit,
		Alpha: recallAlpha,
	})
	if err != nil {
		return nil, fmt.Errorf("searching memory: %w", err)
	}

	recallOpts := store.RecallOptions{Limit: limit, Alpha: recallAlpha, Hops: 1}
	if o.graph != nil {
		recallOpts.Graph = o.graph
	}
	priorHits, err := o.store.RecallFromPriorSessions(ctx, query, sessionID, recallOpts)
	if err != nil {
		return nil, fmt.Errorf("recalling prior sessions: %w", err)
	}

	seen := make(map[string]struct{}, len(currentHits)+len(priorHits))
	merged := make([]*thought.Thought, 0, len(currentHits)+len(priorHits))
	for _, hits := range [][]thought.Scored{currentHits, priorHits} {
		for _, hit := range hits {
			if _, ok := seen[hit.Thought.ID]; ok {
				continue
			}
			seen[hit.Thought.ID] = struct{}{}
			merged = append(merged, hit.Thought)
		}
	}
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// ingestOutput persists tagged thoughts from raw model output. XML blocks
// win under xml enforcement, or under auto when any are present; with no
// XML blocks the slash pipeline handles the output, linear fallback
// included.
func (o *Orchestrator) ingestOutput(ctx context.Context, raw string, opts CompleteOptions, style prompt.EnforcementStyle) (string, []*thought.Thought, error) {
	category := opts.Category
	if category == "" {
		category = thought.CategoryReasoning
	}

	blocks := reflection.ParseStructured(raw, reflection.ParseDefaults{})
	useXML := style == prompt.EnforcementXML || (style == prompt.EnforcementAuto && len(blocks) > 0)

	if useXML && len(blocks) > 0 {
		stored, err := o.storeXMLBlocks(ctx, blocks, opts)
		if err != nil {
			return "", nil, err
		}
		return reflection.StripTags(raw), stored, nil
	}

	result, err := o.pipeline.Ingest(ctx, raw, pipeline.IngestOptions{
		SessionID: opts.SessionID,
		Category:  category,
		Tags:      opts.Tags,
	})
	if err != nil {
		return "", nil, err
	}
	return result.CleanedOutput, result.Thoughts, nil
}

func (o *Orchestrator) storeXMLBlocks(ctx context.Context, blocks []reflection.ParsedThought, opts CompleteOptions) ([]*thought.Thought, error) {
	contents := make([]string, len(blocks))
	for i, item := range blocks {
		contents[i] = item.Content
	}
	vectors, err := o.embedder.EmbedBatch(ctx, contents)
	if err != nil {
		return nil, fmt.Errorf("embedding thoughts: %w", err)
	}

	now := time.Now().UTC()
	stored := make([]*thought.Thought, len(blocks))
	for i, item := range blocks {
		stored[i] = &thought.Thought{
			ID:           item.ID,
			SessionID:    opts.SessionID,
			Category:     item.Category,
			Confidence:   item.Confidence,
			Tags:         opts.Tags,
			RawText:      item.Content,
			CleanedText:  item.Content,
			Embedding:    vectors[i],
			EmbeddingDim: len(vectors[i]),
			CreatedAt:    now,
		}
	}
	if err := o.store.PutBatch(ctx, stored); err != nil {
		return nil, fmt.Errorf("storing thoughts: %w", err)
	}

	if o.graph != nil {
		for _, t := range stored {
			if err := o.graph.AddThought(ctx, t, graph.AddOptions{SemanticNeighbors: -1}); err != nil {
				return nil, fmt.Errorf("registering thought %s: %w", t.ID, err)
			}
		}
	}
	for _, t := range stored {
		o.bus.PublishThoughtStored(t)
	}
	return stored, nil
}
