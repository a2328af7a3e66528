// Package pipeline turns tagged model output into embedded, persisted,
// graph-registered thoughts.
//
// Ingest is the write path shared by the HTTP API, the MCP server, the
// agent orchestrator, and the CLI: parse annotations (with the linear
// engine as fallback for nested brackets), clean the visible text, embed
// every extracted thought, store the batch atomically, register graph
// nodes, and publish stored events. ImportJSONL and the spool Watcher
// feed the same path from files.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thoughtd/internal/embeddings"
	"github.com/fyrsmithlabs/thoughtd/internal/events"
	"github.com/fyrsmithlabs/thoughtd/internal/graph"
	"github.com/fyrsmithlabs/thoughtd/internal/store"
	"github.com/fyrsmithlabs/thoughtd/internal/tagparse"
	"github.com/fyrsmithlabs/thoughtd/internal/thought"
)

// Engine names reported in IngestResult.
const (
	EngineLazy   = "lazy"
	EngineLinear = "linear"
)

var pipelineTracer = otel.Tracer("thoughtd.pipeline")

// Pipeline wires parsing, embedding, storage, graph registration, and
// event publishing into one ingestion path.
type Pipeline struct {
	store    *store.Store
	graph    *graph.Graph
	embedder embeddings.Provider
	bus      *events.Bus
	logger   *zap.Logger
}

// New creates a pipeline. The store and embedder are required; a nil
// graph skips node registration, a nil bus skips event publishing, a nil
// logger disables logging.
func New(s *store.Store, g *graph.Graph, embedder embeddings.Provider, bus *events.Bus, logger *zap.Logger) (*Pipeline, error) {
	if s == nil {
		return nil, errors.New("pipeline: store is required")
	}
	if embedder == nil {
		return nil, errors.New("pipeline: embedder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{store: s, graph: g, embedder: embedder, bus: bus, logger: logger}, nil
}

// IngestOptions configures one Ingest call.
type IngestOptions struct {
	// SessionID is the session the thoughts belong to. Required.
	SessionID string

	// Category for every stored thought. Empty means "reasoning".
	Category string

	// Confidence for every stored thought. Zero means the default 0.9.
	Confidence float64

	// Tags applied to every stored thought.
	Tags []string

	// Tag is the annotation name to extract. Empty means "thought".
	Tag string

	// DisableLinearFallback keeps the lazy result even when the linear
	// engine captures more.
	DisableLinearFallback bool

	// SemanticNeighbors, when positive, also links each registered
	// thought to up to that many semantic neighbors. Zero or negative
	// links temporally only.
	SemanticNeighbors int
}

func (o IngestOptions) applyDefaults() IngestOptions {
	if o.Category == "" {
		o.Category = thought.CategoryReasoning
	}
	if o.Confidence == 0 {
		o.Confidence = thought.DefaultConfidence
	}
	if o.Tag == "" {
		o.Tag = tagparse.DefaultTag
	}
	return o
}

// IngestResult reports what one Ingest call extracted and stored.
type IngestResult struct {
	// SessionID echoes the target session.
	SessionID string `json:"session_id"`

	// Thoughts are the stored thoughts in document order.
	Thoughts []*thought.Thought `json:"thoughts"`

	// CleanedOutput is the input with annotations removed.
	CleanedOutput string `json:"cleaned_output"`

	// Engine is the parse engine whose result was stored.
	Engine string `json:"engine"`

	// LatencyMS is the wall-clock cost of the full call.
	LatencyMS float64 `json:"latency_ms"`
}

// Ingest parses raw tagged output and persists every extracted thought.
//
// The lazy engine parses first. Unless disabled, the linear engine runs
// too and wins when it captures more tags, or longer content for any tag,
// which recovers nested-bracket truncation. The cleaned output always
// comes from the winning engine. Storage is a single batch; a failed call
// persists nothing.
func (p *Pipeline) Ingest(ctx context.Context, raw string, opts IngestOptions) (*IngestResult, error) {
	if strings.TrimSpace(opts.SessionID) == "" {
		return nil, thought.ErrEmptySessionID
	}
	opts = opts.applyDefaults()

	ctx, span := pipelineTracer.Start(ctx, "Pipeline.Ingest")
	span.SetAttributes(
		attribute.String("session.id", opts.SessionID),
		attribute.String("tag", opts.Tag),
	)
	defer span.End()
	start := time.Now()

	lazy, err := tagparse.Parse(raw, opts.Tag)
	if err != nil {
		return nil, err
	}
	chosen, engine := lazy, EngineLazy
	if !opts.DisableLinearFallback {
		linear, err := tagparse.ParseLinear(raw, opts.Tag)
		if err != nil {
			return nil, err
		}
		if preferLinear(lazy, linear) {
			chosen, engine = linear, EngineLinear
			LinearFallbacks.Inc()
		}
	}

	var cleaned string
	if engine == EngineLinear {
		cleaned, err = tagparse.CleanLinear(raw, opts.Tag)
	} else {
		cleaned, err = tagparse.Clean(raw, opts.Tag)
	}
	if err != nil {
		return nil, err
	}

	thoughts, err := p.storeEntries(ctx, chosen, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		return nil, err
	}
	if err := p.registerThoughts(ctx, thoughts, opts.SemanticNeighbors); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "graph registration failed")
		return nil, err
	}
	for _, t := range thoughts {
		p.bus.PublishThoughtStored(t)
	}

	latency := time.Since(start)
	ThoughtsIngested.Add(float64(len(thoughts)))
	IngestDuration.Observe(latency.Seconds())

	p.logger.Debug("ingested tagged output",
		zap.String("session_id", opts.SessionID),
		zap.String("engine", engine),
		zap.Int("thoughts", len(thoughts)),
		zap.Duration("latency", latency),
	)

	return &IngestResult{
		SessionID:     opts.SessionID,
		Thoughts:      thoughts,
		CleanedOutput: cleaned,
		Engine:        engine,
		LatencyMS:     float64(latency) / float64(time.Millisecond),
	}, nil
}

// preferLinear reports whether the linear result should replace the lazy
// one: strictly more tags, or strictly longer content under any shared
// key.
func preferLinear(lazy, linear tagparse.ThoughtMap) bool {
	if linear.Len() > lazy.Len() {
		return true
	}
	if linear.Len() == 0 {
		return false
	}
	for _, entry := range linear {
		lazyContent, _ := lazy.Get(entry.Key)
		if len(entry.Content) > len(lazyContent) {
			return true
		}
	}
	return false
}

// storeEntries embeds and batch-stores the extracted entries. The batch
// shares one timestamp so temporal ordering within the call is stable.
func (p *Pipeline) storeEntries(ctx context.Context, entries tagparse.ThoughtMap, opts IngestOptions) ([]*thought.Thought, error) {
	if entries.Len() == 0 {
		return nil, nil
	}

	vectors, err := p.embedder.EmbedBatch(ctx, entries.Contents())
	if err != nil {
		return nil, fmt.Errorf("embedding thoughts: %w", err)
	}

	now := time.Now().UTC()
	thoughts := make([]*thought.Thought, entries.Len())
	for i, entry := range entries {
		thoughts[i] = &thought.Thought{
			ID:           uuid.New().String(),
			SessionID:    opts.SessionID,
			Category:     opts.Category,
			Confidence:   opts.Confidence,
			Tags:         opts.Tags,
			RawText:      entry.Content,
			CleanedText:  entry.Content,
			Embedding:    vectors[i],
			EmbeddingDim: len(vectors[i]),
			CreatedAt:    now,
		}
	}
	if err := p.store.PutBatch(ctx, thoughts); err != nil {
		return nil, fmt.Errorf("storing thoughts: %w", err)
	}
	return thoughts, nil
}

// registerThoughts adds stored thoughts to the graph. Temporal links are
// always drawn; semantic links only when requested.
func (p *Pipeline) registerThoughts(ctx context.Context, thoughts []*thought.Thought, semanticNeighbors int) error {
	if p.graph == nil {
		return nil
	}
	addOpts := graph.AddOptions{SemanticNeighbors: -1}
	if semanticNeighbors > 0 {
		addOpts.SemanticNeighbors = semanticNeighbors
	}
	for _, t := range thoughts {
		if err := p.graph.AddThought(ctx, t, addOpts); err != nil {
			return fmt.Errorf("registering thought %s: %w", t.ID, err)
		}
	}
	return nil
}
