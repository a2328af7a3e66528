// Package reflection synthesizes and stores meta-thoughts. A reflection
// cycle recalls relevant memory, prompts a model (or a deterministic
// fallback) for structured <thought> blocks, persists the parsed results,
// and links them back to the recalled context in the thought graph.
package reflection

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
	"github.com/fyrsmithlabs/thoughtd/internal/prompt"
	"github.com/fyrsmithlabs/thoughtd/internal/store"
	"github.com/fyrsmithlabs/thoughtd/internal/thought"
)

// DefaultTopK bounds the recalled context when a request does not set one.
const DefaultTopK = 8

const recallAlpha = 0.95

var reflectionTracer = otel.Tracer("thoughtd.reflection")

// CompleteFunc produces model output for a reflection prompt.
type CompleteFunc func(ctx context.Context, promptText string) (string, error)

// Engine runs reflection cycles against a store and, optionally, a graph.
type Engine struct {
	store    *store.Store
	graph    *graph.Graph
	embedder embeddings.Provider
	bus      *events.Bus
	logger   *zap.Logger
}

// New creates a reflection engine. The store and embedder are required;
// a nil graph disables edge creation, a nil bus disables event publishing,
// a nil logger disables logging.
func New(s *store.Store, g *graph.Graph, embedder embeddings.Provider, bus *events.Bus, logger *zap.Logger) (*Engine, error) {
	if s == nil {
		return nil, errors.New("reflection: store is required")
	}
	if embedder == nil {
		return nil, errors.New("reflection: embedder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: s, graph: g, embedder: embedder, bus: bus, logger: logger}, nil
}

// Request describes one reflection cycle.
type Request struct {
	// Query seeds recall and the reflection prompt.
	Query string

	// SessionID is the session being reflected on.
	SessionID string

	// Mode selects the reflection template. Empty means reasoning.
	Mode string

	// TopK bounds the recalled context. Zero applies DefaultTopK.
	TopK int

	// ReflectionSessionID, when set and different from SessionID, stores
	// the reflections in a child session parented to SessionID.
	ReflectionSessionID string

	// Complete produces the reflection text from the built prompt. Nil
	// synthesizes a deterministic reflection from the recalled thoughts,
	// which keeps the cycle usable without a model.
	Complete CompleteFunc
}

// Result is the outcome of one reflection cycle.
type Result struct {
	// ReflectionText is the raw model (or fallback) output.
	ReflectionText string `json:"reflection_text"`

	// PromptUsed is the fully rendered reflection prompt.
	PromptUsed string `json:"prompt_used"`

	// Recalled is the context presented to the model, best first.
	Recalled []*thought.Thought `json:"recalled"`

	// Stored holds the reflections persisted from the output.
	Stored []*thought.Thought `json:"stored"`

	// LatencyMS spans recall through storage.
	LatencyMS float64 `json:"latency_ms"`
}

// Reflect runs one reflection cycle and persists the generated
// meta-thoughts.
func (e *Engine) Reflect(ctx context.Context, req Request) (*Result, error) {
	mode := req.Mode
	if mode == "" {
		mode = prompt.ModeReasoning
	}
	if _, ok := prompt.ReflectionTemplates[mode]; !ok {
		return nil, fmt.Errorf("%w: %s", prompt.ErrUnsupportedMode, mode)
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, thought.ErrEmptySessionID
	}
	topK := req.TopK
	if topK == 0 {
		topK = DefaultTopK
	}
	if topK < 1 {
		topK = 1
	}

	ctx, span := reflectionTracer.Start(ctx, "Engine.Reflect")
	span.SetAttributes(
		attribute.String("reflection.mode", mode),
		attribute.String("session.id", req.SessionID),
	)
	defer span.End()

	start := time.Now()

	recalled, err := e.recallContext(ctx, req.Query, req.SessionID, topK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recall failed")
		return nil, err
	}

	contextBlock := prompt.ContextBlock(recalled)
	if contextBlock == "" {
		contextBlock = "- (none)"
	}
	promptText, err := prompt.BuildReflectionPrompt(mode, req.Query, contextBlock)
	if err != nil {
		return nil, err
	}

	var reflectionText string
	if req.Complete != nil {
		reflectionText, err = req.Complete(ctx, promptText)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "completion failed")
			return nil, fmt.Errorf("completing reflection prompt: %w", err)
		}
	} else {
		reflectionText = fallbackReflection(mode, req.Query, recalled)
	}

	defaultCategory := thought.CategoryReflection
	if mode == prompt.ModePlanning {
		defaultCategory = thought.CategoryPlan
	}
	parsed := ParseStructured(reflectionText, ParseDefaults{Category: defaultCategory})

	sessionID, err := e.ensureSession(ctx, req.SessionID, req.ReflectionSessionID)
	if err != nil {
		return nil, err
	}

	stored, err := e.storeReflections(ctx, sessionID, mode, parsed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		return nil, err
	}
	if err := e.linkReflections(ctx, mode, recalled, stored); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "link failed")
		return nil, err
	}

	latency := time.Since(start)
	ReflectionsRun.WithLabelValues(mode).Inc()
	ReflectionsStored.Add(float64(len(stored)))
	ReflectionLatency.Observe(latency.Seconds())

	if len(stored) > 0 {
		ids := make([]string, len(stored))
		for i, t := range stored {
			ids[i] = t.ID
		}
		e.bus.PublishReflectionCreated(events.ReflectionCreated{
			SessionID:  sessionID,
			Mode:       mode,
			ThoughtIDs: ids,
			LatencyMS:  float64(latency) / float64(time.Millisecond),
		})
	}

	e.logger.Debug("reflection cycle complete",
		zap.String("mode", mode),
		zap.String("session_id", sessionID),
		zap.Int("recalled", len(recalled)),
		zap.Int("stored", len(stored)),
		zap.Duration("latency", latency),
	)

	return &Result{
		ReflectionText: reflectionText,
		PromptUsed:     promptText,
		Recalled:       recalled,
		Stored:         stored,
		LatencyMS:      float64(latency) / float64(time.Millisecond),
	}, nil
}

// recallContext merges current-session search hits with prior-session
// lineage recall, deduplicated by id in arrival order.
func (e *Engine) recallContext(ctx context.Context, query, sessionID string, topK int) ([]*thought.Thought, error) {
	currentHits, err := e.store.Search(ctx, query, store.SearchOptions{
		Filters: thought.Filters{SessionID: sessionID},
		Limit:   topK,
		Alpha:   recallAlpha,
	})
	if err != nil {
		return nil, fmt.Errorf("searching current session: %w", err)
	}

	recallOpts := store.RecallOptions{Limit: topK, Alpha: recallAlpha, Hops: 1}
	if e.graph != nil {
		recallOpts.Graph = e.graph
	}
	priorHits, err := e.store.RecallFromPriorSessions(ctx, query, sessionID, recallOpts)
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
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}

// ensureSession creates the target session row, parenting a distinct
// reflection session under the current one.
func (e *Engine) ensureSession(ctx context.Context, sessionID, reflectionSessionID string) (string, error) {
	target := strings.TrimSpace(reflectionSessionID)
	if target != "" && target != sessionID {
		err := e.store.PutSession(ctx, &thought.Session{ID: target, ParentID: sessionID})
		if err != nil {
			return "", fmt.Errorf("creating reflection session: %w", err)
		}
		return target, nil
	}
	if err := e.store.PutSession(ctx, &thought.Session{ID: sessionID}); err != nil {
		return "", fmt.Errorf("ensuring session: %w", err)
	}
	return sessionID, nil
}

func (e *Engine) storeReflections(ctx context.Context, sessionID, mode string, parsed []ParsedThought) ([]*thought.Thought, error) {
	if len(parsed) == 0 {
		return nil, nil
	}

	contents := make([]string, len(parsed))
	for i, item := range parsed {
		contents[i] = item.Content
	}
	vectors, err := e.embedder.EmbedBatch(ctx, contents)
	if err != nil {
		return nil, fmt.Errorf("embedding reflections: %w", err)
	}

	now := time.Now().UTC()
	toStore := make([]*thought.Thought, len(parsed))
	for i, item := range parsed {
		toStore[i] = &thought.Thought{
			ID:           item.ID,
			SessionID:    sessionID,
			Category:     item.Category,
			Confidence:   item.Confidence,
			Tags:         []string{"reflection", mode},
			RawText:      item.Content,
			CleanedText:  item.Content,
			Embedding:    vectors[i],
			EmbeddingDim: len(vectors[i]),
			CreatedAt:    now,
		}
	}
	if err := e.store.PutBatch(ctx, toStore); err != nil {
		return nil, fmt.Errorf("storing reflections: %w", err)
	}
	return toStore, nil
}

// linkReflections registers stored reflections as graph nodes (temporal
// links only) and draws an explicit-reference edge from the top recalled
// thought to each one.
func (e *Engine) linkReflections(ctx context.Context, mode string, recalled, stored []*thought.Thought) error {
	if e.graph == nil || len(stored) == 0 {
		return nil
	}

	edges := make([]graph.Edge, 0, len(stored))
	for _, t := range stored {
		if err := e.graph.AddThought(ctx, t, graph.AddOptions{SemanticNeighbors: -1}); err != nil {
			return fmt.Errorf("registering reflection %s: %w", t.ID, err)
		}
		if len(recalled) > 0 {
			edges = append(edges, graph.Edge{
				Source:   recalled[0].ID,
				Target:   t.ID,
				Relation: graph.RelationExplicitReference,
				Weight:   1.0,
				Metadata: map[string]any{"mode": mode},
			})
		}
	}
	if len(edges) == 0 {
		return nil
	}
	if err := e.graph.LinkMany(ctx, edges); err != nil {
		return fmt.Errorf("linking reflections: %w", err)
	}
	return nil
}

// fallbackReflection synthesizes a two-block reflection from the top
// recalled thoughts so cycles stay useful without a model behind them.
func fallbackReflection(mode, query string, recalled []*thought.Thought) string {
	var first, second string
	switch {
	case len(recalled) > 1:
		first, second = recalled[0].CleanedText, recalled[1].CleanedText
	case len(recalled) == 1:
		first, second = recalled[0].CleanedText, recalled[0].CleanedText
	default:
		first = "No prior memory for query: " + query
		second = "Need additional evidence before confidence increases."
	}

	switch mode {
	case prompt.ModeSummarization:
		return fallbackBlock(thought.CategorySummary, "0.93", "Summary memory: "+first) + "\n" +
			fallbackBlock(thought.CategorySummary, "0.88", "Actionable summary: "+second)
	case prompt.ModeContradictionDetection:
		return fallbackBlock(thought.CategoryReflection, "0.91", "Potential contradiction check: "+first) + "\n" +
			fallbackBlock(thought.CategoryReflection, "0.86", "Reconciliation candidate: "+second)
	case prompt.ModePlanning:
		return fallbackBlock(thought.CategoryPlan, "0.92", "Next step: operationalize "+first) + "\n" +
			fallbackBlock(thought.CategoryPlan, "0.87", "Validation step: verify against "+second)
	default:
		return fallbackBlock(thought.CategoryReflection, "0.94", "Reasoning check: "+first) + "\n" +
			fallbackBlock(thought.CategoryReflection, "0.89", "Risk note: "+second)
	}
}

func fallbackBlock(category, confidence, text string) string {
	return fmt.Sprintf("<thought id=%q category=%q confidence=%q>%s</thought>",
		uuid.New().String(), category, confidence, text)
}
