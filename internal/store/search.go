package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thoughtd/internal/thought"
)

const (
	// graphDecay discounts scores of thoughts reached through edges rather
	// than directly by similarity.
	graphDecay = 0.85

	// recallSeeds caps how many top hits seed graph expansion.
	recallSeeds = 5

	// recallNeighborCap bounds the neighbors fetched per seed.
	recallNeighborCap = 25
)

// NeighborSource walks thought-graph edges for recall expansion.
type NeighborSource interface {
	NeighborIDs(ctx context.Context, id string, hops, limit int) ([]string, error)
}

// SearchOptions configures hybrid semantic search.
type SearchOptions struct {
	// Filters narrows candidates by metadata before ranking.
	Filters thought.Filters

	// Limit caps the number of results. Default: 10.
	Limit int

	// Alpha blends semantic similarity against recency; zero applies the
	// 0.9 default. Must be within [0, 1].
	Alpha float64

	// MaxCandidates bounds the vector index fetch. Default: 500.
	MaxCandidates int
}

func (o *SearchOptions) applyDefaults() {
	if o.Limit == 0 {
		o.Limit = 10
	}
	if o.Alpha == 0 {
		o.Alpha = 0.9
	}
	if o.MaxCandidates == 0 {
		o.MaxCandidates = 500
	}
}

// RecallOptions configures cross-session recall.
type RecallOptions struct {
	// Limit caps the number of results. Default: 10.
	Limit int

	// Alpha blends semantic similarity against recency; zero applies the
	// 0.95 recall default.
	Alpha float64

	// Graph expands results through connected thoughts when set.
	Graph NeighborSource

	// Hops bounds the graph walk depth. Default: 1.
	Hops int
}

// SearchByVector ranks stored thoughts against a precomputed query embedding
// instead of embedding a query string. The thought graph uses it to find
// semantic neighbors for a thought that already carries its vector.
func (s *Store) SearchByVector(ctx context.Context, queryVec []float32, opts SearchOptions) ([]thought.Scored, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.searchVector(ctx, queryVec, opts)
}

// Search embeds the query and ranks stored thoughts by a blend of cosine
// similarity and recency.
func (s *Store) Search(ctx context.Context, query string, opts SearchOptions) ([]thought.Scored, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	ctx, span := storeTracer.Start(ctx, "Store.Search")
	defer span.End()

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := s.searchVector(ctx, queryVec, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("results", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// searchVector ranks stored thoughts against a precomputed query embedding.
func (s *Store) searchVector(ctx context.Context, queryVec []float32, opts SearchOptions) ([]thought.Scored, error) {
	opts.applyDefaults()
	if opts.Alpha < 0 || opts.Alpha > 1 {
		return nil, fmt.Errorf("alpha must be within [0, 1], got %g", opts.Alpha)
	}

	start := time.Now()
	defer func() {
		QueryDuration.WithLabelValues("search").Observe(time.Since(start).Seconds())
	}()

	// Over-fetch so metadata filters still leave enough candidates.
	topK := max(opts.Limit*10, min(opts.MaxCandidates, 1000))

	s.mu.RLock()
	hits, err := s.index.Search(ctx, queryVec, topK)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("searching vector index: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	semantic := make(map[string]float64, len(hits))
	ids := make([]string, len(hits))
	for i, hit := range hits {
		semantic[hit.ID] = hit.Score
		ids[i] = hit.ID
	}

	candidates, err := s.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	filtered := candidates[:0]
	for _, t := range candidates {
		if opts.Filters.Matches(t) {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	ages := make([]float64, len(filtered))
	maxAge := 1.0
	for i, t := range filtered {
		ages[i] = math.Max(0, now.Sub(t.CreatedAt).Seconds())
		if ages[i] > maxAge {
			maxAge = ages[i]
		}
	}

	scored := make([]thought.Scored, len(filtered))
	for i, t := range filtered {
		sem, ok := semantic[t.ID]
		if !ok {
			sem = -1
		}
		recency := 1 - ages[i]/maxAge
		scored[i] = thought.Scored{
			Thought:       t,
			SemanticScore: sem,
			RecencyScore:  recency,
			Score:         opts.Alpha*sem + (1-opts.Alpha)*recency,
		}
	}

	sortScored(scored)
	if n := max(1, opts.Limit); len(scored) > n {
		scored = scored[:n]
	}

	SearchResults.Observe(float64(len(scored)))
	s.logger.Debug("search completed",
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(scored)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return scored, nil
}

// RecallFromPriorSessions retrieves thoughts from the session's ancestors,
// optionally expanded through the thought graph. The current session's own
// thoughts never appear in the results.
func (s *Store) RecallFromPriorSessions(ctx context.Context, query, sessionID string, opts RecallOptions) ([]thought.Scored, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	ctx, span := storeTracer.Start(ctx, "Store.RecallFromPriorSessions")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", sessionID))

	if opts.Limit == 0 {
		opts.Limit = 10
	}
	if opts.Alpha == 0 {
		opts.Alpha = 0.95
	}
	if opts.Hops == 0 {
		opts.Hops = 1
	}

	start := time.Now()
	defer func() {
		QueryDuration.WithLabelValues("recall").Observe(time.Since(start).Seconds())
	}()

	ancestors, err := s.lineage(ctx, sessionID, false)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(ancestors) == 0 {
		span.SetStatus(codes.Ok, "no ancestors")
		return nil, nil
	}
	lineageSet := make(map[string]bool, len(ancestors))
	for _, id := range ancestors {
		lineageSet[id] = true
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// Search wide, then narrow to the lineage.
	wide, err := s.searchVector(ctx, queryVec, SearchOptions{
		Limit: max(30, opts.Limit*4),
		Alpha: opts.Alpha,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var semantic []thought.Scored //nolint:prealloc // unknown until filtered
	for _, item := range wide {
		if lineageSet[item.Thought.SessionID] {
			semantic = append(semantic, item)
		}
	}

	limit := max(1, opts.Limit)
	if opts.Graph == nil || opts.Hops <= 0 {
		if len(semantic) > limit {
			semantic = semantic[:limit]
		}
		span.SetAttributes(attribute.Int("results", len(semantic)))
		span.SetStatus(codes.Ok, "success")
		return semantic, nil
	}

	expanded := make(map[string]thought.Scored, len(semantic))
	for _, item := range semantic {
		expanded[item.Thought.ID] = item
	}

	seeds := semantic
	if len(seeds) > recallSeeds {
		seeds = seeds[:recallSeeds]
	}
	for _, seed := range seeds {
		neighborIDs, err := opts.Graph.NeighborIDs(ctx, seed.Thought.ID, opts.Hops, recallNeighborCap)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("expanding thought graph: %w", err)
		}
		for _, id := range neighborIDs {
			if _, seen := expanded[id]; seen {
				continue
			}
			nt, err := s.Get(ctx, id)
			if err != nil {
				if errors.Is(err, thought.ErrNotFound) {
					continue
				}
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			if !lineageSet[nt.SessionID] {
				continue
			}
			expanded[id] = thought.Scored{
				Thought:       nt,
				SemanticScore: seed.SemanticScore * graphDecay,
				RecencyScore:  seed.RecencyScore,
				Score:         seed.Score * graphDecay,
			}
		}
	}

	results := make([]thought.Scored, 0, len(expanded))
	for _, item := range expanded {
		results = append(results, item)
	}
	sortScored(results)
	if len(results) > limit {
		results = results[:limit]
	}

	span.SetAttributes(attribute.Int("results", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// sortScored orders by blended score descending, breaking ties newest first.
func sortScored(items []thought.Scored) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Thought.CreatedAt.After(items[j].Thought.CreatedAt)
	})
}
