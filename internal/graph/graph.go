// Package graph maintains a directed graph over stored thoughts in the same
// SQLite database as the store.
//
// Edges carry a relation label and a weight. Ingest wires two kinds of edges
// automatically: a temporal-successor link from the session's previous
// thought, and semantic-similarity links from stored thoughts whose cosine
// similarity clears a threshold. Traversals (neighbors, paths, clusters,
// temporal ranges) read the tables directly; the graph holds no in-memory
// mirror.
package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thoughtd/internal/store"
	"github.com/fyrsmithlabs/thoughtd/internal/thought"
)

// Well-known edge relations. Relation labels are free-form strings; these are
// the values written by automatic linking and the reflection engine.
const (
	RelationSemanticSimilarity = "semantic-similarity"
	RelationExplicitReference  = "explicit-reference"
	RelationTemporalSuccessor  = "temporal-successor"
)

// Defaults applied by the traversal and linking options.
const (
	DefaultSemanticNeighbors = 3
	DefaultSemanticThreshold = 0.80
	DefaultNeighborLimit     = 100
	DefaultPathDepth         = 4
	DefaultPathLimit         = 10
	DefaultRangeLimit        = 200
)

// semanticFetchPad widens the candidate fetch beyond the neighbor budget so
// threshold filtering still has candidates to drop.
const semanticFetchPad = 5

var graphTracer = otel.Tracer("thoughtd.graph")

// Edge is one directed link between two thoughts.
type Edge struct {
	Source   string
	Target   string
	Relation string
	Weight   float64
	Metadata map[string]any
}

// Graph persists and traverses thought edges. It shares the store's database
// handle; the schema is created by the store's migrations.
type Graph struct {
	store  *store.Store
	db     *sql.DB
	logger *zap.Logger
}

var _ store.NeighborSource = (*Graph)(nil)

// New creates a thought graph over the given store.
func New(s *store.Store, logger *zap.Logger) (*Graph, error) {
	if s == nil {
		return nil, errors.New("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Graph{store: s, db: s.DB(), logger: logger}, nil
}

// AddOptions configures automatic linking when a thought joins the graph.
type AddOptions struct {
	// SemanticNeighbors bounds the similarity-link candidate fetch.
	// Default: 3; negative disables semantic linking.
	SemanticNeighbors int

	// SemanticThreshold is the minimum cosine similarity for an automatic
	// link. Default: 0.80.
	SemanticThreshold float64

	// SkipTemporalLink suppresses the edge from the session's previous
	// thought.
	SkipTemporalLink bool
}

// AddThought registers a thought as a graph node and wires its automatic
// edges. The thought is stored first if the store does not have it yet.
// Temporal-successor points from the session's previous graph node to this
// one; semantic-similarity edges point from each sufficiently similar stored
// thought to this one, weighted by similarity.
func (g *Graph) AddThought(ctx context.Context, t *thought.Thought, opts AddOptions) error {
	if t == nil {
		return errors.New("nil thought")
	}

	ctx, span := graphTracer.Start(ctx, "Graph.AddThought")
	defer span.End()
	span.SetAttributes(attribute.String("thought_id", t.ID))

	if opts.SemanticNeighbors == 0 {
		opts.SemanticNeighbors = DefaultSemanticNeighbors
	}
	if opts.SemanticThreshold == 0 {
		opts.SemanticThreshold = DefaultSemanticThreshold
	}

	if _, err := g.store.Get(ctx, t.ID); err != nil {
		if !errors.Is(err, thought.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		if err := g.store.Put(ctx, t); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	_, err := g.db.ExecContext(ctx, `
		INSERT INTO thought_graph_nodes (thought_id, session_id, timestamp_utc, metadata_json)
		VALUES (?, ?, ?, '{}')
		ON CONFLICT(thought_id) DO UPDATE SET
			session_id = excluded.session_id,
			timestamp_utc = excluded.timestamp_utc
	`, t.ID, t.SessionID, store.FormatTime(t.CreatedAt))
	if err != nil {
		err = fmt.Errorf("saving graph node: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	NodesAdded.Inc()

	if !opts.SkipTemporalLink {
		if err := g.linkTemporalSuccessor(ctx, t); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	if opts.SemanticNeighbors > 0 {
		if err := g.linkSemanticNeighbors(ctx, t, opts); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	span.SetStatus(codes.Ok, "success")
	g.logger.Debug("thought added to graph",
		zap.String("thought_id", t.ID),
		zap.String("session_id", t.SessionID),
	)
	return nil
}

// linkTemporalSuccessor links the session's most recent earlier graph node to
// the new thought.
func (g *Graph) linkTemporalSuccessor(ctx context.Context, t *thought.Thought) error {
	row := g.db.QueryRowContext(ctx, `
		SELECT thought_id FROM thought_graph_nodes
		WHERE session_id = ? AND thought_id != ? AND timestamp_utc <= ?
		ORDER BY timestamp_utc DESC
		LIMIT 1
	`, t.SessionID, t.ID, store.FormatTime(t.CreatedAt))

	var prev string
	if err := row.Scan(&prev); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("querying previous thought: %w", err)
	}
	return g.Link(ctx, prev, t.ID, LinkOptions{Relation: RelationTemporalSuccessor})
}

func (g *Graph) linkSemanticNeighbors(ctx context.Context, t *thought.Thought, opts AddOptions) error {
	nearest, err := g.store.SearchByVector(ctx, t.Embedding, store.SearchOptions{
		Limit: opts.SemanticNeighbors + semanticFetchPad,
		Alpha: 1.0,
	})
	if err != nil {
		return fmt.Errorf("finding semantic neighbors: %w", err)
	}
	for _, item := range nearest {
		if item.Thought.ID == t.ID {
			continue
		}
		if item.SemanticScore < opts.SemanticThreshold {
			continue
		}
		err := g.Link(ctx, item.Thought.ID, t.ID, LinkOptions{
			Relation: RelationSemanticSimilarity,
			Weight:   item.SemanticScore,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// LinkOptions configures a single Link call.
type LinkOptions struct {
	// Relation labels the edge.
	Relation string

	// Weight is the edge weight; zero applies the 1.0 default.
	Weight float64

	// Metadata holds arbitrary edge annotations.
	Metadata map[string]any

	// Bidirectional also inserts the reverse edge.
	Bidirectional bool
}

// Link creates a directed edge between two thoughts. Linking a thought to
// itself is a silent no-op.
func (g *Graph) Link(ctx context.Context, src, dst string, opts LinkOptions) error {
	if strings.TrimSpace(src) == "" || strings.TrimSpace(dst) == "" {
		return errors.New("source and target ids must be non-empty")
	}
	if src == dst {
		return nil
	}
	if opts.Weight < 0 {
		return fmt.Errorf("edge weight must be non-negative, got %g", opts.Weight)
	}
	weight := opts.Weight
	if weight == 0 {
		weight = 1.0
	}

	edges := []Edge{{Source: src, Target: dst, Relation: opts.Relation, Weight: weight, Metadata: opts.Metadata}}
	if opts.Bidirectional {
		edges = append(edges, Edge{Source: dst, Target: src, Relation: opts.Relation, Weight: weight, Metadata: opts.Metadata})
	}
	return g.LinkMany(ctx, edges)
}

// LinkMany inserts edges atomically in one transaction. Self-links are
// skipped; weights are taken as given.
func (g *Graph) LinkMany(ctx context.Context, edges []Edge) error {
	if len(edges) == 0 {
		return nil
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO thought_graph_edges (
			source_id, target_id, relation, weight, created_at_utc, metadata_json
		) VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing edge statement: %w", err)
	}
	defer stmt.Close()

	now := store.FormatTime(time.Now().UTC())
	inserted := make(map[string]int)
	for _, e := range edges {
		if e.Source == e.Target {
			continue
		}
		metadata := e.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadataJSON, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshalling edge metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, e.Source, e.Target, e.Relation, e.Weight, now, string(metadataJSON)); err != nil {
			return fmt.Errorf("saving edge %s->%s: %w", e.Source, e.Target, err)
		}
		inserted[e.Relation]++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	for relation, n := range inserted {
		EdgesCreated.WithLabelValues(relation).Add(float64(n))
	}
	return nil
}

// NeighborOptions configures a Neighbors traversal.
type NeighborOptions struct {
	// Hops bounds the walk depth. Default: 1; negative yields no
	// neighbors.
	Hops int

	// Limit caps the number of returned ids. Default: 100.
	Limit int

	// Relations filters edges to these labels when non-empty.
	Relations []string
}

// Neighbors walks outgoing edges breadth-first and returns reachable thought
// ids, excluding the origin.
func (g *Graph) Neighbors(ctx context.Context, id string, opts NeighborOptions) ([]string, error) {
	ctx, span := graphTracer.Start(ctx, "Graph.Neighbors")
	defer span.End()
	span.SetAttributes(attribute.String("thought_id", id))

	if opts.Hops == 0 {
		opts.Hops = 1
	}
	if opts.Limit == 0 {
		opts.Limit = DefaultNeighborLimit
	}
	if opts.Hops < 0 || opts.Limit < 0 {
		return nil, nil
	}

	var relationSet map[string]bool
	if len(opts.Relations) > 0 {
		relationSet = make(map[string]bool, len(opts.Relations))
		for _, rel := range opts.Relations {
			relationSet[rel] = true
		}
	}

	type visit struct {
		id    string
		depth int
	}
	seen := map[string]bool{id: true}
	var out []string
	queue := []visit{{id: id, depth: 0}}

	for len(queue) > 0 && len(out) < opts.Limit {
		node := queue[0]
		queue = queue[1:]
		if node.depth >= opts.Hops {
			continue
		}

		remaining := max(1, opts.Limit-len(out))
		// Bound edge fan-out per node to keep traversal latency predictable.
		fetchCap := max(remaining*2, 8)

		edges, err := g.outgoingEdges(ctx, node.id, fetchCap)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		for _, edge := range edges {
			if relationSet != nil && !relationSet[edge.relation] {
				continue
			}
			if seen[edge.target] {
				continue
			}
			seen[edge.target] = true
			out = append(out, edge.target)
			queue = append(queue, visit{id: edge.target, depth: node.depth + 1})
		}
	}

	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	span.SetAttributes(attribute.Int("neighbors", len(out)))
	span.SetStatus(codes.Ok, "success")
	return out, nil
}

// NeighborIDs adapts the graph to the store's recall expansion interface.
func (g *Graph) NeighborIDs(ctx context.Context, id string, hops, limit int) ([]string, error) {
	return g.Neighbors(ctx, id, NeighborOptions{Hops: hops, Limit: limit})
}

type outEdge struct {
	target   string
	relation string
}

func (g *Graph) outgoingEdges(ctx context.Context, id string, fetchCap int) ([]outEdge, error) {
	rows, err := g.db.QueryContext(ctx,
		"SELECT target_id, relation FROM thought_graph_edges WHERE source_id = ? LIMIT ?",
		id, fetchCap)
	if err != nil {
		return nil, fmt.Errorf("querying edges: %w", err)
	}
	defer rows.Close()

	var edges []outEdge //nolint:prealloc // size unknown from query
	for rows.Next() {
		var e outEdge
		if err := rows.Scan(&e.target, &e.relation); err != nil {
			return nil, fmt.Errorf("scanning edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating edges: %w", err)
	}
	return edges, nil
}

// PathOptions configures a Paths search.
type PathOptions struct {
	// MaxDepth bounds the number of edges in a path. Default: 4.
	MaxDepth int

	// Limit caps the number of returned paths. Default: 10.
	Limit int

	// Relations filters edges to these labels when non-empty.
	Relations []string
}

// Paths finds directed, cycle-free paths from src to dst by bounded
// breadth-first search over the full edge set.
func (g *Graph) Paths(ctx context.Context, src, dst string, opts PathOptions) ([][]string, error) {
	if src == dst {
		return [][]string{{src}}, nil
	}
	if opts.MaxDepth == 0 {
		opts.MaxDepth = DefaultPathDepth
	}
	if opts.Limit == 0 {
		opts.Limit = DefaultPathLimit
	}

	var relationSet map[string]bool
	if len(opts.Relations) > 0 {
		relationSet = make(map[string]bool, len(opts.Relations))
		for _, rel := range opts.Relations {
			relationSet[rel] = true
		}
	}

	rows, err := g.db.QueryContext(ctx, "SELECT source_id, target_id, relation FROM thought_graph_edges")
	if err != nil {
		return nil, fmt.Errorf("querying edges: %w", err)
	}
	defer rows.Close()

	adjacency := make(map[string][]outEdge)
	for rows.Next() {
		var source string
		var e outEdge
		if err := rows.Scan(&source, &e.target, &e.relation); err != nil {
			return nil, fmt.Errorf("scanning edge: %w", err)
		}
		adjacency[source] = append(adjacency[source], e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating edges: %w", err)
	}

	var paths [][]string
	queue := [][]string{{src}}
	for len(queue) > 0 && len(paths) < opts.Limit {
		path := queue[0]
		queue = queue[1:]
		if len(path)-1 >= opts.MaxDepth {
			continue
		}
		last := path[len(path)-1]
		for _, edge := range adjacency[last] {
			if relationSet != nil && !relationSet[edge.relation] {
				continue
			}
			if containsID(path, edge.target) {
				continue
			}
			next := make([]string, len(path), len(path)+1)
			copy(next, path)
			next = append(next, edge.target)
			if edge.target == dst {
				paths = append(paths, next)
				if len(paths) >= opts.Limit {
					break
				}
			} else {
				queue = append(queue, next)
			}
		}
	}
	return paths, nil
}

func containsID(path []string, id string) bool {
	for _, p := range path {
		if p == id {
			return true
		}
	}
	return false
}

// Clusters groups graph nodes into connected components over the undirected
// semantic-similarity subgraph. Components smaller than minSize are dropped;
// each component is sorted by id and components come back largest first.
func (g *Graph) Clusters(ctx context.Context, minSize int) ([][]string, error) {
	if minSize < 1 {
		minSize = 1
	}

	nodeRows, err := g.db.QueryContext(ctx, "SELECT thought_id FROM thought_graph_nodes")
	if err != nil {
		return nil, fmt.Errorf("querying graph nodes: %w", err)
	}
	defer nodeRows.Close()

	var nodes []string //nolint:prealloc // size unknown from query
	for nodeRows.Next() {
		var id string
		if err := nodeRows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning graph node: %w", err)
		}
		nodes = append(nodes, id)
	}
	if err := nodeRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating graph nodes: %w", err)
	}

	edgeRows, err := g.db.QueryContext(ctx,
		"SELECT source_id, target_id FROM thought_graph_edges WHERE relation = ?",
		RelationSemanticSimilarity)
	if err != nil {
		return nil, fmt.Errorf("querying semantic edges: %w", err)
	}
	defer edgeRows.Close()

	adjacency := make(map[string][]string, len(nodes))
	for edgeRows.Next() {
		var source, target string
		if err := edgeRows.Scan(&source, &target); err != nil {
			return nil, fmt.Errorf("scanning semantic edge: %w", err)
		}
		adjacency[source] = append(adjacency[source], target)
		adjacency[target] = append(adjacency[target], source)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating semantic edges: %w", err)
	}

	visited := make(map[string]bool, len(nodes))
	var components [][]string
	for _, node := range nodes {
		if visited[node] {
			continue
		}
		visited[node] = true
		component := []string{}
		queue := []string{node}
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			component = append(component, current)
			for _, next := range adjacency[current] {
				if visited[next] {
					continue
				}
				visited[next] = true
				queue = append(queue, next)
			}
		}
		if len(component) >= minSize {
			sort.Strings(component)
			components = append(components, component)
		}
	}

	sort.SliceStable(components, func(i, j int) bool {
		if len(components[i]) != len(components[j]) {
			return len(components[i]) > len(components[j])
		}
		return components[i][0] < components[j][0]
	})
	return components, nil
}

// RangeOptions configures a TemporalRange query.
type RangeOptions struct {
	// SessionID restricts results to one session when non-empty.
	SessionID string

	// Limit caps the number of returned thoughts. Default: 200.
	Limit int
}

// TemporalRange returns graph-member thoughts whose node timestamps fall in
// [from, to], oldest first.
func (g *Graph) TemporalRange(ctx context.Context, from, to time.Time, opts RangeOptions) ([]*thought.Thought, error) {
	if opts.Limit == 0 {
		opts.Limit = DefaultRangeLimit
	}

	clauses := []string{"timestamp_utc >= ?", "timestamp_utc <= ?"}
	args := []any{store.FormatTime(from), store.FormatTime(to)}
	if opts.SessionID != "" {
		clauses = append(clauses, "session_id = ?")
		args = append(args, opts.SessionID)
	}
	query := "SELECT thought_id FROM thought_graph_nodes WHERE " + strings.Join(clauses, " AND ") +
		" ORDER BY timestamp_utc ASC LIMIT ?"
	args = append(args, max(1, opts.Limit))

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying graph nodes: %w", err)
	}
	defer rows.Close()

	var ids []string //nolint:prealloc // size unknown from query
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning graph node: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating graph nodes: %w", err)
	}

	thoughts, err := g.store.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*thought.Thought, len(thoughts))
	for _, t := range thoughts {
		byID[t.ID] = t
	}

	// Preserve node-timestamp order; nodes whose thought row is gone drop out.
	ordered := make([]*thought.Thought, 0, len(ids))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			ordered = append(ordered, t)
		}
	}
	return ordered, nil
}
