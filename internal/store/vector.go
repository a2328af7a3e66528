package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/thoughtd/internal/thought"
)

// vectorEntry pairs a thought id with its embedding.
type vectorEntry struct {
	ID     string
	Vector []float32
}

// vectorHit is a similarity match returned by a backend.
type vectorHit struct {
	ID    string
	Score float64
}

// vectorBackend is the in-process similarity index over stored embeddings.
// Implementations are not safe for concurrent use; Store serializes access.
type vectorBackend interface {
	Name() string
	Build(ctx context.Context, entries []vectorEntry) error
	Upsert(ctx context.Context, id string, vec []float32) error
	Search(ctx context.Context, query []float32, topK int) ([]vectorHit, error)
}

func resolveVectorBackend(cfg Config) (vectorBackend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.VectorBackend)) {
	case "", "auto", "memory":
		return newMemoryBackend(cfg.EmbeddingDim), nil
	case "chromem":
		return newChromemBackend(cfg.ChromemPath, cfg.EmbeddingDim)
	default:
		return nil, fmt.Errorf("%w: vector backend must be one of: auto, memory, chromem", ErrInvalidConfig)
	}
}

// memoryBackend is a brute-force index over unit-normalized vectors.
type memoryBackend struct {
	dim  int
	ids  []string
	rows [][]float32
	byID map[string]int
}

func newMemoryBackend(dim int) *memoryBackend {
	return &memoryBackend{dim: dim, byID: make(map[string]int)}
}

func (b *memoryBackend) Name() string { return "memory" }

func (b *memoryBackend) Build(_ context.Context, entries []vectorEntry) error {
	ids := make([]string, 0, len(entries))
	rows := make([][]float32, 0, len(entries))
	byID := make(map[string]int, len(entries))
	for _, e := range entries {
		if len(e.Vector) != b.dim {
			return fmt.Errorf("%w: entry %s has %d values, index expects %d",
				thought.ErrDimensionMismatch, e.ID, len(e.Vector), b.dim)
		}
		byID[e.ID] = len(ids)
		ids = append(ids, e.ID)
		rows = append(rows, normalizeVector(e.Vector))
	}
	b.ids, b.rows, b.byID = ids, rows, byID
	return nil
}

func (b *memoryBackend) Upsert(_ context.Context, id string, vec []float32) error {
	if len(vec) != b.dim {
		return fmt.Errorf("%w: vector has %d values, index expects %d",
			thought.ErrDimensionMismatch, len(vec), b.dim)
	}
	normalized := normalizeVector(vec)
	if row, ok := b.byID[id]; ok {
		b.rows[row] = normalized
		return nil
	}
	b.byID[id] = len(b.ids)
	b.ids = append(b.ids, id)
	b.rows = append(b.rows, normalized)
	return nil
}

func (b *memoryBackend) Search(_ context.Context, query []float32, topK int) ([]vectorHit, error) {
	if len(b.ids) == 0 {
		return nil, nil
	}
	if len(query) != b.dim {
		return nil, fmt.Errorf("%w: query has %d values, index expects %d",
			thought.ErrDimensionMismatch, len(query), b.dim)
	}
	q := normalizeVector(query)
	scores := make([]float64, len(b.rows))
	for i, row := range b.rows {
		scores[i] = dotProduct(row, q)
	}

	topK = max(1, min(topK, len(b.ids)))
	order := make([]int, len(b.ids))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		if scores[order[i]] != scores[order[j]] {
			return scores[order[i]] > scores[order[j]]
		}
		return order[i] < order[j]
	})

	hits := make([]vectorHit, topK)
	for i := 0; i < topK; i++ {
		hits[i] = vectorHit{ID: b.ids[order[i]], Score: scores[order[i]]}
	}
	return hits, nil
}

// normalizeVector returns a unit-length copy; zero vectors come back unchanged.
func normalizeVector(vec []float32) []float32 {
	out := make([]float32, len(vec))
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		copy(out, vec)
		return out
	}
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
