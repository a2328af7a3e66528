package store

import (
	"context"
	"fmt"
	"os"

	chromem "github.com/philippgille/chromem-go"

	"github.com/fyrsmithlabs/thoughtd/internal/thought"
)

// chromemCollection is the single collection holding all thought embeddings.
const chromemCollection = "thoughts"

// chromemBackend indexes embeddings in a chromem-go collection. The SQLite
// tables stay the source of truth; the collection is rebuilt from them on
// open, so persistence is optional.
type chromemBackend struct {
	db         *chromem.DB
	collection *chromem.Collection
	dim        int
}

func newChromemBackend(path string, dim int) (*chromemBackend, error) {
	var db *chromem.DB
	if path != "" {
		if err := os.MkdirAll(path, 0o700); err != nil {
			return nil, fmt.Errorf("creating chromem directory: %w", err)
		}
		persistent, err := chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
		db = persistent
	} else {
		db = chromem.NewDB()
	}

	collection, err := db.GetOrCreateCollection(chromemCollection, nil, rejectTextQueries)
	if err != nil {
		return nil, fmt.Errorf("creating chromem collection: %w", err)
	}
	return &chromemBackend{db: db, collection: collection, dim: dim}, nil
}

// rejectTextQueries stands in for the embedding function chromem would
// otherwise default to. Every document carries a precomputed embedding, so
// this must never run.
func rejectTextQueries(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("chromem backend only accepts precomputed embeddings")
}

func (b *chromemBackend) Name() string { return "chromem" }

func (b *chromemBackend) Build(ctx context.Context, entries []vectorEntry) error {
	if len(entries) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		if len(e.Vector) != b.dim {
			return fmt.Errorf("%w: entry %s has %d values, index expects %d",
				thought.ErrDimensionMismatch, e.ID, len(e.Vector), b.dim)
		}
		docs[i] = chromem.Document{ID: e.ID, Embedding: e.Vector}
	}
	// Concurrency of 1 since the embeddings are already computed.
	if err := b.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}
	return nil
}

func (b *chromemBackend) Upsert(ctx context.Context, id string, vec []float32) error {
	if len(vec) != b.dim {
		return fmt.Errorf("%w: vector has %d values, index expects %d",
			thought.ErrDimensionMismatch, len(vec), b.dim)
	}
	// AddDocument replaces any existing document with the same id.
	if err := b.collection.AddDocument(ctx, chromem.Document{ID: id, Embedding: vec}); err != nil {
		return fmt.Errorf("upserting document %s: %w", id, err)
	}
	return nil
}

func (b *chromemBackend) Search(ctx context.Context, query []float32, topK int) ([]vectorHit, error) {
	count := b.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if len(query) != b.dim {
		return nil, fmt.Errorf("%w: query has %d values, index expects %d",
			thought.ErrDimensionMismatch, len(query), b.dim)
	}
	// chromem requires nResults <= document count.
	topK = max(1, min(topK, count))
	results, err := b.collection.QueryEmbedding(ctx, normalizeVector(query), topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}
	hits := make([]vectorHit, len(results))
	for i, r := range results {
		hits[i] = vectorHit{ID: r.ID, Score: float64(r.Similarity)}
	}
	return hits, nil
}
