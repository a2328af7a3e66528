package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/thoughtd/internal/thought"
)

// stubNeighbors serves canned graph edges for recall expansion tests.
type stubNeighbors struct {
	neighbors map[string][]string
}

func (s stubNeighbors) NeighborIDs(_ context.Context, id string, _, _ int) ([]string, error) {
	return s.neighbors[id], nil
}

func TestSearchRanksExactTextFirst(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()

	texts := []string{
		"retry with exponential backoff",
		"cache invalidation is hard",
		"the scheduler starves low priority jobs",
		"users want dark mode",
		"the parser chokes on nested quotes",
	}
	thoughts := make([]*thought.Thought, len(texts))
	for i, text := range texts {
		thoughts[i] = newTestThought(t, "sess", text)
	}
	require.NoError(t, s.PutBatch(ctx, thoughts))

	results, err := s.Search(ctx, texts[2], SearchOptions{Limit: 3})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, thoughts[2].ID, results[0].Thought.ID)
	assert.InDelta(t, 1.0, results[0].SemanticScore, 1e-6)
	assert.LessOrEqual(t, len(results), 3)
}

func TestSearchAlphaValidation(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, newTestThought(t, "sess", "anything")))

	for _, alpha := range []float64{1.2, -0.5} {
		_, err := s.Search(ctx, "query", SearchOptions{Alpha: alpha})
		assert.ErrorContains(t, err, "alpha must be within [0, 1]", "alpha %g", alpha)
	}
}

func TestSearchAppliesFilters(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()

	inSession := newTestThought(t, "wanted", "shared topic one")
	outSession := newTestThought(t, "other", "shared topic two")
	lowConfidence := newTestThought(t, "wanted", "shared topic three")
	lowConfidence.Confidence = 0.2
	require.NoError(t, s.PutBatch(ctx, []*thought.Thought{inSession, outSession, lowConfidence}))

	results, err := s.Search(ctx, "shared topic", SearchOptions{
		Filters: thought.Filters{SessionID: "wanted", MinConfidence: 0.5},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, inSession.ID, results[0].Thought.ID)
}

func TestSearchLimit(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()

	thoughts := make([]*thought.Thought, 8)
	for i := range thoughts {
		thoughts[i] = newTestThought(t, "sess", fmt.Sprintf("observation %d", i))
	}
	require.NoError(t, s.PutBatch(ctx, thoughts))

	results, err := s.Search(ctx, "observation 0", SearchOptions{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestSearchEmptyStore(t *testing.T) {
	s := newTestStore(t, Config{})

	results, err := s.Search(context.Background(), "nothing here", SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchTieBreaksNewestFirst(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	// Identical text embeds identically, so with alpha 1.0 both score the
	// same and only the tie-break orders them.
	older := newTestThought(t, "sess", "the same insight")
	older.CreatedAt = base.Add(-2 * time.Hour)
	newer := newTestThought(t, "sess", "the same insight")
	newer.CreatedAt = base.Add(-1 * time.Hour)
	require.NoError(t, s.PutBatch(ctx, []*thought.Thought{older, newer}))

	results, err := s.Search(ctx, "the same insight", SearchOptions{Alpha: 1.0})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, newer.ID, results[0].Thought.ID)
	assert.Equal(t, older.ID, results[1].Thought.ID)
	assert.Equal(t, results[0].Score, results[1].Score)
}

func TestSearchBlendsRecency(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	older := newTestThought(t, "sess", "repeated thought")
	older.CreatedAt = base.Add(-3 * time.Hour)
	newer := newTestThought(t, "sess", "repeated thought")
	newer.CreatedAt = base.Add(-time.Minute)
	require.NoError(t, s.PutBatch(ctx, []*thought.Thought{older, newer}))

	results, err := s.Search(ctx, "repeated thought", SearchOptions{Alpha: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Equal similarity, so the newer thought's recency decides.
	assert.Equal(t, newer.ID, results[0].Thought.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.InDelta(t, results[0].SemanticScore, results[1].SemanticScore, 1e-9)
	assert.InDelta(t, 0.0, results[1].RecencyScore, 1e-9, "oldest candidate bottoms out")
}

func TestSortScoredTieBreak(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	mk := func(id string, score float64, createdAt time.Time) thought.Scored {
		return thought.Scored{
			Thought: &thought.Thought{ID: id, CreatedAt: createdAt},
			Score:   score,
		}
	}
	items := []thought.Scored{
		mk("low", 0.2, base.Add(3*time.Hour)),
		mk("tie-old", 0.8, base),
		mk("tie-new", 0.8, base.Add(time.Hour)),
	}

	sortScored(items)

	assert.Equal(t, "tie-new", items[0].Thought.ID)
	assert.Equal(t, "tie-old", items[1].Thought.ID)
	assert.Equal(t, "low", items[2].Thought.ID)
}

func TestRecallNoAncestors(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()

	require.NoError(t, s.PutSession(ctx, &thought.Session{ID: "root"}))
	require.NoError(t, s.Put(ctx, newTestThought(t, "root", "a root thought")))

	// A root session has no ancestors to recall from.
	results, err := s.RecallFromPriorSessions(ctx, "a root thought", "root", RecallOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)

	// Neither does an unknown session.
	results, err = s.RecallFromPriorSessions(ctx, "a root thought", "ghost", RecallOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRecallReturnsAncestorThoughtsOnly(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()

	require.NoError(t, s.PutSession(ctx, &thought.Session{ID: "parent"}))
	require.NoError(t, s.PutSession(ctx, &thought.Session{ID: "child", ParentID: "parent"}))

	parentA := newTestThought(t, "parent", "database schema decisions")
	parentB := newTestThought(t, "parent", "chose SQLite over Postgres")
	childOwn := newTestThought(t, "child", "database schema decisions")
	unrelated := newTestThought(t, "elsewhere", "database schema decisions")
	require.NoError(t, s.PutBatch(ctx, []*thought.Thought{parentA, parentB, childOwn, unrelated}))

	results, err := s.RecallFromPriorSessions(ctx, "database schema decisions", "child", RecallOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, item := range results {
		assert.Equal(t, "parent", item.Thought.SessionID)
	}
	assert.Equal(t, parentA.ID, results[0].Thought.ID, "exact match from the parent ranks first")
}

func TestRecallWalksFullLineage(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()

	require.NoError(t, s.PutSession(ctx, &thought.Session{ID: "grandparent"}))
	require.NoError(t, s.PutSession(ctx, &thought.Session{ID: "parent", ParentID: "grandparent"}))
	require.NoError(t, s.PutSession(ctx, &thought.Session{ID: "child", ParentID: "parent"}))

	fromGrandparent := newTestThought(t, "grandparent", "original design intent")
	fromParent := newTestThought(t, "parent", "refined the design")
	require.NoError(t, s.PutBatch(ctx, []*thought.Thought{fromGrandparent, fromParent}))

	results, err := s.RecallFromPriorSessions(ctx, "original design intent", "child", RecallOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, fromGrandparent.ID, results[0].Thought.ID)
}

func TestRecallGraphSkipsBadNeighbors(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()

	require.NoError(t, s.PutSession(ctx, &thought.Session{ID: "parent"}))
	require.NoError(t, s.PutSession(ctx, &thought.Session{ID: "child", ParentID: "parent"}))

	seed := newTestThought(t, "parent", "the seed thought")
	foreign := newTestThought(t, "elsewhere", "an outside thought")
	require.NoError(t, s.PutBatch(ctx, []*thought.Thought{seed, foreign}))

	graph := stubNeighbors{neighbors: map[string][]string{
		// A deleted id and a thought outside the lineage both drop out.
		seed.ID: {"b2764cf0-83c4-4ef0-9b31-000000000000", foreign.ID},
	}}

	results, err := s.RecallFromPriorSessions(ctx, "the seed thought", "child", RecallOptions{Graph: graph})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, seed.ID, results[0].Thought.ID)
}

func TestRecallGraphExpansion(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()

	require.NoError(t, s.PutSession(ctx, &thought.Session{ID: "parent"}))
	require.NoError(t, s.PutSession(ctx, &thought.Session{ID: "child", ParentID: "parent"}))

	// A corpus large enough that low-similarity thoughts stay outside the
	// semantic recall window and are only reachable through the graph.
	base := time.Now().UTC().Add(-150 * time.Minute).Truncate(time.Second)
	thoughts := make([]*thought.Thought, 150)
	for i := range thoughts {
		th := newTestThought(t, "parent", fmt.Sprintf("parent thought %d about topic %d", i, i%7))
		th.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		thoughts[i] = th
	}
	require.NoError(t, s.PutBatch(ctx, thoughts))

	query := thoughts[0].RawText
	ranking, err := s.Search(ctx, query, SearchOptions{Limit: 150, Alpha: 0.95})
	require.NoError(t, err)
	require.Len(t, ranking, 150)
	require.Equal(t, thoughts[0].ID, ranking[0].Thought.ID)

	// Pick a thought ranked far below the recall window of 40 candidates.
	excluded := ranking[100].Thought.ID

	withoutGraph, err := s.RecallFromPriorSessions(ctx, query, "child", RecallOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, withoutGraph, 10)
	for _, item := range withoutGraph {
		assert.NotEqual(t, excluded, item.Thought.ID)
	}

	graph := stubNeighbors{neighbors: map[string][]string{
		thoughts[0].ID: {excluded},
	}}
	withGraph, err := s.RecallFromPriorSessions(ctx, query, "child", RecallOptions{Limit: 10, Graph: graph})
	require.NoError(t, err)
	require.Len(t, withGraph, 10)

	top := withGraph[0]
	require.Equal(t, thoughts[0].ID, top.Thought.ID)
	assert.InDelta(t, 1.0, top.SemanticScore, 1e-6)
	// Recall blends with its 0.95 default alpha.
	assert.InDelta(t, 0.95*top.SemanticScore+0.05*top.RecencyScore, top.Score, 1e-9)

	// The graph neighbor enters the results with its seed's scores decayed.
	var neighbor *thought.Scored
	for i := range withGraph {
		if withGraph[i].Thought.ID == excluded {
			neighbor = &withGraph[i]
			break
		}
	}
	require.NotNil(t, neighbor, "graph expansion pulls the neighbor in")
	assert.InDelta(t, top.Score*0.85, neighbor.Score, 1e-9)
	assert.InDelta(t, top.SemanticScore*0.85, neighbor.SemanticScore, 1e-9)
	assert.InDelta(t, top.RecencyScore, neighbor.RecencyScore, 1e-9)
}
