package thought

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	th, err := New("session-1", "  analyzing the failure mode  ")
	require.NoError(t, err)

	_, err = uuid.Parse(th.ID)
	assert.NoError(t, err, "ID should be a valid UUID")
	assert.Equal(t, "session-1", th.SessionID)
	assert.Equal(t, CategoryReasoning, th.Category)
	assert.Equal(t, DefaultConfidence, th.Confidence)
	assert.Equal(t, "  analyzing the failure mode  ", th.RawText)
	assert.Equal(t, "analyzing the failure mode", th.CleanedText)
	assert.Equal(t, DefaultEmbeddingDim, th.EmbeddingDim)
	assert.Empty(t, th.Embedding)
	assert.WithinDuration(t, time.Now().UTC(), th.CreatedAt, 5*time.Second)
}

func TestNewEmptySession(t *testing.T) {
	for _, sessionID := range []string{"", "   ", "\t\n"} {
		_, err := New(sessionID, "content")
		assert.ErrorIs(t, err, ErrEmptySessionID, "session %q", sessionID)
	}
}

func TestSetEmbedding(t *testing.T) {
	th, err := New("session-1", "content")
	require.NoError(t, err)

	th.SetEmbedding([]float32{0.1, 0.2, 0.3})
	assert.Equal(t, 3, th.EmbeddingDim)
	assert.Len(t, th.Embedding, 3)
}

func TestValidate(t *testing.T) {
	valid := func() *Thought {
		th, err := New("session-1", "content")
		require.NoError(t, err)
		th.SetEmbedding(make([]float32, 4))
		return th
	}

	tests := []struct {
		name    string
		mutate  func(*Thought)
		wantErr error
	}{
		{
			name:   "valid thought passes",
			mutate: func(*Thought) {},
		},
		{
			name:   "empty embedding is allowed",
			mutate: func(th *Thought) { th.Embedding = nil; th.EmbeddingDim = 384 },
		},
		{
			name:    "blank session",
			mutate:  func(th *Thought) { th.SessionID = "  " },
			wantErr: ErrEmptySessionID,
		},
		{
			name:    "confidence above one",
			mutate:  func(th *Thought) { th.Confidence = 1.5 },
			wantErr: ErrInvalidConfidence,
		},
		{
			name:    "negative confidence",
			mutate:  func(th *Thought) { th.Confidence = -0.1 },
			wantErr: ErrInvalidConfidence,
		},
		{
			name:    "embedding shorter than declared dim",
			mutate:  func(th *Thought) { th.EmbeddingDim = 8 },
			wantErr: ErrDimensionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := valid()
			tt.mutate(th)
			err := th.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}

	t.Run("malformed ID", func(t *testing.T) {
		th := valid()
		th.ID = "not-a-uuid"
		assert.Error(t, th.Validate())
	})
}

func TestFiltersMatches(t *testing.T) {
	now := time.Now().UTC()
	th := &Thought{
		ID:         uuid.New().String(),
		SessionID:  "session-1",
		Category:   CategoryReasoning,
		Confidence: 0.9,
		Tags:       []string{"planning", "risk"},
		CreatedAt:  now,
	}

	tests := []struct {
		name    string
		filters Filters
		want    bool
	}{
		{name: "zero filters match everything", filters: Filters{}, want: true},
		{name: "matching session", filters: Filters{SessionID: "session-1"}, want: true},
		{name: "other session", filters: Filters{SessionID: "session-2"}, want: false},
		{name: "matching category", filters: Filters{Category: CategoryReasoning}, want: true},
		{name: "other category", filters: Filters{Category: CategoryReflection}, want: false},
		{name: "confidence at threshold", filters: Filters{MinConfidence: 0.9}, want: true},
		{name: "confidence below threshold", filters: Filters{MinConfidence: 0.95}, want: false},
		{name: "since in the past", filters: Filters{Since: now.Add(-time.Hour)}, want: true},
		{name: "since in the future", filters: Filters{Since: now.Add(time.Hour)}, want: false},
		{name: "until in the future", filters: Filters{Until: now.Add(time.Hour)}, want: true},
		{name: "until in the past", filters: Filters{Until: now.Add(-time.Hour)}, want: false},
		{name: "tag overlap", filters: Filters{TagsAny: []string{"risk", "other"}}, want: true},
		{name: "no tag overlap", filters: Filters{TagsAny: []string{"other"}}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filters.Matches(th))
		})
	}
}
