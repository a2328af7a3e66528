// Package thought defines the core domain types for the thought memory
// system: the Thought record itself, retrieval filters, and scored results.
package thought

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common errors for thought validation and lookup.
var (
	ErrNotFound          = errors.New("thought not found")
	ErrEmptySessionID    = errors.New("session ID cannot be empty")
	ErrInvalidConfidence = errors.New("confidence must be between 0.0 and 1.0")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Well-known thought categories. Category is free-form; these are the
// values the pipeline and reflection engine write by default.
const (
	CategoryReasoning  = "reasoning"
	CategoryReflection = "reflection"
	CategoryPlan       = "plan"
	CategorySummary    = "summary"
)

// Defaults applied by NewThought.
const (
	DefaultConfidence   = 0.9
	DefaultEmbeddingDim = 384
)

// Thought is a single extracted reasoning fragment with its embedding.
//
// Thoughts are produced by the ingestion pipeline from tagged model output,
// or synthesized by the reflection engine. Once stored they are immutable
// except for confidence adjustments.
type Thought struct {
	// ID is the unique thought identifier (UUID).
	ID string `json:"id"`

	// SessionID identifies the session this thought was captured in.
	SessionID string `json:"session_id"`

	// Category classifies the thought (e.g. "reasoning", "reflection").
	Category string `json:"category"`

	// Confidence is a score from 0.0 to 1.0 indicating reliability.
	Confidence float64 `json:"confidence"`

	// Tags are free-form labels for categorization.
	Tags []string `json:"tags,omitempty"`

	// RawText is the tag content exactly as extracted.
	RawText string `json:"raw_text"`

	// CleanedText is RawText with surrounding whitespace trimmed.
	CleanedText string `json:"cleaned_text"`

	// Embedding is the vector representation of CleanedText.
	Embedding []float32 `json:"embedding,omitempty"`

	// EmbeddingDim is the expected embedding dimensionality. It is set
	// even when Embedding has not been computed yet.
	EmbeddingDim int `json:"embedding_dim"`

	// CreatedAt is when the thought was captured (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// New creates a thought with a generated UUID and default values.
// The cleaned text is derived from rawText by trimming surrounding
// whitespace; callers that clean differently may overwrite it.
func New(sessionID, rawText string) (*Thought, error) {
	if isBlank(sessionID) {
		return nil, ErrEmptySessionID
	}
	return &Thought{
		ID:           uuid.New().String(),
		SessionID:    sessionID,
		Category:     CategoryReasoning,
		Confidence:   DefaultConfidence,
		RawText:      rawText,
		CleanedText:  strings.TrimSpace(rawText),
		EmbeddingDim: DefaultEmbeddingDim,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// SetEmbedding attaches a vector and records its dimensionality.
func (t *Thought) SetEmbedding(vec []float32) {
	t.Embedding = vec
	t.EmbeddingDim = len(vec)
}

// Validate checks that the thought is internally consistent.
func (t *Thought) Validate() error {
	if t.ID == "" {
		return errors.New("thought ID cannot be empty")
	}
	if _, err := uuid.Parse(t.ID); err != nil {
		return errors.New("invalid thought ID format")
	}
	if isBlank(t.SessionID) {
		return ErrEmptySessionID
	}
	if t.Confidence < 0.0 || t.Confidence > 1.0 {
		return ErrInvalidConfidence
	}
	if t.EmbeddingDim <= 0 {
		return errors.New("embedding dimension must be positive")
	}
	if len(t.Embedding) > 0 && len(t.Embedding) != t.EmbeddingDim {
		return ErrDimensionMismatch
	}
	return nil
}

// Session records the lineage and metadata of a capture session.
// Sessions form a tree via ParentID; recall walks the ancestor chain.
type Session struct {
	// ID is the caller-chosen session identifier.
	ID string `json:"id"`

	// ParentID is the parent session, or empty for a root session.
	ParentID string `json:"parent_id,omitempty"`

	// CreatedAt is when the session row was first created (UTC).
	CreatedAt time.Time `json:"created_at"`

	// Metadata holds arbitrary session annotations.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Filters narrows retrieval to thoughts matching every set field.
// Zero values mean "any": an empty SessionID matches all sessions, a
// zero Since/Until disables the bound, and a nil TagsAny skips tag
// matching.
type Filters struct {
	SessionID     string    `json:"session_id,omitempty"`
	Category      string    `json:"category,omitempty"`
	MinConfidence float64   `json:"min_confidence,omitempty"`
	Since         time.Time `json:"since,omitempty"`
	Until         time.Time `json:"until,omitempty"`
	TagsAny       []string  `json:"tags_any,omitempty"`
}

// Matches reports whether the thought passes every set filter field.
func (f Filters) Matches(t *Thought) bool {
	if f.SessionID != "" && t.SessionID != f.SessionID {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if t.Confidence < f.MinConfidence {
		return false
	}
	if !f.Since.IsZero() && t.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && t.CreatedAt.After(f.Until) {
		return false
	}
	if len(f.TagsAny) > 0 && !intersects(t.Tags, f.TagsAny) {
		return false
	}
	return true
}

// Scored pairs a thought with its hybrid retrieval scores.
type Scored struct {
	// Thought is the retrieved record.
	Thought *Thought `json:"thought"`

	// SemanticScore is the cosine similarity against the query vector.
	SemanticScore float64 `json:"semantic_score"`

	// RecencyScore decays linearly with the thought's age, reaching 0.0
	// for the oldest candidate in the result set.
	RecencyScore float64 `json:"recency_score"`

	// Score is the blended ranking score.
	Score float64 `json:"score"`
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
