// Package embeddings provides embedding generation via multiple providers.
//
// Two providers are available: a deterministic hash embedder that needs no
// external model and produces stable vectors for tests and offline use, and
// an OpenAI-compatible provider backed by langchaingo that works against
// both the OpenAI API and local TEI (Text Embeddings Inference) servers.
package embeddings

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid embeddings configuration")
)

// DefaultDimension is used when neither the config nor the model name
// determines a dimension.
const DefaultDimension = 384

// Provider is the interface for embedding providers.
type Provider interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch generates embeddings for multiple texts in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// Config holds configuration for creating an embedding provider.
type Config struct {
	// Provider is the provider type: "hash" or "openai".
	Provider string
	// Model is the embedding model name (OpenAI provider only).
	Model string
	// BaseURL is the API base URL. Works for both the OpenAI API and
	// OpenAI-compatible TEI servers.
	BaseURL string
	// APIKey is the API key (required for OpenAI, optional for TEI).
	APIKey string
	// Dimension overrides the embedding dimension. Vectors from the
	// remote model are clipped or padded to match.
	Dimension int
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "hash", "":
		dim := cfg.Dimension
		if dim == 0 {
			dim = DefaultDimension
		}
		return NewHashProvider(dim)
	case "openai":
		return NewOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
