package embeddings

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIProvider generates embeddings through any OpenAI-compatible API.
// It works against the OpenAI embedding endpoints as well as local TEI
// servers exposing the same wire format.
type OpenAIProvider struct {
	embedder *lcembeddings.EmbedderImpl
	model    string
	dim      int
	metrics  *Metrics
}

// NewOpenAIProvider creates a provider from the configuration. BaseURL and
// Model are required; APIKey may be empty for TEI servers.
func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model required", ErrInvalidConfig)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		// langchaingo requires a token, use placeholder for TEI
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	embedder, err := lcembeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	dim := cfg.Dimension
	if dim == 0 {
		dim = detectDimensionFromModel(cfg.Model)
	}

	return &OpenAIProvider{
		embedder: embedder,
		model:    cfg.Model,
		dim:      dim,
		metrics:  NewMetrics(nil),
	}, nil
}

// detectDimensionFromModel returns the embedding dimension for a model name.
// Falls back to 384 if the model is unknown.
func detectDimensionFromModel(model string) int {
	switch {
	case strings.Contains(model, "text-embedding-3-large"):
		return 3072
	case strings.Contains(model, "text-embedding-3-small"), strings.Contains(model, "ada"):
		return 1536
	case strings.Contains(model, "base"):
		return 768
	case strings.Contains(model, "large"):
		return 1024
	case strings.Contains(model, "small"), strings.Contains(model, "mini"):
		return 384
	default:
		return DefaultDimension
	}
}

// Embed generates an embedding for a single text, fitted to Dimension().
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := p.embedder.EmbedQuery(ctx, text)
	p.metrics.RecordGeneration(ctx, "openai", "embed", time.Since(start), 1, err)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return fitDimension(vec, p.dim), nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	start := time.Now()
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	p.metrics.RecordGeneration(ctx, "openai", "batch_embed", time.Since(start), len(texts), err)
	if err != nil {
		return nil, fmt.Errorf("embedding documents: %w", err)
	}
	for i, vec := range vectors {
		vectors[i] = fitDimension(vec, p.dim)
	}
	return vectors, nil
}

// Dimension returns the embedding dimension vectors are fitted to.
func (p *OpenAIProvider) Dimension() int {
	return p.dim
}

// Close is a no-op since the provider is HTTP-backed.
func (p *OpenAIProvider) Close() error {
	return nil
}

// fitDimension clips or zero-pads vec to dim and renormalizes when the
// length changed. Models report their native width; fitting keeps every
// stored vector comparable.
func fitDimension(vec []float32, dim int) []float32 {
	if len(vec) == dim {
		return vec
	}
	out := make([]float32, dim)
	copy(out, vec)
	l2NormalizeInPlace(out)
	return out
}

func l2NormalizeInPlace(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if norm := math.Sqrt(sum); norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
}

var _ Provider = (*OpenAIProvider)(nil)
