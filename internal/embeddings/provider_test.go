package embeddings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderDefaultsToHash(t *testing.T) {
	p, err := NewProvider(Config{})
	require.NoError(t, err)
	defer p.Close()

	assert.IsType(t, &HashProvider{}, p)
	assert.Equal(t, DefaultDimension, p.Dimension())
}

func TestNewProviderHashCustomDimension(t *testing.T) {
	p, err := NewProvider(Config{Provider: "hash", Dimension: 128})
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 128, p.Dimension())
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider(Config{Provider: "quantum"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewOpenAIProviderValidation(t *testing.T) {
	_, err := NewOpenAIProvider(Config{Model: "text-embedding-3-small"})
	assert.ErrorIs(t, err, ErrInvalidConfig, "missing base URL")

	_, err = NewOpenAIProvider(Config{BaseURL: "http://localhost:8080/v1"})
	assert.ErrorIs(t, err, ErrInvalidConfig, "missing model")
}

func TestDetectDimensionFromModel(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"text-embedding-3-large", 3072},
		{"text-embedding-3-small", 1536},
		{"text-embedding-ada-002", 1536},
		{"BAAI/bge-base-en-v1.5", 768},
		{"BAAI/bge-large-en-v1.5", 1024},
		{"BAAI/bge-small-en-v1.5", 384},
		{"all-MiniLM-L6-v2", 384},
		{"mystery-model", 384},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, detectDimensionFromModel(tt.model))
		})
	}
}

func TestFitDimension(t *testing.T) {
	t.Run("exact length unchanged", func(t *testing.T) {
		vec := []float32{0.6, 0.8}
		assert.Equal(t, vec, fitDimension(vec, 2))
	})

	t.Run("clip renormalizes", func(t *testing.T) {
		out := fitDimension([]float32{0.6, 0.8, 0.5}, 2)
		require.Len(t, out, 2)
		assert.InDelta(t, 1.0, vectorNorm(out), 1e-5)
	})

	t.Run("pad keeps zeros", func(t *testing.T) {
		out := fitDimension([]float32{1}, 4)
		require.Len(t, out, 4)
		assert.InDelta(t, 1.0, vectorNorm(out), 1e-5)
		assert.Zero(t, out[3])
	})
}
