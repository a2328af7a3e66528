package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
)

// HashProvider is a deterministic offline embedder with no external model
// dependencies. Vectors are derived from SHA-256 digests of the input text,
// so equal texts always embed to equal vectors. The output carries no
// semantic signal beyond exact-match, which is enough for tests, benchmarks
// and air-gapped deployments.
type HashProvider struct {
	dim int
}

// NewHashProvider creates a hash embedder producing vectors of dim elements.
func NewHashProvider(dim int) (*HashProvider, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidConfig, dim)
	}
	return &HashProvider{dim: dim}, nil
}

// Embed generates a unit-length vector from the text.
//
// The vector is filled block-wise: block i is the SHA-256 digest of the
// text followed by the little-endian byte offset, decoded as 16 uint16
// values mapped into [-1, 1]. The result is L2-normalized.
func (h *HashProvider) Embed(_ context.Context, text string) ([]float32, error) {
	out := make([]float32, h.dim)

	seed := []byte(text)
	buf := make([]byte, len(seed)+4)
	copy(buf, seed)

	for offset := 0; offset < h.dim; {
		binary.LittleEndian.PutUint32(buf[len(seed):], uint32(offset))
		block := sha256.Sum256(buf)
		for i := 0; i < len(block)/2 && offset < h.dim; i++ {
			v := binary.LittleEndian.Uint16(block[2*i : 2*i+2])
			out[offset] = float32(v)/65535.0*2.0 - 1.0
			offset++
		}
	}

	var sum float64
	for _, v := range out {
		sum += float64(v) * float64(v)
	}
	if norm := math.Sqrt(sum); norm > 0 {
		for i := range out {
			out[i] = float32(float64(out[i]) / norm)
		}
	}
	return out, nil
}

// EmbedBatch generates embeddings for each text in order.
func (h *HashProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := h.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// Dimension returns the configured embedding dimension.
func (h *HashProvider) Dimension() int {
	return h.dim
}

// Close is a no-op for the hash provider.
func (h *HashProvider) Close() error {
	return nil
}

var _ Provider = (*HashProvider)(nil)
