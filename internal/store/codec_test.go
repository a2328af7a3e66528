package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorBlobRoundTrip(t *testing.T) {
	vec := []float32{0.25, -1.5, 3.14159, 0, 1e-30}

	blob := vectorToBlob(vec)
	require.Len(t, blob, len(vec)*4)

	got, err := blobToVector(blob, len(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, got)
}

func TestVectorToBlobEmpty(t *testing.T) {
	assert.Nil(t, vectorToBlob(nil))
	assert.Nil(t, vectorToBlob([]float32{}))
}

func TestBlobToVectorBadLength(t *testing.T) {
	_, err := blobToVector([]byte{1, 2, 3, 4, 5}, 1)
	assert.ErrorContains(t, err, "not a multiple of 4")
}

func TestBlobToVectorDimMismatch(t *testing.T) {
	blob := vectorToBlob([]float32{1, 2})
	_, err := blobToVector(blob, 3)
	assert.ErrorContains(t, err, "holds 2 values, expected 3")
}
