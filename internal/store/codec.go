package store

import (
	"encoding/binary"
	"fmt"
	"math"
)

// vectorToBlob encodes a vector as little-endian float32 bytes for storage.
func vectorToBlob(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// blobToVector decodes a stored embedding, validating that the blob holds
// exactly dim values.
func blobToVector(blob []byte, dim int) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(blob))
	}
	n := len(blob) / 4
	if n != dim {
		return nil, fmt.Errorf("embedding blob holds %d values, expected %d", n, dim)
	}
	vec := make([]float32, n)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}
