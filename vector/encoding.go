package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeEmbedding encodes a slice of float32 values into a BLOB representation
// suitable for storage in SQLite and for the persisted graph format. The
// encoding is a big-endian sequence of IEEE 754 float32 values without a
// length prefix; the length is derived from the BLOB size on decode. One byte
// order is used everywhere so blobs and snapshots are portable across
// platforms.
func EncodeEmbedding(vec []float32) ([]byte, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.BigEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b, nil
}

// DecodeEmbedding decodes a BLOB produced by EncodeEmbedding back into a
// slice of float32 values.
func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector: invalid embedding blob length %d (not multiple of 4)", len(b))
	}
	n := len(b) / 4
	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float32frombits(binary.BigEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

// Codec is a fixed-dimension wrapper around EncodeEmbedding/DecodeEmbedding.
// A zero Dim disables the dimension check.
type Codec struct {
	Dim int
}

// Encode validates the vector dimension and encodes it.
func (c Codec) Encode(vec []float32) ([]byte, error) {
	if c.Dim > 0 && len(vec) != c.Dim {
		return nil, fmt.Errorf("vector: encode: %w: got %d, want %d", ErrDimensionMismatch, len(vec), c.Dim)
	}
	return EncodeEmbedding(vec)
}

// Decode decodes a blob and validates the resulting dimension.
func (c Codec) Decode(b []byte) ([]float32, error) {
	vec, err := DecodeEmbedding(b)
	if err != nil {
		return nil, err
	}
	if c.Dim > 0 && len(vec) != c.Dim {
		return nil, fmt.Errorf("vector: decode: %w: got %d, want %d", ErrDimensionMismatch, len(vec), c.Dim)
	}
	return vec, nil
}
