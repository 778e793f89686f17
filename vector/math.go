package vector

import (
	"fmt"

	"github.com/viant/vec/search"
)

// Magnitude returns the Euclidean length of v.
func Magnitude(v []float32) float32 {
	if len(v) == 0 {
		return 0
	}
	return search.Float32s(v).Magnitude()
}

// Normalize scales v in place to unit Euclidean length. It returns an error
// for empty or zero-magnitude vectors, which cannot participate in cosine
// scoring.
func Normalize(v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("vector: normalize on empty vector")
	}
	m := Magnitude(v)
	if m == 0 {
		return fmt.Errorf("vector: normalize on zero-magnitude vector")
	}
	inv := 1 / m
	for i := range v {
		v[i] *= inv
	}
	return nil
}

// CosineSimilarity computes the cosine similarity between two vectors. It
// returns an error if the vectors have different lengths or if either vector
// has zero magnitude.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector: cosine similarity: %w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("vector: cosine similarity on empty vectors")
	}
	if Magnitude(a) == 0 || Magnitude(b) == 0 {
		return 0, fmt.Errorf("vector: cosine similarity with zero-magnitude vector")
	}
	d := search.Float32s(a).CosineDistance(b)
	return 1 - float64(d), nil
}

// CosineSimilarityUnit computes the cosine similarity of two vectors already
// normalized to unit length. The zero-magnitude guard is skipped; callers
// must uphold the normalization invariant.
func CosineSimilarityUnit(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector: cosine similarity: %w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("vector: cosine similarity on empty vectors")
	}
	d := search.Float32s(a).CosineDistance(b)
	return 1 - float64(d), nil
}
