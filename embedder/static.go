package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/vectralite/vectralite/vector"
)

// Static is a deterministic local embedder: each text is hashed into a
// bag-of-tokens vector, so identical texts always produce identical vectors
// and texts sharing tokens land near each other. Exact vectors can be pinned
// per text, which tests use to control similarity precisely.
type Static struct {
	dim       int
	overrides map[string][]float32
}

// NewStatic creates a Static embedder with the given dimension.
func NewStatic(dim int) *Static {
	return &Static{dim: dim, overrides: make(map[string][]float32)}
}

// Pin fixes the vector returned for an exact text. The vector is copied and
// normalized to unit length.
func (s *Static) Pin(text string, vec []float32) error {
	if len(vec) != s.dim {
		return fmt.Errorf("embedder: %w: pinned vector has dim %d, want %d",
			vector.ErrDimensionMismatch, len(vec), s.dim)
	}
	v := make([]float32, len(vec))
	copy(v, vec)
	if err := vector.Normalize(v); err != nil {
		return fmt.Errorf("embedder: pin %q: %w", text, err)
	}
	s.overrides[text] = v
	return nil
}

// Ready always succeeds; the embedder has no external dependency.
func (s *Static) Ready(context.Context) error { return nil }

// Embed returns one unit vector per text.
func (s *Static) Embed(_ context.Context, texts []string) ([][]float32, int, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if t == "" {
			return nil, 0, fmt.Errorf("embedder: cannot embed empty text (input %d)", i)
		}
		if v, ok := s.overrides[t]; ok {
			cp := make([]float32, len(v))
			copy(cp, v)
			out[i] = cp
			continue
		}
		v, err := s.hashEmbed(t)
		if err != nil {
			return nil, 0, err
		}
		out[i] = v
	}
	return out, s.dim, nil
}

func (s *Static) hashEmbed(text string) ([]float32, error) {
	v := make([]float32, s.dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		v[int(h.Sum32())%s.dim]++
	}
	if err := vector.Normalize(v); err != nil {
		return nil, fmt.Errorf("embedder: embed %q: %w", text, err)
	}
	return v, nil
}

// Dimension returns the embedding dimension.
func (s *Static) Dimension() int { return s.dim }

// ModelInfo identifies the embedder.
func (s *Static) ModelInfo() string { return "static-fnv" }

var _ Embedder = (*Static)(nil)
