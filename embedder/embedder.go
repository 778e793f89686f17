// Package embedder defines the embedding provider interface and two
// implementations: an OpenAI-backed embedder for production use and a
// deterministic local embedder for tests and offline operation. All
// implementations return unit-normalized vectors.
package embedder

import (
	"context"
)

// Embedder converts free-form text into unit-length embedding vectors.
// Implementations must be idempotent and safe to call concurrently for
// distinct inputs.
type Embedder interface {
	// Ready reports whether the provider can serve embedding requests.
	Ready(ctx context.Context) error

	// Embed returns one unit-normalized vector per input text, plus the
	// vector dimension. Inputs must be non-empty.
	Embed(ctx context.Context, texts []string) ([][]float32, int, error)

	// Dimension returns the embedding dimension.
	Dimension() int

	// ModelInfo identifies the underlying model.
	ModelInfo() string
}
