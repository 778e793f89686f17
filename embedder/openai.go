package embedder

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/vectralite/vectralite/vector"
)

// OpenAI embeds text through the OpenAI embeddings API.
type OpenAI struct {
	client *openai.Client
	model  string
	dim    int
}

// NewOpenAI creates an OpenAI embedder for the given model, reading the API
// key from the OPENAI_API_KEY environment variable.
func NewOpenAI(model string) (*OpenAI, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("embedder: OPENAI_API_KEY environment variable not set")
	}
	dim := 1536 // text-embedding-3-small
	if model == "text-embedding-3-large" {
		dim = 3072
	}
	return &OpenAI{client: openai.NewClient(key), model: model, dim: dim}, nil
}

// Ready verifies the provider is reachable by embedding a single short probe.
func (e *OpenAI) Ready(ctx context.Context) error {
	_, _, err := e.Embed(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("embedder: provider not ready: %w", err)
	}
	return nil
}

// Embed requests embeddings for all texts in one API call and normalizes each
// result to unit length.
func (e *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, int, error) {
	if len(texts) == 0 {
		return nil, e.dim, nil
	}
	for i, t := range texts {
		if t == "" {
			return nil, 0, fmt.Errorf("embedder: cannot embed empty text (input %d)", i)
		}
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("embedder: openai: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, 0, fmt.Errorf("embedder: openai returned %d embeddings for %d inputs",
			len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		v := make([]float32, len(d.Embedding))
		copy(v, d.Embedding)
		if err := vector.Normalize(v); err != nil {
			return nil, 0, fmt.Errorf("embedder: openai embedding %d: %w", d.Index, err)
		}
		out[d.Index] = v
	}
	return out, e.dim, nil
}

// Dimension returns the embedding dimension for the configured model.
func (e *OpenAI) Dimension() int { return e.dim }

// ModelInfo identifies the underlying model.
func (e *OpenAI) ModelInfo() string { return "openai-" + e.model }

var _ Embedder = (*OpenAI)(nil)
