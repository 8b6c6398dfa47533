package embedder

import (
	"context"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/perbu/docqa/pkg/docqa"
)

// Embedder interface for generating embeddings
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelInfo() string
	// MaxInputLength is the longest accepted input, in characters.
	MaxInputLength() int
	// Close releases the underlying model. Embedding afterwards fails.
	Close() error
}

// validateInput rejects text the model cannot embed.
func validateInput(text string, maxLen int) error {
	if len(text) == 0 {
		return fmt.Errorf("%w: cannot embed empty text", docqa.ErrEmbedding)
	}
	if n := utf8.RuneCountInString(text); maxLen > 0 && n > maxLen {
		return fmt.Errorf("%w: input is %d characters, model accepts at most %d", docqa.ErrEmbedding, n, maxLen)
	}
	return nil
}

// embedSequential embeds texts one at a time, keeping output aligned with input.
func embedSequential(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// l2normalize normalizes a vector to unit length
func l2normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}
