package embedder

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/perbu/docqa/pkg/docqa"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultOpenAIModel is the embedding model used when none is configured.
	DefaultOpenAIModel = "text-embedding-3-small"

	// openAIMaxInputLength approximates the 8191 token limit at three
	// characters per token.
	openAIMaxInputLength = 24000

	defaultConcurrency = 10
)

// OpenAIEmbedder uses OpenAI API for embeddings
type OpenAIEmbedder struct {
	apiKey      string
	baseURL     string
	model       string
	dim         int
	modelDim    int
	maxLen      int
	concurrency int
	client      *resource[*openai.Client]
}

// OpenAIOption configures an OpenAIEmbedder.
type OpenAIOption func(*OpenAIEmbedder)

// WithAPIKey sets the API key instead of reading OPENAI_API_KEY.
func WithAPIKey(key string) OpenAIOption {
	return func(e *OpenAIEmbedder) { e.apiKey = key }
}

// WithBaseURL points the client at an OpenAI compatible endpoint.
func WithBaseURL(url string) OpenAIOption {
	return func(e *OpenAIEmbedder) { e.baseURL = url }
}

// WithDimension overrides the dimension inferred from the model name.
func WithDimension(dim int) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		if dim > 0 {
			e.dim = dim
		}
	}
}

// WithInputLimit overrides the longest accepted input in characters.
func WithInputLimit(n int) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		if n > 0 {
			e.maxLen = n
		}
	}
}

// WithConcurrency limits concurrent API calls made by EmbedBatch.
func WithConcurrency(n int) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// NewOpenAIEmbedder creates an OpenAI embedder. The HTTP client is created
// on first use.
func NewOpenAIEmbedder(model string, opts ...OpenAIOption) (*OpenAIEmbedder, error) {
	if model == "" {
		model = DefaultOpenAIModel
	}

	// Set dimension based on model
	dim := 1536 // default for text-embedding-3-small
	if model == "text-embedding-3-large" {
		dim = 3072
	}

	e := &OpenAIEmbedder{
		apiKey:      os.Getenv("OPENAI_API_KEY"),
		model:       model,
		dim:         dim,
		modelDim:    dim,
		maxLen:      openAIMaxInputLength,
		concurrency: defaultConcurrency,
	}
	for _, o := range opts {
		o(e)
	}

	if e.apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}

	e.client = newResource(func() (*openai.Client, error) {
		cfg := openai.DefaultConfig(e.apiKey)
		if e.baseURL != "" {
			cfg.BaseURL = e.baseURL
		}
		return openai.NewClientWithConfig(cfg), nil
	}, nil)

	return e, nil
}

// Embed generates an embedding for a single text
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := validateInput(text, e.maxLen); err != nil {
		return nil, err
	}

	client, err := e.client.get()
	if err != nil {
		return nil, err
	}

	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	}
	// Shortened vectors must be requested; the API returns the model length otherwise.
	if e.dim != e.modelDim {
		req.Dimensions = e.dim
	}

	resp, err := client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: OpenAI API error: %v", docqa.ErrEmbedding, err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embedding data returned from API", docqa.ErrEmbedding)
	}

	src := resp.Data[0].Embedding
	if len(src) != e.dim {
		return nil, fmt.Errorf("%w: API returned %d dimensions, expected %d", docqa.ErrEmbedding, len(src), e.dim)
	}

	v := make([]float32, len(src))
	for i := range src {
		v[i] = float32(src[i])
	}

	// L2 normalize (important for cosine similarity)
	l2normalize(v)

	return v, nil
}

// EmbedBatch generates embeddings for multiple texts with parallel processing
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.EmbedBatchWithProgress(ctx, texts, nil)
}

// EmbedBatchWithProgress generates embeddings with optional progress callback
// progressFn is called with (completed, total) after each embedding
func (e *OpenAIEmbedder) EmbedBatchWithProgress(ctx context.Context, texts []string, progressFn func(int, int)) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	progress := make(chan struct{}, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i := range texts {
		g.Go(func() error {
			emb, err := e.Embed(gctx, texts[i])
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			embeddings[i] = emb
			progress <- struct{}{}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
		close(progress)
	}()

	count := 0
	for range progress {
		count++
		if progressFn != nil {
			progressFn(count, len(texts))
		}
	}

	if err := <-done; err != nil {
		return nil, err
	}
	return embeddings, nil
}

// Dimension returns the embedding dimension
func (e *OpenAIEmbedder) Dimension() int {
	return e.dim
}

// ModelInfo returns model information
func (e *OpenAIEmbedder) ModelInfo() string {
	return "openai-" + e.model
}

// MaxInputLength returns the longest accepted input in characters.
func (e *OpenAIEmbedder) MaxInputLength() int {
	return e.maxLen
}

// Close drops the client.
func (e *OpenAIEmbedder) Close() error {
	return e.client.close()
}
