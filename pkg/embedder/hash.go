package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

const (
	// DefaultDimension matches the sentence-transformer family the corpus
	// was originally indexed with.
	DefaultDimension = 384
	// DefaultMaxInputLength is the longest text the hash model accepts.
	DefaultMaxInputLength = 4096

	hashModelVersion = "v1"
)

// defaultStopwords are dropped before hashing so function words do not
// dominate similarity between short texts.
var defaultStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "can", "do", "does",
	"for", "from", "has", "have", "how", "i", "in", "into", "is", "it", "its",
	"me", "my", "of", "on", "or", "our", "so", "that", "the", "this", "to",
	"via", "was", "what", "when", "where", "which", "who", "why", "will",
	"with", "you", "your",
}

// hashModel is the loaded state of a HashEmbedder. It is immutable once
// built and safe for concurrent use.
type hashModel struct {
	dim       int
	stopwords map[string]struct{}
}

func loadHashModel(dim int) (*hashModel, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	stop := make(map[string]struct{}, len(defaultStopwords))
	for _, w := range defaultStopwords {
		stop[w] = struct{}{}
	}
	return &hashModel{dim: dim, stopwords: stop}, nil
}

// tokens lowercases text and splits it on anything that is not a letter
// or digit, dropping stop words and single characters.
func (m *hashModel) tokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, ok := m.stopwords[f]; ok {
			continue
		}
		out = append(out, f)
	}
	return out
}

// vector hashes each token into a signed bucket and L2-normalizes the result.
func (m *hashModel) vector(text string) []float32 {
	vec := make([]float32, m.dim)
	h := fnv.New32a()
	for _, tok := range m.tokens(text) {
		h.Reset()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum32()

		idx := sum % uint32(m.dim)
		if (sum/uint32(m.dim))%2 == 0 {
			vec[idx]++
		} else {
			vec[idx]--
		}
	}
	l2normalize(vec)
	return vec
}

// HashEmbedder is a local bag-of-words model using the hashing trick. It
// needs no network access and is fully deterministic.
type HashEmbedder struct {
	dim    int
	maxLen int
	model  *resource[*hashModel]
}

// HashOption configures a HashEmbedder.
type HashOption func(*HashEmbedder)

// WithMaxInputLength overrides the maximum input length in characters.
func WithMaxInputLength(n int) HashOption {
	return func(e *HashEmbedder) {
		if n > 0 {
			e.maxLen = n
		}
	}
}

// NewHashEmbedder creates a hash embedder. The model tables are built on
// first use.
func NewHashEmbedder(dimension int, opts ...HashOption) *HashEmbedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	e := &HashEmbedder{dim: dimension, maxLen: DefaultMaxInputLength}
	for _, o := range opts {
		o(e)
	}
	e.model = newResource(func() (*hashModel, error) {
		return loadHashModel(e.dim)
	}, nil)
	return e
}

// Embed generates an embedding for a single text
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := validateInput(text, e.maxLen); err != nil {
		return nil, err
	}
	m, err := e.model.get()
	if err != nil {
		return nil, err
	}
	return m.vector(text), nil
}

// EmbedBatch generates embeddings for multiple texts
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedSequential(ctx, e, texts)
}

// Dimension returns the embedding dimension
func (e *HashEmbedder) Dimension() int {
	return e.dim
}

// ModelInfo returns model information
func (e *HashEmbedder) ModelInfo() string {
	return fmt.Sprintf("hash-%s-%d", hashModelVersion, e.dim)
}

// MaxInputLength returns the longest accepted input in characters.
func (e *HashEmbedder) MaxInputLength() int {
	return e.maxLen
}

// Close releases the model.
func (e *HashEmbedder) Close() error {
	return e.model.close()
}
