// Package retriever embeds a query and looks it up in a vector index.
package retriever

import (
	"context"
	"fmt"
	"strings"

	"github.com/perbu/docqa/pkg/docqa"
	"github.com/perbu/docqa/pkg/embedder"
	"github.com/perbu/docqa/pkg/index"
	"github.com/perbu/docqa/pkg/logger"
)

// DefaultK is the number of chunks retrieved per question.
const DefaultK = 3

// Retriever is read-only and safe for concurrent use.
type Retriever struct {
	emb embedder.Embedder
	idx *index.Index
}

// New returns a retriever over idx. Queries are embedded with emb, which
// must be the embedder idx was built with.
func New(emb embedder.Embedder, idx *index.Index) *Retriever {
	return &Retriever{emb: emb, idx: idx}
}

// Retrieve returns the k chunks most similar to query.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) (docqa.RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, docqa.ErrEmptyQuery
	}
	if r.idx == nil {
		return nil, docqa.ErrEmptyIndex
	}

	vec, err := r.emb.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := r.idx.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	logger.Debug("retrieved %d chunks for %q (k=%d)", len(results), query, k)
	return results, nil
}

// Index returns the underlying index.
func (r *Retriever) Index() *index.Index {
	return r.idx
}
