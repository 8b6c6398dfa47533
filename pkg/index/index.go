// Package index is an immutable in-memory vector index with exact
// cosine-similarity search.
//
// An Index is built once and never mutated afterwards, so any number of
// goroutines may call Search concurrently without locking. Exact linear
// scan is used; the target corpus holds tens of chunks.
package index

import (
	"fmt"
	"sort"

	"github.com/perbu/docqa/pkg/docqa"
)

// Index holds chunk embeddings ordered by chunk ID.
type Index struct {
	entries []docqa.Entry
	dim     int
}

// Build creates an index from entries. All vectors must share one
// dimension and chunk IDs must be unique. The entries are copied.
func Build(entries []docqa.Entry) (*Index, error) {
	ix := &Index{entries: make([]docqa.Entry, 0, len(entries))}
	seen := make(map[int]struct{}, len(entries))

	for i, e := range entries {
		if len(e.Vector) == 0 {
			return nil, fmt.Errorf("%w: entry %d (chunk %d) has no vector", docqa.ErrDimensionMismatch, i, e.Chunk.ID)
		}
		if i == 0 {
			ix.dim = len(e.Vector)
		} else if len(e.Vector) != ix.dim {
			return nil, fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				docqa.ErrDimensionMismatch, e.Chunk.ID, len(e.Vector), ix.dim)
		}
		if _, dup := seen[e.Chunk.ID]; dup {
			return nil, fmt.Errorf("%w: %d", docqa.ErrDuplicateChunk, e.Chunk.ID)
		}
		seen[e.Chunk.ID] = struct{}{}

		vec := make([]float32, len(e.Vector))
		copy(vec, e.Vector)
		ix.entries = append(ix.entries, docqa.Entry{Chunk: e.Chunk, Vector: vec})
	}

	sort.Slice(ix.entries, func(i, j int) bool {
		return ix.entries[i].Chunk.ID < ix.entries[j].Chunk.ID
	})

	return ix, nil
}

// Len returns the number of entries.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.entries)
}

// Dimension returns the embedding dimension, 0 for an empty index.
func (ix *Index) Dimension() int {
	if ix == nil {
		return 0
	}
	return ix.dim
}

// Chunks returns the indexed chunks in ID order.
func (ix *Index) Chunks() []docqa.Chunk {
	if ix == nil {
		return nil
	}
	out := make([]docqa.Chunk, len(ix.entries))
	for i, e := range ix.entries {
		out[i] = e.Chunk
	}
	return out
}

// Search returns the k entries most similar to query, highest score first.
// Equal scores are ordered by ascending chunk ID.
func (ix *Index) Search(query []float32, k int) (docqa.RetrievalResult, error) {
	if ix == nil {
		return nil, docqa.ErrEmptyIndex
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: %d", docqa.ErrInvalidK, k)
	}
	if len(ix.entries) == 0 {
		return docqa.RetrievalResult{}, nil
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", docqa.ErrDimensionMismatch, len(query), ix.dim)
	}

	results := make(docqa.RetrievalResult, 0, len(ix.entries))
	for _, e := range ix.entries {
		results = append(results, docqa.ScoredChunk{
			Chunk: e.Chunk,
			Score: CosineSimilarity(query, e.Vector),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}
