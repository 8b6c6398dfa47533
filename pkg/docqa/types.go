// Package docqa holds the domain types shared by the question-answering
// pipeline: documents, chunks, index entries and retrieval results.
package docqa

import "unicode/utf8"

// Document is the raw text the index is built from. It is never mutated.
type Document struct {
	Source string // File path or other identifier
	Text   string // Full UTF-8 text
}

// Len returns the document length in characters.
func (d Document) Len() int {
	return utf8.RuneCountInString(d.Text)
}

// Chunk is a contiguous slice of a Document.
// Start and End are character offsets into the document, End exclusive.
type Chunk struct {
	ID    int    // Position in the ordered chunk sequence
	Text  string // The chunk content
	Start int
	End   int
}

// Entry pairs a chunk with its embedding (entry.Vector ↔ entry.Chunk).
type Entry struct {
	Chunk  Chunk
	Vector []float32
}

// ScoredChunk is a single retrieval hit.
type ScoredChunk struct {
	Chunk Chunk
	Score float32
}

// RetrievalResult is ordered by descending score, ties by ascending chunk ID.
type RetrievalResult []ScoredChunk

// Best returns the highest scoring hit.
func (r RetrievalResult) Best() (ScoredChunk, bool) {
	if len(r) == 0 {
		return ScoredChunk{}, false
	}
	return r[0], true
}

// Above returns the hits scoring at least threshold, preserving order.
func (r RetrievalResult) Above(threshold float32) RetrievalResult {
	out := make(RetrievalResult, 0, len(r))
	for _, hit := range r {
		if hit.Score >= threshold {
			out = append(out, hit)
		}
	}
	return out
}
