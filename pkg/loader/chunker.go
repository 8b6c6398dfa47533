package loader

import (
	"fmt"

	"github.com/perbu/docqa/pkg/docqa"
)

const (
	// DefaultChunkSize is the default window width in characters.
	DefaultChunkSize = 1000
	// DefaultOverlap is the default number of characters shared by neighbours.
	DefaultOverlap = 200
)

// Params controls how a document is split.
type Params struct {
	Size    int // Window width in characters
	Overlap int // Characters shared by consecutive chunks
}

// DefaultParams returns the default chunking parameters.
func DefaultParams() Params {
	return Params{Size: DefaultChunkSize, Overlap: DefaultOverlap}
}

// Validate checks 0 <= Overlap < Size.
func (p Params) Validate() error {
	if p.Size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", docqa.ErrInvalidConfig, p.Size)
	}
	if p.Overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", docqa.ErrInvalidConfig, p.Overlap)
	}
	if p.Overlap >= p.Size {
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", docqa.ErrInvalidConfig, p.Overlap, p.Size)
	}
	return nil
}

// Chunker splits text into an ordered chunk sequence.
type Chunker interface {
	Chunk(text string, p Params) ([]docqa.Chunk, error)
}

// WindowChunker slides a fixed-size character window across the text with
// stride Size-Overlap. The last chunk is clipped to the end of the text.
type WindowChunker struct{}

// Chunk splits text. Offsets are in characters, not bytes, so multi-byte
// runes are never cut in half.
func (WindowChunker) Chunk(text string, p Params) ([]docqa.Chunk, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil, nil
	}

	stride := p.Size - p.Overlap
	chunks := make([]docqa.Chunk, 0, n/stride+1)

	for start := 0; start < n; start += stride {
		end := start + p.Size
		if end > n {
			end = n
		}

		chunks = append(chunks, docqa.Chunk{
			ID:    len(chunks),
			Text:  string(runes[start:end]),
			Start: start,
			End:   end,
		})

		// Anything after this would sit entirely inside the current window.
		if end == n {
			break
		}
	}

	return chunks, nil
}

// ChunkDocument splits doc with the window chunker.
func ChunkDocument(doc docqa.Document, p Params) ([]docqa.Chunk, error) {
	return WindowChunker{}.Chunk(doc.Text, p)
}
