package docqa

import "errors"

var (
	// ErrInvalidConfig reports bad chunking or pipeline parameters.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrDimensionMismatch reports embeddings of inconsistent length.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrDuplicateChunk reports two index entries sharing a chunk ID.
	ErrDuplicateChunk = errors.New("duplicate chunk id")

	// ErrEmbedding reports empty, oversized or otherwise unembeddable input.
	ErrEmbedding = errors.New("embedding error")

	// ErrEmptyIndex is returned when searching an index that was never built.
	ErrEmptyIndex = errors.New("empty index")

	// ErrInvalidK is returned for k <= 0.
	ErrInvalidK = errors.New("invalid k")

	// ErrEmptyQuery is returned for a query that is blank after trimming.
	ErrEmptyQuery = errors.New("empty query")
)

// IsQueryError reports whether err is a per-query failure that should be
// answered with a fallback rather than surfaced to the caller.
func IsQueryError(err error) bool {
	return errors.Is(err, ErrEmptyQuery) || errors.Is(err, ErrEmbedding)
}
