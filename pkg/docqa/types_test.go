package docqa

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentLenCountsCharacters(t *testing.T) {
	assert.Equal(t, 5, Document{Text: "hello"}.Len())
	assert.Equal(t, 7, Document{Text: "kuruluş"}.Len())
	assert.Equal(t, 0, Document{}.Len())
}

func TestRetrievalResultBest(t *testing.T) {
	_, ok := RetrievalResult(nil).Best()
	assert.False(t, ok)

	r := RetrievalResult{
		{Chunk: Chunk{ID: 2}, Score: 0.9},
		{Chunk: Chunk{ID: 0}, Score: 0.4},
	}
	best, ok := r.Best()
	assert.True(t, ok)
	assert.Equal(t, 2, best.Chunk.ID)
}

func TestRetrievalResultAbove(t *testing.T) {
	r := RetrievalResult{
		{Chunk: Chunk{ID: 1}, Score: 0.8},
		{Chunk: Chunk{ID: 3}, Score: 0.2},
		{Chunk: Chunk{ID: 0}, Score: 0.1},
	}

	got := r.Above(0.2)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Chunk.ID)
	assert.Equal(t, 3, got[1].Chunk.ID)

	assert.Empty(t, r.Above(0.95))
}

func TestIsQueryError(t *testing.T) {
	assert.True(t, IsQueryError(ErrEmptyQuery))
	assert.True(t, IsQueryError(fmt.Errorf("embed query: %w", ErrEmbedding)))
	assert.False(t, IsQueryError(ErrEmptyIndex))
	assert.False(t, IsQueryError(ErrInvalidK))
	assert.False(t, IsQueryError(nil))
}
