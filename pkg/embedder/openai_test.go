package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/perbu/docqa/pkg/docqa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbeddingsAPI answers /v1/embeddings with [len(input), 1, 0].
func fakeEmbeddingsAPI(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Input[0] == "fail" {
			http.Error(w, `{"error":{"message":"boom","type":"server_error"}}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data": []map[string]any{{
				"object":    "embedding",
				"index":     0,
				"embedding": []float32{float32(len(req.Input[0])), 1, 0},
			}},
			"usage": map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestOpenAIEmbedder(t *testing.T, srv *httptest.Server) *OpenAIEmbedder {
	t.Helper()
	e, err := NewOpenAIEmbedder("test-model",
		WithAPIKey("sk-test"),
		WithBaseURL(srv.URL+"/v1"),
		WithDimension(3),
		WithConcurrency(2),
	)
	require.NoError(t, err)
	return e
}

func TestNewOpenAIEmbedder_RequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewOpenAIEmbedder(DefaultOpenAIModel)
	assert.Error(t, err)
}

func TestNewOpenAIEmbedder_Dimensions(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	small, err := NewOpenAIEmbedder("")
	require.NoError(t, err)
	assert.Equal(t, 1536, small.Dimension())
	assert.Equal(t, "openai-text-embedding-3-small", small.ModelInfo())

	large, err := NewOpenAIEmbedder("text-embedding-3-large")
	require.NoError(t, err)
	assert.Equal(t, 3072, large.Dimension())
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	var calls atomic.Int32
	e := newTestOpenAIEmbedder(t, fakeEmbeddingsAPI(t, &calls))

	v, err := e.Embed(context.Background(), "abc")
	require.NoError(t, err)
	require.Len(t, v, 3)
	assert.InDelta(t, 3/norm([]float32{3, 1, 0}), v[0], 1e-6)
	assert.InDelta(t, 1.0, norm(v), 1e-5)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIEmbedder_EmptyInputSkipsAPI(t *testing.T) {
	var calls atomic.Int32
	e := newTestOpenAIEmbedder(t, fakeEmbeddingsAPI(t, &calls))

	_, err := e.Embed(context.Background(), "")
	assert.ErrorIs(t, err, docqa.ErrEmbedding)
	assert.Zero(t, calls.Load())
}

func TestOpenAIEmbedder_APIError(t *testing.T) {
	var calls atomic.Int32
	e := newTestOpenAIEmbedder(t, fakeEmbeddingsAPI(t, &calls))

	_, err := e.Embed(context.Background(), "fail")
	assert.ErrorIs(t, err, docqa.ErrEmbedding)
}

func TestOpenAIEmbedder_DimensionCheck(t *testing.T) {
	var calls atomic.Int32
	srv := fakeEmbeddingsAPI(t, &calls)
	e, err := NewOpenAIEmbedder("test-model", WithAPIKey("sk-test"), WithBaseURL(srv.URL+"/v1"), WithDimension(8))
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "abc")
	assert.ErrorIs(t, err, docqa.ErrEmbedding)
}

func TestOpenAIEmbedder_EmbedBatchWithProgress(t *testing.T) {
	var calls atomic.Int32
	e := newTestOpenAIEmbedder(t, fakeEmbeddingsAPI(t, &calls))
	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}

	var last, total int
	out, err := e.EmbedBatchWithProgress(context.Background(), texts, func(done, n int) {
		last, total = done, n
	})
	require.NoError(t, err)
	require.Len(t, out, len(texts))

	for i, text := range texts {
		single, err := e.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, single, out[i])
	}
	assert.Equal(t, len(texts), last)
	assert.Equal(t, len(texts), total)
}

func TestOpenAIEmbedder_EmbedBatchError(t *testing.T) {
	var calls atomic.Int32
	e := newTestOpenAIEmbedder(t, fakeEmbeddingsAPI(t, &calls))

	_, err := e.EmbedBatch(context.Background(), []string{"ok", "fail", "fine"})
	assert.ErrorIs(t, err, docqa.ErrEmbedding)
}

func TestOpenAIEmbedder_Close(t *testing.T) {
	var calls atomic.Int32
	e := newTestOpenAIEmbedder(t, fakeEmbeddingsAPI(t, &calls))

	require.NoError(t, e.Close())
	_, err := e.Embed(context.Background(), "abc")
	assert.ErrorIs(t, err, docqa.ErrEmbedding)
	assert.Zero(t, calls.Load())
}

// fakeShortenableAPI mimics the real endpoint: it returns modelDim values
// unless the request asks for fewer via "dimensions". Every requested
// dimension is recorded.
func fakeShortenableAPI(t *testing.T, modelDim int, sent *[]int) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input      []string `json:"input"`
			Model      string   `json:"model"`
			Dimensions int      `json:"dimensions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		*sent = append(*sent, req.Dimensions)
		mu.Unlock()

		n := modelDim
		if req.Dimensions > 0 {
			n = req.Dimensions
		}
		vec := make([]float32, n)
		vec[0] = 1

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": vec}},
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIEmbedder_RequestsConfiguredDimension(t *testing.T) {
	tests := []struct {
		name     string
		opts     []OpenAIOption
		wantDim  int
		wantSent int
	}{
		{"model default", nil, 1536, 0},
		{"same as model default", []OpenAIOption{WithDimension(1536)}, 1536, 0},
		{"shortened", []OpenAIOption{WithDimension(512)}, 512, 512},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sent []int
			srv := fakeShortenableAPI(t, 1536, &sent)
			opts := append([]OpenAIOption{WithAPIKey("sk-test"), WithBaseURL(srv.URL + "/v1")}, tt.opts...)
			e, err := NewOpenAIEmbedder("text-embedding-3-small", opts...)
			require.NoError(t, err)

			v, err := e.Embed(context.Background(), "hello world")
			require.NoError(t, err)
			assert.Len(t, v, tt.wantDim)
			assert.Equal(t, []int{tt.wantSent}, sent)
		})
	}
}

func TestOpenAIEmbedder_InputLimit(t *testing.T) {
	var calls atomic.Int32
	srv := fakeEmbeddingsAPI(t, &calls)
	e, err := NewOpenAIEmbedder("test-model",
		WithAPIKey("sk-test"),
		WithBaseURL(srv.URL+"/v1"),
		WithDimension(3),
		WithInputLimit(10),
	)
	require.NoError(t, err)
	assert.Equal(t, 10, e.MaxInputLength())

	_, err = e.Embed(context.Background(), "this is longer than ten")
	assert.ErrorIs(t, err, docqa.ErrEmbedding)
	assert.Zero(t, calls.Load())

	_, err = e.Embed(context.Background(), "short")
	assert.NoError(t, err)
}
