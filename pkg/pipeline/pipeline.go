// Package pipeline wires loading, chunking, embedding, retrieval and answer
// composition into the two operations the rest of the program needs:
// building an index once at startup and answering questions against it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/perbu/docqa/pkg/composer"
	"github.com/perbu/docqa/pkg/config"
	"github.com/perbu/docqa/pkg/docqa"
	"github.com/perbu/docqa/pkg/embedder"
	"github.com/perbu/docqa/pkg/index"
	"github.com/perbu/docqa/pkg/loader"
	"github.com/perbu/docqa/pkg/logger"
	"github.com/perbu/docqa/pkg/retriever"
)

// Pipeline answers questions over one immutable index. All methods except
// Close are safe for concurrent use.
type Pipeline struct {
	emb       embedder.Embedder
	retriever *retriever.Retriever
	composer  *composer.Composer
	k         int
	meta      index.Meta
}

type options struct {
	topK    int
	rebuild bool
}

// Option configures New and Open.
type Option func(*options)

// WithTopK sets how many chunks Answer retrieves.
func WithTopK(k int) Option {
	return func(o *options) { o.topK = k }
}

// WithRebuild makes Open ignore a persisted index.
func WithRebuild() Option {
	return func(o *options) { o.rebuild = true }
}

func applyOptions(opts []Option) options {
	o := options{topK: retriever.DefaultK}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New assembles a pipeline from already built parts. idx must have been
// built with emb.
func New(emb embedder.Embedder, idx *index.Index, comp *composer.Composer, opts ...Option) *Pipeline {
	o := applyOptions(opts)
	return &Pipeline{
		emb:       emb,
		retriever: retriever.New(emb, idx),
		composer:  comp,
		k:         o.topK,
	}
}

// NewEmbedder constructs the embedder selected by cfg.
func NewEmbedder(cfg config.EmbedderConfig) (embedder.Embedder, error) {
	switch cfg.Backend {
	case config.BackendHash, "":
		var opts []embedder.HashOption
		if cfg.MaxInputLength > 0 {
			opts = append(opts, embedder.WithMaxInputLength(cfg.MaxInputLength))
		}
		return embedder.NewHashEmbedder(cfg.Dimension, opts...), nil
	case config.BackendOpenAI:
		var opts []embedder.OpenAIOption
		if cfg.APIKey != "" {
			opts = append(opts, embedder.WithAPIKey(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, embedder.WithBaseURL(cfg.BaseURL))
		}
		if cfg.MaxInputLength > 0 {
			opts = append(opts, embedder.WithInputLimit(cfg.MaxInputLength))
		}
		opts = append(opts, embedder.WithDimension(cfg.Dimension))
		return embedder.NewOpenAIEmbedder(cfg.Model, opts...)
	default:
		return nil, fmt.Errorf("%w: unknown embedder backend %q", docqa.ErrInvalidConfig, cfg.Backend)
	}
}

// BuildIndex reads the UTF-8 document at path, splits it into chunks of
// chunkSize characters overlapping by overlap, embeds every chunk and
// builds the index. Parameters are validated before any file or embedding
// work happens.
func BuildIndex(ctx context.Context, emb embedder.Embedder, path string, chunkSize, overlap int) (*index.Index, error) {
	params := loader.Params{Size: chunkSize, Overlap: overlap}
	if err := validateParams(emb, params); err != nil {
		return nil, err
	}

	doc, err := loader.NewRegistry().Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading document: %w", err)
	}

	return buildFromDocument(ctx, emb, doc, params)
}

func validateParams(emb embedder.Embedder, p loader.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if limit := emb.MaxInputLength(); limit > 0 && p.Size > limit {
		return fmt.Errorf("%w: chunk size %d exceeds embedder input limit %d", docqa.ErrInvalidConfig, p.Size, limit)
	}
	return nil
}

func buildFromDocument(ctx context.Context, emb embedder.Embedder, doc docqa.Document, p loader.Params) (*index.Index, error) {
	chunks, err := loader.ChunkDocument(doc, p)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		logger.Warn("document %s is empty, every question will get the fallback answer", doc.Source)
	}
	logger.Debug("split %s (%d characters) into %d chunks (size=%d, overlap=%d)",
		doc.Source, doc.Len(), len(chunks), p.Size, p.Overlap)

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	logger.Section("Embedding")
	vectors, err := embedBatch(ctx, emb, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding chunks: %w", err)
	}

	entries := make([]docqa.Entry, len(chunks))
	for i := range chunks {
		entries[i] = docqa.Entry{Chunk: chunks[i], Vector: vectors[i]}
	}

	idx, err := index.Build(entries)
	if err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}
	logger.Debug("built index: %d entries, dim=%d, model=%s", idx.Len(), idx.Dimension(), emb.ModelInfo())
	return idx, nil
}

// progressEmbedder is implemented by embedders that can report batch
// progress.
type progressEmbedder interface {
	EmbedBatchWithProgress(ctx context.Context, texts []string, progressFn func(done, total int)) ([][]float32, error)
}

func embedBatch(ctx context.Context, emb embedder.Embedder, texts []string) ([][]float32, error) {
	pe, ok := emb.(progressEmbedder)
	if !ok || !logger.IsVerbose() {
		return emb.EmbedBatch(ctx, texts)
	}
	return pe.EmbedBatchWithProgress(ctx, texts, func(done, total int) {
		if done%10 == 0 || done == total {
			logger.Debug("embedded %d/%d chunks", done, total)
		}
	})
}

// Open builds the pipeline described by cfg. A persisted index at
// cfg.IndexPath is reused when it was built from the same document, model
// and chunking parameters; otherwise the index is rebuilt and saved.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Pipeline, error) {
	o := applyOptions(append([]Option{WithTopK(cfg.TopK)}, opts...))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	emb, err := NewEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}

	p, err := open(ctx, cfg, emb, o)
	if err != nil {
		_ = emb.Close()
		return nil, err
	}
	return p, nil
}

func open(ctx context.Context, cfg *config.Config, emb embedder.Embedder, o options) (*Pipeline, error) {
	params := cfg.ChunkParams()
	if err := validateParams(emb, params); err != nil {
		return nil, err
	}

	logger.Section("Index")
	doc, err := loader.NewRegistry().Load(cfg.Document)
	if err != nil {
		return nil, fmt.Errorf("loading document: %w", err)
	}
	want := index.NewMeta(doc, emb.ModelInfo(), params.Size, params.Overlap)

	comp := composer.New(cfg.ComposerConfig())

	if cfg.IndexPath != "" && !o.rebuild {
		idx, meta, err := index.LoadFile(cfg.IndexPath)
		switch {
		case err == nil && meta.Matches(want) && (idx.Len() == 0 || idx.Dimension() == emb.Dimension()):
			logger.Info("reusing index %s (build %s, %d chunks)", cfg.IndexPath, meta.BuildID, idx.Len())
			p := New(emb, idx, comp, WithTopK(o.topK))
			p.meta = meta
			return p, nil
		case err == nil:
			logger.Info("index %s is stale, rebuilding", cfg.IndexPath)
		case !errors.Is(err, os.ErrNotExist):
			logger.Warn("ignoring unreadable index %s: %v", cfg.IndexPath, err)
		}
	}

	idx, err := buildFromDocument(ctx, emb, doc, params)
	if err != nil {
		return nil, err
	}

	if cfg.IndexPath != "" {
		if err := idx.SaveFile(cfg.IndexPath, want); err != nil {
			logger.Warn("could not persist index to %s: %v", cfg.IndexPath, err)
		} else {
			logger.Info("saved index to %s (build %s)", cfg.IndexPath, want.BuildID)
		}
	}

	want.Dimension = idx.Dimension()
	p := New(emb, idx, comp, WithTopK(o.topK))
	p.meta = want
	return p, nil
}

// Answer retrieves the most relevant chunks for query and renders them.
// A blank or unembeddable query yields a fallback answer and a nil error;
// only caller misuse (no index, bad k) and cancellation return an error.
func (p *Pipeline) Answer(ctx context.Context, query string) (string, error) {
	answer, _, err := p.AnswerWithResult(ctx, query)
	return answer, err
}

// AnswerWithResult is Answer that also returns the chunks the answer was
// composed from. The result is nil when the answer is a fallback for a
// blank or unembeddable query.
func (p *Pipeline) AnswerWithResult(ctx context.Context, query string) (string, docqa.RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	res, err := p.retriever.Retrieve(ctx, query, p.k)
	switch {
	case errors.Is(err, docqa.ErrEmptyQuery):
		return p.composer.EmptyQuery(), nil, nil
	case docqa.IsQueryError(err):
		logger.Debug("answering %q with fallback: %v", query, err)
		return p.composer.Fallback(), nil, nil
	case err != nil:
		return "", nil, err
	}

	if logger.IsVerbose() {
		plan := p.composer.Plan(res)
		logger.Debug("composing %s answer from %d of %d chunks", plan.Variant, len(plan.Hits), len(res))
	}
	return p.composer.Compose(query, res), res, nil
}

// Retrieve exposes the ranked chunks behind an answer.
func (p *Pipeline) Retrieve(ctx context.Context, query string, k int) (docqa.RetrievalResult, error) {
	return p.retriever.Retrieve(ctx, query, k)
}

// TopK returns the number of chunks Answer retrieves.
func (p *Pipeline) TopK() int {
	return p.k
}

// Index returns the underlying index.
func (p *Pipeline) Index() *index.Index {
	return p.retriever.Index()
}

// Meta describes the index build. It is zero for pipelines made with New.
func (p *Pipeline) Meta() index.Meta {
	return p.meta
}

// Close releases the embedding model.
func (p *Pipeline) Close() error {
	return p.emb.Close()
}
