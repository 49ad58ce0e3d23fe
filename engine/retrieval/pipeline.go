// Package retrieval orchestrates hybrid retrieval: the sparse and dense
// retrievers run concurrently under independent deadlines, their candidates
// are fused, optionally reranked, and returned as top-K passages with
// provenance.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/DoorwiseAI/doorwise-mvp/engine/domain"
	"github.com/DoorwiseAI/doorwise-mvp/engine/fusion"
	"github.com/DoorwiseAI/doorwise-mvp/pkg/fn"
)

// SparseSearcher is the lexical retriever contract (engine/sparse).
type SparseSearcher interface {
	Search(query string, topK int, filter domain.Filter) []domain.Candidate
}

// DenseSearcher is the embedding retriever contract (engine/dense).
type DenseSearcher interface {
	Search(ctx context.Context, query string, topK int, filter domain.Filter) ([]domain.Candidate, error)
}

// Options configures the pipeline.
type Options struct {
	// TopK is the default result count when a caller passes topK <= 0.
	TopK int
	// RetrieverTimeout bounds each retriever independently. A timed-out
	// retriever contributes an empty candidate list, never an abort.
	RetrieverTimeout time.Duration
	// CandidateMultiple widens per-retriever fetch so fusion and reranking
	// have a shortlist larger than topK to work with.
	CandidateMultiple int
	// Fusion holds the score combination constants.
	Fusion fusion.Options
	// Reranker, when non-nil, re-scores the fused shortlist before the
	// final truncation. The pipeline is correct with it disabled.
	Reranker fusion.Reranker
}

// DefaultOptions returns production defaults.
func DefaultOptions() Options {
	return Options{
		TopK:              10,
		RetrieverTimeout:  5 * time.Second,
		CandidateMultiple: 2,
		Fusion:            fusion.DefaultOptions(),
	}
}

// Pipeline fans a query out to both retrievers and fuses the results.
// It caches nothing across calls; see Cached for the optional layer.
type Pipeline struct {
	sparse SparseSearcher
	dense  DenseSearcher
	opts   Options
	logger *slog.Logger
}

// New creates a retrieval Pipeline.
func New(sparse SparseSearcher, dense DenseSearcher, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.RetrieverTimeout <= 0 {
		opts.RetrieverTimeout = DefaultOptions().RetrieverTimeout
	}
	if opts.CandidateMultiple < 1 {
		opts.CandidateMultiple = DefaultOptions().CandidateMultiple
	}
	return &Pipeline{sparse: sparse, dense: dense, opts: opts, logger: logger}
}

type branch struct {
	cands []domain.Candidate
	err   error
}

// Retrieve returns the top-K fused passages for a query. Both retrievers run
// concurrently with independent timeouts; a failed or timed-out retriever
// contributes an empty list. It returns domain.ErrNoResults only when both
// retrievers fail; zero matches from healthy retrievers is an empty, nil-error
// result.
func (p *Pipeline) Retrieve(ctx context.Context, query string, topK int, filter domain.Filter) ([]domain.FusedResult, error) {
	if topK <= 0 {
		topK = p.opts.TopK
	}
	query = PreprocessQuery(query)
	if query == "" {
		return nil, nil // empty query is a no-match, not an error
	}
	filter = InferFilter(query, filter)

	fetchK := topK * p.opts.CandidateMultiple

	branches := fn.FanOut(
		func() branch { return p.searchSparse(ctx, query, fetchK, filter) },
		func() branch { return p.searchDense(ctx, query, fetchK, filter) },
	)
	sp, de := branches[0], branches[1]

	if sp.err != nil && de.err != nil {
		return nil, fmt.Errorf("retrieval: all retrievers failed (sparse: %v, dense: %v): %w", sp.err, de.err, domain.ErrNoResults)
	}
	if sp.err != nil {
		p.logger.Warn("sparse retrieval degraded", "err", sp.err)
	}
	if de.err != nil {
		p.logger.Warn("dense retrieval degraded, continuing sparse-only", "err", de.err)
	}

	results := fusion.Fuse(sp.cands, de.cands, fetchK, p.opts.Fusion)

	if p.opts.Reranker != nil && len(results) > 0 {
		results = p.rerank(ctx, query, results)
	}

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// searchSparse runs the lexical search on a worker goroutine so a pathological
// query cannot stall the caller past the shared deadline.
func (p *Pipeline) searchSparse(ctx context.Context, query string, topK int, filter domain.Filter) branch {
	ctx, cancel := context.WithTimeout(ctx, p.opts.RetrieverTimeout)
	defer cancel()

	done := make(chan []domain.Candidate, 1)
	go func() {
		done <- p.sparse.Search(query, topK, filter)
	}()

	select {
	case cands := <-done:
		return branch{cands: cands}
	case <-ctx.Done():
		return branch{err: fmt.Errorf("retrieval: sparse: %w", ctx.Err())}
	}
}

func (p *Pipeline) searchDense(ctx context.Context, query string, topK int, filter domain.Filter) branch {
	ctx, cancel := context.WithTimeout(ctx, p.opts.RetrieverTimeout)
	defer cancel()

	cands, err := p.dense.Search(ctx, query, topK, filter)
	if err != nil {
		return branch{err: err}
	}
	return branch{cands: cands}
}

// rerank replaces fused scores with the reranker's relevance scores and
// re-sorts. Reranker failure falls back to the fused ordering.
func (p *Pipeline) rerank(ctx context.Context, query string, results []domain.FusedResult) []domain.FusedResult {
	inputs := make([]fusion.RerankInput, len(results))
	for i, r := range results {
		inputs[i] = fusion.RerankInput{Text: r.Text, ContentType: string(r.Metadata.ContentType)}
	}

	scores, err := p.opts.Reranker.Rerank(ctx, query, inputs)
	if err != nil || len(scores) != len(results) {
		p.logger.Warn("rerank skipped", "err", err)
		return results
	}

	for i := range results {
		results[i].FusedScore = scores[i]
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].FusedScore != results[j].FusedScore {
			return results[i].FusedScore > results[j].FusedScore
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	return results
}
