// Package dense implements embedding-similarity retrieval. It embeds the
// query through an external embedder and delegates nearest-neighbor search to
// the Qdrant vector store, with metadata filters pushed down server-side.
package dense

import (
	"context"
	"fmt"

	"github.com/DoorwiseAI/doorwise-mvp/engine/domain"
	"github.com/DoorwiseAI/doorwise-mvp/engine/semantic"
)

// Embedder produces a query embedding. The embedding model itself is an
// external black box, invoked once per query.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher abstracts the vector store's filtered k-NN search.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, topK int, filter domain.Filter) ([]semantic.SearchResult, error)
}

// Retriever performs dense retrieval over chunk embeddings.
type Retriever struct {
	embed  Embedder
	search Searcher
}

// New creates a dense Retriever.
func New(embed Embedder, search Searcher) *Retriever {
	return &Retriever{embed: embed, search: search}
}

// Search embeds the query and returns ranked candidates. Qdrant returns
// cosine similarity, so higher raw score already means closer and the mapping
// stays monotonic for fusion. Failures wrap domain.ErrRetrievalUnavailable
// so the pipeline can degrade to sparse-only.
func (r *Retriever) Search(ctx context.Context, query string, topK int, filter domain.Filter) ([]domain.Candidate, error) {
	if query == "" || topK <= 0 {
		return nil, nil
	}

	embedding, err := r.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("dense: embed query: %w: %w", domain.ErrRetrievalUnavailable, err)
	}

	hits, err := r.search.Search(ctx, embedding, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("dense: vector search: %w: %w", domain.ErrRetrievalUnavailable, err)
	}

	out := make([]domain.Candidate, len(hits))
	for i, h := range hits {
		out[i] = domain.Candidate{
			ChunkID:   h.ID,
			Text:      h.Text,
			Metadata:  h.Metadata,
			RawScore:  float64(h.Score),
			Retriever: domain.RetrieverDense,
			Rank:      i,
		}
	}
	return out, nil
}
