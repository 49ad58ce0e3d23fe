// Package sparse implements lexical BM25 retrieval over the chunk corpus.
// The index is built once at startup (or after ingest) and read-only at query
// time, so searches are lock-free after Build.
package sparse

import (
	"math"
	"sort"
	"sync"

	"github.com/DoorwiseAI/doorwise-mvp/engine/domain"
)

// Okapi BM25 constants. k1 controls term-frequency saturation, b controls
// chunk-length normalization.
const (
	k1 = 1.2
	b  = 0.75
)

type posting struct {
	doc  int // index into chunks
	freq int
}

// Index is an in-memory BM25 index over document chunks.
type Index struct {
	mu       sync.RWMutex
	chunks   []domain.Chunk
	lengths  []int
	avgLen   float64
	postings map[string][]posting
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{postings: make(map[string][]posting)}
}

// Build replaces the index contents with the given corpus.
// Index build is a one-time/periodic operation, not per-query.
func (ix *Index) Build(chunks []domain.Chunk) {
	postings := make(map[string][]posting)
	lengths := make([]int, len(chunks))
	total := 0

	for i, c := range chunks {
		tokens := Tokenize(c.Text)
		lengths[i] = len(tokens)
		total += len(tokens)

		freqs := make(map[string]int, len(tokens))
		for _, t := range tokens {
			freqs[t]++
		}
		for term, f := range freqs {
			postings[term] = append(postings[term], posting{doc: i, freq: f})
		}
	}

	avg := 0.0
	if len(chunks) > 0 {
		avg = float64(total) / float64(len(chunks))
	}

	ix.mu.Lock()
	ix.chunks = append([]domain.Chunk(nil), chunks...)
	ix.lengths = lengths
	ix.avgLen = avg
	ix.postings = postings
	ix.mu.Unlock()
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

// Search ranks chunks against the query with BM25. Filters pre-restrict the
// candidate set, so the returned top-k is always filter-compliant. An empty
// query or empty index returns no candidates; it never errors.
func (ix *Index) Search(query string, topK int, filter domain.Filter) []domain.Candidate {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if topK <= 0 || len(ix.chunks) == 0 {
		return nil
	}
	terms := Tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	// Pre-restriction: only filter-compliant docs are scorable.
	allowed := make([]bool, len(ix.chunks))
	n := 0
	for i, c := range ix.chunks {
		if filter.Matches(c.Metadata) {
			allowed[i] = true
			n++
		}
	}
	if n == 0 {
		return nil
	}

	scores := make(map[int]float64)
	seen := make(map[string]bool, len(terms))
	for _, term := range terms {
		if seen[term] {
			continue // repeated query terms do not double-count
		}
		seen[term] = true

		plist := ix.postings[term]
		if len(plist) == 0 {
			continue
		}

		// IDF over the filtered corpus would require per-filter stats;
		// corpus-wide IDF keeps the index reusable and stays monotonic.
		idf := math.Log(1 + (float64(len(ix.chunks))-float64(len(plist))+0.5)/(float64(len(plist))+0.5))

		for _, p := range plist {
			if !allowed[p.doc] {
				continue
			}
			tf := float64(p.freq)
			norm := 1 - b + b*float64(ix.lengths[p.doc])/ix.avgLen
			scores[p.doc] += idf * (tf * (k1 + 1)) / (tf + k1*norm)
		}
	}

	docs := make([]int, 0, len(scores))
	for d := range scores {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool {
		si, sj := scores[docs[i]], scores[docs[j]]
		if si != sj {
			return si > sj
		}
		return ix.chunks[docs[i]].ID < ix.chunks[docs[j]].ID
	})
	if len(docs) > topK {
		docs = docs[:topK]
	}

	out := make([]domain.Candidate, len(docs))
	for rank, d := range docs {
		c := ix.chunks[d]
		out[rank] = domain.Candidate{
			ChunkID:   c.ID,
			Text:      c.Text,
			Metadata:  c.Metadata,
			RawScore:  scores[d],
			Retriever: domain.RetrieverSparse,
			Rank:      rank,
		}
	}
	return out
}
