package fusion

import (
	"context"
	"sort"
	"strings"
)

// Reranker re-scores a fused shortlist against the query. Implementations may
// call out to a cross-encoder model; the pipeline functions correctly with
// reranking disabled, so implementations must treat failure as skippable.
type Reranker interface {
	Rerank(ctx context.Context, query string, results []RerankInput) ([]float64, error)
}

// RerankInput pairs a chunk's text with its content type for scoring.
type RerankInput struct {
	Text        string
	ContentType string
}

// LexicalReranker scores (query, chunk) pairs on term overlap, match
// position, match density, and a procedure-content bonus. It is the local
// fallback when no external cross-encoder is configured.
type LexicalReranker struct{}

// Weights for the lexical scoring factors.
const (
	termWeight     = 0.4
	positionWeight = 0.2
	densityWeight  = 0.1
	bonusWeight    = 0.1
	procedureBonus = 0.2
)

// Rerank never fails; it returns one score per input.
func (LexicalReranker) Rerank(_ context.Context, query string, inputs []RerankInput) ([]float64, error) {
	terms := uniqueTerms(query)
	scores := make([]float64, len(inputs))
	for i, in := range inputs {
		scores[i] = lexicalScore(terms, in)
	}
	return scores, nil
}

func uniqueTerms(query string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, "?.,!;:'\"()")
		if w != "" && !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

func lexicalScore(terms []string, in RerankInput) float64 {
	if len(terms) == 0 || in.Text == "" {
		return 0
	}
	text := strings.ToLower(in.Text)

	var positions []int
	matches := 0
	for _, term := range terms {
		for idx := 0; ; {
			j := strings.Index(text[idx:], term)
			if j < 0 {
				break
			}
			positions = append(positions, idx+j)
			matches++
			idx += j + len(term)
		}
	}

	// Earlier matches score higher.
	positionScore := 0.0
	if len(positions) > 0 {
		for _, p := range positions {
			positionScore += 1.0 - float64(p)/float64(len(text))
		}
		positionScore /= float64(len(positions))
	}

	// Matches close together score higher.
	densityScore := 0.0
	if len(positions) > 1 {
		sort.Ints(positions)
		gapSum := 0
		for i := 1; i < len(positions); i++ {
			gapSum += positions[i] - positions[i-1]
		}
		avgGap := float64(gapSum) / float64(len(positions)-1)
		densityScore = 1.0 / (1.0 + avgGap/100.0)
	}

	bonus := 0.0
	ct := strings.ToLower(in.ContentType)
	if strings.Contains(ct, "installation_step") || strings.Contains(ct, "procedure") {
		bonus = procedureBonus
	}

	termScore := float64(matches) / float64(len(terms))
	if termScore > 1.0 {
		termScore = 1.0
	}

	return termWeight*termScore +
		positionWeight*positionScore +
		densityWeight*densityScore +
		bonusWeight*bonus
}
