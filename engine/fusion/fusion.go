// Package fusion merges sparse and dense candidate lists into one ranked,
// deduplicated, score-normalized result set.
package fusion

import (
	"sort"

	"github.com/DoorwiseAI/doorwise-mvp/engine/domain"
)

// Options configures score combination. The concrete constants are tunable
// configuration, not correctness requirements.
type Options struct {
	// SparseWeight and DenseWeight combine normalized scores for chunks
	// confirmed by both retrievers.
	SparseWeight float64
	DenseWeight  float64
	// SinglePenalty (< 1.0) scales the score of chunks seen by only one
	// retriever, slightly favoring dual-confirmed chunks.
	SinglePenalty float64
}

// DefaultOptions returns equal weighting with a mild single-source penalty.
func DefaultOptions() Options {
	return Options{
		SparseWeight:  0.5,
		DenseWeight:   0.5,
		SinglePenalty: 0.9,
	}
}

type merged struct {
	result      domain.FusedResult
	sparseScore float64
	denseScore  float64
	inSparse    bool
	inDense     bool
}

// Fuse merges the two candidate lists. Each retriever's raw scores are
// min-max normalized to [0,1] over that retriever's results for this query
// only, so neither scale dominates by default. A dual-confirmed chunk gets
// the weighted sum of its normalized scores, floored at what either source
// alone would have earned, so fusion never hurts a chunk both retrievers
// agree on. Output is sorted descending by fused score (ChunkID ascending on ties),
// deduplicated, and truncated to topK.
func Fuse(sparse, dense []domain.Candidate, topK int, opts Options) []domain.FusedResult {
	if topK <= 0 {
		return nil
	}

	sparseNorm := normalize(sparse)
	denseNorm := normalize(dense)

	byID := make(map[string]*merged)

	for i, c := range sparse {
		byID[c.ChunkID] = &merged{
			result: domain.FusedResult{
				ChunkID:    c.ChunkID,
				Text:       c.Text,
				Metadata:   c.Metadata,
				Retrievers: []domain.RetrieverKind{domain.RetrieverSparse},
			},
			sparseScore: sparseNorm[i],
			inSparse:    true,
		}
	}

	for i, c := range dense {
		if m, ok := byID[c.ChunkID]; ok {
			m.denseScore = denseNorm[i]
			m.inDense = true
			m.result.Retrievers = append(m.result.Retrievers, domain.RetrieverDense)
			continue
		}
		byID[c.ChunkID] = &merged{
			result: domain.FusedResult{
				ChunkID:    c.ChunkID,
				Text:       c.Text,
				Metadata:   c.Metadata,
				Retrievers: []domain.RetrieverKind{domain.RetrieverDense},
			},
			denseScore: denseNorm[i],
			inDense:    true,
		}
	}

	out := make([]domain.FusedResult, 0, len(byID))
	for _, m := range byID {
		switch {
		case m.inSparse && m.inDense:
			score := opts.SparseWeight*m.sparseScore + opts.DenseWeight*m.denseScore
			if floor := opts.SinglePenalty * m.sparseScore; floor > score {
				score = floor
			}
			if floor := opts.SinglePenalty * m.denseScore; floor > score {
				score = floor
			}
			m.result.FusedScore = score
		case m.inSparse:
			m.result.FusedScore = opts.SinglePenalty * m.sparseScore
		default:
			m.result.FusedScore = opts.SinglePenalty * m.denseScore
		}
		out = append(out, m.result)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		return out[i].ChunkID < out[j].ChunkID
	})

	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

// normalize min-max scales raw scores to [0,1] over this candidate list only.
// A single candidate, or a flat list, normalizes to 1.0.
func normalize(cands []domain.Candidate) []float64 {
	if len(cands) == 0 {
		return nil
	}
	min, max := cands[0].RawScore, cands[0].RawScore
	for _, c := range cands[1:] {
		if c.RawScore < min {
			min = c.RawScore
		}
		if c.RawScore > max {
			max = c.RawScore
		}
	}
	out := make([]float64, len(cands))
	if max == min {
		for i := range out {
			out[i] = 1.0
		}
		return out
	}
	for i, c := range cands {
		out[i] = (c.RawScore - min) / (max - min)
	}
	return out
}
