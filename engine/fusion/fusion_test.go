package fusion

import (
	"context"
	"testing"

	"github.com/DoorwiseAI/doorwise-mvp/engine/domain"
)

func sparseCand(id string, score float64) domain.Candidate {
	return domain.Candidate{ChunkID: id, Text: "text " + id, RawScore: score, Retriever: domain.RetrieverSparse}
}

func denseCand(id string, score float64) domain.Candidate {
	return domain.Candidate{ChunkID: id, Text: "text " + id, RawScore: score, Retriever: domain.RetrieverDense}
}

func TestFuse_Invariants(t *testing.T) {
	sparse := []domain.Candidate{
		sparseCand("a", 12.0), sparseCand("b", 8.0), sparseCand("c", 4.0),
	}
	dense := []domain.Candidate{
		denseCand("b", 0.91), denseCand("d", 0.85), denseCand("e", 0.2),
	}

	got := Fuse(sparse, dense, 4, DefaultOptions())

	if len(got) > 4 {
		t.Fatalf("len = %d, want <= 4", len(got))
	}
	seen := make(map[string]bool)
	for i, r := range got {
		if seen[r.ChunkID] {
			t.Errorf("duplicate chunk %s", r.ChunkID)
		}
		seen[r.ChunkID] = true
		if i > 0 && got[i].FusedScore > got[i-1].FusedScore {
			t.Errorf("not sorted at %d: %f > %f", i, got[i].FusedScore, got[i-1].FusedScore)
		}
	}
}

func TestFuse_DualConfirmedNeverHurt(t *testing.T) {
	// "b" is mid-pack in sparse but top in dense. Its fused score must be at
	// least what the dense list alone would have given it.
	sparse := []domain.Candidate{
		sparseCand("a", 10.0), sparseCand("b", 5.0), sparseCand("c", 1.0),
	}
	dense := []domain.Candidate{
		denseCand("b", 0.95), denseCand("d", 0.5), denseCand("e", 0.1),
	}
	opts := DefaultOptions()

	got := Fuse(sparse, dense, 10, opts)

	var b *domain.FusedResult
	for i := range got {
		if got[i].ChunkID == "b" {
			b = &got[i]
		}
	}
	if b == nil {
		t.Fatal("chunk b missing from fused results")
	}
	if len(b.Retrievers) != 2 {
		t.Fatalf("b retrievers = %v, want both", b.Retrievers)
	}
	// b normalizes to 1.0 in the dense list, so the floor is the full penalty.
	if b.FusedScore < opts.SinglePenalty {
		t.Errorf("dual-confirmed score %f below single-source floor %f", b.FusedScore, opts.SinglePenalty)
	}
}

func TestFuse_SingleSourcePenalty(t *testing.T) {
	sparse := []domain.Candidate{sparseCand("a", 10.0), sparseCand("b", 2.0)}

	got := Fuse(sparse, nil, 10, DefaultOptions())
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// "a" normalizes to 1.0; penalized to 0.9.
	if got[0].ChunkID != "a" || got[0].FusedScore != 0.9 {
		t.Errorf("top = %s/%f, want a/0.9", got[0].ChunkID, got[0].FusedScore)
	}
	if len(got[0].Retrievers) != 1 || got[0].Retrievers[0] != domain.RetrieverSparse {
		t.Errorf("retrievers = %v, want [sparse]", got[0].Retrievers)
	}
}

func TestFuse_EmptyInputs(t *testing.T) {
	if got := Fuse(nil, nil, 5, DefaultOptions()); len(got) != 0 {
		t.Errorf("fusing nothing returned %d results", len(got))
	}
	if got := Fuse([]domain.Candidate{sparseCand("a", 1)}, nil, 0, DefaultOptions()); got != nil {
		t.Errorf("topK=0 returned %v", got)
	}
}

func TestFuse_TieBreakByChunkID(t *testing.T) {
	// Equal raw scores normalize flat to 1.0 for both, so order falls to ID.
	sparse := []domain.Candidate{sparseCand("z", 3.0), sparseCand("a", 3.0)}
	got := Fuse(sparse, nil, 10, DefaultOptions())
	if got[0].ChunkID != "a" || got[1].ChunkID != "z" {
		t.Errorf("tie-break order = %s, %s; want a, z", got[0].ChunkID, got[1].ChunkID)
	}
}

func TestLexicalReranker_FavorsTermOverlap(t *testing.T) {
	r := LexicalReranker{}
	scores, err := r.Rerank(context.Background(), "install bifold track", []RerankInput{
		{Text: "Install the bifold track along the header.", ContentType: "installation_step"},
		{Text: "Paint colors for interior decor.", ContentType: "general"},
	})
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("got %d scores, want 2", len(scores))
	}
	if scores[0] <= scores[1] {
		t.Errorf("relevant chunk scored %f, irrelevant %f", scores[0], scores[1])
	}
}

func TestLexicalReranker_ProcedureBonus(t *testing.T) {
	r := LexicalReranker{}
	scores, _ := r.Rerank(context.Background(), "door", []RerankInput{
		{Text: "door", ContentType: "installation_step"},
		{Text: "door", ContentType: "general"},
	})
	if scores[0] <= scores[1] {
		t.Errorf("procedure content did not receive bonus: %f vs %f", scores[0], scores[1])
	}
}

func TestLexicalReranker_EmptyInputs(t *testing.T) {
	r := LexicalReranker{}
	scores, err := r.Rerank(context.Background(), "", []RerankInput{{Text: "anything"}})
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	if scores[0] != 0 {
		t.Errorf("empty query scored %f, want 0", scores[0])
	}
}
