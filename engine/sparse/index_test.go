package sparse

import (
	"testing"

	"github.com/DoorwiseAI/doorwise-mvp/engine/domain"
)

func testChunks() []domain.Chunk {
	return []domain.Chunk{
		{
			ID: "c1", Text: "Install the bifold door track along the head jamb and snap in the pivot brackets.",
			DocID: "doc-bifold", Position: 0,
			Metadata: domain.ChunkMetadata{DoorCategory: domain.CategoryInterior, DoorType: domain.TypeBifold, ContentType: domain.ContentInstallationStep},
		},
		{
			ID: "c2", Text: "Shim the prehung door frame until the reveal is even on all sides.",
			DocID: "doc-prehung", Position: 0,
			Metadata: domain.ChunkMetadata{DoorCategory: domain.CategoryInterior, DoorType: domain.TypePrehung, ContentType: domain.ContentInstallationStep},
		},
		{
			ID: "c3", Text: "Wear safety glasses when cutting the track to length.",
			DocID: "doc-bifold", Position: 3,
			Metadata: domain.ChunkMetadata{DoorCategory: domain.CategoryInterior, DoorType: domain.TypeBifold, ContentType: domain.ContentSafety},
		},
		{
			ID: "c4", Text: "A patio door needs two people to lift the glass panel safely.",
			DocID: "doc-patio", Position: 1,
			Metadata: domain.ChunkMetadata{DoorCategory: domain.CategoryExterior, DoorType: domain.TypePatio, ContentType: domain.ContentSafety},
		},
	}
}

func TestTokenize_KeepsDoorTermsDropsStopwords(t *testing.T) {
	tokens := Tokenize("How do I install the bifold door track?")
	want := map[string]bool{"install": true, "bifold": true, "door": true, "track": true}
	for _, tok := range tokens {
		if tok == "how" || tok == "do" || tok == "the" {
			t.Errorf("stopword %q survived tokenization", tok)
		}
		delete(want, tok)
	}
	if len(want) > 0 {
		t.Errorf("missing expected tokens: %v (got %v)", want, tokens)
	}
}

func TestSearch_RanksMatchingChunkFirst(t *testing.T) {
	ix := NewIndex()
	ix.Build(testChunks())

	got := ix.Search("bifold door track pivot brackets", 10, domain.Filter{})
	if len(got) == 0 {
		t.Fatal("expected results")
	}
	if got[0].ChunkID != "c1" {
		t.Errorf("top result = %s, want c1", got[0].ChunkID)
	}
	for i := 1; i < len(got); i++ {
		if got[i].RawScore > got[i-1].RawScore {
			t.Errorf("results not sorted at %d: %f > %f", i, got[i].RawScore, got[i-1].RawScore)
		}
	}
	for i, c := range got {
		if c.Rank != i {
			t.Errorf("rank mismatch at %d: got %d", i, c.Rank)
		}
		if c.Retriever != domain.RetrieverSparse {
			t.Errorf("retriever = %s, want sparse", c.Retriever)
		}
	}
}

func TestSearch_FilterRestrictsBeforeScoring(t *testing.T) {
	ix := NewIndex()
	ix.Build(testChunks())

	got := ix.Search("door safety", 10, domain.Filter{ContentType: domain.ContentSafety})
	if len(got) == 0 {
		t.Fatal("expected safety results")
	}
	for _, c := range got {
		if c.Metadata.ContentType != domain.ContentSafety {
			t.Errorf("chunk %s has content type %s, want safety", c.ChunkID, c.Metadata.ContentType)
		}
	}

	got = ix.Search("door", 10, domain.Filter{DoorType: domain.TypeDentilShelf})
	if len(got) != 0 {
		t.Errorf("expected no results for unindexed door type, got %d", len(got))
	}
}

func TestSearch_TopKBoundsResults(t *testing.T) {
	ix := NewIndex()
	ix.Build(testChunks())

	got := ix.Search("door", 2, domain.Filter{})
	if len(got) > 2 {
		t.Errorf("got %d results, want at most 2", len(got))
	}
}

func TestSearch_EmptyQueryAndEmptyIndex(t *testing.T) {
	ix := NewIndex()
	if got := ix.Search("door", 5, domain.Filter{}); len(got) != 0 {
		t.Errorf("empty index returned %d results", len(got))
	}

	ix.Build(testChunks())
	if got := ix.Search("", 5, domain.Filter{}); len(got) != 0 {
		t.Errorf("empty query returned %d results", len(got))
	}
	if got := ix.Search("the of and", 5, domain.Filter{}); len(got) != 0 {
		t.Errorf("stopword-only query returned %d results", len(got))
	}
}

func TestBuild_ReplacesCorpus(t *testing.T) {
	ix := NewIndex()
	ix.Build(testChunks())
	if ix.Len() != 4 {
		t.Fatalf("Len = %d, want 4", ix.Len())
	}

	ix.Build(testChunks()[:1])
	if ix.Len() != 1 {
		t.Fatalf("Len after rebuild = %d, want 1", ix.Len())
	}
	got := ix.Search("prehung frame reveal", 5, domain.Filter{})
	if len(got) != 0 {
		t.Errorf("rebuilt index still returns old chunks: %v", got)
	}
}
