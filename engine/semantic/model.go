package semantic

import "github.com/DoorwiseAI/doorwise-mvp/engine/domain"

// SearchResult represents a single vector search hit.
type SearchResult struct {
	ID       string               `json:"id"`
	Score    float32              `json:"score"`
	Text     string               `json:"text"`
	DocID    string               `json:"doc_id"`
	Position int                  `json:"position"`
	Metadata domain.ChunkMetadata `json:"metadata"`
}

// VectorRecord represents a single embedded chunk to store in Qdrant.
type VectorRecord struct {
	Chunk     domain.Chunk
	Embedding []float32
}
