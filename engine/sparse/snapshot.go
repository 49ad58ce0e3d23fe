package sparse

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/DoorwiseAI/doorwise-mvp/engine/domain"
)

// SaveCorpus writes the chunk corpus as JSON so the API server can rebuild
// the lexical index at startup without re-reading source documents.
func SaveCorpus(path string, chunks []domain.Chunk) error {
	data, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("sparse: marshal corpus: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("sparse: write corpus: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("sparse: replace corpus: %w", err)
	}
	return nil
}

// LoadCorpus reads a chunk corpus snapshot. A missing file yields an empty
// corpus, not an error: a fresh deployment has nothing ingested yet.
func LoadCorpus(path string) ([]domain.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("sparse: read corpus: %w", err)
	}
	var chunks []domain.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("sparse: decode corpus: %w", err)
	}
	return chunks, nil
}
