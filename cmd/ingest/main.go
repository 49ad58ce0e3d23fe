// Package main implements the ingestion tool. It reads chunked door manual
// content from a JSON file, embeds it, loads it into Qdrant, and writes the
// corpus snapshot the API server's sparse index is built from.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/DoorwiseAI/doorwise-mvp/engine/domain"
	"github.com/DoorwiseAI/doorwise-mvp/engine/semantic"
	"github.com/DoorwiseAI/doorwise-mvp/engine/sparse"
	"github.com/DoorwiseAI/doorwise-mvp/pkg/config"
	"github.com/DoorwiseAI/doorwise-mvp/pkg/fn"
	"github.com/DoorwiseAI/doorwise-mvp/pkg/openai"
)

// embedBatchSize bounds texts per embedding request.
const embedBatchSize = 64

// chunkInput is one entry in the ingest file.
type chunkInput struct {
	ID           string `json:"id,omitempty"`
	Text         string `json:"text"`
	DocID        string `json:"doc_id"`
	Position     int    `json:"position"`
	DoorCategory string `json:"door_category"`
	DoorType     string `json:"door_type"`
	ContentType  string `json:"content_type"`
}

func main() {
	input := flag.String("input", "data/chunks.json", "path to the chunk JSON file")
	replace := flag.Bool("replace", true, "delete existing points for each document before upserting")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, *input, *replace, logger); err != nil {
		logger.Error("ingest failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, inputPath string, replace bool, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	chunks, err := loadChunks(inputPath)
	if err != nil {
		return err
	}
	logger.Info("chunks loaded", "path", inputPath, "count", len(chunks))

	store, err := semantic.New(cfg.Qdrant.Addr, cfg.Qdrant.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer store.Close()

	if err := store.EnsureCollection(ctx, int(cfg.Qdrant.VectorSize)); err != nil {
		return err
	}

	if replace {
		docIDs := fn.Unique(fn.Map(chunks, func(c domain.Chunk) string { return c.DocID }))
		for _, docID := range docIDs {
			if err := store.DeleteByDocID(ctx, docID); err != nil {
				return err
			}
		}
		logger.Info("existing documents cleared", "docs", len(docIDs))
	}

	embedder := openai.New(openai.Opts{
		BaseURL:           cfg.LLM.BaseURL,
		APIKey:            cfg.LLM.APIKey,
		EmbedModel:        cfg.LLM.EmbedModel,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Timeout:           cfg.LLM.Timeout,
	})

	total := 0
	for _, batch := range fn.Chunk(chunks, embedBatchSize) {
		texts := fn.Map(batch, func(c domain.Chunk) string { return c.Text })
		embeddings, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch at %d: %w", total, err)
		}

		records := make([]semantic.VectorRecord, len(batch))
		for i, c := range batch {
			records[i] = semantic.VectorRecord{Chunk: c, Embedding: embeddings[i]}
		}
		if err := store.Upsert(ctx, records); err != nil {
			return err
		}
		total += len(batch)
		logger.Info("batch upserted", "done", total, "of", len(chunks))
	}

	if err := sparse.SaveCorpus(cfg.Retrieval.CorpusPath, chunks); err != nil {
		return err
	}
	logger.Info("corpus snapshot written", "path", cfg.Retrieval.CorpusPath, "chunks", len(chunks))
	return nil
}

// loadChunks reads, validates, and normalizes the ingest file. Chunks without
// an ID get a fresh UUID; Qdrant point IDs must be UUIDs.
func loadChunks(path string) ([]domain.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	var inputs []chunkInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}

	chunks := make([]domain.Chunk, 0, len(inputs))
	for i, in := range inputs {
		id := in.ID
		if id == "" {
			id = uuid.NewString()
		}
		c := domain.Chunk{
			ID:       id,
			Text:     in.Text,
			DocID:    in.DocID,
			Position: in.Position,
			Metadata: domain.ChunkMetadata{
				DoorCategory: domain.DoorCategory(in.DoorCategory),
				DoorType:     domain.DoorType(in.DoorType),
				ContentType:  domain.ContentType(in.ContentType),
			},
		}
		if err := domain.ValidateChunk(c); err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		chunks = append(chunks, c)
	}
	// Repeated IDs in the input collapse to the first occurrence; Qdrant
	// would otherwise silently overwrite the point.
	return fn.UniqueBy(chunks, func(c domain.Chunk) string { return c.ID }), nil
}
