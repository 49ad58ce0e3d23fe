// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Server holds HTTP server settings.
type Server struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	CORSOrigin      string        `env:"CORS_ORIGIN" envDefault:"*"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RateLimitRPS    float64       `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST" envDefault:"40"`
}

// Qdrant holds vector store settings.
type Qdrant struct {
	Addr       string `env:"QDRANT_ADDR" envDefault:"localhost:6334"`
	Collection string `env:"QDRANT_COLLECTION" envDefault:"door_chunks"`
	VectorSize uint64 `env:"QDRANT_VECTOR_SIZE" envDefault:"1536"`
}

// NATS holds messaging settings. Empty URL disables NATS entirely: no turn
// events and in-memory conversation storage.
type NATS struct {
	URL           string `env:"NATS_URL"`
	SessionBucket string `env:"NATS_SESSION_BUCKET" envDefault:"doorwise_sessions"`
	TurnSubject   string `env:"NATS_TURN_SUBJECT" envDefault:"doorwise.turns"`
}

// LLM holds OpenAI-compatible backend settings.
type LLM struct {
	BaseURL           string        `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	APIKey            string        `env:"LLM_API_KEY"`
	ChatModel         string        `env:"LLM_CHAT_MODEL" envDefault:"gpt-4o-mini"`
	EmbedModel        string        `env:"LLM_EMBED_MODEL" envDefault:"text-embedding-3-small"`
	RequestsPerSecond float64       `env:"LLM_RPS" envDefault:"5"`
	Timeout           time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`
}

// Retrieval tunes the hybrid retrieval pipeline.
type Retrieval struct {
	TopK             int           `env:"RETRIEVAL_TOP_K" envDefault:"10"`
	RetrieverTimeout time.Duration `env:"RETRIEVAL_TIMEOUT" envDefault:"5s"`
	SparseWeight     float64       `env:"FUSION_SPARSE_WEIGHT" envDefault:"0.5"`
	DenseWeight      float64       `env:"FUSION_DENSE_WEIGHT" envDefault:"0.5"`
	SinglePenalty    float64       `env:"FUSION_SINGLE_PENALTY" envDefault:"0.9"`
	CacheTTL         time.Duration `env:"RETRIEVAL_CACHE_TTL" envDefault:"5m"`
	CorpusPath       string        `env:"CORPUS_PATH" envDefault:"data/corpus.json"`
}

// Config is the full service configuration.
type Config struct {
	Server    Server
	Qdrant    Qdrant
	NATS      NATS
	LLM       LLM
	Retrieval Retrieval
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}
	if cfg.Retrieval.SparseWeight < 0 || cfg.Retrieval.DenseWeight < 0 {
		return Config{}, fmt.Errorf("config: fusion weights must be non-negative")
	}
	if cfg.Retrieval.SinglePenalty <= 0 || cfg.Retrieval.SinglePenalty > 1 {
		return Config{}, fmt.Errorf("config: single penalty must be in (0, 1]")
	}
	return cfg, nil
}
