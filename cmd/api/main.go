// Package main implements the Doorwise API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/DoorwiseAI/doorwise-mvp/engine/agent"
	"github.com/DoorwiseAI/doorwise-mvp/engine/dense"
	"github.com/DoorwiseAI/doorwise-mvp/engine/fusion"
	"github.com/DoorwiseAI/doorwise-mvp/engine/memory"
	"github.com/DoorwiseAI/doorwise-mvp/engine/orchestrator"
	"github.com/DoorwiseAI/doorwise-mvp/engine/retrieval"
	"github.com/DoorwiseAI/doorwise-mvp/engine/semantic"
	"github.com/DoorwiseAI/doorwise-mvp/engine/sparse"
	"github.com/DoorwiseAI/doorwise-mvp/pkg/config"
	"github.com/DoorwiseAI/doorwise-mvp/pkg/metrics"
	"github.com/DoorwiseAI/doorwise-mvp/pkg/mid"
	"github.com/DoorwiseAI/doorwise-mvp/pkg/natsutil"
	"github.com/DoorwiseAI/doorwise-mvp/pkg/openai"
	"github.com/DoorwiseAI/doorwise-mvp/pkg/resilience"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- LLM backend ---
	llm := openai.New(openai.Opts{
		BaseURL:           cfg.LLM.BaseURL,
		APIKey:            cfg.LLM.APIKey,
		ChatModel:         cfg.LLM.ChatModel,
		EmbedModel:        cfg.LLM.EmbedModel,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Timeout:           cfg.LLM.Timeout,
		Breaker:           resilience.NewBreaker(resilience.DefaultBreakerOpts),
	})

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.Qdrant.Addr, cfg.Qdrant.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	// --- Sparse index from the ingested corpus snapshot ---
	chunks, err := sparse.LoadCorpus(cfg.Retrieval.CorpusPath)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	index := sparse.NewIndex()
	index.Build(chunks)
	logger.Info("sparse index ready", "chunks", index.Len())

	// --- Hybrid retrieval pipeline ---
	pipeline := retrieval.New(
		index,
		dense.New(llm, vectorStore),
		retrieval.Options{
			TopK:              cfg.Retrieval.TopK,
			RetrieverTimeout:  cfg.Retrieval.RetrieverTimeout,
			CandidateMultiple: 2,
			Fusion: fusion.Options{
				SparseWeight:  cfg.Retrieval.SparseWeight,
				DenseWeight:   cfg.Retrieval.DenseWeight,
				SinglePenalty: cfg.Retrieval.SinglePenalty,
			},
			Reranker: fusion.LexicalReranker{},
		},
		logger,
	)
	retriever := retrieval.NewCached(pipeline, cfg.Retrieval.CacheTTL)

	// --- Conversation memory and turn events, NATS-backed when configured ---
	var store memory.Store = memory.NewInMemoryStore()
	var publisher orchestrator.Publisher
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()

		store, err = memory.NewNatsStore(nc, cfg.NATS.SessionBucket)
		if err != nil {
			return fmt.Errorf("nats session store: %w", err)
		}
		publisher = &natsPublisher{nc: nc}
		logger.Info("nats connected", "bucket", cfg.NATS.SessionBucket)
	} else {
		logger.Info("nats disabled, sessions are in-memory only")
	}

	// --- Agents and orchestrator ---
	factory, err := agent.NewFactory(agent.Deps{
		Retriever: retriever,
		LLM:       &llmAdapter{client: llm},
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("agent factory: %w", err)
	}

	orchCfg := orchestrator.DefaultConfig()
	orchCfg.EventSubject = cfg.NATS.TurnSubject
	orch, err := orchestrator.New(factory.CreateAll(), store, retriever, publisher, logger, orchCfg)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}

	// --- HTTP server ---
	reg := metrics.New()
	srvHandlers := newHandlers(orch, reg, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", srvHandlers.health)
	mux.HandleFunc("POST /api/chat", srvHandlers.chat)
	mux.HandleFunc("POST /api/search", srvHandlers.search)
	mux.HandleFunc("GET /api/history/{session_id}", srvHandlers.getHistory)
	mux.HandleFunc("DELETE /api/history/{session_id}", srvHandlers.clearHistory)
	mux.Handle("GET /metrics", reg.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.RequestID(),
		mid.Logger(logger),
		mid.CORS(cfg.Server.CORSOrigin),
		mid.RateLimit(resilience.NewLimiter(resilience.LimiterOpts{
			Rate:  cfg.Server.RateLimitRPS,
			Burst: cfg.Server.RateLimitBurst,
		})),
		mid.OTel("doorwise-api"),
	)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// --- Adapters ---

// llmAdapter maps the agent completion contract onto the OpenAI client.
type llmAdapter struct {
	client *openai.Client
}

func (a *llmAdapter) Complete(ctx context.Context, req agent.CompletionRequest) (string, error) {
	msgs := make([]openai.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.Message{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, openai.Message{Role: m.Role, Content: m.Content})
	}
	return a.client.Chat(ctx, openai.ChatRequest{
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
}

// natsPublisher adapts natsutil to the orchestrator's publisher contract.
type natsPublisher struct {
	nc *nats.Conn
}

func (p *natsPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	return natsutil.Publish(ctx, p.nc, subject, jsonRaw(data))
}

// jsonRaw marks already-encoded JSON so natsutil doesn't double-encode it.
type jsonRaw []byte

func (r jsonRaw) MarshalJSON() ([]byte, error) { return r, nil }
