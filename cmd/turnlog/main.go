// Command turnlog tails the turn event stream and appends each event to a
// JSONL file, building an offline dataset for answer-quality evaluation.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"

	"github.com/DoorwiseAI/doorwise-mvp/engine/orchestrator"
	"github.com/DoorwiseAI/doorwise-mvp/pkg/config"
	"github.com/DoorwiseAI/doorwise-mvp/pkg/natsutil"
)

func main() {
	output := flag.String("output", "data/turns.jsonl", "path to the JSONL output file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}
	if cfg.NATS.URL == "" {
		logger.Error("NATS_URL is required")
		os.Exit(1)
	}

	if err := run(cfg, *output, logger); err != nil {
		logger.Error("turnlog exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, outputPath string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	nc, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	f, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	sub, err := natsutil.Subscribe(nc, cfg.NATS.TurnSubject, func(_ context.Context, ev orchestrator.TurnEvent) {
		if err := enc.Encode(ev); err != nil {
			logger.Error("write event", "err", err)
			return
		}
		logger.Info("turn recorded", "session", ev.SessionID, "roles", ev.Roles, "degraded", ev.Degraded)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", cfg.NATS.TurnSubject, err)
	}
	defer sub.Unsubscribe()

	logger.Info("turnlog started", "subject", cfg.NATS.TurnSubject, "output", outputPath)
	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}
