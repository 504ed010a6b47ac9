package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/nikhilbhutani/ragvault/internal/app"
	"github.com/nikhilbhutani/ragvault/internal/config"
	"github.com/nikhilbhutani/ragvault/internal/queue"
	"github.com/nikhilbhutani/ragvault/internal/queue/workers"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), time.Minute)
	engine, err := app.New(startCtx, cfg, logger, app.Options{})
	cancelStart()
	if err != nil {
		slog.Error("failed to start retrieval engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	concurrency := max(1, cfg.Server.WorkerConcurrency)
	srv := asynq.NewServer(
		queue.RedisOpt(cfg.Redis),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				queue.DefaultQueue: 1,
			},
			Logger: newAsynqLogger(logger),
		},
	)

	registry := queue.NewHandlersRegistry(logger)
	ingestWorker := workers.NewIngestWorker(engine.Service, logger)
	registry.Register(queue.TypeDocumentIngest, asynq.HandlerFunc(ingestWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", concurrency)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
