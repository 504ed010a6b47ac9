package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nikhilbhutani/ragvault/internal/api"
	"github.com/nikhilbhutani/ragvault/internal/app"
	"github.com/nikhilbhutani/ragvault/internal/config"
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
	engine, err := app.New(startCtx, cfg, logger, app.Options{Queue: true})
	cancelStart()
	if err != nil {
		slog.Error("failed to start retrieval engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	deps := api.Deps{RAG: engine.Service, Logger: logger}
	if engine.DB != nil {
		deps.DB = engine.DB
	}
	if engine.Cache != nil {
		deps.Redis = engine.Cache
	}
	if engine.Queue != nil {
		deps.Jobs = engine.Queue
	}

	router := api.NewRouter(cfg.Server, deps)
	defer router.Close()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
