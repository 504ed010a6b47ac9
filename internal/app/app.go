// Package app assembles the retrieval engine from configuration. The API
// server, the worker and ragctl all build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/ragvault/internal/cache"
	"github.com/nikhilbhutani/ragvault/internal/config"
	"github.com/nikhilbhutani/ragvault/internal/database"
	"github.com/nikhilbhutani/ragvault/internal/document"
	"github.com/nikhilbhutani/ragvault/internal/embedding"
	"github.com/nikhilbhutani/ragvault/internal/queue"
	"github.com/nikhilbhutani/ragvault/internal/rag"
	"github.com/nikhilbhutani/ragvault/internal/registry"
	"github.com/nikhilbhutani/ragvault/internal/resilience"
	"github.com/nikhilbhutani/ragvault/internal/storage"
	"github.com/nikhilbhutani/ragvault/internal/vectorstore"
	"github.com/nikhilbhutani/ragvault/pkg/chunker"
)

type Options struct {
	// Queue enables asynchronous ingestion through asynq when redis is reachable.
	Queue bool
}

type App struct {
	Config     *config.Config
	Service    *rag.Service
	Controller *resilience.Controller
	Storage    storage.Storage

	DB    *pgxpool.Pool // nil without DATABASE_URL
	Redis *redis.Client // nil when redis is disabled or unreachable
	Cache *cache.Cache
	Queue *queue.Client

	logger *slog.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger}

	if err := a.connectDatabase(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.connectRedis(ctx)

	primary := a.primaryBackend()
	a.Controller = resilience.New(primary, vectorstore.NewMemoryStore(),
		resilience.ConfigFrom(cfg.Resilience, cfg.Embedding.Dimension), logger)
	if err := a.Controller.Bootstrap(ctx); err != nil && ctx.Err() != nil {
		a.Close()
		return nil, ctx.Err()
	}

	store, err := newStorage(cfg.Storage)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Storage = store

	records, err := a.recordStore()
	if err != nil {
		a.Close()
		return nil, err
	}
	reg := registry.New(records, store, a.Controller, logger)

	var ocr *document.OCRService
	if cfg.OCR.Enabled {
		ocr = document.NewOCRService(cfg.OCR.Lang)
		if !ocr.IsAvailable() {
			logger.Warn("OCR enabled but tesseract or pdftoppm is missing")
		}
	}
	loader := document.NewLoader(document.NewTextExtractor(ocr, logger), chunker.ChunkOptions{
		ChunkSize:    cfg.Chunking.Size,
		ChunkOverlap: cfg.Chunking.Overlap,
	})

	a.Service = rag.NewService(loader, a.embedder(), a.Controller, reg, store, logger)

	if opts.Queue {
		if a.Redis == nil {
			logger.Warn("redis unavailable, asynchronous ingestion disabled")
		} else {
			a.Queue = queue.NewClient(cfg.Redis)
			a.Service.SetEnqueuer(a.Queue)
		}
	}

	logger.Info("retrieval engine ready",
		"vector_backend", cfg.VectorStore.Backend,
		"mode", a.Controller.Status().Mode,
		"storage", store.Name(),
		"dimension", a.Controller.Dimension())
	return a, nil
}

func (a *App) connectDatabase(ctx context.Context) error {
	if a.Config.Database.URL == "" {
		return nil
	}
	db, err := database.NewPool(ctx, a.Config.Database)
	if err != nil {
		if a.Config.VectorStore.Backend == "pgvector" {
			return fmt.Errorf("connect database: %w", err)
		}
		a.logger.Warn("database unavailable, using the manifest registry", "error", err)
		return nil
	}
	a.DB = db

	applied, err := database.RunMigrations(ctx, db, database.MigrationsFS(a.Config.Database.MigrationsPath), a.logger)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if applied > 0 {
		a.logger.Info("migrations applied", "count", applied)
	}
	return nil
}

func (a *App) connectRedis(ctx context.Context) {
	cfg := a.Config.Redis
	if cfg.Addr == "" {
		return
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		a.logger.Warn("redis unavailable, running without cache", "error", err)
		rdb.Close()
		return
	}
	a.Redis = rdb
	a.Cache = cache.NewCache(rdb, "ragvault:")
}

func (a *App) primaryBackend() vectorstore.Backend {
	cfg := a.Config
	switch cfg.VectorStore.Backend {
	case "qdrant":
		return vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
			URL:        cfg.VectorStore.URL,
			APIKey:     cfg.VectorStore.APIKey,
			Collection: cfg.VectorStore.Collection,
			Dimension:  cfg.Embedding.Dimension,
			Timeout:    cfg.VectorStore.Timeout,
		})
	case "pgvector":
		return vectorstore.NewPgVectorStore(a.DB, cfg.VectorStore.Collection, cfg.Embedding.Dimension)
	default:
		return nil
	}
}

func newStorage(cfg config.StorageConfig) (storage.Storage, error) {
	switch cfg.Backend {
	case "supabase":
		return storage.NewSupabaseStorage(cfg.SupabaseURL, cfg.SupabaseKey, cfg.Bucket), nil
	default:
		store, err := storage.NewLocalStorage(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("open upload directory: %w", err)
		}
		return store, nil
	}
}

func (a *App) recordStore() (registry.Store, error) {
	if a.DB != nil {
		return registry.NewPostgresStore(a.DB), nil
	}
	manifest, err := registry.NewManifestStore(filepath.Join(a.Config.Storage.Dir, "manifest.json"), a.logger)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	return manifest, nil
}

func (a *App) embedder() *embedding.Service {
	cfg := a.Config.Embedding

	var provider embedding.Provider
	if cfg.OpenAIKey != "" {
		provider = embedding.NewOpenAIProvider(cfg.OpenAIKey, cfg.BaseURL, cfg.Model)
	}
	var vc embedding.VectorCache
	if a.Cache != nil {
		vc = a.Cache
	}
	return embedding.NewService(provider, vc, embedding.Config{
		Model:     cfg.Model,
		Dimension: cfg.Dimension,
		CacheTTL:  cfg.CacheTTL,
	}, a.logger)
}

func (a *App) Close() error {
	var errs []error
	if a.Queue != nil {
		errs = append(errs, a.Queue.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		a.DB.Close()
	}
	return errors.Join(errs...)
}
