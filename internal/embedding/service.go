package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

const batchSize = 100

// VectorCache stores remote vectors between runs. *cache.Cache satisfies it.
type VectorCache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type Config struct {
	Model     string
	Dimension int
	CacheTTL  time.Duration
}

// Service embeds text with the remote provider when one is configured and
// falls back to HashEmbed per text whenever the provider fails.
type Service struct {
	provider Provider
	cache    VectorCache
	cfg      Config
	logger   *slog.Logger
}

// NewService builds the embedder. provider and cache may be nil.
func NewService(provider Provider, cache VectorCache, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	return &Service{
		provider: provider,
		cache:    cache,
		cfg:      cfg,
		logger:   logger.With("component", "embedding"),
	}
}

func (s *Service) Embed(ctx context.Context, text string) []float32 {
	return s.EmbedBatch(ctx, []string{text})[0]
}

func (s *Service) EmbedBatch(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	if s.provider == nil {
		for i, t := range texts {
			out[i] = HashEmbed(t, s.cfg.Dimension)
		}
		return out
	}

	var missing []int
	for i, t := range texts {
		if v := s.cached(ctx, t); v != nil {
			out[i] = v
			continue
		}
		missing = append(missing, i)
	}

	for start := 0; start < len(missing); start += batchSize {
		idx := missing[start:min(start+batchSize, len(missing))]
		batch := make([]string, len(idx))
		for j, i := range idx {
			batch[j] = texts[i]
		}

		vectors, err := s.provider.Embed(ctx, batch)
		if err == nil && len(vectors) != len(batch) {
			s.logger.Warn("embedding provider returned wrong vector count",
				"provider", s.provider.Name(), "expected", len(batch), "got", len(vectors))
			vectors = nil
		}
		if err != nil {
			s.logger.Warn("embedding provider failed, using hash embeddings",
				"provider", s.provider.Name(), "texts", len(batch), "error", err)
		}

		for j, i := range idx {
			if vectors != nil && len(vectors[j]) > 0 {
				out[i] = vectors[j]
				s.store(ctx, texts[i], vectors[j])
				continue
			}
			out[i] = HashEmbed(texts[i], s.cfg.Dimension)
		}
	}
	return out
}

func (s *Service) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + s.cfg.Model + ":" + hex.EncodeToString(sum[:])
}

func (s *Service) cached(ctx context.Context, text string) []float32 {
	if s.cache == nil {
		return nil
	}
	var v []float32
	if err := s.cache.Get(ctx, s.cacheKey(text), &v); err != nil || len(v) == 0 {
		return nil
	}
	return v
}

func (s *Service) store(ctx context.Context, text string, v []float32) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(text), v, s.cfg.CacheTTL); err != nil {
		s.logger.Debug("embedding cache write failed", "error", err)
	}
}
