package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/nikhilbhutani/ragvault/internal/apperr"
)

const (
	DefaultTopK = 3
	MaxTopK     = 50
)

type Hit struct {
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Search returns the topK chunks most similar to query, best first.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.InvalidInput("query is required")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	topK = min(topK, MaxTopK)

	vec := s.embedder.Embed(ctx, query)
	results, err := s.index.Search(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{
			Content:  r.Chunk.Content,
			Score:    r.Score,
			Metadata: r.Chunk.Metadata,
		})
	}
	return hits, nil
}
