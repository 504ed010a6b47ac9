// Package rag ties the loader, embedder, resilient vector index, upload
// storage and document registry into the ingestion and search service.
package rag

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/ragvault/internal/document"
	"github.com/nikhilbhutani/ragvault/internal/registry"
	"github.com/nikhilbhutani/ragvault/internal/resilience"
	"github.com/nikhilbhutani/ragvault/internal/storage"
	"github.com/nikhilbhutani/ragvault/internal/vectorstore"
)

// Index is the vector index as seen by the service; *resilience.Controller
// implements it.
type Index interface {
	Upsert(ctx context.Context, points []vectorstore.Point) error
	Search(ctx context.Context, vector []float32, topK int) ([]vectorstore.SearchResult, error)
	DeleteByDocument(ctx context.Context, documentID string) error
	DeletePoints(ctx context.Context, ids []string) error
	ScrollByDocument(ctx context.Context, documentID string, limit int) ([]vectorstore.Chunk, error)
	Status() resilience.Status
}

type Embedder interface {
	Embed(ctx context.Context, text string) []float32
	EmbedBatch(ctx context.Context, texts []string) [][]float32
}

// Enqueuer hands an ingestion to the background worker and returns the job id.
type Enqueuer interface {
	EnqueueIngest(ctx context.Context, req IngestRequest) (string, error)
}

type Service struct {
	loader   *document.Loader
	embedder Embedder
	index    Index
	registry *registry.Registry
	storage  storage.Storage
	enqueuer Enqueuer
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(loader *document.Loader, embedder Embedder, index Index, reg *registry.Registry, store storage.Storage, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		loader:   loader,
		embedder: embedder,
		index:    index,
		registry: reg,
		storage:  store,
		logger:   logger.With("component", "rag"),
		now:      time.Now,
	}
}

// SetEnqueuer enables asynchronous ingestion.
func (s *Service) SetEnqueuer(e Enqueuer) {
	s.enqueuer = e
}

func (s *Service) Status() resilience.Status {
	return s.index.Status()
}

func (s *Service) List(ctx context.Context) ([]registry.Record, error) {
	return s.registry.List(ctx)
}

func (s *Service) Get(ctx context.Context, documentID string) (*registry.Record, error) {
	return s.registry.Get(ctx, documentID)
}

// Chunks returns the stored chunks of a registered document in document
// order. limit <= 0 returns all of them.
func (s *Service) Chunks(ctx context.Context, documentID string, limit int) ([]vectorstore.Chunk, error) {
	if _, err := s.registry.Get(ctx, documentID); err != nil {
		return nil, err
	}
	return s.index.ScrollByDocument(ctx, documentID, limit)
}

// Delete removes the stored file, the registry record and the vectors.
func (s *Service) Delete(ctx context.Context, documentID string) (*registry.DeleteResult, error) {
	return s.registry.Delete(ctx, documentID)
}

func newDocumentID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
