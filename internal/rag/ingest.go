package rag

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"

	"github.com/nikhilbhutani/ragvault/internal/apperr"
	"github.com/nikhilbhutani/ragvault/internal/registry"
	"github.com/nikhilbhutani/ragvault/internal/resilience"
	"github.com/nikhilbhutani/ragvault/internal/storage"
	"github.com/nikhilbhutani/ragvault/internal/vectorstore"
)

// IngestRequest describes a document whose file is already in storage.
// Data may be left nil, in which case the file is downloaded.
type IngestRequest struct {
	DocumentID   string         `json:"document_id"`
	OriginalFile string         `json:"original_file"`
	StoredFile   string         `json:"stored_file"`
	SizeBytes    int64          `json:"size_bytes"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Data         []byte         `json:"-"`
}

type IngestResult struct {
	DocumentID string `json:"document_id"`
	ChunkCount int    `json:"chunks"`
	FileName   string `json:"file_name"`
	StoredFile string `json:"stored_file"`
	JobID      string `json:"job_id,omitempty"`
}

// IngestUpload stores an uploaded file and ingests it synchronously under a
// new document id.
func (s *Service) IngestUpload(ctx context.Context, name string, data []byte, meta map[string]any) (*IngestResult, error) {
	return s.ingestUpload(ctx, newDocumentID(), name, data, meta)
}

// ReplaceDocument re-ingests a document under an existing id. Chunks of the
// previous version are overwritten in place and surplus ones removed.
func (s *Service) ReplaceDocument(ctx context.Context, documentID, name string, data []byte, meta map[string]any) (*IngestResult, error) {
	if documentID == "" {
		return nil, apperr.InvalidInput("document id is required")
	}
	return s.ingestUpload(ctx, documentID, name, data, meta)
}

func (s *Service) ingestUpload(ctx context.Context, documentID, name string, data []byte, meta map[string]any) (*IngestResult, error) {
	req, err := s.stage(ctx, documentID, name, data, meta)
	if err != nil {
		return nil, err
	}

	res, err := s.IngestStored(ctx, *req)
	if err != nil {
		// no record points at the file, so it would be orphaned
		if derr := s.storage.Delete(ctx, req.StoredFile); derr != nil {
			s.logger.Warn("failed to remove stored upload", "stored_file", req.StoredFile, "error", derr)
		}
		return nil, err
	}
	return res, nil
}

// IngestUploadAsync stores an uploaded file and queues its ingestion.
func (s *Service) IngestUploadAsync(ctx context.Context, name string, data []byte, meta map[string]any) (*IngestResult, error) {
	if s.enqueuer == nil {
		return nil, apperr.InvalidInput("asynchronous ingestion is not configured")
	}
	req, err := s.stage(ctx, newDocumentID(), name, data, meta)
	if err != nil {
		return nil, err
	}

	jobID, err := s.enqueuer.EnqueueIngest(ctx, *req)
	if err != nil {
		if derr := s.storage.Delete(ctx, req.StoredFile); derr != nil {
			s.logger.Warn("failed to remove stored upload", "stored_file", req.StoredFile, "error", derr)
		}
		return nil, fmt.Errorf("enqueue ingestion: %w", err)
	}

	s.logger.Info("document queued", "document_id", req.DocumentID, "job_id", jobID)
	return &IngestResult{
		DocumentID: req.DocumentID,
		FileName:   req.OriginalFile,
		StoredFile: req.StoredFile,
		JobID:      jobID,
	}, nil
}

func (s *Service) stage(ctx context.Context, documentID, name string, data []byte, meta map[string]any) (*IngestRequest, error) {
	if len(data) == 0 {
		return nil, apperr.InvalidInput("uploaded file is empty")
	}
	original := filepath.Base(name)
	if name == "" {
		original = "upload"
	}
	stored := storage.StoredName(original)

	contentType := mime.TypeByExtension(filepath.Ext(original))
	if err := s.storage.Upload(ctx, stored, bytes.NewReader(data), contentType); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	return &IngestRequest{
		DocumentID:   documentID,
		OriginalFile: original,
		StoredFile:   stored,
		SizeBytes:    int64(len(data)),
		Metadata:     meta,
		Data:         data,
	}, nil
}

// IngestStored runs extract, chunk, embed and upsert for a stored file, drops
// chunks left over from a longer previous version, then registers the
// document. Nothing is registered when a step fails.
func (s *Service) IngestStored(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if req.DocumentID == "" {
		req.DocumentID = newDocumentID()
	}
	if req.OriginalFile == "" {
		req.OriginalFile = req.StoredFile
	}
	logger := s.logger.With("document_id", req.DocumentID)

	data := req.Data
	if data == nil {
		var err error
		if data, err = s.download(ctx, req.StoredFile); err != nil {
			return nil, err
		}
	}

	meta := map[string]any{
		vectorstore.MetaFileName: req.OriginalFile,
		"original_file":          req.OriginalFile,
		"stored_file":            req.StoredFile,
	}
	for k, v := range req.Metadata {
		meta[k] = v
	}

	chunks, err := s.loader.LoadBytes(ctx, req.DocumentID, req.StoredFile, data, meta)
	if err != nil {
		return nil, err
	}

	prev, err := s.registry.Get(ctx, req.DocumentID)
	firstIngest := apperr.IsNotFound(err)

	if err := s.storeChunks(ctx, req.DocumentID, chunks); err != nil {
		if firstIngest {
			s.removeOrphans(ctx, req.DocumentID)
		}
		return nil, err
	}

	size := req.SizeBytes
	if size == 0 {
		size = int64(len(data))
	}
	rec := registry.Record{
		DocumentID:   req.DocumentID,
		OriginalFile: req.OriginalFile,
		StoredFile:   req.StoredFile,
		SizeBytes:    size,
		ChunkCount:   len(chunks),
		UploadedAt:   s.now().UTC(),
		Metadata:     req.Metadata,
	}
	if err := s.registry.Register(ctx, rec); err != nil {
		if firstIngest {
			s.removeOrphans(ctx, req.DocumentID)
		}
		return nil, err
	}

	if prev != nil && prev.StoredFile != "" && prev.StoredFile != req.StoredFile {
		if err := s.storage.Delete(ctx, prev.StoredFile); err != nil {
			logger.Warn("failed to remove replaced upload", "stored_file", prev.StoredFile, "error", err)
		}
	}

	logger.Info("document ingested", "chunks", len(chunks), "file_name", req.OriginalFile, "mode", s.index.Status().Mode)
	return &IngestResult{
		DocumentID: req.DocumentID,
		ChunkCount: len(chunks),
		FileName:   req.OriginalFile,
		StoredFile: req.StoredFile,
	}, nil
}

func (s *Service) storeChunks(ctx context.Context, documentID string, chunks []vectorstore.Chunk) error {
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}
		vectors := s.embedder.EmbedBatch(ctx, texts)

		points := make([]vectorstore.Point, len(chunks))
		for i, c := range chunks {
			points[i] = vectorstore.Point{Chunk: c, Vector: vectors[i]}
		}
		if err := s.index.Upsert(ctx, points); err != nil {
			return fmt.Errorf("store chunks: %w", err)
		}
	}

	// chunk ids are derived from (document, index), so only ids past the new
	// chunk count can belong to an older version
	existing, err := s.index.ScrollByDocument(ctx, documentID, 0)
	if err != nil {
		return fmt.Errorf("list stored chunks: %w", err)
	}
	current := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		current[c.ID] = struct{}{}
	}
	var stale []string
	for _, c := range existing {
		if _, ok := current[c.ID]; !ok {
			stale = append(stale, c.ID)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	err = s.index.DeletePoints(ctx, stale)
	if apperr.IsBackendUnavailable(err) && s.index.Status().Mode == resilience.ModeFallback {
		// the new version is already served from the fallback store
		s.logger.Warn("stale chunks left on unreachable primary",
			"document_id", documentID, "stale", len(stale), "error", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("remove stale chunks: %w", err)
	}
	return nil
}

func (s *Service) removeOrphans(ctx context.Context, documentID string) {
	if err := s.index.DeleteByDocument(ctx, documentID); err != nil {
		s.logger.Warn("failed to remove orphan chunks", "document_id", documentID, "error", err)
	}
}

func (s *Service) download(ctx context.Context, name string) ([]byte, error) {
	rc, err := s.storage.Download(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read stored file %s: %w", name, err)
	}
	return data, nil
}
