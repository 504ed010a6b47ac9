package registry

import (
	"context"
	"fmt"
	"log/slog"
)

type Outcome string

const (
	OutcomeDeleted          Outcome = "deleted"
	OutcomePartiallyDeleted Outcome = "partially_deleted"
)

// FileRemover deletes a stored upload by name. Removing a missing file is not an error.
type FileRemover interface {
	Delete(ctx context.Context, name string) error
}

// VectorRemover deletes every chunk of a document from the vector index.
type VectorRemover interface {
	DeleteByDocument(ctx context.Context, documentID string) error
}

// DeleteResult reports what a delete managed to remove. Errors for the
// individual steps are kept so callers can surface a partial delete.
type DeleteResult struct {
	Record    Record  `json:"document"`
	Outcome   Outcome `json:"status"`
	FileErr   error   `json:"-"`
	RecordErr error   `json:"-"`
	VectorErr error   `json:"-"`
}

// Errors returns the failed steps keyed by name.
func (r *DeleteResult) Errors() map[string]string {
	out := map[string]string{}
	if r.FileErr != nil {
		out["file"] = r.FileErr.Error()
	}
	if r.RecordErr != nil {
		out["record"] = r.RecordErr.Error()
	}
	if r.VectorErr != nil {
		out["vectors"] = r.VectorErr.Error()
	}
	return out
}

type Registry struct {
	store   Store
	files   FileRemover
	vectors VectorRemover
	logger  *slog.Logger
}

func New(store Store, files FileRemover, vectors VectorRemover, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:   store,
		files:   files,
		vectors: vectors,
		logger:  logger.With("component", "registry"),
	}
}

// Register stores rec, replacing any earlier record with the same id.
func (r *Registry) Register(ctx context.Context, rec Record) error {
	if rec.Metadata == nil {
		rec.Metadata = map[string]any{}
	}
	if err := r.store.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("register document: %w", err)
	}
	return nil
}

func (r *Registry) Get(ctx context.Context, documentID string) (*Record, error) {
	return r.store.Get(ctx, documentID)
}

func (r *Registry) List(ctx context.Context) ([]Record, error) {
	return r.store.List(ctx)
}

// Delete removes the stored file, the record and the vectors of a document.
// All three steps are attempted even when an earlier one fails.
func (r *Registry) Delete(ctx context.Context, documentID string) (*DeleteResult, error) {
	rec, err := r.store.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	res := &DeleteResult{Record: *rec, Outcome: OutcomeDeleted}
	if rec.StoredFile != "" && r.files != nil {
		res.FileErr = r.files.Delete(ctx, rec.StoredFile)
	}
	res.RecordErr = r.store.Remove(ctx, documentID)
	if r.vectors != nil {
		res.VectorErr = r.vectors.DeleteByDocument(ctx, documentID)
	}

	if res.FileErr != nil || res.RecordErr != nil || res.VectorErr != nil {
		res.Outcome = OutcomePartiallyDeleted
		r.logger.Warn("document partially deleted",
			"document_id", documentID,
			"file_error", res.FileErr,
			"record_error", res.RecordErr,
			"vector_error", res.VectorErr)
		return res, nil
	}

	r.logger.Info("document deleted", "document_id", documentID)
	return res, nil
}
