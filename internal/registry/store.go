// Package registry keeps the durable catalog of ingested documents and
// coordinates deletes across the stored file, the catalog and the vectors.
package registry

import (
	"context"
	"sort"
	"time"
)

type Record struct {
	DocumentID   string         `json:"document_id"`
	OriginalFile string         `json:"original_file"`
	StoredFile   string         `json:"stored_file"`
	SizeBytes    int64          `json:"size_bytes"`
	ChunkCount   int            `json:"chunks"`
	UploadedAt   time.Time      `json:"uploaded_at"`
	Metadata     map[string]any `json:"metadata"`
}

// Store persists records. Get and Remove return an apperr.ErrNotFound error
// for unknown ids; List returns newest uploads first.
type Store interface {
	Upsert(ctx context.Context, rec Record) error
	Get(ctx context.Context, documentID string) (*Record, error)
	List(ctx context.Context) ([]Record, error)
	Remove(ctx context.Context, documentID string) error
}

func sortNewestFirst(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].UploadedAt.After(records[j].UploadedAt)
	})
}
