package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/ragvault/internal/rag"
)

const (
	TypeDocumentIngest = "document:ingest"

	DefaultQueue = "default"
)

// IngestPayload points the worker at an upload that is already in storage.
// The file bytes are never put on the queue.
type IngestPayload struct {
	DocumentID   string         `json:"document_id"`
	OriginalFile string         `json:"original_file"`
	StoredFile   string         `json:"stored_file"`
	SizeBytes    int64          `json:"size_bytes"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

func NewIngestTask(req rag.IngestRequest) (*asynq.Task, error) {
	data, err := json.Marshal(IngestPayload{
		DocumentID:   req.DocumentID,
		OriginalFile: req.OriginalFile,
		StoredFile:   req.StoredFile,
		SizeBytes:    req.SizeBytes,
		Metadata:     req.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TypeDocumentIngest, data), nil
}

func (p IngestPayload) Request() rag.IngestRequest {
	return rag.IngestRequest{
		DocumentID:   p.DocumentID,
		OriginalFile: p.OriginalFile,
		StoredFile:   p.StoredFile,
		SizeBytes:    p.SizeBytes,
		Metadata:     p.Metadata,
	}
}
