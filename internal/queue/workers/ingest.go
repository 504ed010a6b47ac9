package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/ragvault/internal/apperr"
	"github.com/nikhilbhutani/ragvault/internal/queue"
	"github.com/nikhilbhutani/ragvault/internal/rag"
)

type Ingester interface {
	IngestStored(ctx context.Context, req rag.IngestRequest) (*rag.IngestResult, error)
}

type IngestWorker struct {
	ingester Ingester
	logger   *slog.Logger
}

func NewIngestWorker(ingester Ingester, logger *slog.Logger) *IngestWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestWorker{ingester: ingester, logger: logger.With("component", "ingest_worker")}
}

func (w *IngestWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	w.logger.Info("processing document", "document_id", payload.DocumentID, "stored_file", payload.StoredFile)

	res, err := w.ingester.IngestStored(ctx, payload.Request())
	if err != nil {
		w.logger.Error("ingestion failed", "document_id", payload.DocumentID, "error", err)
		// a missing upload or a bad request will not fix itself
		if apperr.IsNotFound(err) || apperr.IsInvalidInput(err) {
			return fmt.Errorf("ingest %s: %w: %w", payload.DocumentID, err, asynq.SkipRetry)
		}
		return fmt.Errorf("ingest %s: %w", payload.DocumentID, err)
	}

	w.logger.Info("document processed", "document_id", res.DocumentID, "chunks", res.ChunkCount)
	return nil
}
