package workers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/ragvault/internal/apperr"
	"github.com/nikhilbhutani/ragvault/internal/queue"
	"github.com/nikhilbhutani/ragvault/internal/rag"
)

type fakeIngester struct {
	got []rag.IngestRequest
	err error
}

func (f *fakeIngester) IngestStored(_ context.Context, req rag.IngestRequest) (*rag.IngestResult, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return nil, f.err
	}
	return &rag.IngestResult{DocumentID: req.DocumentID, ChunkCount: 2}, nil
}

func newWorker(f *fakeIngester) *IngestWorker {
	return NewIngestWorker(f, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func ingestTask(t *testing.T) *asynq.Task {
	t.Helper()
	task, err := queue.NewIngestTask(rag.IngestRequest{
		DocumentID:   "doc1",
		OriginalFile: "notes.md",
		StoredFile:   "abc_notes.md",
		SizeBytes:    12,
		Metadata:     map[string]any{"course": "bio"},
		Data:         []byte("not on the queue"),
	})
	require.NoError(t, err)
	return task
}

func TestIngestWorker_Success(t *testing.T) {
	f := &fakeIngester{}
	require.NoError(t, newWorker(f).ProcessTask(context.Background(), ingestTask(t)))

	require.Len(t, f.got, 1)
	req := f.got[0]
	assert.Equal(t, "doc1", req.DocumentID)
	assert.Equal(t, "abc_notes.md", req.StoredFile)
	assert.Equal(t, "bio", req.Metadata["course"])
	assert.Nil(t, req.Data, "bytes are read back from storage")
}

func TestIngestWorker_TransientErrorIsRetried(t *testing.T) {
	f := &fakeIngester{err: apperr.BackendUnavailable(errors.New("down"), "upsert")}

	err := newWorker(f).ProcessTask(context.Background(), ingestTask(t))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
	assert.True(t, apperr.IsBackendUnavailable(err))
}

func TestIngestWorker_MissingUploadSkipsRetry(t *testing.T) {
	f := &fakeIngester{err: apperr.NotFound("stored file %s", "abc_notes.md")}

	err := newWorker(f).ProcessTask(context.Background(), ingestTask(t))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestIngestWorker_BadPayload(t *testing.T) {
	f := &fakeIngester{}

	err := newWorker(f).ProcessTask(context.Background(), asynq.NewTask(queue.TypeDocumentIngest, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Empty(t, f.got)
}
