package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/ragvault/internal/apperr"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeFiles struct {
	deleted []string
	err     error
}

func (f *fakeFiles) Delete(_ context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	return f.err
}

type fakeVectors struct {
	deleted []string
	err     error
}

func (f *fakeVectors) DeleteByDocument(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func newManifest(t *testing.T) (*ManifestStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.json")
	s, err := NewManifestStore(path, discardLogger())
	require.NoError(t, err)
	return s, path
}

func record(id string, uploaded time.Time) Record {
	return Record{
		DocumentID:   id,
		OriginalFile: id + ".txt",
		StoredFile:   "abc_" + id + ".txt",
		SizeBytes:    10,
		ChunkCount:   2,
		UploadedAt:   uploaded,
		Metadata:     map[string]any{"course": "math"},
	}
}

func TestManifestStore_PersistsAcrossReload(t *testing.T) {
	ctx := context.Background()
	s, path := newManifest(t)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.Upsert(ctx, record("old", now.Add(-time.Hour))))
	require.NoError(t, s.Upsert(ctx, record("new", now)))

	reloaded, err := NewManifestStore(path, discardLogger())
	require.NoError(t, err)
	list, err := reloaded.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].DocumentID)
	assert.Equal(t, "old", list[1].DocumentID)
	assert.Equal(t, "math", list[0].Metadata["course"])
	assert.True(t, now.Equal(list[0].UploadedAt))
}

func TestManifestStore_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s, _ := newManifest(t)

	rec := record("doc", time.Now())
	require.NoError(t, s.Upsert(ctx, rec))
	rec.ChunkCount = 7
	require.NoError(t, s.Upsert(ctx, rec))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 7, list[0].ChunkCount)
}

func TestManifestStore_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s, err := NewManifestStore(path, discardLogger())
	require.NoError(t, err)
	list, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestManifestStore_NotFound(t *testing.T) {
	s, _ := newManifest(t)

	_, err := s.Get(context.Background(), "missing")
	assert.True(t, apperr.IsNotFound(err))
	assert.True(t, apperr.IsNotFound(s.Remove(context.Background(), "missing")))
}

func TestRegistry_DeleteRemovesEverything(t *testing.T) {
	ctx := context.Background()
	s, _ := newManifest(t)
	files, vectors := &fakeFiles{}, &fakeVectors{}
	reg := New(s, files, vectors, discardLogger())
	require.NoError(t, reg.Register(ctx, record("doc", time.Now())))

	res, err := reg.Delete(ctx, "doc")
	require.NoError(t, err)

	assert.Equal(t, OutcomeDeleted, res.Outcome)
	assert.Equal(t, []string{"abc_doc.txt"}, files.deleted)
	assert.Equal(t, []string{"doc"}, vectors.deleted)
	_, err = reg.Get(ctx, "doc")
	assert.True(t, apperr.IsNotFound(err))
	assert.Empty(t, res.Errors())
}

func TestRegistry_DeleteUnknown(t *testing.T) {
	s, _ := newManifest(t)
	files, vectors := &fakeFiles{}, &fakeVectors{}
	reg := New(s, files, vectors, discardLogger())

	_, err := reg.Delete(context.Background(), "nope")
	assert.True(t, apperr.IsNotFound(err))
	assert.Empty(t, files.deleted)
	assert.Empty(t, vectors.deleted)
}

func TestRegistry_DeleteReportsPartialFailure(t *testing.T) {
	ctx := context.Background()
	s, _ := newManifest(t)
	files := &fakeFiles{}
	vectors := &fakeVectors{err: apperr.BackendUnavailable(errors.New("down"), "qdrant unavailable")}
	reg := New(s, files, vectors, discardLogger())
	require.NoError(t, reg.Register(ctx, record("doc", time.Now())))

	res, err := reg.Delete(ctx, "doc")
	require.NoError(t, err)

	assert.Equal(t, OutcomePartiallyDeleted, res.Outcome)
	assert.Error(t, res.VectorErr)
	assert.NoError(t, res.FileErr)
	assert.NoError(t, res.RecordErr)
	assert.Contains(t, res.Errors(), "vectors")
	// file and record removal still happened
	assert.Len(t, files.deleted, 1)
	_, err = reg.Get(ctx, "doc")
	assert.True(t, apperr.IsNotFound(err))
}
