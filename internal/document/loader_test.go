package document

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/ragvault/internal/apperr"
	"github.com/nikhilbhutani/ragvault/internal/vectorstore"
	"github.com/nikhilbhutani/ragvault/pkg/chunker"
)

func newTestLoader(size, overlap int) *Loader {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewLoader(NewTextExtractor(nil, logger), chunker.ChunkOptions{ChunkSize: size, ChunkOverlap: overlap})
}

func TestLoadFile_Metadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("abcdefghij", 200)), 0o644))

	chunks, err := newTestLoader(800, 100).LoadFile(context.Background(), "doc-1", path, map[string]any{
		"course":                   "physics",
		vectorstore.MetaFileName:   "Lecture 1.txt",
		vectorstore.MetaChunkIndex: 99,
		vectorstore.MetaDocumentID: "other",
	})
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	for i, c := range chunks {
		assert.Equal(t, vectorstore.ChunkID("doc-1", i), c.ID)
		assert.Equal(t, "doc-1", c.Metadata[vectorstore.MetaDocumentID])
		assert.Equal(t, i, c.Metadata[vectorstore.MetaChunkIndex])
		assert.Equal(t, i*700, c.Metadata[vectorstore.MetaOffset])
		assert.Equal(t, "Lecture 1.txt", c.Metadata[vectorstore.MetaFileName])
		assert.Equal(t, path, c.Metadata[vectorstore.MetaSourcePath])
		assert.Equal(t, ".txt", c.Metadata[vectorstore.MetaSuffix])
		assert.Equal(t, "physics", c.Metadata["course"])
		assert.Positive(t, c.Metadata[vectorstore.MetaTokenCount])
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := newTestLoader(800, 100).LoadFile(context.Background(), "doc", filepath.Join(t.TempDir(), "nope.txt"), nil)
	assert.True(t, apperr.IsNotFound(err))
}

func TestLoadBytes_UnsupportedFormatReadsRawText(t *testing.T) {
	chunks, err := newTestLoader(800, 100).LoadBytes(context.Background(), "doc", "table.csv", []byte("a,b\n1,2\xff"), nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "a,b\n1,2", chunks[0].Content)
	assert.Equal(t, ".csv", chunks[0].Metadata[vectorstore.MetaSuffix])
}

func TestLoadBytes_BrokenPDFReadsRawText(t *testing.T) {
	chunks, err := newTestLoader(800, 100).LoadBytes(context.Background(), "doc", "scan.pdf", []byte("plain words"), nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "plain words", chunks[0].Content)
}

func TestLoadBytes_EmptyText(t *testing.T) {
	chunks, err := newTestLoader(800, 100).LoadBytes(context.Background(), "doc", "empty.md", []byte("  \n "), nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestLoadBytes_RequiresDocumentID(t *testing.T) {
	_, err := newTestLoader(800, 100).LoadBytes(context.Background(), "", "a.txt", []byte("x"), nil)
	assert.True(t, apperr.IsInvalidInput(err))
}

func TestOCRService_MissingBinaries(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	ocr := NewOCRService("")
	assert.False(t, ocr.IsAvailable())
	_, err := ocr.ExtractPDF(context.Background(), []byte("%PDF-1.4"))
	assert.Error(t, err)

	var none *OCRService
	assert.False(t, none.IsAvailable())
}
