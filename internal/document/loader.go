package document

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/nikhilbhutani/ragvault/internal/apperr"
	"github.com/nikhilbhutani/ragvault/internal/vectorstore"
	"github.com/nikhilbhutani/ragvault/pkg/chunker"
	"github.com/nikhilbhutani/ragvault/pkg/tokenizer"
)

// Loader turns files into chunks ready to embed.
type Loader struct {
	extractor TextExtractor
	chunker   chunker.Chunker
	opts      chunker.ChunkOptions
}

func NewLoader(extractor TextExtractor, opts chunker.ChunkOptions) *Loader {
	return &Loader{
		extractor: extractor,
		chunker:   chunker.New(),
		opts:      opts,
	}
}

// LoadFile reads and chunks the file at path.
func (l *Loader) LoadFile(ctx context.Context, documentID, path string, meta map[string]any) ([]vectorstore.Chunk, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.NotFound("file %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return l.LoadBytes(ctx, documentID, path, data, meta)
}

// LoadBytes chunks already-read file content. name supplies the suffix and
// the default file_name/source_path metadata.
//
// Caller metadata overrides the file-derived keys, but document_id,
// chunk_index and offset always reflect the chunk itself.
func (l *Loader) LoadBytes(ctx context.Context, documentID, name string, data []byte, meta map[string]any) ([]vectorstore.Chunk, error) {
	if documentID == "" {
		return nil, apperr.InvalidInput("document id is required")
	}

	suffix := strings.ToLower(filepath.Ext(name))
	text, err := l.extractor.Extract(ctx, data, suffix)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}

	pieces := l.chunker.Chunk(text, l.opts)
	chunks := make([]vectorstore.Chunk, 0, len(pieces))
	for _, p := range pieces {
		m := map[string]any{
			vectorstore.MetaFileName:   filepath.Base(name),
			vectorstore.MetaSourcePath: name,
			vectorstore.MetaSuffix:     suffix,
			vectorstore.MetaTokenCount: tokenizer.CountTokens(p.Content),
		}
		for k, v := range meta {
			m[k] = v
		}
		m[vectorstore.MetaDocumentID] = documentID
		m[vectorstore.MetaChunkIndex] = p.Index
		m[vectorstore.MetaOffset] = p.Start

		chunks = append(chunks, vectorstore.Chunk{
			ID:       vectorstore.ChunkID(documentID, p.Index),
			Content:  p.Content,
			Metadata: m,
		})
	}
	return chunks, nil
}
