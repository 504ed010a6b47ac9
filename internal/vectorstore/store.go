// Package vectorstore holds the chunk model and the vector backends the
// resilience controller routes between: Qdrant and pgvector as remote
// primaries, and an in-process MemoryStore as the fallback.
package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strconv"

	"github.com/google/uuid"
)

// Metadata keys every chunk carries.
const (
	MetaDocumentID = "document_id"
	MetaChunkIndex = "chunk_index"
	MetaOffset     = "offset"
	MetaFileName   = "file_name"
	MetaSourcePath = "source_path"
	MetaSuffix     = "suffix"
	MetaTokenCount = "token_count"
)

type Chunk struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

func (c Chunk) DocumentID() string {
	s, _ := c.Metadata[MetaDocumentID].(string)
	return s
}

func (c Chunk) Index() int  { return MetaInt(c.Metadata, MetaChunkIndex) }
func (c Chunk) Offset() int { return MetaInt(c.Metadata, MetaOffset) }

// Point is a chunk together with its embedding, the unit of an upsert.
type Point struct {
	Chunk
	Vector []float32
}

type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Backend is the contract shared by every vector index. Scroll limits <= 0
// return every chunk of the document.
// ErrCollectionMissing is returned by a backend when its collection or table
// no longer exists, for example after a restart without persistence.
var ErrCollectionMissing = errors.New("vector collection missing")

type Backend interface {
	Name() string
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)
	DeleteByDocument(ctx context.Context, documentID string) error
	DeletePoints(ctx context.Context, ids []string) error
	ScrollByDocument(ctx context.Context, documentID string, limit int) ([]Chunk, error)
}

var chunkNamespace = uuid.MustParse("6f1c3a52-8d0e-4b7a-9a51-2f4c7e0d9b13")

// ChunkID derives the point id of a chunk. The same document and index always
// map to the same UUID, so re-ingestion overwrites instead of duplicating.
func ChunkID(documentID string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(documentID+"/"+strconv.Itoa(index))).String()
}

// MetaInt reads an integer metadata value regardless of how it was decoded.
func MetaInt(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

// SortByDocumentOrder orders chunks by (chunk_index, offset, id).
func SortByDocumentOrder(chunks []Chunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		a, b := chunks[i], chunks[j]
		if ai, bi := a.Index(), b.Index(); ai != bi {
			return ai < bi
		}
		if ao, bo := a.Offset(), b.Offset(); ao != bo {
			return ao < bo
		}
		return a.ID < b.ID
	})
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector. Vectors of different length are compared over the shorter one.
func Cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func cloneMetadata(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
