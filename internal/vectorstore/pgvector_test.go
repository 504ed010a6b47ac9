package vectorstore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPgVector(t *testing.T) *PgVectorStore {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	collection := fmt.Sprintf("test_chunks_%d", time.Now().UnixNano())
	store := NewPgVectorStore(pool, collection, 3)
	t.Cleanup(func() {
		pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+store.table)
	})
	require.NoError(t, store.EnsureCollection(ctx))
	require.NoError(t, store.EnsureCollection(ctx), "idempotent")
	return store
}

func pgPoint(doc string, index int, vec ...float32) Point {
	return Point{
		Chunk: Chunk{
			ID:      ChunkID(doc, index),
			Content: fmt.Sprintf("%s-%d", doc, index),
			Metadata: map[string]any{
				MetaDocumentID: doc,
				MetaChunkIndex: index,
				MetaOffset:     index * 700,
			},
		},
		Vector: vec,
	}
}

func TestPgVector_UpsertSearchScrollDelete(t *testing.T) {
	s := testPgVector(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []Point{
		pgPoint("a", 1, 0, 1, 0),
		pgPoint("a", 0, 1, 0, 0),
		pgPoint("b", 0, 0, 0, 1),
	}))

	results, err := s.Search(ctx, []float32{0.9, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a-0", results[0].Chunk.Content)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)

	chunks, err := s.ScrollByDocument(ctx, "a", 0)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Index())
	assert.Equal(t, 700, chunks[1].Offset())

	require.NoError(t, s.DeletePoints(ctx, []string{ChunkID("a", 1)}))
	chunks, err = s.ScrollByDocument(ctx, "a", 0)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)

	require.NoError(t, s.DeleteByDocument(ctx, "a"))
	chunks, err = s.ScrollByDocument(ctx, "a", 0)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	// re-upserting keeps one row per id
	require.NoError(t, s.Upsert(ctx, []Point{pgPoint("b", 0, 0, 1, 1)}))
	chunks, err = s.ScrollByDocument(ctx, "b", 0)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}
