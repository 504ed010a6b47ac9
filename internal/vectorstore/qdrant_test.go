package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/ragvault/internal/apperr"
)

func newTestQdrant(t *testing.T, h http.HandlerFunc) *QdrantStore {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewQdrantStore(QdrantConfig{URL: srv.URL, APIKey: "secret", Collection: "docs", Dimension: 4})
}

func TestQdrant_EnsureCollectionCreatesOnNotFound(t *testing.T) {
	var (
		mu      sync.Mutex
		created map[string]any
	)
	s := newTestQdrant(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		assert.Equal(t, "/collections/docs", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"status":{"error":"Not found"}}`))
		case http.MethodPut:
			mu.Lock()
			defer mu.Unlock()
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			w.Write([]byte(`{"result":true}`))
		}
	})

	require.NoError(t, s.EnsureCollection(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	vectors := created["vectors"].(map[string]any)
	assert.Equal(t, float64(4), vectors["size"])
	assert.Equal(t, "Cosine", vectors["distance"])
}

func TestQdrant_EnsureCollectionConflictIsSuccess(t *testing.T) {
	s := newTestQdrant(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"status":{"error":"Collection docs already exists!"}}`))
	})

	assert.NoError(t, s.EnsureCollection(context.Background()))
}

func TestQdrant_ServerErrorsAreTransient(t *testing.T) {
	for _, code := range []int{http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusTooManyRequests} {
		s := newTestQdrant(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		})

		_, err := s.Search(context.Background(), []float32{1, 0, 0, 0}, 3)
		require.Error(t, err)
		assert.True(t, apperr.IsTransient(err), "status %d", code)
	}
}

func TestQdrant_ClientErrorsAreNotTransient(t *testing.T) {
	s := newTestQdrant(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":{"error":"wrong vector dimension"}}`))
	})

	err := s.Upsert(context.Background(), []Point{point("a", 0, 1, 0, 0, 0)})
	require.Error(t, err)
	assert.False(t, apperr.IsTransient(err))
	assert.Contains(t, err.Error(), "wrong vector dimension")
}

func TestQdrant_MissingCollectionIsReported(t *testing.T) {
	s := newTestQdrant(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status":{"error":"Not found: Collection ` + "`docs`" + ` doesn't exist!"}}`))
	})

	_, err := s.Search(context.Background(), []float32{1, 0, 0, 0}, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCollectionMissing))
	assert.False(t, apperr.IsTransient(err))
	assert.False(t, apperr.IsNotFound(err))
}

func TestQdrant_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	s := NewQdrantStore(QdrantConfig{URL: url, Collection: "docs", Dimension: 4})

	err := s.DeleteByDocument(context.Background(), "doc")
	require.Error(t, err)
	assert.True(t, apperr.IsTransient(err))
}

func TestQdrant_UpsertAndSearch(t *testing.T) {
	var upserted struct {
		Points []qdrantPoint `json:"points"`
	}
	s := newTestQdrant(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collections/docs/points":
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "true", r.URL.Query().Get("wait"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&upserted))
			w.Write([]byte(`{"result":{"status":"completed"}}`))
		case "/collections/docs/points/search":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, float64(2), body["limit"])
			w.Write([]byte(`{"result":[
				{"id":"` + ChunkID("a", 0) + `","score":0.9,"payload":{"content":"hello","metadata":{"document_id":"a","chunk_index":0}}},
				{"id":42,"score":0.5,"payload":{"content":"legacy"}}
			]}`))
		}
	})
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []Point{point("a", 0, 1, 0, 0, 0)}))
	require.Len(t, upserted.Points, 1)
	assert.Equal(t, ChunkID("a", 0), upserted.Points[0].ID)
	assert.Equal(t, "a", upserted.Points[0].Payload.Metadata[MetaDocumentID])

	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "hello", results[0].Chunk.Content)
	assert.Equal(t, "a", results[0].Chunk.DocumentID())
	assert.Equal(t, "42", results[1].Chunk.ID)
	assert.NotNil(t, results[1].Chunk.Metadata)
}

func TestQdrant_DeleteByDocumentFilter(t *testing.T) {
	var body map[string]any
	s := newTestQdrant(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/docs/points/delete", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"result":{}}`))
	})

	require.NoError(t, s.DeleteByDocument(context.Background(), "doc-1"))

	must := body["filter"].(map[string]any)["must"].([]any)
	cond := must[0].(map[string]any)
	assert.Equal(t, "metadata.document_id", cond["key"])
	assert.Equal(t, "doc-1", cond["match"].(map[string]any)["value"])
}

func TestQdrant_ScrollMergesPagesInDocumentOrder(t *testing.T) {
	calls := 0
	s := newTestQdrant(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		calls++
		if body["offset"] == nil {
			w.Write([]byte(`{"result":{"points":[
				{"id":"p2","payload":{"content":"c2","metadata":{"document_id":"d","chunk_index":2,"offset":1400}}},
				{"id":"p0","payload":{"content":"c0","metadata":{"document_id":"d","chunk_index":0,"offset":0}}}
			],"next_page_offset":"p1"}}`))
			return
		}
		assert.Equal(t, "p1", body["offset"])
		w.Write([]byte(`{"result":{"points":[
			{"id":"p1","payload":{"content":"c1","metadata":{"document_id":"d","chunk_index":1,"offset":700}}}
		],"next_page_offset":null}}`))
	})

	chunks, err := s.ScrollByDocument(context.Background(), "d", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, chunks, 3)
	assert.Equal(t, []string{"c0", "c1", "c2"}, []string{chunks[0].Content, chunks[1].Content, chunks[2].Content})
}
