package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("EMBEDDING_DIM", "")
	t.Setenv("VECTOR_BACKEND", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "qdrant", cfg.VectorStore.Backend)
	assert.Equal(t, "http://localhost:6333", cfg.VectorStore.URL)
	assert.Equal(t, "academic_documents", cfg.VectorStore.Collection)
	assert.Equal(t, FallbackDimension, cfg.Embedding.Dimension)
	assert.False(t, cfg.Resilience.Strict)
	assert.True(t, cfg.Resilience.FallbackEnabled)
	assert.Equal(t, 5, cfg.Resilience.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Resilience.BaseDelay)
	assert.Equal(t, 2*time.Second, cfg.Resilience.MaxDelay)
	assert.Equal(t, 800, cfg.Chunking.Size)
	assert.Equal(t, 100, cfg.Chunking.Overlap)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestLoad_ModelDimension(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_EMBEDDINGS_MODEL", "text-embedding-3-large")
	t.Setenv("EMBEDDING_DIM", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3072, cfg.Embedding.Dimension)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("VECTOR_STRICT", "yes")
	t.Setenv("VECTOR_FALLBACK_ENABLED", "0")
	t.Setenv("VECTOR_RETRY_BASE_DELAY", "0.5")
	t.Setenv("VECTOR_RETRY_MAX_DELAY", "3s")
	t.Setenv("VECTOR_BACKEND", "Memory")
	t.Setenv("QDRANT_URL", "http://qdrant:6333/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Resilience.Strict)
	assert.False(t, cfg.Resilience.FallbackEnabled)
	assert.Equal(t, 500*time.Millisecond, cfg.Resilience.BaseDelay)
	assert.Equal(t, 3*time.Second, cfg.Resilience.MaxDelay)
	assert.Equal(t, "memory", cfg.VectorStore.Backend)
	assert.Equal(t, "http://qdrant:6333", cfg.VectorStore.URL)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("VECTOR_RETRY_ATTEMPTS", "many")
	t.Setenv("VECTOR_STRICT", "maybe")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VECTOR_RETRY_ATTEMPTS")
	assert.Contains(t, err.Error(), "VECTOR_STRICT")
}

func TestValidate(t *testing.T) {
	t.Setenv("VECTOR_BACKEND", "pgvector")
	t.Setenv("DATABASE_URL", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires DATABASE_URL")

	t.Setenv("VECTOR_BACKEND", "qdrant")
	t.Setenv("RAG_CHUNK_SIZE", "100")
	t.Setenv("RAG_CHUNK_OVERLAP", "100")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RAG_CHUNK_OVERLAP")
}

func TestLoad_ServerOptions(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("MAX_UPLOAD_MB", "8")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 2.5, cfg.Server.RateLimit)
	assert.Equal(t, int64(8<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, 10, cfg.Server.WorkerConcurrency)
}
