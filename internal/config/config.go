package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Storage     StorageConfig
	Embedding   EmbeddingConfig
	VectorStore VectorStoreConfig
	Resilience  ResilienceConfig
	Chunking    ChunkingConfig
	OCR         OCRConfig
}

type ServerConfig struct {
	Host              string
	Port              int
	CORSOrigins       []string
	RateLimit         float64 // requests per second per client
	RateBurst         int
	MaxUploadBytes    int64
	WorkerConcurrency int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Backend     string // "local" or "supabase"
	Dir         string // local upload directory, also holds manifest.json
	SupabaseURL string
	SupabaseKey string
	Bucket      string
}

type EmbeddingConfig struct {
	OpenAIKey string
	BaseURL   string
	Model     string
	Dimension int
	CacheTTL  time.Duration
}

type VectorStoreConfig struct {
	Backend    string // "qdrant", "pgvector" or "memory"
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

type ResilienceConfig struct {
	Strict            bool
	FallbackEnabled   bool
	MaxAttempts       int
	FallbackAttempts  int
	BootstrapAttempts int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
}

type ChunkingConfig struct {
	Size    int
	Overlap int
}

type OCRConfig struct {
	Enabled bool
	Lang    string
}

// modelDimensions holds native output sizes of known OpenAI embedding models.
var modelDimensions = map[string]int{
	"text-embedding-ada-002": 1536,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
}

// FallbackDimension is the embedding size used when no provider is configured.
const FallbackDimension = 64

func Load() (*Config, error) {
	var errs []string
	intVar := func(key string, fallback int) int {
		v, err := getEnvInt(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
		}
		return v
	}
	boolVar := func(key string, fallback bool) bool {
		v, err := getEnvBool(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
		}
		return v
	}
	floatVar := func(key string, fallback float64) float64 {
		v := os.Getenv(key)
		if v == "" {
			return fallback
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
			return fallback
		}
		return f
	}
	durVar := func(key string, fallback time.Duration) time.Duration {
		v, err := getEnvDuration(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
		}
		return v
	}

	openAIKey := getEnv("OPENAI_API_KEY", "")
	model := getEnv("OPENAI_EMBEDDINGS_MODEL", "text-embedding-3-small")
	defaultDim := FallbackDimension
	if openAIKey != "" {
		if d, ok := modelDimensions[model]; ok {
			defaultDim = d
		} else {
			defaultDim = 1536
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:              getEnv("SERVER_HOST", "0.0.0.0"),
			Port:              intVar("SERVER_PORT", 8080),
			CORSOrigins:       splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
			RateLimit:         floatVar("RATE_LIMIT_RPS", 100),
			RateBurst:         intVar("RATE_LIMIT_BURST", 200),
			MaxUploadBytes:    int64(intVar("MAX_UPLOAD_MB", 32)) << 20,
			WorkerConcurrency: intVar("WORKER_CONCURRENCY", 10),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       intVar("DB_MAX_CONNS", 20),
			MinConns:       intVar("DB_MIN_CONNS", 2),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       intVar("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Backend:     getEnv("STORAGE_BACKEND", "local"),
			Dir:         getEnv("RAG_STORAGE_PATH", "storage/documents"),
			SupabaseURL: getEnv("SUPABASE_URL", ""),
			SupabaseKey: getEnv("SUPABASE_SERVICE_KEY", ""),
			Bucket:      getEnv("STORAGE_BUCKET", "documents"),
		},
		Embedding: EmbeddingConfig{
			OpenAIKey: openAIKey,
			BaseURL:   getEnv("OPENAI_EMBEDDINGS_URL", ""),
			Model:     model,
			Dimension: intVar("EMBEDDING_DIM", defaultDim),
			CacheTTL:  durVar("EMBEDDING_CACHE_TTL", 24*time.Hour),
		},
		VectorStore: VectorStoreConfig{
			Backend:    strings.ToLower(getEnv("VECTOR_BACKEND", "qdrant")),
			URL:        strings.TrimRight(getEnv("QDRANT_URL", "http://localhost:6333"), "/"),
			APIKey:     getEnv("QDRANT_API_KEY", ""),
			Collection: getEnv("QDRANT_COLLECTION", "academic_documents"),
			Timeout:    durVar("QDRANT_TIMEOUT", 10*time.Second),
		},
		Resilience: ResilienceConfig{
			Strict:            boolVar("VECTOR_STRICT", false),
			FallbackEnabled:   boolVar("VECTOR_FALLBACK_ENABLED", true),
			MaxAttempts:       intVar("VECTOR_RETRY_ATTEMPTS", 5),
			FallbackAttempts:  intVar("VECTOR_FALLBACK_PROBE_ATTEMPTS", 1),
			BootstrapAttempts: intVar("VECTOR_BOOTSTRAP_ATTEMPTS", 1),
			BaseDelay:         durVar("VECTOR_RETRY_BASE_DELAY", 200*time.Millisecond),
			MaxDelay:          durVar("VECTOR_RETRY_MAX_DELAY", 2*time.Second),
		},
		Chunking: ChunkingConfig{
			Size:    intVar("RAG_CHUNK_SIZE", 800),
			Overlap: intVar("RAG_CHUNK_OVERLAP", 100),
		},
		OCR: OCRConfig{
			Enabled: boolVar("OCR_ENABLED", false),
			Lang:    getEnv("OCR_LANG", "rus+eng"),
		},
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("load config: %s", strings.Join(errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var problems []string
	if c.Embedding.Dimension <= 0 {
		problems = append(problems, "EMBEDDING_DIM must be positive")
	}
	if c.Chunking.Size <= 0 {
		problems = append(problems, "RAG_CHUNK_SIZE must be positive")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		problems = append(problems, "RAG_CHUNK_OVERLAP must be in [0, RAG_CHUNK_SIZE)")
	}
	if c.Server.MaxUploadBytes <= 0 {
		problems = append(problems, "MAX_UPLOAD_MB must be positive")
	}
	if c.Resilience.MaxAttempts < 1 {
		problems = append(problems, "VECTOR_RETRY_ATTEMPTS must be at least 1")
	}
	switch c.VectorStore.Backend {
	case "qdrant", "memory":
	case "pgvector":
		if c.Database.URL == "" {
			problems = append(problems, "VECTOR_BACKEND=pgvector requires DATABASE_URL")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown VECTOR_BACKEND %q", c.VectorStore.Backend))
	}
	switch c.Storage.Backend {
	case "local":
	case "supabase":
		if c.Storage.SupabaseURL == "" || c.Storage.SupabaseKey == "" {
			problems = append(problems, "STORAGE_BACKEND=supabase requires SUPABASE_URL and SUPABASE_SERVICE_KEY")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, ", "))
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return fallback, nil
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return fallback, fmt.Errorf("not a boolean: %q", v)
	}
}

// getEnvDuration accepts Go durations ("250ms") and bare seconds ("0.2").
func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback, fmt.Errorf("not a duration: %q", v)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
