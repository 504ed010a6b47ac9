package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nikhilbhutani/ragvault/internal/apperr"
)

const scrollPageSize = 256

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Dimension  int
	Timeout    time.Duration
}

// QdrantStore talks to Qdrant over its REST API.
type QdrantStore struct {
	baseURL    string
	apiKey     string
	collection string
	dimension  int
	httpClient *http.Client
}

func NewQdrantStore(cfg QdrantConfig) *QdrantStore {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &QdrantStore{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *QdrantStore) Name() string { return "qdrant" }

type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant returned %d: %s", e.Status, e.Body)
}

func hasStatus(err error, code int) bool {
	var se *statusError
	return errors.As(err, &se) && se.Status == code
}

func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	err := s.do(ctx, http.MethodGet, s.collectionPath(""), nil, nil)
	if err == nil {
		return nil
	}
	if !hasStatus(err, http.StatusNotFound) {
		return fmt.Errorf("get collection: %w", err)
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	err = s.do(ctx, http.MethodPut, s.collectionPath(""), body, nil)
	if err == nil || hasStatus(err, http.StatusConflict) || isAlreadyExists(err) {
		return nil
	}
	return fmt.Errorf("create collection: %w", err)
}

func isAlreadyExists(err error) bool {
	var se *statusError
	return errors.As(err, &se) && strings.Contains(strings.ToLower(se.Body), "already exists")
}

type qdrantPayload struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

type qdrantPoint struct {
	ID      string        `json:"id"`
	Vector  []float32     `json:"vector"`
	Payload qdrantPayload `json:"payload"`
}

func (s *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	body := struct {
		Points []qdrantPoint `json:"points"`
	}{Points: make([]qdrantPoint, 0, len(points))}
	for _, p := range points {
		body.Points = append(body.Points, qdrantPoint{
			ID:      p.ID,
			Vector:  p.Vector,
			Payload: qdrantPayload{Content: p.Content, Metadata: p.Metadata},
		})
	}
	if err := s.do(ctx, http.MethodPut, s.collectionPath("/points?wait=true"), body, nil); err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	return nil
}

// pointID accepts both UUID strings and integer ids.
type pointID string

func (p *pointID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = pointID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode point id: %w", err)
	}
	*p = pointID(n.String())
	return nil
}

type scoredPoint struct {
	ID      pointID       `json:"id"`
	Score   float64       `json:"score"`
	Payload qdrantPayload `json:"payload"`
}

func (p scoredPoint) chunk() Chunk {
	meta := p.Payload.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return Chunk{ID: string(p.ID), Content: p.Payload.Content, Metadata: meta}
}

func (s *QdrantStore) Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []scoredPoint `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionPath("/points/search"), body, &resp); err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}

	results := make([]SearchResult, 0, len(resp.Result))
	for _, p := range resp.Result {
		results = append(results, SearchResult{Chunk: p.chunk(), Score: p.Score})
	}
	return results, nil
}

func documentFilter(documentID string) map[string]any {
	return map[string]any{
		"must": []any{
			map[string]any{
				"key":   "metadata." + MetaDocumentID,
				"match": map[string]any{"value": documentID},
			},
		},
	}
}

func (s *QdrantStore) DeleteByDocument(ctx context.Context, documentID string) error {
	body := map[string]any{"filter": documentFilter(documentID)}
	if err := s.do(ctx, http.MethodPost, s.collectionPath("/points/delete?wait=true"), body, nil); err != nil {
		return fmt.Errorf("delete document points: %w", err)
	}
	return nil
}

func (s *QdrantStore) DeletePoints(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]any{"points": ids}
	if err := s.do(ctx, http.MethodPost, s.collectionPath("/points/delete?wait=true"), body, nil); err != nil {
		return fmt.Errorf("delete points: %w", err)
	}
	return nil
}

func (s *QdrantStore) ScrollByDocument(ctx context.Context, documentID string, limit int) ([]Chunk, error) {
	var (
		chunks []Chunk
		offset any
	)
	for {
		pageSize := scrollPageSize
		if limit > 0 {
			pageSize = min(pageSize, limit-len(chunks))
		}
		body := map[string]any{
			"filter":       documentFilter(documentID),
			"limit":        pageSize,
			"with_payload": true,
			"with_vector":  false,
		}
		if offset != nil {
			body["offset"] = offset
		}

		var resp struct {
			Result struct {
				Points         []scoredPoint `json:"points"`
				NextPageOffset any           `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := s.do(ctx, http.MethodPost, s.collectionPath("/points/scroll"), body, &resp); err != nil {
			return nil, fmt.Errorf("scroll points: %w", err)
		}
		for _, p := range resp.Result.Points {
			chunks = append(chunks, p.chunk())
		}

		offset = resp.Result.NextPageOffset
		if offset == nil || len(resp.Result.Points) == 0 {
			break
		}
		if limit > 0 && len(chunks) >= limit {
			break
		}
	}

	SortByDocumentOrder(chunks)
	if limit > 0 && len(chunks) > limit {
		chunks = chunks[:limit]
	}
	return chunks, nil
}

func (s *QdrantStore) collectionPath(suffix string) string {
	return "/collections/" + url.PathEscape(s.collection) + suffix
}

// do sends a JSON request and decodes the reply into out. Network failures,
// 5xx and 429 replies are classified as transient.
func (s *QdrantStore) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return apperr.Transient(err, "qdrant request failed", "method", method, "path", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		se := &statusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return apperr.Transient(se, "qdrant unavailable", "status", strconv.Itoa(resp.StatusCode), "path", path)
		}
		if resp.StatusCode == http.StatusNotFound {
			// every request is scoped to the collection
			return fmt.Errorf("%w: %w", ErrCollectionMissing, se)
		}
		return se
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
