package vectorstore

import (
	"context"
	"sort"
	"sync"
)

type memoryPoint struct {
	chunk  Chunk
	vector []float32
	seq    uint64
}

// MemoryStore is the in-process fallback index. Search is brute-force cosine
// and equal scores keep insertion order.
type MemoryStore struct {
	mu     sync.RWMutex
	points map[string]*memoryPoint
	seq    uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{points: make(map[string]*memoryPoint)}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) EnsureCollection(context.Context) error { return nil }

func (s *MemoryStore) Upsert(_ context.Context, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		chunk := Chunk{ID: p.ID, Content: p.Content, Metadata: cloneMetadata(p.Metadata)}

		// re-upserting keeps the original position for tie-breaking
		if existing, ok := s.points[p.ID]; ok {
			existing.chunk = chunk
			existing.vector = vec
			continue
		}
		s.seq++
		s.points[p.ID] = &memoryPoint{chunk: chunk, vector: vec, seq: s.seq}
	}
	return nil
}

func (s *MemoryStore) Search(_ context.Context, vector []float32, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	ordered := s.orderedLocked()
	results := make([]SearchResult, 0, len(ordered))
	for _, p := range ordered {
		results = append(results, SearchResult{
			Chunk: Chunk{ID: p.chunk.ID, Content: p.chunk.Content, Metadata: cloneMetadata(p.chunk.Metadata)},
			Score: Cosine(vector, p.vector),
		})
	}
	s.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *MemoryStore) DeleteByDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range s.points {
		if p.chunk.DocumentID() == documentID {
			delete(s.points, id)
		}
	}
	return nil
}

func (s *MemoryStore) DeletePoints(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.points, id)
	}
	return nil
}

func (s *MemoryStore) ScrollByDocument(_ context.Context, documentID string, limit int) ([]Chunk, error) {
	s.mu.RLock()
	var chunks []Chunk
	for _, p := range s.orderedLocked() {
		if p.chunk.DocumentID() != documentID {
			continue
		}
		chunks = append(chunks, Chunk{ID: p.chunk.ID, Content: p.chunk.Content, Metadata: cloneMetadata(p.chunk.Metadata)})
	}
	s.mu.RUnlock()

	SortByDocumentOrder(chunks)
	if limit > 0 && len(chunks) > limit {
		chunks = chunks[:limit]
	}
	return chunks, nil
}

// Len reports the number of stored points.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

func (s *MemoryStore) orderedLocked() []*memoryPoint {
	ordered := make([]*memoryPoint, 0, len(s.points))
	for _, p := range s.points {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].seq < ordered[j].seq })
	return ordered
}
