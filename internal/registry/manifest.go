package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/nikhilbhutani/ragvault/internal/apperr"
)

// ManifestStore keeps records in a JSON file next to the stored uploads.
// It is used when no database is configured.
type ManifestStore struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	records []Record
}

// NewManifestStore loads path if it exists. A corrupt manifest is logged and
// treated as empty.
func NewManifestStore(path string, logger *slog.Logger) (*ManifestStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ManifestStore{path: path, logger: logger}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &s.records); err != nil {
		logger.Warn("manifest is not valid JSON, starting empty", "path", path, "error", err)
		s.records = nil
	}
	return s, nil
}

func (s *ManifestStore) Upsert(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]Record, 0, len(s.records)+1)
	for _, r := range s.records {
		if r.DocumentID != rec.DocumentID {
			next = append(next, r)
		}
	}
	next = append(next, rec)
	if err := s.saveLocked(next); err != nil {
		return err
	}
	s.records = next
	return nil
}

func (s *ManifestStore) Get(_ context.Context, documentID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.DocumentID == documentID {
			rec := r
			return &rec, nil
		}
	}
	return nil, apperr.NotFound("document %s", documentID)
}

func (s *ManifestStore) List(context.Context) ([]Record, error) {
	s.mu.Lock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	s.mu.Unlock()

	sortNewestFirst(out)
	return out, nil
}

func (s *ManifestStore) Remove(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		if r.DocumentID != documentID {
			next = append(next, r)
		}
	}
	if len(next) == len(s.records) {
		return apperr.NotFound("document %s", documentID)
	}
	if err := s.saveLocked(next); err != nil {
		return err
	}
	s.records = next
	return nil
}

// saveLocked writes to a temp file and renames it over the manifest.
func (s *ManifestStore) saveLocked(records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".manifest-*.json")
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}
