package storage

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Storage keeps the original uploaded files. Download returns an
// apperr.ErrNotFound error for unknown names; deleting a missing file succeeds.
type Storage interface {
	Name() string
	Upload(ctx context.Context, name string, data io.Reader, contentType string) error
	Download(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
}

// StoredName returns the collision-free name an upload is stored under:
// a random hex prefix followed by the base name of the original file.
func StoredName(original string) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "upload"
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "") + "_" + base
}
