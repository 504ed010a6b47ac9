package database

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsFS_Embedded(t *testing.T) {
	files, err := fs.Glob(MigrationsFS(""), "*.sql")
	require.NoError(t, err)
	assert.Contains(t, files, "0001_rag_documents.sql")
}

func TestMigrationsFS_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0002_extra.sql"), []byte("SELECT 1"), 0o644))

	files, err := fs.Glob(MigrationsFS(dir), "*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_extra.sql"}, files)
}

func TestMigrationsFS_MissingDirectoryFallsBack(t *testing.T) {
	files, err := fs.Glob(MigrationsFS(filepath.Join(t.TempDir(), "nope")), "*.sql")
	require.NoError(t, err)
	assert.Contains(t, files, "0001_rag_documents.sql")
}
