package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/ragvault/internal/apperr"
)

func TestStoredName(t *testing.T) {
	name := StoredName("/tmp/uploads/Lecture 1.pdf")
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}_Lecture 1\.pdf$`), name)
	assert.NotEqual(t, name, StoredName("/tmp/uploads/Lecture 1.pdf"))
	assert.True(t, strings.HasSuffix(StoredName(`C:\docs\a.txt`), "_a.txt"))
}

func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Upload(ctx, "a.txt", strings.NewReader("hello"), "text/plain"))

	rc, err := s.Download(ctx, "a.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, s.Delete(ctx, "a.txt"))
	require.NoError(t, s.Delete(ctx, "a.txt"), "deleting twice is fine")

	_, err = s.Download(ctx, "a.txt")
	assert.True(t, apperr.IsNotFound(err))
}

func TestSupabaseStorage(t *testing.T) {
	objects := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		name := strings.TrimPrefix(r.URL.Path, "/storage/v1/object/docs/")
		switch r.Method {
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			objects[name] = string(body)
		case http.MethodGet:
			body, ok := objects[name]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write([]byte(body))
		case http.MethodDelete:
			if _, ok := objects[name]; !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			delete(objects, name)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	s := NewSupabaseStorage(srv.URL, "key", "docs")

	require.NoError(t, s.Upload(ctx, "b.txt", strings.NewReader("world"), ""))
	rc, err := s.Download(ctx, "b.txt")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "world", string(data))

	require.NoError(t, s.Delete(ctx, "b.txt"))
	require.NoError(t, s.Delete(ctx, "b.txt"))
	_, err = s.Download(ctx, "b.txt")
	assert.True(t, apperr.IsNotFound(err))
}
