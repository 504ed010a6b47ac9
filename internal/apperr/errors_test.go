package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nikhilbhutani/ragvault/internal/apperr"
)

func TestSentinelMatching(t *testing.T) {
	err := apperr.NotFound("document %s not found", "abc")
	assert.True(t, apperr.IsNotFound(err))
	assert.False(t, apperr.IsBackendUnavailable(err))
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	assert.Contains(t, err.Error(), "document abc not found")
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := apperr.Transient(cause, "qdrant upsert", "backend", "qdrant")

	assert.True(t, apperr.IsTransient(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "qdrant", apperr.Context(err)["backend"])

	outer := apperr.BackendUnavailable(err, "retries exhausted", "attempts", 5)
	assert.True(t, apperr.IsBackendUnavailable(outer))
	assert.True(t, apperr.IsTransient(outer))
	assert.ErrorIs(t, outer, cause)
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, apperr.Wrap(nil, apperr.ErrTransient, "noop"))
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{apperr.NotFound("x"), http.StatusNotFound},
		{apperr.InvalidInput("x"), http.StatusBadRequest},
		{apperr.UnsupportedFormat(".xls"), http.StatusUnsupportedMediaType},
		{apperr.BackendUnavailable(nil, "down"), http.StatusServiceUnavailable},
		{apperr.Transient(errors.New("eof"), "x"), http.StatusBadGateway},
		{fmt.Errorf("wrapped: %w", apperr.NotFound("x")), http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, apperr.HTTPStatus(tc.err), "%v", tc.err)
	}
}
