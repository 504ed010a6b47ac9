// Package apperr defines the error taxonomy shared by the retrieval engine.
//
// Every error produced here wraps one of the sentinel values below, so callers
// match with errors.Is. The samber/oops envelope carries a machine-readable
// code and structured context (document_id, backend, attempts) for logging.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeNotFound           Code = "rag.not_found"
	CodeInvalidInput       Code = "rag.invalid_input"
	CodeBackendUnavailable Code = "vector.backend.unavailable"
	CodeTransient          Code = "vector.transport.transient"
	CodeUnsupportedFormat  Code = "document.format.unsupported"
)

var (
	// ErrNotFound reports a missing document, chunk or source file. Never retried.
	ErrNotFound = errors.New("not found")

	// ErrBackendUnavailable reports that the primary vector backend could not be
	// reached within the retry budget and no fallback was permitted.
	ErrBackendUnavailable = errors.New("vector backend unavailable")

	// ErrTransient marks network and 5xx/429 failures that are worth retrying.
	ErrTransient = errors.New("transient transport error")

	// ErrUnsupportedFormat is returned by extractors for formats they cannot
	// parse. Loaders recover from it by decoding the raw bytes as text.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrInvalidInput reports caller mistakes such as an empty upload.
	ErrInvalidInput = errors.New("invalid input")
)

var codes = map[error]Code{
	ErrNotFound:           CodeNotFound,
	ErrBackendUnavailable: CodeBackendUnavailable,
	ErrTransient:          CodeTransient,
	ErrUnsupportedFormat:  CodeUnsupportedFormat,
	ErrInvalidInput:       CodeInvalidInput,
}

// New wraps sentinel with a formatted message and key/value context.
func New(sentinel error, msg string, kv ...any) error {
	return oops.Code(codes[sentinel]).With(kv...).Wrapf(sentinel, "%s", msg)
}

// Wrap attaches sentinel classification to cause while keeping cause in the chain.
func Wrap(cause, sentinel error, msg string, kv ...any) error {
	if cause == nil {
		return nil
	}
	joined := fmt.Errorf("%w: %w", sentinel, cause)
	return oops.Code(codes[sentinel]).With(kv...).Wrapf(joined, "%s", msg)
}

func NotFound(format string, args ...any) error {
	return New(ErrNotFound, fmt.Sprintf(format, args...))
}

func InvalidInput(format string, args ...any) error {
	return New(ErrInvalidInput, fmt.Sprintf(format, args...))
}

func Transient(cause error, msg string, kv ...any) error {
	return Wrap(cause, ErrTransient, msg, kv...)
}

func BackendUnavailable(cause error, msg string, kv ...any) error {
	if cause == nil {
		return New(ErrBackendUnavailable, msg, kv...)
	}
	return Wrap(cause, ErrBackendUnavailable, msg, kv...)
}

func UnsupportedFormat(format string) error {
	return New(ErrUnsupportedFormat, fmt.Sprintf("unsupported file type %q", format), "format", format)
}

func IsNotFound(err error) bool           { return errors.Is(err, ErrNotFound) }
func IsBackendUnavailable(err error) bool { return errors.Is(err, ErrBackendUnavailable) }
func IsTransient(err error) bool          { return errors.Is(err, ErrTransient) }
func IsUnsupportedFormat(err error) bool  { return errors.Is(err, ErrUnsupportedFormat) }
func IsInvalidInput(err error) bool       { return errors.Is(err, ErrInvalidInput) }

// CodeOf returns the oops code attached to err, or "" for plain errors.
func CodeOf(err error) Code {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	switch c := oopsErr.Code().(type) {
	case Code:
		return c
	case string:
		return Code(c)
	default:
		return ""
	}
}

// Context returns the structured key/values attached along the error chain.
func Context(err error) map[string]any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Context()
}

// HTTPStatus maps err onto a response status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsNotFound(err):
		return http.StatusNotFound
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsUnsupportedFormat(err):
		return http.StatusUnsupportedMediaType
	case IsBackendUnavailable(err):
		return http.StatusServiceUnavailable
	case IsTransient(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
