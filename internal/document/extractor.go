package document

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nikhilbhutani/ragvault/internal/apperr"
	"github.com/nikhilbhutani/ragvault/pkg/textextract"
)

// TextExtractor turns raw file bytes into text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, suffix string) (string, error)
}

type extractor struct {
	ocr    *OCRService
	logger *slog.Logger
}

// NewTextExtractor returns an extractor that recovers from unsupported
// formats and broken PDFs by decoding the bytes as UTF-8. ocr may be nil.
func NewTextExtractor(ocr *OCRService, logger *slog.Logger) TextExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &extractor{ocr: ocr, logger: logger}
}

func (e *extractor) Extract(ctx context.Context, data []byte, suffix string) (string, error) {
	suffix = strings.ToLower(suffix)
	result, err := textextract.Extract(bytes.NewReader(data), int64(len(data)), suffix)
	switch {
	case err == nil:
	case apperr.IsUnsupportedFormat(err):
		e.logger.Debug("no parser for format, reading as text", "suffix", suffix)
		return textextract.DecodeText(data), nil
	case textextract.Kind(suffix) == "pdf":
		e.logger.Warn("pdf parse failed, reading as text", "error", err)
		return textextract.DecodeText(data), nil
	default:
		return "", fmt.Errorf("extract text: %w", err)
	}

	text := result.Content
	if textextract.Kind(suffix) == "pdf" && strings.TrimSpace(text) == "" && e.ocr != nil {
		text = e.runOCR(ctx, data)
	}
	return text, nil
}

func (e *extractor) runOCR(ctx context.Context, data []byte) string {
	if !e.ocr.IsAvailable() {
		e.logger.Warn("pdf has no text layer and OCR tools are not installed")
		return ""
	}
	text, err := e.ocr.ExtractPDF(ctx, data)
	if err != nil {
		e.logger.Warn("ocr failed", "error", err)
		return ""
	}
	return text
}
