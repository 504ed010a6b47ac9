package document

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// OCRService renders PDF pages with pdftoppm and reads them with tesseract.
type OCRService struct {
	tesseractPath string
	pdftoppmPath  string
	lang          string
}

func NewOCRService(lang string) *OCRService {
	if lang == "" {
		lang = "eng"
	}
	tesseract, _ := exec.LookPath("tesseract")
	pdftoppm, _ := exec.LookPath("pdftoppm")
	return &OCRService{
		tesseractPath: tesseract,
		pdftoppmPath:  pdftoppm,
		lang:          lang,
	}
}

func (o *OCRService) IsAvailable() bool {
	return o != nil && o.tesseractPath != "" && o.pdftoppmPath != ""
}

// ExtractPDF returns the recognized text of every page, pages joined by a
// blank line.
func (o *OCRService) ExtractPDF(ctx context.Context, data []byte) (string, error) {
	if !o.IsAvailable() {
		return "", fmt.Errorf("ocr: tesseract or pdftoppm not installed")
	}

	dir, err := os.MkdirTemp("", "ragvault-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create ocr workdir: %w", err)
	}
	defer os.RemoveAll(dir)

	pdfPath := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(pdfPath, data, 0o600); err != nil {
		return "", fmt.Errorf("write ocr input: %w", err)
	}

	cmd := exec.CommandContext(ctx, o.pdftoppmPath, "-r", "300", "-png", pdfPath, filepath.Join(dir, "page"))
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(string(out)))
	}

	pages, err := filepath.Glob(filepath.Join(dir, "page*.png"))
	if err != nil {
		return "", fmt.Errorf("list rendered pages: %w", err)
	}
	sort.Strings(pages)

	var texts []string
	for _, page := range pages {
		text, err := o.ExtractText(ctx, page)
		if err != nil {
			return "", err
		}
		if text != "" {
			texts = append(texts, text)
		}
	}
	return strings.Join(texts, "\n\n"), nil
}

func (o *OCRService) ExtractText(ctx context.Context, imagePath string) (string, error) {
	cmd := exec.CommandContext(ctx, o.tesseractPath, imagePath, "stdout", "-l", o.lang)

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("tesseract OCR: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}
