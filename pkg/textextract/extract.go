package textextract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/nikhilbhutani/ragvault/internal/apperr"
)

type ExtractedText struct {
	Content  string
	Pages    int
	Metadata map[string]string
}

// Extract returns the text content of a document. fileType may be a suffix
// (".pdf"), a bare extension ("pdf") or a MIME type. Formats without a parser
// yield an error matching apperr.ErrUnsupportedFormat.
func Extract(data io.ReaderAt, size int64, fileType string) (*ExtractedText, error) {
	switch Kind(fileType) {
	case "pdf":
		return extractPDF(data, size)
	case "docx":
		return extractDOCX(data, size)
	case "txt", "md":
		return extractTXT(data, size, Kind(fileType))
	default:
		return nil, apperr.UnsupportedFormat(fileType)
	}
}

// Kind normalizes a suffix or MIME type to a short format name.
func Kind(fileType string) string {
	switch strings.ToLower(strings.TrimSpace(fileType)) {
	case ".pdf", "pdf", "application/pdf":
		return "pdf"
	case ".docx", "docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return "docx"
	case ".txt", "txt", "text/plain":
		return "txt"
	case ".md", "md", ".markdown", "text/markdown":
		return "md"
	default:
		return ""
	}
}

func SupportedTypes() []string {
	return []string{".pdf", ".docx", ".txt", ".md"}
}

func extractPDF(data io.ReaderAt, size int64) (result *ExtractedText, err error) {
	// the pdf package panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("parse PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	var buf strings.Builder
	numPages := reader.NumPage()

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(text)
	}

	return &ExtractedText{
		Content: buf.String(),
		Pages:   numPages,
		Metadata: map[string]string{
			"type": "pdf",
		},
	}, nil
}

func extractDOCX(data io.ReaderAt, size int64) (*ExtractedText, error) {
	reader, err := zip.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open DOCX: %w", err)
	}

	for _, f := range reader.File {
		if f.Name != "word/document.xml" && path.Base(f.Name) != "document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open document.xml: %w", err)
		}
		paragraphs, err := docxParagraphs(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read document.xml: %w", err)
		}
		return &ExtractedText{
			Content: strings.Join(paragraphs, "\n"),
			Pages:   1,
			Metadata: map[string]string{
				"type": "docx",
			},
		}, nil
	}

	return nil, fmt.Errorf("open DOCX: word/document.xml missing")
}

// docxParagraphs collects the text runs (w:t) of every paragraph (w:p).
func docxParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteString("\t")
			case "br":
				current.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}
	return paragraphs, nil
}

func extractTXT(data io.ReaderAt, size int64, kind string) (*ExtractedText, error) {
	buf := make([]byte, size)
	n, err := data.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read %s: %w", strings.ToUpper(kind), err)
	}

	return &ExtractedText{
		Content: DecodeText(buf[:n]),
		Pages:   1,
		Metadata: map[string]string{
			"type": kind,
		},
	}, nil
}

// DecodeText interprets raw bytes as UTF-8, dropping invalid sequences and a
// leading byte-order mark.
func DecodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	return strings.ToValidUTF8(string(data), "")
}
