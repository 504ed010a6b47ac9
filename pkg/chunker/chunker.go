package chunker

import (
	"strings"
	"unicode"
)

type Chunker interface {
	Chunk(text string, opts ChunkOptions) []TextChunk
}

type ChunkOptions struct {
	ChunkSize    int // window size in characters
	ChunkOverlap int // characters shared by consecutive windows
}

type TextChunk struct {
	Content string
	Index   int
	Start   int // character offset of the window in the normalized text
	End     int
}

func DefaultOptions() ChunkOptions {
	return ChunkOptions{
		ChunkSize:    800,
		ChunkOverlap: 100,
	}
}

type windowChunker struct{}

func New() Chunker {
	return &windowChunker{}
}

// Chunk splits the normalized text into windows of ChunkSize characters,
// advancing by max(1, ChunkSize-ChunkOverlap). Whitespace-only windows are
// skipped and do not consume an index.
func (c *windowChunker) Chunk(text string, opts ChunkOptions) []TextChunk {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultOptions().ChunkSize
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = 0
	}

	runes := []rune(Normalize(text))
	if len(runes) == 0 {
		return nil
	}

	step := max(1, opts.ChunkSize-opts.ChunkOverlap)

	var chunks []TextChunk
	for start := 0; start < len(runes); start += step {
		end := min(start+opts.ChunkSize, len(runes))

		window := runes[start:end]
		if isBlank(window) {
			continue
		}
		chunks = append(chunks, TextChunk{
			Content: string(window),
			Index:   len(chunks),
			Start:   start,
			End:     end,
		})
	}
	return chunks
}

// Normalize unifies line endings, drops NUL bytes and trims surrounding
// whitespace. Offsets produced by Chunk refer to this form of the text.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\x00", "")
	return strings.TrimSpace(text)
}

func isBlank(rs []rune) bool {
	for _, r := range rs {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
