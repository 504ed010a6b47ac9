package tokenizer

import (
	"strings"
	"unicode/utf8"
)

// CountTokens returns a rough token estimate for text. It takes the larger of
// a word-based (~4/3 tokens per word) and a character-based (~4 characters
// per token) guess, so long unbroken strings are not undercounted.
func CountTokens(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	byWords := len(strings.Fields(text)) * 4 / 3
	byChars := utf8.RuneCountInString(text) / 4
	return max(byWords, byChars, 1)
}
