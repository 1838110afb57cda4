package memory

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// =============================================================================
// Token counting
// =============================================================================

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// CountTokens returns the token count of text. The cl100k_base encoding
// is used when available, otherwise a word count heuristic.
func CountTokens(text string) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	if encoding != nil {
		return len(encoding.Encode(text, nil, nil))
	}
	return estimateTokens(text)
}

// estimateTokens approximates tokens as words * 1.3.
func estimateTokens(text string) int {
	words := len(strings.Fields(text))
	return int(float64(words) * 1.3)
}
