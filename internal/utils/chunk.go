package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultChunkSize is the maximum number of characters per chunk.
const DefaultChunkSize = 800

// ChunkText splits text into contiguous, non-overlapping slices of at most
// maxLen characters. Each slice is trimmed of surrounding whitespace and
// empty slices are dropped. The split is purely positional; it does not
// respect sentence or paragraph boundaries, so the same input always yields
// the same chunk text for citation display.
func ChunkText(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultChunkSize
	}
	runes := []rune(text)

	var parts []string
	for i := 0; i < len(runes); i += maxLen {
		end := i + maxLen
		if end > len(runes) {
			end = len(runes)
		}
		part := strings.TrimSpace(string(runes[i:end]))
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

// IDFromSource derives a chunk identifier from a source label and a
// positional index. Re-ingesting the same source yields the same ids.
func IDFromSource(source string, idx int) string {
	return fmt.Sprintf("%s-%d", url.QueryEscape(source), idx)
}
