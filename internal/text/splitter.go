// Package text splits normalized content into overlapping chunks, the unit
// of embedding. Splitting is purely positional: every chunk is a contiguous
// substring of the input, so re-joining chunks minus the overlap always
// reconstructs the original text.
package text

import (
	"strings"
	"unicode/utf8"
)

// Split cuts text into chunks of at most chunkSize runes. Boundaries prefer
// the earliest separator in the priority list that can end the chunk; the
// empty-string separator means a hard character cut. Adjacent chunks share
// chunkOverlap runes taken from the tail of the previous chunk. Measuring in
// runes keeps every chunk valid UTF-8 even when the input has no separator
// inside a whole window.
//
// Same input and parameters always produce the identical sequence. An empty
// input yields no chunks; callers treat that as "nothing to process".
func Split(text string, chunkSize, chunkOverlap int, separators []string) []string {
	if len(text) == 0 {
		return nil
	}
	if chunkSize <= 0 {
		return []string{text}
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}

	runes := []rune(text)
	var chunks []string
	start := 0

	for len(runes)-start > chunkSize {
		end := cut(runes, start, chunkSize, chunkOverlap, separators)
		chunks = append(chunks, string(runes[start:end]))
		start = end - chunkOverlap
	}

	chunks = append(chunks, string(runes[start:]))
	return chunks
}

// cut returns the end offset (in runes) of the chunk starting at start. It
// scans the separators in priority order and breaks at the last occurrence
// inside the window, as long as the resulting chunk is long enough to make
// progress past the overlap. With no usable separator the chunk is a hard
// cut at chunkSize runes.
func cut(runes []rune, start, chunkSize, chunkOverlap int, separators []string) int {
	window := string(runes[start : start+chunkSize])

	for _, sep := range separators {
		if sep == "" {
			break
		}
		idx := strings.LastIndex(window, sep)
		if idx < 0 {
			continue
		}
		end := utf8.RuneCountInString(window[:idx]) + utf8.RuneCountInString(sep)
		if end > chunkOverlap {
			return start + end
		}
	}

	return start + chunkSize
}
