// Package chunk splits normalized document text into overlapping,
// bounded-size pieces suitable for embedding and retrieval.
//
// The splitter accumulates whole words greedily up to the size limit and
// seeds each subsequent chunk with the trailing overlap of the chunk just
// closed, so adjacent chunks share context. Splitting is deterministic:
// identical input and parameters always produce identical output.
package chunk

import (
	"strings"
	"unicode/utf8"
)

// Default chunking parameters.
const (
	DefaultMaxChars     = 1200
	DefaultOverlapChars = 200
)

// Piece is one chunk of a document's text.
type Piece struct {
	// Order is the zero-based position within the document.
	Order int

	// Text is the chunk content. Words are joined by single spaces;
	// leading overlap text is shared with the previous chunk.
	Text string

	// TokenCount is the number of whitespace-delimited tokens.
	TokenCount int
}

// Split divides text into overlapping pieces of at most maxChars characters.
//
// Empty or whitespace-only text yields no pieces. A single word longer than
// maxChars is emitted as its own piece rather than dropped or split
// mid-word, so no content is ever lost. Overlap is measured in characters
// (runes) taken from the tail of the previous piece.
func Split(text string, maxChars, overlap int) []Piece {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if overlap < 0 || overlap >= maxChars {
		overlap = DefaultOverlapChars
		if overlap >= maxChars {
			overlap = maxChars / 4
		}
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var pieces []Piece
	var cur []string
	curLen := 0

	flush := func() string {
		joined := strings.Join(cur, " ")
		pieces = append(pieces, Piece{
			Order:      len(pieces),
			Text:       joined,
			TokenCount: countTokens(joined),
		})
		return joined
	}

	// All sizes are counted in runes so multibyte text gets the same
	// chunk capacity as ASCII.
	for _, w := range words {
		wLen := utf8.RuneCountInString(w)
		add := wLen
		if len(cur) > 0 {
			add++ // joining space
		}

		if curLen+add > maxChars && len(cur) > 0 {
			closed := flush()

			if overlap > 0 {
				tail := trailingRunes(closed, overlap)
				cur = []string{tail}
				curLen = utf8.RuneCountInString(tail)
			} else {
				cur = nil
				curLen = 0
			}
			add = wLen
			if len(cur) > 0 {
				add++
			}
		}

		cur = append(cur, w)
		curLen += add
	}

	if len(cur) > 0 {
		flush()
	}

	return pieces
}

// countTokens counts whitespace-delimited tokens in s.
func countTokens(s string) int {
	return len(strings.Fields(s))
}

// trailingRunes returns the last n runes of s, or s itself when shorter.
func trailingRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
