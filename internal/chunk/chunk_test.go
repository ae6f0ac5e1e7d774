package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// repeatedWords builds n words of exactly width characters each.
func repeatedWords(n, width int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%0*d", width-1, i)
	}
	return strings.Join(words, " ")
}

func TestSplit_Empty(t *testing.T) {
	assert.Empty(t, Split("", 1200, 200))
	assert.Empty(t, Split("   \n\t  ", 1200, 200))
}

func TestSplit_SingleShortText(t *testing.T) {
	pieces := Split("hello world", 1200, 200)
	require.Len(t, pieces, 1)
	assert.Equal(t, 0, pieces[0].Order)
	assert.Equal(t, "hello world", pieces[0].Text)
	assert.Equal(t, 2, pieces[0].TokenCount)
}

// A 2999-character text with max_size=1200 and overlap=200 must produce
// exactly 3 pieces whose 200-character boundaries line up.
func TestSplit_ThreeChunksWithSharedBoundaries(t *testing.T) {
	text := repeatedWords(300, 9) // 300*9 + 299 spaces = 2999 chars

	pieces := Split(text, 1200, 200)
	require.Len(t, pieces, 3)

	for i, p := range pieces {
		assert.Equal(t, i, p.Order)
		assert.LessOrEqual(t, len(p.Text), 1200)
	}

	for i := 1; i < len(pieces); i++ {
		prev := pieces[i-1].Text
		lead := pieces[i].Text[:200]
		tail := prev[len(prev)-200:]
		assert.Equal(t, tail, lead, "piece %d must start with the previous piece's trailing 200 chars", i)
	}
}

// Concatenating pieces in order and stripping the seeded overlap must
// reproduce the whitespace-normalized input losslessly.
func TestSplit_Reconstruction(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxChars int
		overlap  int
	}{
		{"regular words", repeatedWords(300, 9), 1200, 200},
		{"uneven words", "alpha beta gamma delta epsilon zeta eta theta iota kappa", 20, 5},
		{"no overlap", repeatedWords(100, 7), 200, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			normalized := strings.Join(strings.Fields(tt.text), " ")
			pieces := Split(tt.text, tt.maxChars, tt.overlap)
			require.NotEmpty(t, pieces)

			var sb strings.Builder
			for i, p := range pieces {
				if i == 0 {
					sb.WriteString(p.Text)
					continue
				}
				prev := pieces[i-1].Text
				seed := tt.overlap
				if seed > len(prev) {
					seed = len(prev)
				}
				require.Equal(t, prev[len(prev)-seed:], p.Text[:seed])
				if seed == 0 {
					sb.WriteString(" ")
				}
				sb.WriteString(p.Text[seed:])
			}
			assert.Equal(t, normalized, sb.String())
		})
	}
}

func TestSplit_OrderIsContiguous(t *testing.T) {
	pieces := Split(repeatedWords(500, 9), 600, 100)
	for i, p := range pieces {
		assert.Equal(t, i, p.Order)
	}
}

func TestSplit_OverlongWordIsNotDropped(t *testing.T) {
	long := strings.Repeat("x", 50)
	pieces := Split("short "+long+" tail", 20, 5)

	found := false
	for _, p := range pieces {
		if strings.Contains(p.Text, long) {
			found = true
		}
	}
	assert.True(t, found, "over-long word must survive chunking intact")
}

// Chunk capacity is measured in runes, so Cyrillic text (2 bytes per
// letter) packs the same number of characters per chunk as ASCII.
func TestSplit_MultibyteCountsRunes(t *testing.T) {
	// Two 6-rune words plus the joining space: 13 runes, 25 bytes.
	text := "привет привет"

	pieces := Split(text, 13, 0)
	require.Len(t, pieces, 1)
	assert.Equal(t, text, pieces[0].Text)

	// One rune short forces a split.
	pieces = Split(text, 12, 0)
	require.Len(t, pieces, 2)
	assert.Equal(t, "привет", pieces[0].Text)
	assert.Equal(t, "привет", pieces[1].Text)
}

func TestSplit_MultibyteOverlapSeed(t *testing.T) {
	words := make([]string, 12)
	for i := range words {
		words[i] = "слово"
	}
	text := strings.Join(words, " ")

	pieces := Split(text, 20, 6)
	require.Greater(t, len(pieces), 1)

	for i := 1; i < len(pieces); i++ {
		prev := []rune(pieces[i-1].Text)
		lead := []rune(pieces[i].Text)[:6]
		assert.Equal(t, string(prev[len(prev)-6:]), string(lead),
			"piece %d must start with the previous piece's trailing 6 runes", i)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := repeatedWords(250, 6)
	a := Split(text, 400, 80)
	b := Split(text, 400, 80)
	assert.Equal(t, a, b)
}
