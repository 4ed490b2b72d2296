package biz

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reconstruct(chunks []Chunk, overlap int) string {
	if len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(chunks[0].Text)
	for _, c := range chunks[1:] {
		b.WriteString(string([]rune(c.Text)[overlap:]))
	}
	return b.String()
}

func TestChunkerReconstructsText(t *testing.T) {
	long := strings.Repeat("Award 2 points for a correct base case. ", 80)
	unicode := strings.Repeat("评分标准：正确给两分。", 150)

	tests := []struct {
		name          string
		text          string
		size, overlap int
	}{
		{"default window", long, 700, 50},
		{"no overlap", long, 100, 0},
		{"overlap one less than size", long, 10, 9},
		{"multibyte runes", unicode, 700, 50},
		{"exact multiple", strings.Repeat("x", 1300), 700, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewChunker(tt.size, tt.overlap)
			require.NoError(t, err)

			chunks := c.Split(tt.text, "rubric.pdf")
			require.NotEmpty(t, chunks)
			assert.Equal(t, tt.text, reconstruct(chunks, tt.overlap))

			for i, ch := range chunks {
				assert.Equal(t, i, ch.Index)
				assert.Equal(t, "rubric.pdf", ch.Source)
				assert.LessOrEqual(t, len([]rune(ch.Text)), tt.size)
				if i > 0 {
					prev := []rune(chunks[i-1].Text)
					cur := []rune(ch.Text)
					assert.Equal(t, string(prev[len(prev)-tt.overlap:]), string(cur[:tt.overlap]))
				}
			}
		})
	}
}

func TestChunkerWindows(t *testing.T) {
	c, err := NewChunker(4, 1)
	require.NoError(t, err)

	chunks := c.Split("abcdefghij", "doc")
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	assert.Equal(t, []string{"abcd", "defg", "ghij"}, texts)
}

func TestChunkerShortAndEmptyText(t *testing.T) {
	c, err := NewChunker(700, 50)
	require.NoError(t, err)

	text := "A binary search tree stores values in sorted order."
	chunks := c.Split(text, "bst.txt")
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)

	assert.Empty(t, c.Split("", "empty.txt"))
}

func TestChunkerDeterministic(t *testing.T) {
	c, err := NewChunker(50, 5)
	require.NoError(t, err)

	text := strings.Repeat("deterministic ", 40)
	assert.Equal(t, c.Split(text, "a"), c.Split(text, "a"))
}

func TestNewChunkerRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -1, 0},
		{"negative overlap", 10, -1},
		{"overlap equals size", 10, 10},
		{"overlap exceeds size", 10, 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewChunker(tt.size, tt.overlap)
			assert.Nil(t, c)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrChunking))

			var se *StageError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, StageChunk, se.Stage)
		})
	}
}
