package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sentences builds n pieces of exactly 100 runes, each ending with ". ".
func sentences(n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		head := fmt.Sprintf("Sentence %02d ", i)
		out = append(out, head+strings.Repeat("a", 98-len(head))+". ")
	}
	return out
}

func TestSplitWindowsWithOverlap(t *testing.T) {
	pieces := sentences(34)
	text := strings.Join(pieces, "")
	require.Equal(t, 3400, len(text))

	chunks := New().Split(text)
	require.Len(t, chunks, 4)

	starts := []int{0, 8, 16, 24}
	for i, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 1000)
		assert.True(t, strings.HasPrefix(chunk, fmt.Sprintf("Sentence %02d ", starts[i])), "chunk %d", i)
	}
	for i := 0; i+1 < len(chunks); i++ {
		tail := strings.TrimSpace(pieces[starts[i+1]] + pieces[starts[i+1]+1])
		assert.True(t, strings.HasSuffix(chunks[i], tail))
		assert.True(t, strings.HasPrefix(chunks[i+1], tail))
		assert.Equal(t, 199, utf8.RuneCountInString(tail))
	}
	assert.True(t, strings.HasSuffix(chunks[3], "Sentence 33 "+strings.Repeat("a", 86)+"."))
}

func TestSplitEmptyInput(t *testing.T) {
	c := New()
	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split("   \n\n\t  "))
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	chunks := New().Split("  hello world  ")
	assert.Equal(t, []string{"hello world"}, chunks)
}

func TestSplitPrefersParagraphs(t *testing.T) {
	p1 := strings.Repeat("x", 30)
	p2 := strings.Repeat("y", 30)
	chunks := New(WithChunkSize(40), WithOverlap(0)).Split(p1 + "\n\n" + p2)
	assert.Equal(t, []string{p1, p2}, chunks)
}

func TestSplitFallsBackToCharacters(t *testing.T) {
	text := strings.Repeat("z", 25)
	chunks := New(WithChunkSize(10), WithOverlap(0)).Split(text)
	assert.Equal(t, []string{strings.Repeat("z", 10), strings.Repeat("z", 10), strings.Repeat("z", 5)}, chunks)
}

func TestSplitCountsRunes(t *testing.T) {
	text := strings.Repeat("é", 15)
	chunks := New(WithChunkSize(10), WithOverlap(0)).Split(text)
	require.Len(t, chunks, 2)
	assert.Equal(t, 10, utf8.RuneCountInString(chunks[0]))
	assert.Equal(t, 5, utf8.RuneCountInString(chunks[1]))
}

func TestSplitDeterministic(t *testing.T) {
	text := strings.Join(sentences(20), "\n")
	c := New(WithChunkSize(300), WithOverlap(50))
	assert.Equal(t, c.Split(text), c.Split(text))
}

func TestNewClampsOverlap(t *testing.T) {
	c := New(WithChunkSize(100), WithOverlap(150))
	assert.Equal(t, 100, c.ChunkSize())
	assert.Equal(t, 25, c.Overlap())
}

func TestWithSeparatorsAppendsCharacterFallback(t *testing.T) {
	c := New(WithChunkSize(5), WithOverlap(0), WithSeparators("|"))
	assert.Equal(t, []string{"ab|", "cdefg", "h"}, c.Split("ab|cdefgh"))
}
