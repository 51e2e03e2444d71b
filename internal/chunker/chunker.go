// Package chunker splits extracted document text into overlapping windows.
package chunker

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// DefaultSeparators are tried in order: paragraphs, lines, sentences, words,
// then single characters.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunker is a recursive character splitter. Lengths are counted in runes.
type Chunker struct {
	chunkSize  int
	overlap    int
	separators []string
}

type Option func(*Chunker)

func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithSeparators replaces the separator hierarchy. An empty string is always
// appended as the last resort so every input can be split.
func WithSeparators(seps ...string) Option {
	return func(c *Chunker) {
		if len(seps) == 0 {
			return
		}
		list := make([]string, 0, len(seps)+1)
		for _, sep := range seps {
			if sep == "" {
				continue
			}
			list = append(list, sep)
		}
		c.separators = append(list, "")
	}
}

func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}
	return c
}

func (c *Chunker) ChunkSize() int { return c.chunkSize }

func (c *Chunker) Overlap() int { return c.overlap }

// Split returns trimmed, non-empty chunks in document order. Whitespace-only
// input yields no chunks.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.split(text, c.separators)
}

func (c *Chunker) split(text string, seps []string) []string {
	sep := ""
	var rest []string
	for i, candidate := range seps {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			rest = seps[i+1:]
			break
		}
	}

	var out, pending []string
	for _, piece := range splitKeep(text, sep) {
		if runeLen(piece) < c.chunkSize {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			out = append(out, c.merge(pending)...)
			pending = nil
		}
		if len(rest) == 0 {
			if s := strings.TrimSpace(piece); s != "" {
				out = append(out, s)
			}
			continue
		}
		out = append(out, c.split(piece, rest)...)
	}
	if len(pending) > 0 {
		out = append(out, c.merge(pending)...)
	}
	return out
}

// merge packs pieces greedily into windows of at most chunkSize, carrying at
// most overlap runes of trailing pieces into the next window.
func (c *Chunker) merge(pieces []string) []string {
	var (
		out     []string
		current []string
		lengths []int
		total   int
	)
	emit := func() {
		if s := strings.TrimSpace(strings.Join(current, "")); s != "" {
			out = append(out, s)
		}
	}
	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > c.chunkSize && len(current) > 0 {
			emit()
			for len(current) > 0 && (total > c.overlap || total+n > c.chunkSize) {
				total -= lengths[0]
				current = current[1:]
				lengths = lengths[1:]
			}
		}
		current = append(current, piece)
		lengths = append(lengths, n)
		total += n
	}
	if len(current) > 0 {
		emit()
	}
	return out
}

// splitKeep splits text on sep and keeps sep at the end of each piece.
// Empty pieces are dropped. An empty sep splits into runes.
func splitKeep(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.SplitAfter(text, sep)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
