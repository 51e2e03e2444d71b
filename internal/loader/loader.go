// Package loader extracts plain text from uploaded documents.
package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	appErr "github.com/npesaras/wolfie-rag/internal/pkg/errors"
)

var (
	ErrUnsupportedFormat = appErr.ErrUnsupportedFormat
	ErrParse             = appErr.ErrParse
)

// ParseFunc turns raw file bytes into text.
type ParseFunc func(data []byte) (string, error)

type format struct {
	parse ParseFunc
	// magic lists MIME types the sniffed content must descend from. Empty
	// means the format is text and is not sniffed.
	magic []string
}

var formats = map[string]format{
	".txt":  {parse: parseText},
	".md":   {parse: parseMarkdown},
	".html": {parse: parseHTML},
	".htm":  {parse: parseHTML},
	".pdf":  {parse: parsePDF, magic: []string{"application/pdf"}},
	".docx": {parse: parseDOCX, magic: []string{"application/zip"}},
	".pptx": {parse: parsePPTX, magic: []string{"application/zip"}},
}

type Loader struct {
	allowed map[string]bool
}

// New returns a loader restricted to the given extensions. With no
// extensions every known format is accepted.
func New(extensions ...string) *Loader {
	allowed := make(map[string]bool)
	for _, ext := range extensions {
		ext = normalizeExt(ext)
		if _, ok := formats[ext]; ok {
			allowed[ext] = true
		}
	}
	if len(allowed) == 0 {
		for ext := range formats {
			allowed[ext] = true
		}
	}
	return &Loader{allowed: allowed}
}

func (l *Loader) Supports(filename string) bool {
	return l.allowed[normalizeExt(filepath.Ext(filename))]
}

// Load extracts normalized text. The result may be empty when the document
// carries no text.
func (l *Loader) Load(ctx context.Context, data []byte, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext := normalizeExt(filepath.Ext(filename))
	if !l.allowed[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	f := formats[ext]
	if len(f.magic) > 0 && !descendsFrom(mimetype.Detect(data), f.magic) {
		return "", fmt.Errorf("%w: content is not %s", ErrParse, strings.TrimPrefix(ext, "."))
	}
	text, err := f.parse(data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrParse, filepath.Base(filename), err)
	}
	return normalizeText(text), nil
}

// DetectContentType sniffs data and returns its MIME type.
func DetectContentType(data []byte) string {
	return mimetype.Detect(data).String()
}

func descendsFrom(m *mimetype.MIME, expected []string) bool {
	for ; m != nil; m = m.Parent() {
		for _, e := range expected {
			if m.Is(e) {
				return true
			}
		}
	}
	return false
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

func normalizeText(text string) string {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	text = strings.Join(lines, "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
