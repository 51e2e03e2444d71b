package loader

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// parseMarkdown drops markup and keeps the readable text, one block per
// paragraph.
func parseMarkdown(data []byte) (string, error) {
	src, err := parseText(data)
	if err != nil {
		return "", err
	}
	source := []byte(src)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var sb strings.Builder
	endBlock := func() {
		s := sb.String()
		if s == "" || strings.HasSuffix(s, "\n\n") {
			return
		}
		if strings.HasSuffix(s, "\n") {
			sb.WriteString("\n")
			return
		}
		sb.WriteString("\n\n")
	}
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					sb.Write(seg.Value(source))
				}
				endBlock()
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			if entering {
				sb.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					sb.WriteString("\n")
				}
			}
		case *ast.AutoLink:
			if entering {
				sb.Write(node.Label(source))
			}
		}
		if !entering && n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
			endBlock()
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}
