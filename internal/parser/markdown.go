package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/mkuo/paperrag/internal/paper"
)

// MarkdownParser handles Markdown files using goldmark. Headings open
// sections the same way PDF headings do; body before the first heading is
// dropped, matching the structure extractor's policy. A file without
// headings becomes flat text.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*paper.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	astDoc := md.Parser().Parse(text.NewReader(src))

	doc := &paper.Document{Title: titleFromFilename(filename)}
	var current *paper.Section
	var preface []string

	for n := astDoc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			title := strings.TrimSpace(string(h.Text(src)))
			if title == "" {
				continue
			}
			if current != nil {
				doc.Sections = append(doc.Sections, *current)
			}
			current = &paper.Section{Title: title}
			continue
		}

		t := blockText(n, src)
		if t == "" {
			continue
		}
		if current != nil {
			current.Content = append(current.Content, t)
		} else {
			preface = append(preface, t)
		}
	}
	if current != nil {
		doc.Sections = append(doc.Sections, *current)
	}

	if len(doc.Sections) == 0 {
		doc.Text = strings.Join(preface, "\n\n")
	}
	return doc, nil
}

// blockText gets the text content of a goldmark AST node. Blocks with raw
// source lines use those directly; container blocks recurse.
func blockText(n ast.Node, src []byte) string {
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		var buf bytes.Buffer
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		return strings.TrimSpace(buf.String())
	}

	var parts []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t := blockText(c, src); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
