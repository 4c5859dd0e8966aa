package parser

import (
	"io"
	"strings"

	"github.com/mkuo/paperrag/internal/paper"
)

// TextParser handles plain text files. Output is flat text: plain files
// carry no layout signal for section reconstruction.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*paper.Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	lines := strings.Split(text, "\n")

	// Runs of non-blank lines form paragraphs. Whitespace-only lines
	// count as blank.
	var paragraphs []string
	var run []string
	flush := func() {
		if len(run) > 0 {
			paragraphs = append(paragraphs, strings.Join(run, "\n"))
			run = run[:0]
		}
	}
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		run = append(run, line)
	}
	flush()

	return &paper.Document{
		Title: titleFromFilename(filename),
		Text:  strings.Join(paragraphs, "\n\n"),
	}, nil
}
