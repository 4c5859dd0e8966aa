package parser

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/mkuo/paperrag/internal/paper"
)

// yTolerance groups styled text runs into the same visual line when their
// baselines are within this many points.
const yTolerance = 2.0

// PDFParser extracts per-page line records with layout attributes so that
// the structure extractor can classify headings. When styled content is
// unavailable it degrades to flat plain text.
type PDFParser struct{}

func (p *PDFParser) Parse(r io.Reader, filename string) (*paper.Document, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "paperrag-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	f, reader, err := pdflib.Open(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	doc := &paper.Document{Title: titleFromFilename(filename)}

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		runs, err := pageRuns(page)
		if err != nil {
			// Skip unreadable pages; partial extraction beats none.
			continue
		}
		lines := groupLines(runs, i)
		if len(lines) > 0 {
			doc.Pages = append(doc.Pages, paper.Page{Number: i, Lines: lines})
		}
	}

	if len(doc.Pages) == 0 {
		text, err := plainText(reader)
		if err != nil {
			return nil, fmt.Errorf("extract pdf text: %w", err)
		}
		doc.Text = strings.TrimSpace(text)
	}

	return doc, nil
}

// pageRuns reads the styled text runs of one page. The pdf library panics on
// some malformed content streams, so the call is fenced.
func pageRuns(page pdflib.Page) (runs []pdflib.Text, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page content: %v", r)
		}
	}()
	return page.Content().Text, nil
}

// groupLines merges sequential runs sharing a baseline into line records.
// Font size is taken from the run style covering the most characters; the
// line is bold when most of its characters are set in a bold font.
func groupLines(runs []pdflib.Text, pageNum int) []paper.Line {
	var lines []paper.Line
	var cur []pdflib.Text
	curY := 0.0

	flush := func() {
		if line, ok := buildLine(cur, pageNum); ok {
			lines = append(lines, line)
		}
		cur = cur[:0]
	}

	for _, run := range runs {
		if run.S == "" {
			continue
		}
		if len(cur) > 0 && abs(run.Y-curY) > yTolerance {
			flush()
		}
		cur = append(cur, run)
		curY = run.Y
	}
	flush()

	return lines
}

func buildLine(runs []pdflib.Text, pageNum int) (paper.Line, bool) {
	var sb strings.Builder
	sizeChars := make(map[float64]int)
	boldChars, totalChars := 0, 0

	for _, run := range runs {
		sb.WriteString(run.S)
		n := len(run.S)
		sizeChars[run.FontSize] += n
		totalChars += n
		if strings.Contains(strings.ToLower(run.Font), "bold") {
			boldChars += n
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return paper.Line{}, false
	}

	domSize, domChars := 0.0, 0
	for size, n := range sizeChars {
		if n > domChars || (n == domChars && size > domSize) {
			domSize, domChars = size, n
		}
	}

	return paper.Line{
		Text:     text,
		FontSize: domSize,
		Bold:     totalChars > 0 && boldChars*2 > totalChars,
		Page:     pageNum,
	}, true
}

func plainText(reader *pdflib.Reader) (string, error) {
	rd, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rd); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
