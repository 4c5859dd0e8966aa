// Package structure reconstructs titled sections from raw PDF layout
// primitives. The heading heuristic mirrors how academic papers are laid
// out: larger or bold fonts, short all-caps lines, and the conventional
// section names.
package structure

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mkuo/paperrag/internal/paper"
)

// DefaultHeadingFontThreshold is the font size above which a line is treated
// as "large". A policy constant, not derived from the document.
const DefaultHeadingFontThreshold = 12.0

// Config controls heading classification.
type Config struct {
	// HeadingFontThreshold is the font size a line must exceed to count as
	// large. Zero means DefaultHeadingFontThreshold.
	HeadingFontThreshold float64
}

// Extractor rebuilds an ordered section sequence from page line records.
type Extractor struct {
	threshold float64
}

// NewExtractor creates an extractor with the given config.
func NewExtractor(cfg Config) *Extractor {
	t := cfg.HeadingFontThreshold
	if t <= 0 {
		t = DefaultHeadingFontThreshold
	}
	return &Extractor{threshold: t}
}

var (
	headingNameRe = regexp.MustCompile(`^(?i:Abstract|Introduction|Methods?|Results?|Discussion|Conclusion|References?)`)
	numberedRe    = regexp.MustCompile(`^\d+\.?\s+[A-Z]`)
	referencesRe  = regexp.MustCompile(`(?i)References?|Bibliography|參考文獻`)
)

// Extract scans pages in order and returns the closed section sequence.
// Extraction stops at the first references/bibliography heading: trailing
// bibliography content pollutes retrieval without adding value. Lines seen
// before any heading are discarded — documents without early headings lose
// only their lead-in boilerplate. Absence of headings yields zero sections;
// the caller falls back to flat text.
func (e *Extractor) Extract(pages []paper.Page) []paper.Section {
	var sections []paper.Section
	var current *paper.Section

	for _, page := range pages {
		for _, line := range page.Lines {
			text := strings.TrimSpace(line.Text)
			if text == "" {
				continue
			}

			if !e.IsHeading(line) {
				if current != nil {
					current.Content = append(current.Content, text)
				}
				continue
			}

			if referencesRe.MatchString(text) {
				if current != nil {
					sections = append(sections, *current)
				}
				return sections
			}

			if current != nil {
				sections = append(sections, *current)
			}
			current = &paper.Section{
				Title: text,
				Page:  page.Number,
			}
		}
	}

	if current != nil {
		sections = append(sections, *current)
	}
	return sections
}

// IsHeading classifies a line record as a heading. A short line in a large
// font qualifies even without bold; that over-classifies the occasional
// emphasized body sentence, a known precision trade-off.
func (e *Extractor) IsHeading(line paper.Line) bool {
	text := strings.TrimSpace(line.Text)
	if text == "" {
		return false
	}

	isLarge := line.FontSize > e.threshold
	isShort := utf8.RuneCountInString(text) < 100

	if line.Bold && isLarge {
		return true
	}
	if isLarge && isShort {
		return true
	}
	if isAllUpper(text) && utf8.RuneCountInString(text) > 3 {
		return true
	}
	return headingNameRe.MatchString(text) || numberedRe.MatchString(text)
}

// isAllUpper reports whether the text contains at least one cased letter and
// no lowercase letters.
func isAllUpper(s string) bool {
	hasUpper := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasUpper = true
		}
	}
	return hasUpper
}
