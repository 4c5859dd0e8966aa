package structure

import (
	"testing"

	"github.com/mkuo/paperrag/internal/paper"
)

func line(text string, size float64, bold bool) paper.Line {
	return paper.Line{Text: text, FontSize: size, Bold: bold}
}

func body(text string) paper.Line {
	return paper.Line{Text: text, FontSize: 10}
}

func TestIsHeading(t *testing.T) {
	e := NewExtractor(Config{})

	cases := []struct {
		name string
		line paper.Line
		want bool
	}{
		{"bold and large", line("Some Heading Text", 14, true), true},
		{"large and short", line("Emphasized finding", 14, false), true},
		{"all uppercase", body("MATERIALS AND METHODS"), true},
		{"short uppercase ignored", body("DNA"), false},
		{"conventional name", body("Introduction"), true},
		{"conventional name case-insensitive", body("RESULTS and discussion"), true},
		{"numbered heading", body("1. Introduction"), true},
		{"numbered without dot", body("2 Methods"), true},
		{"numbered lowercase body", body("3. subsection text"), false},
		{"plain body text", body("The mice were injected daily."), false},
		{"empty", body("   "), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := e.IsHeading(c.line); got != c.want {
				t.Errorf("IsHeading(%q) = %v, want %v", c.line.Text, got, c.want)
			}
		})
	}
}

func TestIsHeading_Threshold(t *testing.T) {
	e := NewExtractor(Config{HeadingFontThreshold: 16})
	if e.IsHeading(line("Modest Heading Candidate Line With Enough Words To Not Match Names", 14, true)) {
		t.Error("14pt bold should not be a heading with a 16pt threshold")
	}
	if !e.IsHeading(line("Same Line But Bigger Font Without Matching Any Known Heading Word", 17, true)) {
		t.Error("17pt bold should be a heading with a 16pt threshold")
	}
}

func TestExtract_SectionBoundaries(t *testing.T) {
	e := NewExtractor(Config{})
	pages := []paper.Page{
		{Number: 1, Lines: []paper.Line{
			body("Journal of Mushroom Science, Vol 12."), // pre-heading, discarded
			line("Abstract", 14, true),
			body("This study examines Ganoderma."),
			line("Methods", 14, true),
			body("We used water extraction."),
		}},
		{Number: 2, Lines: []paper.Line{
			body("Extraction ran for three hours."),
		}},
	}

	sections := e.Extract(pages)
	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d: %+v", len(sections), sections)
	}

	if sections[0].Title != "Abstract" || sections[0].Page != 1 {
		t.Errorf("sections[0]: got title=%q page=%d", sections[0].Title, sections[0].Page)
	}
	if len(sections[0].Content) != 1 || sections[0].Content[0] != "This study examines Ganoderma." {
		t.Errorf("sections[0] content: got %v", sections[0].Content)
	}

	if sections[1].Title != "Methods" {
		t.Errorf("sections[1]: got title=%q", sections[1].Title)
	}
	// Body continues across the page break into the open section.
	if len(sections[1].Content) != 2 {
		t.Fatalf("sections[1] content: got %v", sections[1].Content)
	}
	if sections[1].Content[1] != "Extraction ran for three hours." {
		t.Errorf("sections[1] content[1]: got %q", sections[1].Content[1])
	}
}

func TestExtract_StopsAtReferences(t *testing.T) {
	e := NewExtractor(Config{})
	pages := []paper.Page{
		{Number: 1, Lines: []paper.Line{
			line("Introduction", 14, true),
			body("Opening text."),
			line("Results", 14, true),
			body("Findings here."),
			line("Discussion", 14, true),
			body("Interpretation."),
			line("References", 14, true),
			body("1. Smith J. et al. Some cited paper."),
			line("Appendix", 14, true),
			body("Never reached."),
		}},
	}

	sections := e.Extract(pages)
	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(sections))
	}
	for _, sec := range sections {
		if sec.Title == "References" || sec.Title == "Appendix" {
			t.Errorf("section %q should not survive the references cut", sec.Title)
		}
		for _, c := range sec.Content {
			if c == "1. Smith J. et al. Some cited paper." {
				t.Errorf("bibliography content leaked into %q", sec.Title)
			}
		}
	}
	// The section open at the cut is still closed and kept.
	if sections[2].Title != "Discussion" {
		t.Errorf("last section: got %q, want Discussion", sections[2].Title)
	}
}

func TestExtract_ReferencesVariants(t *testing.T) {
	e := NewExtractor(Config{})
	for _, title := range []string{"References", "Reference", "BIBLIOGRAPHY", "參考文獻"} {
		pages := []paper.Page{
			{Number: 1, Lines: []paper.Line{
				line("Results", 14, true),
				body("Findings."),
				line(title, 14, true),
				body("Cited works."),
			}},
		}
		sections := e.Extract(pages)
		if len(sections) != 1 {
			t.Errorf("%q: expected 1 section, got %d", title, len(sections))
			continue
		}
		if sections[0].Title != "Results" {
			t.Errorf("%q: kept section is %q", title, sections[0].Title)
		}
	}
}

func TestExtract_NoHeadings(t *testing.T) {
	e := NewExtractor(Config{})
	pages := []paper.Page{
		{Number: 1, Lines: []paper.Line{
			body("Just some regular text."),
			body("More regular text."),
		}},
	}
	if sections := e.Extract(pages); len(sections) != 0 {
		t.Errorf("expected no sections, got %d", len(sections))
	}
}

func TestExtract_Empty(t *testing.T) {
	e := NewExtractor(Config{})
	if sections := e.Extract(nil); len(sections) != 0 {
		t.Errorf("nil pages: got %d sections", len(sections))
	}
	if sections := e.Extract([]paper.Page{{Number: 1}}); len(sections) != 0 {
		t.Errorf("empty page: got %d sections", len(sections))
	}
}
