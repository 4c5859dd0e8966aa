// Package chunker splits document text into overlapping, size-bounded chunks
// while respecting sentence boundaries. Sizes are character counts; overlap
// carries only whole sentences, never fragments.
package chunker

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/mkuo/paperrag/internal/paper"
)

// Config controls chunking behavior. All sizes are in characters.
type Config struct {
	ChunkSize    int // Target max characters per chunk.
	ChunkOverlap int // Max trailing characters carried into the next chunk.
	MinChunkSize int // Chunks shorter than this are dropped.
}

// DefaultConfig returns the defaults used across the service.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		MinChunkSize: 100,
	}
}

// Chunker produces chunk sequences from flat text or structured sections.
type Chunker struct {
	cfg Config
}

// New validates the config and returns a chunker. Invalid configuration is a
// caller contract violation and fails here, not mid-pipeline.
func New(cfg Config) (*Chunker, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunker: chunk size must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 {
		return nil, fmt.Errorf("chunker: overlap must not be negative, got %d", cfg.ChunkOverlap)
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("chunker: overlap %d must be smaller than chunk size %d", cfg.ChunkOverlap, cfg.ChunkSize)
	}
	if cfg.MinChunkSize < 0 {
		return nil, fmt.Errorf("chunker: min chunk size must not be negative, got %d", cfg.MinChunkSize)
	}
	return &Chunker{cfg: cfg}, nil
}

// Chunk splits text into sentence-aligned chunks and wraps each with index
// metadata. Extra keys are merged onto every chunk; caller keys win on
// conflict at serialization time. Empty or whitespace-only input yields an
// empty slice, not an error.
func (c *Chunker) Chunk(text string, extra map[string]any) []paper.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	sentences := SplitSentences(text)
	spans := c.assemble(sentences)

	chunks := make([]paper.Chunk, 0, len(spans))
	for i, span := range spans {
		chunks = append(chunks, paper.Chunk{
			Content:     span,
			ChunkIndex:  i,
			TotalChunks: len(spans),
			CharCount:   len(span),
			WordCount:   len(strings.Fields(span)),
			Extra:       mergeExtra(nil, extra),
		})
	}
	return chunks
}

// ChunkBySections chunks each section's "title + content" text independently,
// stamps section and page onto every resulting chunk, and renumbers indices
// globally across the concatenated sequence.
func (c *Chunker) ChunkBySections(sections []paper.Section, extra map[string]any) []paper.Chunk {
	var all []paper.Chunk
	for _, sec := range sections {
		text := sec.Title + "\n\n" + strings.Join(sec.Content, " ")
		for _, chunk := range c.Chunk(text, nil) {
			chunk.Section = sec.Title
			chunk.Page = sec.Page
			chunk.Extra = mergeExtra(chunk.Extra, extra)
			all = append(all, chunk)
		}
	}

	for i := range all {
		all[i].ChunkIndex = i
		all[i].TotalChunks = len(all)
	}
	return all
}

// assemble greedily packs sentences into character-budgeted spans. When a
// span closes, the next one is seeded with trailing whole sentences selected
// backward until the overlap budget is exhausted.
func (c *Chunker) assemble(sentences []string) []string {
	var spans []string
	var buf []string
	size := 0

	flush := func() {
		text := strings.Join(buf, " ")
		if len(text) >= c.cfg.MinChunkSize {
			spans = append(spans, text)
		}
	}

	for _, sent := range sentences {
		if size+len(sent) > c.cfg.ChunkSize && len(buf) > 0 {
			flush()

			var overlap []string
			overlapSize := 0
			for i := len(buf) - 1; i >= 0; i-- {
				if overlapSize+len(buf[i]) > c.cfg.ChunkOverlap {
					break
				}
				overlap = append([]string{buf[i]}, overlap...)
				overlapSize += len(buf[i])
			}
			buf = overlap
			size = overlapSize
		}

		buf = append(buf, sent)
		size += len(sent)
	}

	if len(buf) > 0 {
		flush()
	}
	return spans
}

// SplitSentences breaks text on sentence terminators followed by whitespace
// and an uppercase letter. Deliberately conservative: abbreviations like
// "e.g. the" under-split rather than fragment.
func SplitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		// Require at least one whitespace rune, then an uppercase letter.
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j == i+1 || j >= len(runes) || !unicode.IsUpper(runes[j]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = j
		i = j - 1
	}

	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func mergeExtra(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
