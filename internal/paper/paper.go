// Package paper holds the value types that flow through the ingestion and
// retrieval pipeline. Each stage fully owns its output; nothing here is
// mutated after the producing stage hands it off.
package paper

import "encoding/json"

// Line is one visual line of a PDF page: the concatenated text of its spans
// plus the layout attributes the heading heuristic needs.
type Line struct {
	Text     string
	FontSize float64
	Bold     bool
	Page     int
}

// Page is the ordered line sequence of a single page.
type Page struct {
	Number int
	Lines  []Line
}

// Section is a titled contiguous span of document lines, bounded by the next
// heading or the end of the document.
type Section struct {
	Title   string
	Page    int
	Content []string
}

// Document is the parser output for one input file. Exactly one of the three
// content shapes is populated: Pages (PDF layout primitives, ready for
// structure extraction), Sections (formats with explicit headings), or Text
// (flat fallback).
type Document struct {
	Title    string
	Pages    []Page
	Sections []Section
	Text     string
}

// Chunk is the retrieval unit: a bounded span of text plus provenance
// metadata. Extra carries caller-supplied metadata (paper_id, file name,
// tagger output) and is serialized flat alongside the fixed fields.
type Chunk struct {
	Content     string
	ChunkIndex  int
	TotalChunks int
	CharCount   int
	WordCount   int
	Section     string
	Page        int
	Extra       map[string]any
}

// ScoredChunk is a Chunk with its lexical relevance score for one query.
// Produced per retrieval call and never persisted.
type ScoredChunk struct {
	Chunk
	Score float64
}

// PaperID returns the paper identifier from the chunk metadata, if set.
func (c Chunk) PaperID() string {
	id, _ := c.Extra["paper_id"].(string)
	return id
}

// chunkFields are the fixed keys of the flat chunk record. Extra keys win on
// conflict, matching the merge rule of the chunking stage.
var chunkFields = map[string]bool{
	"content":      true,
	"chunk_index":  true,
	"total_chunks": true,
	"char_count":   true,
	"word_count":   true,
	"section":      true,
	"page":         true,
}

// MarshalJSON writes the chunk as a single flat JSON object.
func (c Chunk) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"content":      c.Content,
		"chunk_index":  c.ChunkIndex,
		"total_chunks": c.TotalChunks,
		"char_count":   c.CharCount,
		"word_count":   c.WordCount,
	}
	if c.Section != "" {
		m["section"] = c.Section
	}
	if c.Page != 0 {
		m["page"] = c.Page
	}
	for k, v := range c.Extra {
		m[k] = v
	}
	return json.Marshal(m)
}

// UnmarshalJSON reads a flat chunk record, splitting fixed fields from Extra.
func (c *Chunk) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	c.Content, _ = m["content"].(string)
	c.ChunkIndex = intField(m, "chunk_index")
	c.TotalChunks = intField(m, "total_chunks")
	c.CharCount = intField(m, "char_count")
	c.WordCount = intField(m, "word_count")
	c.Section, _ = m["section"].(string)
	c.Page = intField(m, "page")

	c.Extra = nil
	for k, v := range m {
		if chunkFields[k] {
			continue
		}
		if c.Extra == nil {
			c.Extra = make(map[string]any)
		}
		c.Extra[k] = v
	}
	return nil
}

func intField(m map[string]any, key string) int {
	f, _ := m[key].(float64)
	return int(f)
}

// MarshalJSON includes the score in the flat record.
func (s ScoredChunk) MarshalJSON() ([]byte, error) {
	data, err := s.Chunk.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	m["score"] = s.Score
	return json.Marshal(m)
}
