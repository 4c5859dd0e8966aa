package paper

import (
	"encoding/json"
	"testing"
)

func TestChunkMarshal_FlatRecord(t *testing.T) {
	c := Chunk{
		Content:     "Ganoderma content.",
		ChunkIndex:  2,
		TotalChunks: 5,
		CharCount:   18,
		WordCount:   2,
		Section:     "Results",
		Page:        3,
		Extra: map[string]any{
			"paper_id":  "PMC001",
			"file_name": "PMC001.pdf",
		},
	}

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal into map: %v", err)
	}

	// Metadata sits at the top level, not nested.
	want := map[string]any{
		"content":      "Ganoderma content.",
		"chunk_index":  float64(2),
		"total_chunks": float64(5),
		"char_count":   float64(18),
		"word_count":   float64(2),
		"section":      "Results",
		"page":         float64(3),
		"paper_id":     "PMC001",
		"file_name":    "PMC001.pdf",
	}
	for k, v := range want {
		if m[k] != v {
			t.Errorf("field %q: got %v, want %v", k, m[k], v)
		}
	}
	if len(m) != len(want) {
		t.Errorf("unexpected extra fields: %v", m)
	}
}

func TestChunkMarshal_OmitsEmptySectionAndPage(t *testing.T) {
	c := Chunk{Content: "flat text chunk"}
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := m["section"]; ok {
		t.Error("empty section should be omitted")
	}
	if _, ok := m["page"]; ok {
		t.Error("zero page should be omitted")
	}
}

func TestChunkMarshal_ExtraWinsOnConflict(t *testing.T) {
	c := Chunk{
		Content: "original",
		Extra:   map[string]any{"content": "override"},
	}
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["content"] != "override" {
		t.Errorf("extra should win on key conflict, got %v", m["content"])
	}
}

func TestChunkUnmarshal_SplitsExtra(t *testing.T) {
	raw := `{
		"content": "Some text.",
		"chunk_index": 1,
		"total_chunks": 4,
		"char_count": 10,
		"word_count": 2,
		"section": "Methods",
		"page": 2,
		"paper_id": "PMC002",
		"ai_part_used": "Mycelium"
	}`

	var c Chunk
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if c.Content != "Some text." || c.ChunkIndex != 1 || c.TotalChunks != 4 {
		t.Errorf("fixed fields: %+v", c)
	}
	if c.Section != "Methods" || c.Page != 2 {
		t.Errorf("section fields: %+v", c)
	}
	if c.PaperID() != "PMC002" {
		t.Errorf("paper id: got %q", c.PaperID())
	}
	if c.Extra["ai_part_used"] != "Mycelium" {
		t.Errorf("extra: %v", c.Extra)
	}
	if _, fixedLeaked := c.Extra["content"]; fixedLeaked {
		t.Errorf("fixed field leaked into extra: %v", c.Extra)
	}
}

func TestChunkRoundTrip(t *testing.T) {
	orig := Chunk{
		Content:     "Round trip me.",
		ChunkIndex:  0,
		TotalChunks: 1,
		CharCount:   14,
		WordCount:   3,
		Section:     "Abstract",
		Page:        1,
		Extra:       map[string]any{"paper_id": "PMC003", "content_hash": "abc"},
	}

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Chunk
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if back.Content != orig.Content || back.Section != orig.Section || back.Page != orig.Page {
		t.Errorf("round trip changed fields: %+v", back)
	}
	if back.PaperID() != "PMC003" || back.Extra["content_hash"] != "abc" {
		t.Errorf("round trip lost extra: %v", back.Extra)
	}
}

func TestScoredChunkMarshal(t *testing.T) {
	sc := ScoredChunk{
		Chunk: Chunk{Content: "scored", Extra: map[string]any{"paper_id": "PMC004"}},
		Score: 7,
	}
	data, err := json.Marshal(sc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["score"] != float64(7) {
		t.Errorf("score: got %v", m["score"])
	}
	if m["content"] != "scored" || m["paper_id"] != "PMC004" {
		t.Errorf("flat fields: %v", m)
	}
}

func TestPaperID_Unset(t *testing.T) {
	var c Chunk
	if c.PaperID() != "" {
		t.Errorf("unset paper id should be empty, got %q", c.PaperID())
	}
}
