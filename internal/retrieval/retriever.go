// Package retrieval ranks chunks against a free-text query using lexical
// term-frequency scoring with a fixed bilingual keyword-expansion table.
// This is deliberate: the corpus is English papers, the users ask in
// Chinese, and a small curated table beats no expansion at all without
// dragging in an embedding stack.
package retrieval

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/mkuo/paperrag/internal/paper"
)

// Expansion maps a query term to its search synonyms. The table is ordered:
// expansion output is deterministic in table order.
type Expansion struct {
	Term     string
	Synonyms string
}

// DefaultTable is the curated Chinese → English keyword table for the
// Ganoderma corpus.
func DefaultTable() []Expansion {
	return []Expansion{
		{Term: "靈芝", Synonyms: "Ganoderma lucidum"},
		{Term: "免疫", Synonyms: "immune immunomodulatory"},
		{Term: "癌症", Synonyms: "cancer tumor"},
		{Term: "功效", Synonyms: "effect benefit"},
		{Term: "臨床", Synonyms: "clinical"},
		{Term: "試驗", Synonyms: "trial"},
		{Term: "多醣體", Synonyms: "polysaccharide"},
		{Term: "三萜", Synonyms: "triterpenoid"},
	}
}

// Config controls query expansion and token filtering.
type Config struct {
	// Table is the keyword-expansion table. Nil means DefaultTable.
	Table []Expansion
	// MinTokenLen drops query tokens shorter than this many runes.
	// Zero means 3.
	MinTokenLen int
}

// Retriever holds a loaded chunk corpus and answers ranked queries.
// Retrieve is read-only and safe for concurrent callers; Load replaces the
// whole corpus snapshot and may be called again after later ingests.
type Retriever struct {
	table       []Expansion
	minTokenLen int

	mu     sync.RWMutex
	chunks []paper.Chunk
}

// New creates a retriever with an empty corpus.
func New(cfg Config) *Retriever {
	table := cfg.Table
	if table == nil {
		table = DefaultTable()
	}
	minLen := cfg.MinTokenLen
	if minLen <= 0 {
		minLen = 3
	}
	return &Retriever{table: table, minTokenLen: minLen}
}

// Load replaces the corpus with a complete snapshot.
func (r *Retriever) Load(chunks []paper.Chunk) {
	r.mu.Lock()
	r.chunks = chunks
	r.mu.Unlock()
}

// Loaded returns the number of chunks in the corpus.
func (r *Retriever) Loaded() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chunks)
}

// Retrieve scores every chunk against the expanded query and returns up to
// topK results in descending score order, corpus order breaking ties.
// Zero-score chunks are never returned; an empty or unloaded corpus yields
// an empty result, not an error.
func (r *Retriever) Retrieve(query string, topK int) []paper.ScoredChunk {
	r.mu.RLock()
	chunks := r.chunks
	r.mu.RUnlock()

	if len(chunks) == 0 || topK <= 0 {
		return nil
	}

	tokens := r.queryTokens(r.ExpandQuery(query))
	if len(tokens) == 0 {
		return nil
	}

	var scored []paper.ScoredChunk
	for _, chunk := range chunks {
		content := strings.ToLower(chunk.Content)
		score := 0
		for _, tok := range tokens {
			score += strings.Count(content, tok)
		}
		if score > 0 {
			scored = append(scored, paper.ScoredChunk{Chunk: chunk, Score: float64(score)})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// ExpandQuery scans the query for table terms (case-sensitive substring
// containment) and concatenates all matched synonyms, appending the original
// query as a fallback signal. No match returns the query unchanged.
func (r *Retriever) ExpandQuery(query string) string {
	var parts []string
	for _, e := range r.table {
		if strings.Contains(query, e.Term) {
			parts = append(parts, e.Synonyms)
		}
	}
	if len(parts) == 0 {
		return query
	}
	return strings.Join(parts, " ") + " " + query
}

// queryTokens lowercases and whitespace-tokenizes the expanded query,
// dropping short tokens and duplicates.
func (r *Retriever) queryTokens(query string) []string {
	seen := make(map[string]bool)
	var tokens []string
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(tok) < r.minTokenLen {
			continue
		}
		if seen[tok] {
			continue
		}
		seen[tok] = true
		tokens = append(tokens, tok)
	}
	return tokens
}
