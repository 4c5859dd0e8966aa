package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mkuo/paperrag/internal/paper"
)

// JSONStore keeps the whole corpus in a single JSON file holding a flat
// array of chunk objects. Writes rewrite the file through a temp file and
// rename. Good enough for single-node corpora in the tens of thousands of
// chunks.
type JSONStore struct {
	path string

	mu     sync.Mutex
	chunks []paper.Chunk
}

// NewJSONStore loads the corpus at path, creating parent directories as
// needed. A missing file is an empty corpus.
func NewJSONStore(path string) (*JSONStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	s := &JSONStore{path: path}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read chunk store: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.chunks); err != nil {
		return nil, fmt.Errorf("decode chunk store %s: %w", path, err)
	}
	return s, nil
}

func (s *JSONStore) SaveChunks(ctx context.Context, chunks []paper.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks = append(s.chunks, chunks...)
	if err := s.flushLocked(); err != nil {
		s.chunks = s.chunks[:len(s.chunks)-len(chunks)]
		return err
	}
	return nil
}

func (s *JSONStore) LoadAll(ctx context.Context) ([]paper.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]paper.Chunk, len(s.chunks))
	copy(out, s.chunks)
	return out, nil
}

func (s *JSONStore) DeletePaper(ctx context.Context, paperID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.chunks[:0:0]
	removed := 0
	for _, c := range s.chunks {
		if c.PaperID() == paperID {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	if removed == 0 {
		return 0, nil
	}

	prev := s.chunks
	s.chunks = kept
	if err := s.flushLocked(); err != nil {
		s.chunks = prev
		return 0, err
	}
	return removed, nil
}

func (s *JSONStore) ListPapers(ctx context.Context) ([]PaperInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int)
	var order []string
	for _, c := range s.chunks {
		id := c.PaperID()
		if id == "" {
			id = "unknown"
		}
		if _, seen := counts[id]; !seen {
			order = append(order, id)
		}
		counts[id]++
	}

	infos := make([]PaperInfo, 0, len(order))
	for _, id := range order {
		infos = append(infos, PaperInfo{PaperID: id, Chunks: counts[id]})
	}
	return infos, nil
}

func (s *JSONStore) HasContentHash(ctx context.Context, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.chunks {
		if h, ok := c.Extra["content_hash"].(string); ok && h == hash {
			return true, nil
		}
	}
	return false, nil
}

func (s *JSONStore) Close() error { return nil }

// flushLocked rewrites the backing file. Caller holds s.mu.
func (s *JSONStore) flushLocked() error {
	data, err := json.MarshalIndent(s.chunks, "", "  ")
	if err != nil {
		return fmt.Errorf("encode chunk store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write chunk store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace chunk store: %w", err)
	}
	return nil
}
