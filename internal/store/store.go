package store

import (
	"context"

	"github.com/mkuo/paperrag/internal/paper"
)

// PaperInfo summarizes one stored paper.
type PaperInfo struct {
	PaperID string `json:"paper_id"`
	Chunks  int    `json:"chunks"`
}

// Store persists chunks and answers corpus-level queries. SaveChunks appends;
// re-ingesting the same paper ID without deleting first duplicates chunks,
// which is why the pipeline checks HasContentHash before storing.
type Store interface {
	// SaveChunks appends chunks to the corpus.
	SaveChunks(ctx context.Context, chunks []paper.Chunk) error
	// LoadAll returns every stored chunk, in insertion order.
	LoadAll(ctx context.Context) ([]paper.Chunk, error)
	// DeletePaper removes all chunks with the given paper ID, returning
	// how many were removed.
	DeletePaper(ctx context.Context, paperID string) (int, error)
	// ListPapers returns per-paper chunk counts.
	ListPapers(ctx context.Context) ([]PaperInfo, error)
	// HasContentHash reports whether any stored chunk came from a source
	// document with this content hash.
	HasContentHash(ctx context.Context, hash string) (bool, error)
	// Close releases underlying resources.
	Close() error
}
