package pipeline

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mkuo/paperrag/internal/chunker"
	"github.com/mkuo/paperrag/internal/generate"
	"github.com/mkuo/paperrag/internal/store"
	"github.com/mkuo/paperrag/internal/structure"
)

type fixedTagger struct {
	tags generate.Tags
	err  error
}

func (f *fixedTagger) TagPaper(ctx context.Context, text string) (generate.Tags, error) {
	return f.tags, f.err
}

func newTestWorker(t *testing.T, tagger Tagger) (*Worker, store.Store, *bool) {
	t.Helper()
	st, err := store.NewJSONStore(filepath.Join(t.TempDir(), "chunks.json"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := chunker.Config{ChunkSize: 1000, ChunkOverlap: 200, MinChunkSize: 10}
	reloaded := false
	w := NewWorker(structure.NewExtractor(structure.Config{}), tagger, st, log, cfg, func(ctx context.Context) {
		reloaded = true
	})
	return w, st, &reloaded
}

func TestWorker_ProcessTextFile(t *testing.T) {
	w, st, reloaded := newTestWorker(t, &fixedTagger{
		tags: generate.Tags{PartUsed: "Fruiting Body", Extraction: "Water/Aqueous"},
	})

	job := NewJob("PMC100", "PMC100.txt", "", []byte(
		"Ganoderma lucidum was administered daily. The treated mice showed higher marker levels.",
	))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("status: %s (%v)", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.TotalChunks == 0 || snap.Progress.ChunksStored != snap.Progress.TotalChunks {
		t.Errorf("progress: %+v", snap.Progress)
	}
	if snap.ContentHash == "" {
		t.Error("content hash should be set")
	}
	if !*reloaded {
		t.Error("corpus reload hook should run after storing")
	}

	chunks, err := st.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("no chunks stored")
	}
	c := chunks[0]
	if c.PaperID() != "PMC100" {
		t.Errorf("paper id: %q", c.PaperID())
	}
	if c.Extra["file_name"] != "PMC100.txt" {
		t.Errorf("file name: %v", c.Extra)
	}
	if c.Extra["ai_part_used"] != "Fruiting Body" || c.Extra["ai_extraction"] != "Water/Aqueous" {
		t.Errorf("tags: %v", c.Extra)
	}
	if c.Extra["content_hash"] != snap.ContentHash {
		t.Errorf("content hash mismatch: %v vs %s", c.Extra["content_hash"], snap.ContentHash)
	}
}

func TestWorker_ProcessMarkdownSections(t *testing.T) {
	w, st, _ := newTestWorker(t, nil)

	job := NewJob("PMC101", "PMC101.md", "", []byte(
		"# Abstract\n\nThis study examines Ganoderma in detail.\n\n# Methods\n\nWe used water extraction throughout.\n",
	))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("status: %s (%v)", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.Sections != 2 {
		t.Errorf("sections: %d", snap.Progress.Sections)
	}

	chunks, err := st.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	seen := map[string]bool{}
	for _, c := range chunks {
		seen[c.Section] = true
		// No tagger configured: tags default to Unknown.
		if c.Extra["ai_part_used"] != "Unknown" {
			t.Errorf("untagged chunk: %v", c.Extra)
		}
	}
	if !seen["Abstract"] || !seen["Methods"] {
		t.Errorf("section stamps: %v", seen)
	}
}

func TestWorker_DuplicateSkipped(t *testing.T) {
	w, st, _ := newTestWorker(t, nil)
	content := []byte("Ganoderma lucidum was administered daily to all cohorts.")

	first := NewJob("PMC102", "PMC102.txt", "", content)
	w.Process(context.Background(), first)
	if s := first.Snapshot().Status; s != StatusCompleted {
		t.Fatalf("first ingest: %s", s)
	}
	stored, _ := st.LoadAll(context.Background())

	// Same content under a different name is still a duplicate.
	second := NewJob("PMC103", "renamed.txt", "", content)
	w.Process(context.Background(), second)
	if s := second.Snapshot().Status; s != StatusDupSkipped {
		t.Errorf("second ingest: %s", s)
	}
	after, _ := st.LoadAll(context.Background())
	if len(after) != len(stored) {
		t.Errorf("duplicate ingest changed the store: %d -> %d", len(stored), len(after))
	}
}

func TestWorker_UnsupportedFormatFails(t *testing.T) {
	w, _, _ := newTestWorker(t, nil)
	job := NewJob("PMC104", "image.png", "", []byte("binary"))
	w.Process(context.Background(), job)
	if s := job.Snapshot().Status; s != StatusFailed {
		t.Errorf("status: %s", s)
	}
}

func TestWorker_EmptyContentFails(t *testing.T) {
	w, _, _ := newTestWorker(t, nil)
	job := NewJob("PMC105", "empty.txt", "", []byte("   \n  \n"))
	w.Process(context.Background(), job)
	snap := job.Snapshot()
	if snap.Status != StatusFailed {
		t.Errorf("status: %s", snap.Status)
	}
	if len(snap.Progress.Errors) == 0 {
		t.Error("expected an error entry")
	}
}

func TestWorker_TaggerFailurePartial(t *testing.T) {
	w, st, _ := newTestWorker(t, &fixedTagger{
		tags: generate.Tags{PartUsed: "Unknown", Extraction: "Unknown"},
		err:  context.DeadlineExceeded,
	})
	job := NewJob("PMC106", "PMC106.txt", "", []byte(
		"Ganoderma lucidum was studied. The cohort improved its markers.",
	))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusPartial {
		t.Fatalf("status: %s", snap.Status)
	}
	// Chunks still stored, tagged Unknown.
	chunks, _ := st.LoadAll(context.Background())
	if len(chunks) == 0 {
		t.Fatal("chunks should still be stored on tagger failure")
	}
	if chunks[0].Extra["ai_part_used"] != "Unknown" {
		t.Errorf("tags: %v", chunks[0].Extra)
	}
	if !strings.Contains(strings.Join(snap.Progress.Errors, " "), "tag") {
		t.Errorf("errors should mention tagging: %v", snap.Progress.Errors)
	}
}
