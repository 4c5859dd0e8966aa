package pipeline

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestJobStore_PutGet(t *testing.T) {
	s := NewJobStore(time.Hour)
	job := NewJob("PMC001", "paper.pdf", "", nil)
	s.Put(job)

	got := s.Get(job.ID)
	if got == nil {
		t.Fatal("expected to find job")
	}
	if got.PaperID != "PMC001" {
		t.Errorf("paper id: got %q", got.PaperID)
	}
	if s.Get("missing") != nil {
		t.Error("expected nil for unknown job id")
	}
}

func TestJobStore_CleanupEvictsExpired(t *testing.T) {
	s := NewJobStore(10 * time.Millisecond)
	job := NewJob("PMC001", "paper.pdf", "", nil)
	job.UpdatedAt = time.Now().Add(-time.Minute)
	s.Put(job)

	fresh := NewJob("PMC002", "other.pdf", "", nil)
	s.Put(fresh)

	s.Cleanup()
	if s.Get(job.ID) != nil {
		t.Error("expired job should be evicted")
	}
	if s.Get(fresh.ID) == nil {
		t.Error("fresh job should survive cleanup")
	}
}

func TestJob_SnapshotIsolated(t *testing.T) {
	job := NewJob("PMC001", "paper.pdf", "A Title", []byte("data"))
	job.SetStatus(StatusChunking, "chunking")
	job.SetSections(3)
	job.SetTotalChunks(7)
	job.AddError("first")

	snap := job.Snapshot()
	if snap.Status != StatusChunking || snap.Phase != "chunking" {
		t.Errorf("snapshot status: got %s/%s", snap.Status, snap.Phase)
	}
	if snap.Progress.Sections != 3 || snap.Progress.TotalChunks != 7 {
		t.Errorf("snapshot progress: got %+v", snap.Progress)
	}
	if len(snap.Progress.Errors) != 1 || snap.Progress.Errors[0] != "first" {
		t.Errorf("snapshot errors: got %v", snap.Progress.Errors)
	}

	// Later mutations must not show up in an earlier snapshot.
	job.AddError("second")
	if len(snap.Progress.Errors) != 1 {
		t.Errorf("snapshot should be isolated from later errors, got %v", snap.Progress.Errors)
	}
}

func TestJob_SnapshotEmptyErrorsNotNil(t *testing.T) {
	job := NewJob("PMC001", "paper.pdf", "", nil)
	snap := job.Snapshot()
	if snap.Progress.Errors == nil {
		t.Error("errors should serialize as [] not null")
	}
}

func TestJob_ChunkOverrides(t *testing.T) {
	job := NewJob("PMC001", "paper.pdf", "", nil)
	size, overlap := job.chunkOverrides()
	if size != 0 || overlap != 0 {
		t.Errorf("defaults: got %d/%d", size, overlap)
	}
	job.SetChunkOverrides(500, 50)
	size, overlap = job.chunkOverrides()
	if size != 500 || overlap != 50 {
		t.Errorf("overrides: got %d/%d", size, overlap)
	}
}

func TestGenerateULID(t *testing.T) {
	seen := make(map[string]bool)
	var prev string
	for i := 0; i < 1000; i++ {
		id := generateULID()
		if len(id) != 26 {
			t.Fatalf("ulid length: got %d for %q", len(id), id)
		}
		for _, c := range id {
			if !strings.ContainsRune(crockford, c) {
				t.Fatalf("ulid %q contains invalid char %q", id, c)
			}
		}
		if seen[id] {
			t.Fatalf("duplicate ulid: %q", id)
		}
		seen[id] = true
		if prev != "" && id < prev {
			t.Fatalf("ulids should be monotonic within a run: %q < %q", id, prev)
		}
		prev = id
	}
}

func TestGenerateULID_Concurrent(t *testing.T) {
	const n = 100
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- generateULID()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate ulid under concurrency: %q", id)
		}
		seen[id] = true
	}
}

func TestContentHashHex(t *testing.T) {
	h1 := ContentHashHex([]byte("hello"))
	h2 := ContentHashHex([]byte("hello"))
	h3 := ContentHashHex([]byte("world"))

	if h1 != h2 {
		t.Error("same content should hash identically")
	}
	if h1 == h3 {
		t.Error("different content should hash differently")
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(h1))
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil is not retryable")
	}
}

func TestBackoff(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		d := Backoff(attempt)
		if d < time.Second {
			t.Errorf("attempt %d: backoff %v below base", attempt, d)
		}
		if d > 45*time.Second {
			t.Errorf("attempt %d: backoff %v above cap plus jitter", attempt, d)
		}
	}
}
