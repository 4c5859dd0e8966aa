package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// JobStatus represents the state of an ingestion job.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusParsing     JobStatus = "parsing"
	StatusStructuring JobStatus = "structuring"
	StatusChunking    JobStatus = "chunking"
	StatusTagging     JobStatus = "tagging"
	StatusStoring     JobStatus = "storing"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
	StatusPartial     JobStatus = "partial"
	StatusDupSkipped  JobStatus = "duplicate_skipped"
)

// Job tracks the state of a single paper ingestion.
type Job struct {
	mu sync.Mutex

	ID      string `json:"job_id"`
	PaperID string `json:"paper_id"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`
	Title    string    `json:"title"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData     []byte
	chunkSize    int
	chunkOverlap int
	errors       []string
}

// Progress tracks processing progress.
type Progress struct {
	Sections     int      `json:"sections"`
	TotalChunks  int      `json:"total_chunks"`
	ChunksStored int      `json:"chunks_stored"`
	Errors       []string `json:"errors"`
}

// update runs fn under the job lock and bumps UpdatedAt.
func (j *Job) update(fn func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	fn()
	j.UpdatedAt = time.Now()
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.update(func() {
		j.Status = status
		j.Phase = phase
	})
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.update(func() {
		j.errors = append(j.errors, err)
		j.Progress.Errors = j.errors
	})
}

// SetSections records how many sections were found in the paper.
func (j *Job) SetSections(n int) {
	j.update(func() { j.Progress.Sections = n })
}

// SetTotalChunks records total chunk count.
func (j *Job) SetTotalChunks(n int) {
	j.update(func() { j.Progress.TotalChunks = n })
}

// SetChunksStored records how many chunks reached the store.
func (j *Job) SetChunksStored(n int) {
	j.update(func() { j.Progress.ChunksStored = n })
}

// SetFileData sets the raw file bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// SetChunkOverrides sets per-job chunking parameters. Zero means use the
// service defaults.
func (j *Job) SetChunkOverrides(size, overlap int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.chunkSize = size
	j.chunkOverlap = overlap
}

func (j *Job) chunkOverrides() (int, int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.chunkSize, j.chunkOverlap
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	PaperID     string    `json:"paper_id"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Filename    string    `json:"filename"`
	Title       string    `json:"title"`
	ContentHash string    `json:"content_hash,omitempty"`
	Progress    Progress  `json:"progress"`
}

// Snapshot returns a JSON-safe copy of the job state. Progress.Errors is
// never nil so API clients always see an array.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	return JobSnapshot{
		ID:          j.ID,
		PaperID:     j.PaperID,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		Title:       j.Title,
		ContentHash: j.ContentHash,
		Progress: Progress{
			Sections:     j.Progress.Sections,
			TotalChunks:  j.Progress.TotalChunks,
			ChunksStored: j.Progress.ChunksStored,
			Errors:       errs,
		},
	}
}

// JobStore is an in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.RWMutex
	ttl  time.Duration
	byID map[string]*Job
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{ttl: ttl, byID: make(map[string]*Job)}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	s.byID[job.ID] = job
	s.mu.Unlock()
}

func (s *JobStore) Get(id string) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byID[id]
}

// Cleanup evicts jobs idle longer than the TTL and returns how many were
// removed.
func (s *JobStore) Cleanup() int {
	cutoff := time.Now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, job := range s.byID {
		if job.UpdatedAt.Before(cutoff) {
			delete(s.byID, id)
			removed++
		}
	}
	return removed
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
