package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mkuo/paperrag/internal/chunker"
	"github.com/mkuo/paperrag/internal/config"
	"github.com/mkuo/paperrag/internal/store"
	"github.com/mkuo/paperrag/internal/structure"
)

const jobCleanupInterval = 5 * time.Minute

// Orchestrator manages the paper ingestion pipeline.
type Orchestrator struct {
	jobs  *JobStore
	queue chan *Job
	log   *slog.Logger
	cfg   config.Config

	extractor *structure.Extractor
	tagger    Tagger
	store     store.Store
	chunkCfg  chunker.Config
	onStored  func(ctx context.Context)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, extractor *structure.Extractor, tagger Tagger, st store.Store, log *slog.Logger, onStored func(ctx context.Context)) *Orchestrator {
	return &Orchestrator{
		jobs:      NewJobStore(cfg.JobTTL),
		queue:     make(chan *Job, cfg.MaxQueueSize),
		log:       log,
		cfg:       cfg,
		extractor: extractor,
		tagger:    tagger,
		store:     st,
		chunkCfg: chunker.Config{
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
			MinChunkSize: cfg.MinChunkSize,
		},
		onStored: onStored,
	}
}

// Start launches the worker pool and the job store janitor.
func (o *Orchestrator) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for i := 0; i < o.cfg.WorkerCount; i++ {
		o.wg.Add(1)
		go o.runWorker(runCtx)
	}
	o.wg.Add(1)
	go o.runJanitor(runCtx)
}

func (o *Orchestrator) runWorker(ctx context.Context) {
	defer o.wg.Done()
	w := NewWorker(o.extractor, o.tagger, o.store, o.log, o.chunkCfg, o.onStored)
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-o.queue:
			if !ok {
				return
			}
			w.Process(ctx, job)
		}
	}
}

func (o *Orchestrator) runJanitor(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(jobCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.jobs.Cleanup()
		}
	}
}

// Stop cancels in-flight work and waits for all workers to exit.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// NewJob builds a queued job for a file.
func NewJob(paperID, filename, title string, data []byte) *Job {
	now := time.Now()
	job := &Job{
		ID:        generateULID(),
		PaperID:   paperID,
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	job.SetFileData(data)
	return job
}

// Submit registers the job and hands it to the worker pool. The job is
// marked failed when the queue is full.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
	return nil
}

// GetJob returns a job by ID, or nil when unknown or expired.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth reports how many jobs are waiting for a worker.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
