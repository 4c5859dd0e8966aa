package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mkuo/paperrag/internal/chunker"
	"github.com/mkuo/paperrag/internal/generate"
	"github.com/mkuo/paperrag/internal/paper"
	"github.com/mkuo/paperrag/internal/parser"
	"github.com/mkuo/paperrag/internal/store"
	"github.com/mkuo/paperrag/internal/structure"
)

// Tagger extracts paper metadata with a language model.
type Tagger interface {
	TagPaper(ctx context.Context, text string) (generate.Tags, error)
}

// Worker processes a single paper ingestion job.
type Worker struct {
	extractor *structure.Extractor
	tagger    Tagger
	store     store.Store
	log       *slog.Logger
	chunkCfg  chunker.Config

	// onStored runs after chunks land in the store, so the service can
	// refresh the retrieval corpus.
	onStored func(ctx context.Context)
}

func NewWorker(extractor *structure.Extractor, tagger Tagger, st store.Store, log *slog.Logger, chunkCfg chunker.Config, onStored func(ctx context.Context)) *Worker {
	return &Worker{
		extractor: extractor,
		tagger:    tagger,
		store:     st,
		log:       log,
		chunkCfg:  chunkCfg,
		onStored:  onStored,
	}
}

// Process runs the full ingest pipeline for a job: parse, extract structure,
// chunk, tag, store.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "paper_id", job.PaperID, "filename", job.Filename)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(job.Filename)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	doc, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	if job.Title != "" {
		doc.Title = job.Title
	}

	// Dedup on the parsed text, not the raw bytes, so the same paper in
	// two container formats still collides.
	flatText := flattenText(doc)
	job.ContentHash = ContentHashHex([]byte(flatText))
	exists, err := w.store.HasContentHash(ctx, job.ContentHash)
	if err != nil {
		log.Warn("dedup check failed, proceeding", "error", err)
	} else if exists {
		log.Info("duplicate paper, skipping")
		job.SetStatus(StatusDupSkipped, "dedup")
		return
	}

	// Phase 2: Structure
	job.SetStatus(StatusStructuring, "structuring")
	sections := doc.Sections
	if len(doc.Pages) > 0 {
		sections = w.extractor.Extract(doc.Pages)
	}
	job.SetSections(len(sections))
	log.Info("structured paper", "sections", len(sections))

	// Phase 3: Chunk
	job.SetStatus(StatusChunking, "chunking")
	ck, err := w.jobChunker(job)
	if err != nil {
		log.Error("invalid chunk parameters", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "chunking")
		return
	}

	extra := map[string]any{
		"paper_id":     job.PaperID,
		"file_name":    job.Filename,
		"content_hash": job.ContentHash,
	}
	var chunks []paper.Chunk
	if len(sections) > 0 {
		chunks = ck.ChunkBySections(sections, extra)
	} else {
		chunks = ck.Chunk(flatText, extra)
	}
	job.SetTotalChunks(len(chunks))
	log.Info("chunked paper", "chunks", len(chunks))

	if len(chunks) == 0 {
		log.Warn("no chunks produced")
		job.AddError("no extractable content")
		job.SetStatus(StatusFailed, "chunking")
		return
	}

	// Phase 4: Tag. Failures degrade to Unknown tags rather than failing
	// the ingest.
	tagged := true
	tags := generate.Tags{PartUsed: "Unknown", Extraction: "Unknown"}
	if w.tagger != nil {
		job.SetStatus(StatusTagging, "tagging")
		tags, tagged = w.tagWithRetry(ctx, job, log, flatText)
	}
	for i := range chunks {
		chunks[i].Extra["ai_part_used"] = tags.PartUsed
		chunks[i].Extra["ai_extraction"] = tags.Extraction
	}

	// Phase 5: Store
	job.SetStatus(StatusStoring, "storing")
	if err := w.store.SaveChunks(ctx, chunks); err != nil {
		log.Error("store failed", "error", err)
		job.AddError(fmt.Sprintf("store: %s", err))
		job.SetStatus(StatusFailed, "storing")
		return
	}
	job.SetChunksStored(len(chunks))

	if w.onStored != nil {
		w.onStored(ctx)
	}

	if !tagged {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
	log.Info("ingest complete", "chunks", len(chunks), "part_used", tags.PartUsed, "extraction", tags.Extraction)
}

// tagWithRetry calls the tagger with backoff on transient errors. The bool
// result reports whether tagging ultimately succeeded.
func (w *Worker) tagWithRetry(ctx context.Context, job *Job, log *slog.Logger, text string) (generate.Tags, bool) {
	var tags generate.Tags
	var lastErr error
	for attempt := range MaxRetries {
		tags, lastErr = w.tagger.TagPaper(ctx, text)
		if lastErr == nil || !IsRetryable(lastErr) {
			break
		}
		log.Warn("retryable tagging error", "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(Backoff(attempt)):
		case <-ctx.Done():
			lastErr = ctx.Err()
		}
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr != nil {
		log.Error("tagging failed", "error", lastErr)
		job.AddError(fmt.Sprintf("tag: %s", lastErr))
		return generate.Tags{PartUsed: "Unknown", Extraction: "Unknown"}, false
	}
	return tags, true
}

// jobChunker builds a chunker honoring per-job overrides.
func (w *Worker) jobChunker(job *Job) (*chunker.Chunker, error) {
	cfg := w.chunkCfg
	size, overlap := job.chunkOverrides()
	if size > 0 {
		cfg.ChunkSize = size
	}
	if overlap > 0 {
		cfg.ChunkOverlap = overlap
	}
	return chunker.New(cfg)
}

// flattenText collapses whichever content shape the parser produced into a
// single string for hashing and whole-document chunking.
func flattenText(doc *paper.Document) string {
	if doc.Text != "" {
		return doc.Text
	}

	var sb strings.Builder
	if len(doc.Pages) > 0 {
		for _, pg := range doc.Pages {
			for _, ln := range pg.Lines {
				if strings.TrimSpace(ln.Text) == "" {
					continue
				}
				if sb.Len() > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(ln.Text)
			}
		}
		return sb.String()
	}

	for _, sec := range doc.Sections {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(sec.Title)
		for _, c := range sec.Content {
			sb.WriteString("\n")
			sb.WriteString(c)
		}
	}
	return sb.String()
}
