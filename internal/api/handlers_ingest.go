package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mkuo/paperrag/internal/parser"
	"github.com/mkuo/paperrag/internal/pipeline"
)

type jobAccepted struct {
	Filename string `json:"filename"`
	JobID    string `json:"job_id"`
	PaperID  string `json:"paper_id"`
	Status   string `json:"status"`
	PollURL  string `json:"poll_url"`
}

func acceptedResponse(job *pipeline.Job, filename string) jobAccepted {
	return jobAccepted{
		Filename: filename,
		JobID:    job.ID,
		PaperID:  job.PaperID,
		Status:   string(job.Status),
		PollURL:  "/api/ingest/" + job.ID + "/status",
	}
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	// Headroom over the per-file limit covers multipart framing.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	fhs := r.MultipartForm.File["file"]
	if len(fhs) == 0 {
		jsonError(w, "file is required", http.StatusBadRequest)
		return
	}
	filename, data, err := s.readUpload(fhs[0])
	if err != nil {
		err.write(w)
		return
	}

	job := s.buildJob(r.FormValue("paper_id"), filename, r.FormValue("title"), data)
	applyChunkOverrides(job, r.FormValue("chunk_size"), r.FormValue("chunk_overlap"))

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse(job, filename))
}

func (s *Server) handleBatchIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	fhs := r.MultipartForm.File["files"]
	if len(fhs) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	type batchEntry struct {
		Filename string `json:"filename"`
		Error    string `json:"error,omitempty"`
		JobID    string `json:"job_id,omitempty"`
		PaperID  string `json:"paper_id,omitempty"`
		Status   string `json:"status,omitempty"`
		PollURL  string `json:"poll_url,omitempty"`
	}
	results := make([]batchEntry, 0, len(fhs))
	for _, fh := range fhs {
		filename, data, uerr := s.readUpload(fh)
		if uerr != nil {
			results = append(results, batchEntry{Filename: sanitizeFilename(fh.Filename), Error: uerr.msg})
			continue
		}
		job := s.buildJob("", filename, "", data)
		if err := s.orchestrator.Submit(job); err != nil {
			results = append(results, batchEntry{Filename: filename, Error: err.Error()})
			continue
		}
		acc := acceptedResponse(job, filename)
		results = append(results, batchEntry{
			Filename: acc.Filename,
			JobID:    acc.JobID,
			PaperID:  acc.PaperID,
			Status:   acc.Status,
			PollURL:  acc.PollURL,
		})
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": results})
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":   snap.ID,
		"paper_id": snap.PaperID,
		"status":   snap.Status,
		"phase":    snap.Phase,
		"progress": snap.Progress,
	})
}

type uploadError struct {
	msg  string
	code int
}

func (e *uploadError) write(w http.ResponseWriter) { jsonError(w, e.msg, e.code) }

// readUpload validates and reads one multipart file, enforcing the
// configured per-file size limit.
func (s *Server) readUpload(fh *multipart.FileHeader) (string, []byte, *uploadError) {
	filename := sanitizeFilename(fh.Filename)
	if !parser.IsSupportedExtension(filename) {
		return "", nil, &uploadError{
			msg:  fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)),
			code: http.StatusBadRequest,
		}
	}

	f, err := fh.Open()
	if err != nil {
		return "", nil, &uploadError{msg: "failed to open file", code: http.StatusInternalServerError}
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return "", nil, &uploadError{msg: "failed to read file", code: http.StatusInternalServerError}
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return "", nil, &uploadError{
			msg:  fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes),
			code: http.StatusRequestEntityTooLarge,
		}
	}
	return filename, data, nil
}

// buildJob derives the paper ID from the filename stem when the caller did
// not provide one, matching how PMC corpus files are named.
func (s *Server) buildJob(paperID, filename, title string, data []byte) *pipeline.Job {
	if paperID == "" {
		paperID = strings.TrimSuffix(filename, filepath.Ext(filename))
	}
	return pipeline.NewJob(paperID, filename, title, data)
}

func applyChunkOverrides(job *pipeline.Job, sizeVal, overlapVal string) {
	size, err := strconv.Atoi(sizeVal)
	if err != nil || size <= 0 {
		return
	}
	overlap, _ := strconv.Atoi(overlapVal)
	job.SetChunkOverrides(size, overlap)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		return "unnamed"
	}
	return name
}
