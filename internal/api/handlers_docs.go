package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListDocuments lists stored papers with chunk counts.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	papers, err := s.store.ListPapers(r.Context())
	if err != nil {
		jsonError(w, "failed to list papers: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"papers": papers,
		"total":  len(papers),
	})
}

// handleDeleteDocument removes a paper's chunks and refreshes the retrieval
// corpus.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	paperID := chi.URLParam(r, "paperID")

	removed, err := s.store.DeletePaper(r.Context(), paperID)
	if err != nil {
		jsonError(w, "failed to delete paper: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if removed == 0 {
		jsonError(w, "paper not found", http.StatusNotFound)
		return
	}

	if s.reloadCorpus != nil {
		if err := s.reloadCorpus(r.Context()); err != nil {
			s.log.Error("corpus reload after delete failed", "paper_id", paperID, "error", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"paper_id":       paperID,
		"chunks_deleted": removed,
	})
}
