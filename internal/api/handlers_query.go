package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mkuo/paperrag/internal/generate"
	"github.com/mkuo/paperrag/internal/paper"
)

type queryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

type querySource struct {
	PaperID string  `json:"paper_id"`
	Section string  `json:"section,omitempty"`
	Page    int     `json:"page,omitempty"`
	Score   float64 `json:"score"`
	Preview string  `json:"preview"`
}

type queryResponse struct {
	Question string        `json:"question"`
	Answer   string        `json:"answer"`
	Sources  []querySource `json:"sources"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		jsonError(w, "question is required", http.StatusBadRequest)
		return
	}

	topK := req.TopK
	if topK <= 0 {
		topK = s.cfg.TopK
	}

	results := s.retriever.Retrieve(req.Question, topK)

	resp := queryResponse{
		Question: req.Question,
		Sources:  make([]querySource, 0, len(results)),
	}
	for _, sc := range results {
		resp.Sources = append(resp.Sources, querySource{
			PaperID: sc.PaperID(),
			Section: sc.Section,
			Page:    sc.Page,
			Score:   sc.Score,
			Preview: preview(sc.Content, 200),
		})
	}

	if len(results) == 0 {
		resp.Answer = generate.NoResultsAnswer
	} else if s.generator != nil {
		resp.Answer = s.generator.Answer(r.Context(), req.Question, results)
	} else {
		resp.Answer = passageSummary(results)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	loaded := s.retriever.Loaded()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":        "ok",
		"chunks_loaded": loaded,
		"ready":         loaded > 0,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	papers, err := s.store.ListPapers(r.Context())
	if err != nil {
		jsonError(w, "failed to list papers: "+err.Error(), http.StatusInternalServerError)
		return
	}

	stats := map[string]any{
		"papers":        len(papers),
		"chunks_loaded": s.retriever.Loaded(),
		"queue_depth":   s.orchestrator.QueueDepth(),
	}
	if s.llmStats != nil {
		stats["llm"] = s.llmStats.Snapshot()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// passageSummary lists retrieved passages when no model is configured.
func passageSummary(results []paper.ScoredChunk) string {
	var sb strings.Builder
	sb.WriteString("以下為檢索到的相關段落：\n")
	show := results
	if len(show) > 3 {
		show = show[:3]
	}
	for i, sc := range show {
		sb.WriteString("\n")
		sb.WriteString(preview(sc.Content, 300))
		if i < len(show)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// preview truncates on a rune boundary.
func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
