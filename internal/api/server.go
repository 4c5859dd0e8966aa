package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mkuo/paperrag/internal/config"
	"github.com/mkuo/paperrag/internal/generate"
	"github.com/mkuo/paperrag/internal/paper"
	"github.com/mkuo/paperrag/internal/pipeline"
	"github.com/mkuo/paperrag/internal/retrieval"
	"github.com/mkuo/paperrag/internal/store"
)

// Generator produces an answer from a question and retrieved chunks.
type Generator interface {
	Answer(ctx context.Context, query string, chunks []paper.ScoredChunk) string
}

// Server is the HTTP API server.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	retriever    *retrieval.Retriever
	generator    Generator
	llmStats     *generate.LLMStats
	store        store.Store
	log          *slog.Logger
	cfg          config.Config

	// reloadCorpus refreshes the retriever from the store after deletes.
	reloadCorpus func(ctx context.Context) error
}

// NewServer creates and configures the HTTP server. llmStats and generator
// may be nil when no model is configured.
func NewServer(orch *pipeline.Orchestrator, ret *retrieval.Retriever, gen Generator, llmStats *generate.LLMStats, st store.Store, log *slog.Logger, cfg config.Config, reloadCorpus func(ctx context.Context) error) *Server {
	s := &Server{
		orchestrator: orch,
		retriever:    ret,
		generator:    gen,
		llmStats:     llmStats,
		store:        st,
		log:          log,
		cfg:          cfg,
		reloadCorpus: reloadCorpus,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// API endpoints, bearer-authenticated when a key is configured.
	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/query", s.handleQuery)

		r.Post("/api/ingest", s.handleIngest)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)
		r.Post("/api/ingest/batch", s.handleBatchIngest)

		r.Get("/api/documents", s.handleListDocuments)
		r.Delete("/api/documents/{paperID}", s.handleDeleteDocument)

		r.Get("/api/stats", s.handleStats)
	})

	s.router = r
}
