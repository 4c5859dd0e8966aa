package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkuo/paperrag/internal/api"
	"github.com/mkuo/paperrag/internal/config"
	"github.com/mkuo/paperrag/internal/generate"
	"github.com/mkuo/paperrag/internal/pipeline"
	"github.com/mkuo/paperrag/internal/retrieval"
	"github.com/mkuo/paperrag/internal/store"
	"github.com/mkuo/paperrag/internal/structure"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Chunk storage: Postgres when configured, JSON file otherwise.
	var st store.Store
	var err error
	if cfg.DatabaseURL != "" {
		st, err = store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres store init failed", "error", err)
			os.Exit(1)
		}
		log.Info("using postgres chunk store")
	} else {
		st, err = store.NewJSONStore(cfg.ChunksPath)
		if err != nil {
			log.Error("json store init failed", "path", cfg.ChunksPath, "error", err)
			os.Exit(1)
		}
		log.Info("using json chunk store", "path", cfg.ChunksPath)
	}

	// Load the existing corpus into the retriever.
	retriever := retrieval.New(retrieval.Config{})
	reloadCorpus := func(ctx context.Context) error {
		chunks, err := st.LoadAll(ctx)
		if err != nil {
			return err
		}
		retriever.Load(chunks)
		return nil
	}
	if err := reloadCorpus(ctx); err != nil {
		log.Error("corpus load failed", "error", err)
		os.Exit(1)
	}
	log.Info("corpus loaded", "chunks", retriever.Loaded())

	llm, err := generate.NewClient(cfg.OllamaHost, cfg.OllamaModel)
	if err != nil {
		log.Error("ollama client init failed", "error", err)
		os.Exit(1)
	}

	extractor := structure.NewExtractor(structure.Config{
		HeadingFontThreshold: cfg.HeadingFontThreshold,
	})

	onStored := func(ctx context.Context) {
		if err := reloadCorpus(ctx); err != nil {
			log.Error("corpus reload failed", "error", err)
		}
	}
	orch := pipeline.NewOrchestrator(cfg, extractor, llm, st, log, onStored)
	orch.Start(ctx)

	srv := api.NewServer(orch, retriever, llm, llm.Stats(), st, log, cfg, reloadCorpus)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		st.Close()
	}()

	log.Info("starting paperrag", "port", cfg.Port, "model", cfg.OllamaModel)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
