package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth. Empty disables bearer auth (local use).
	APIKey string

	// Chunk storage. DatabaseURL selects Postgres; otherwise chunks live
	// in a JSON file at ChunksPath.
	DatabaseURL string
	ChunksPath  string

	// Ollama
	OllamaHost  string
	OllamaModel string

	// Chunking defaults
	ChunkSize    int
	ChunkOverlap int
	MinChunkSize int

	// Retrieval
	TopK int

	// Structure extraction
	HeadingFontThreshold float64

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8000"),

		APIKey: os.Getenv("PAPERRAG_API_KEY"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		ChunksPath:  envOr("CHUNKS_PATH", "data/processed/all_chunks.json"),

		OllamaHost:  os.Getenv("OLLAMA_HOST"),
		OllamaModel: envOr("OLLAMA_MODEL", "llama2:7b"),

		ChunkSize:    envInt("CHUNK_SIZE", 1000),
		ChunkOverlap: envInt("CHUNK_OVERLAP", 200),
		MinChunkSize: envInt("CHUNK_MIN_SIZE", 100),

		TopK: envInt("RAG_TOP_K", 10),

		HeadingFontThreshold: envFloat("HEADING_FONT_THRESHOLD", 12.0),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),
	}

	// Non-positive values from the environment fall back to defaults.
	clampPos(&cfg.TopK, 10)
	clampPos(&cfg.HeadingFontThreshold, 12.0)
	clampPos(&cfg.WorkerCount, 4)
	clampPos(&cfg.MaxQueueSize, 100)
	clampPos(&cfg.MaxUploadBytes, 52428800)
	clampPos(&cfg.JobTTL, 1*time.Hour)

	return cfg
}

func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("CHUNK_OVERLAP must not be negative, got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.MinChunkSize < 0 {
		return fmt.Errorf("CHUNK_MIN_SIZE must not be negative, got %d", c.MinChunkSize)
	}
	if c.DatabaseURL == "" && c.ChunksPath == "" {
		return fmt.Errorf("either DATABASE_URL or CHUNKS_PATH is required")
	}
	return nil
}

func clampPos[T int | int64 | float64 | time.Duration](v *T, def T) {
	if *v <= 0 {
		*v = def
	}
}

// env reads key and parses it with parse, falling back on unset or
// unparseable values.
func env[T any](key string, fallback T, parse func(string) (T, error)) T {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := parse(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOr(key, fallback string) string {
	return env(key, fallback, func(v string) (string, error) { return v, nil })
}

func envInt(key string, fallback int) int {
	return env(key, fallback, strconv.Atoi)
}

func envInt64(key string, fallback int64) int64 {
	return env(key, fallback, func(v string) (int64, error) {
		return strconv.ParseInt(v, 10, 64)
	})
}

func envFloat(key string, fallback float64) float64 {
	return env(key, fallback, func(v string) (float64, error) {
		return strconv.ParseFloat(v, 64)
	})
}

func envDuration(key string, fallback time.Duration) time.Duration {
	return env(key, fallback, time.ParseDuration)
}
