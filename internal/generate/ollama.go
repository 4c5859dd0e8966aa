package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"

	"github.com/mkuo/paperrag/internal/paper"
)

// NoResultsAnswer is returned when retrieval found nothing to answer from.
const NoResultsAnswer = "抱歉，我找不到相關的資訊來回答您的問題。"

// Client answers questions and tags papers through an Ollama server.
type Client struct {
	client *api.Client
	model  string
	stats  *LLMStats
}

// NewClient builds a client for the given Ollama host and model. An empty
// host falls back to OLLAMA_HOST resolution.
func NewClient(host, model string) (*Client, error) {
	base := envconfig.Host()
	if host != "" {
		u, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("parse ollama host %q: %w", host, err)
		}
		base = u
	}

	return &Client{
		client: api.NewClient(base, http.DefaultClient),
		model:  model,
		stats:  NewLLMStats(time.Hour),
	}, nil
}

// Stats returns the latency tracker for the stats endpoint.
func (c *Client) Stats() *LLMStats {
	return c.stats
}

// Answer generates an answer for query grounded in the retrieved chunks.
// When the model is unreachable it degrades to a raw context summary rather
// than failing the query.
func (c *Client) Answer(ctx context.Context, query string, chunks []paper.ScoredChunk) string {
	if len(chunks) == 0 {
		return NoResultsAnswer
	}

	prompt := buildAnswerPrompt(query, buildAnswerContext(chunks))
	answer, err := c.generate(ctx, prompt, nil)
	if err != nil {
		slog.Warn("answer generation failed, returning context summary", "error", err)
		return fallbackAnswer(chunks, err.Error())
	}
	return answer
}

// generate runs one streaming completion and collects the output. 429 and
// 5xx responses come back as *RetryableError.
func (c *Client) generate(ctx context.Context, prompt string, format json.RawMessage) (string, error) {
	req := &api.GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Format: format,
		Options: map[string]any{
			"temperature": 0.1,
			"num_predict": 1024,
		},
	}

	var sb strings.Builder
	start := time.Now()
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		_, werr := sb.WriteString(resp.Response)
		return werr
	})
	c.stats.Record(time.Since(start).Milliseconds())

	if err != nil {
		var statusErr api.StatusError
		if errors.As(err, &statusErr) {
			if statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500 {
				return "", &RetryableError{StatusCode: statusErr.StatusCode, Message: statusErr.Error()}
			}
			return "", fmt.Errorf("ollama status %d: %w", statusErr.StatusCode, err)
		}
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return sb.String(), nil
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
