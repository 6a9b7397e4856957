// Package ai implements the model collaborators against an
// OpenAI-compatible inference server hosting the fine-tuned exam models.
//
// One Client is constructed at process start and shared by all jobs; the
// heavyweight model state lives server-side, so sharing the client is
// what lets concurrent jobs reuse the same loaded instances.
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/ai-exam-grader/internal/config"
	"github.com/fairyhunter13/ai-exam-grader/internal/observability"
)

// Client implements domain.Captioner, domain.Rewriter, domain.Scorer and
// domain.Embedder over the chat-completions and embeddings endpoints.
type Client struct {
	cfg config.Config
	hc  *http.Client
}

// New constructs a Client with the configured inference timeout.
// Outbound calls are traced so inference latency shows up under the
// job span.
func New(cfg config.Config) *Client {
	return &Client{cfg: cfg, hc: &http.Client{
		Timeout:   cfg.InferenceTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}}
}

func (c *Client) getBackoffConfig() *backoff.ExponentialBackOff {
	expo := backoff.NewExponentialBackOff()
	maxElapsedTime, initialInterval, maxInterval, multiplier := c.cfg.GetAIBackoffConfig()
	expo.MaxElapsedTime = maxElapsedTime
	expo.InitialInterval = initialInterval
	expo.MaxInterval = maxInterval
	expo.Multiplier = multiplier
	return expo
}

type contentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// chat posts one chat-completions request with retry and returns the
// first choice's message content.
func (c *Client) chat(ctx context.Context, op, model string, messages []chatMessage, maxTokens int, temperature float64) (string, error) {
	body := map[string]any{
		"model":       model,
		"temperature": temperature,
		"max_tokens":  maxTokens,
		"messages":    messages,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("op=ai.chat: %w", err)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	call := func() error {
		start := time.Now()
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.InferenceBaseURL+"/chat/completions", bytes.NewReader(b))
		if err != nil {
			return backoff.Permanent(err)
		}
		r.Header.Set("Content-Type", "application/json")
		if c.cfg.InferenceAPIKey != "" {
			r.Header.Set("Authorization", "Bearer "+c.cfg.InferenceAPIKey)
		}
		resp, err := c.hc.Do(r)
		observability.AIRequestsTotal.WithLabelValues(op).Inc()
		observability.AIRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			slog.Error("failed to read inference response", slog.String("op", op), slog.Any("error", err))
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			slog.Warn("inference server rate limited", slog.String("op", op), slog.Int("status", resp.StatusCode))
			return fmt.Errorf("rate limited: 429")
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			snippet := string(bodyBytes)
			if len(snippet) > 512 {
				snippet = snippet[:512]
			}
			slog.Warn("inference server 4xx", slog.String("op", op), slog.String("model", model), slog.Int("status", resp.StatusCode), slog.String("body", snippet))
			return backoff.Permanent(fmt.Errorf("chat status %d", resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			slog.Error("inference server non-2xx", slog.String("op", op), slog.String("model", model), slog.Int("status", resp.StatusCode))
			return fmt.Errorf("chat status %d", resp.StatusCode)
		}
		if err := json.Unmarshal(bodyBytes, &out); err != nil {
			slog.Error("inference response decode error", slog.String("op", op), slog.Any("error", err))
			return err
		}
		return nil
	}
	if err := backoff.Retry(call, backoff.WithContext(c.getBackoffConfig(), ctx)); err != nil {
		return "", fmt.Errorf("op=ai.chat model=%s: %w", model, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("op=ai.chat model=%s: empty choices", model)
	}
	return out.Choices[0].Message.Content, nil
}

// Caption sends the image inline with the caption instruction to the
// vision model.
func (c *Client) Caption(ctx context.Context, image []byte, mime, prompt string) (string, error) {
	img := &struct {
		URL string `json:"url"`
	}{URL: "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)}
	msg := chatMessage{
		Role: "user",
		Content: []contentPart{
			{Type: "image_url", ImageURL: img},
			{Type: "text", Text: prompt},
		},
	}
	return c.chat(ctx, "caption", c.cfg.CaptionModel, []chatMessage{msg}, 512, 0.7)
}

// Rewrite asks the vision model to compress a transcription into a pure
// image description. Deterministic decoding: rewrites feed similarity.
func (c *Client) Rewrite(ctx context.Context, prompt string) (string, error) {
	msg := chatMessage{Role: "user", Content: prompt}
	return c.chat(ctx, "rewrite", c.cfg.CaptionModel, []chatMessage{msg}, 512, 0)
}

// Complete generates a short deterministic continuation of a grading
// prompt on the fine-tuned scoring model.
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	msg := chatMessage{Role: "user", Content: prompt}
	return c.chat(ctx, "score", c.cfg.ScoringModel, []chatMessage{msg}, maxTokens, 0)
}

// Embed returns sentence-embedding vectors for the given texts.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	body := map[string]any{"model": c.cfg.EmbeddingsModel, "input": texts}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("op=ai.Embed: %w", err)
	}
	var out struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	call := func() error {
		start := time.Now()
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.InferenceBaseURL+"/embeddings", bytes.NewReader(b))
		if err != nil {
			return backoff.Permanent(err)
		}
		r.Header.Set("Content-Type", "application/json")
		if c.cfg.InferenceAPIKey != "" {
			r.Header.Set("Authorization", "Bearer "+c.cfg.InferenceAPIKey)
		}
		resp, err := c.hc.Do(r)
		observability.AIRequestsTotal.WithLabelValues("embed").Inc()
		observability.AIRequestDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("rate limited: 429")
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(fmt.Errorf("embeddings status %d", resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("embeddings status %d", resp.StatusCode)
		}
		return json.Unmarshal(bodyBytes, &out)
	}
	if err := backoff.Retry(call, backoff.WithContext(c.getBackoffConfig(), ctx)); err != nil {
		return nil, fmt.Errorf("op=ai.Embed model=%s: %w", c.cfg.EmbeddingsModel, err)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("op=ai.Embed: got %d embeddings for %d inputs", len(out.Data), len(texts))
	}
	vecs := make([][]float64, len(out.Data))
	for i, d := range out.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

// Ping probes the inference server; used by the readiness endpoint.
func (c *Client) Ping(ctx context.Context) error {
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.InferenceBaseURL+"/models", nil)
	if err != nil {
		return err
	}
	if c.cfg.InferenceAPIKey != "" {
		r.Header.Set("Authorization", "Bearer "+c.cfg.InferenceAPIKey)
	}
	resp, err := c.hc.Do(r)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("inference server status %d", resp.StatusCode)
	}
	return nil
}
