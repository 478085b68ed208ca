// Package generation produces free-form text from an LLM backend
// reachable over HTTP.
//
// The backend's API flavor is not assumed: the client first speaks the
// OpenAI-compatible chat completions protocol, then falls back to the
// Ollama-native chat protocol against the same base URL. Response
// bodies are decoded shape-tolerantly, so llama.cpp, vLLM, Ollama and
// similar servers all work without per-server configuration.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fyrsmithlabs/knowledged/internal/retry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrBackendUnavailable indicates that no protocol leg produced a
	// usable response.
	ErrBackendUnavailable = errors.New("generation backend unavailable")

	// ErrEmptyResponse indicates the backend answered with no usable text.
	ErrEmptyResponse = errors.New("empty response from backend")
)

// Config holds configuration for the generation client.
type Config struct {
	// BaseURL is the backend base URL, no trailing slash needed.
	// Default: http://localhost:11434
	BaseURL string

	// Model is the model name sent with every request.
	// Default: Qwen3-Coder-30B
	Model string

	// Temperature is the default sampling temperature. Zero is valid
	// (deterministic) and is passed through as-is; the daemon's config
	// layer supplies 0.3 when the setting is absent.
	Temperature float64

	// MaxTokens caps the response length. Default: 2048.
	MaxTokens int

	// Timeout bounds a single HTTP request. Default: 120s.
	Timeout time.Duration

	// Retry is the per-leg retry policy.
	Retry retry.Policy

	// RateLimit is requests per second allowed to the backend.
	// Default: 5.
	RateLimit float64

	// Burst is the rate limiter burst size. Default: 10.
	Burst int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Model == "" {
		c.Model = "Qwen3-Coder-30B"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2048
	}
	if c.Timeout == 0 {
		c.Timeout = 120 * time.Second
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = retry.DefaultPolicy()
	}
	if c.RateLimit == 0 {
		c.RateLimit = 5
	}
	if c.Burst == 0 {
		c.Burst = 10
	}
}

// Request is a single generation request.
type Request struct {
	// Prompt is the user prompt.
	Prompt string

	// Temperature overrides the configured default when positive.
	Temperature float64

	// MaxTokens overrides the configured default when positive.
	MaxTokens int
}

// Client generates text against an OpenAI-compatible or Ollama-native
// backend.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient creates a generation client.
func NewClient(config Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.Burst),
		logger:  logger,
	}
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.config.Model
}

// Generate produces text for the request.
//
// The OpenAI-compatible chat completions endpoint is tried first with
// the full retry budget, then the Ollama-native chat endpoint with its
// own budget. Only when both legs exhaust their budgets is an error
// returned, naming both failures.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	temperature := c.config.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}
	maxTokens := c.config.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	var text string
	openAIErr := c.config.Retry.Do(ctx, c.logger, "chat completions request", func(ctx context.Context) error {
		var err error
		text, err = c.doChatCompletions(ctx, req.Prompt, temperature, maxTokens)
		return err
	})
	if openAIErr == nil {
		return text, nil
	}

	c.logger.Warn("chat completions endpoint failed, falling back to native chat",
		zap.String("base_url", c.config.BaseURL),
		zap.Error(openAIErr),
	)

	nativeErr := c.config.Retry.Do(ctx, c.logger, "native chat request", func(ctx context.Context) error {
		var err error
		text, err = c.doNativeChat(ctx, req.Prompt, temperature, maxTokens)
		return err
	})
	if nativeErr == nil {
		return text, nil
	}

	return "", fmt.Errorf("%w: chat completions: %v; native chat: %v",
		ErrBackendUnavailable, openAIErr, nativeErr)
}

// doChatCompletions performs one OpenAI-compatible request.
func (c *Client) doChatCompletions(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	payload := map[string]any{
		"model": c.config.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": temperature,
		"max_tokens":  maxTokens,
	}
	return c.post(ctx, c.config.BaseURL+"/v1/chat/completions", payload)
}

// doNativeChat performs one Ollama-native request. Streaming is
// disabled so the body is a single JSON object.
func (c *Client) doNativeChat(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	payload := map[string]any{
		"model": c.config.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"stream": false,
		"options": map[string]any{
			"temperature": temperature,
			"num_predict": maxTokens,
		},
	}
	return c.post(ctx, c.config.BaseURL+"/api/chat", payload)
}

// post sends one JSON request and decodes the response text.
// Transport failures and 5xx/429 responses are retryable; everything
// else is permanent because a retry cannot change the outcome.
func (c *Client) post(ctx context.Context, url string, payload any) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", retry.Permanent(fmt.Errorf("rate limiter: %w", err))
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("marshaling request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("creating request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("rate limited (429)")
	}
	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("server error (%d): %s", resp.StatusCode, truncateBody(body))
	}
	if resp.StatusCode != http.StatusOK {
		return "", retry.Permanent(fmt.Errorf("API error (%d): %s", resp.StatusCode, truncateBody(body)))
	}

	text, err := extractText(body)
	if err != nil {
		return "", retry.Permanent(err)
	}
	return text, nil
}

func truncateBody(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
