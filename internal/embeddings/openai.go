package embeddings

import (
	"context"
	"fmt"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// OpenAIConfig holds configuration for the OpenAI-compatible provider.
// Works against OpenAI itself and against local servers exposing the
// same API (TEI, llama.cpp, vLLM).
type OpenAIConfig struct {
	// BaseURL is the API base URL.
	// Default: http://localhost:8081/v1
	BaseURL string

	// Model is the embedding model to use.
	// Default: sentence-transformers/all-MiniLM-L6-v2
	Model string

	// APIKey is the API key. Local servers accept any value.
	APIKey string

	// VectorSize is the dimension the model produces. Default: 384.
	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *OpenAIConfig) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8081/v1"
	}
	if c.Model == "" {
		c.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if c.APIKey == "" {
		// langchaingo requires a token even for local servers.
		c.APIKey = "placeholder"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

// OpenAIProvider generates embeddings through an OpenAI-compatible API
// using langchaingo.
type OpenAIProvider struct {
	embedder *lcembeddings.EmbedderImpl
	config   OpenAIConfig
	logger   *zap.Logger
}

// NewOpenAIProvider creates a provider for an OpenAI-compatible
// embedding endpoint.
func NewOpenAIProvider(config OpenAIConfig, logger *zap.Logger) (*OpenAIProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()

	llm, err := openai.New(
		openai.WithBaseURL(config.BaseURL),
		openai.WithModel(config.Model),
		openai.WithEmbeddingModel(config.Model),
		openai.WithToken(config.APIKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	embedder, err := lcembeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	logger.Info("openai embedding provider initialized",
		zap.String("base_url", config.BaseURL),
		zap.String("model", config.Model),
	)

	return &OpenAIProvider{
		embedder: embedder,
		config:   config,
		logger:   logger,
	}, nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	vector, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vector, nil
}

// Dimension returns the configured embedding dimension.
func (p *OpenAIProvider) Dimension() int {
	return p.config.VectorSize
}

// Close is a no-op; the provider is a stateless HTTP client.
func (p *OpenAIProvider) Close() error {
	return nil
}

var _ Provider = (*OpenAIProvider)(nil)
