// Package embeddings provides embedding generation via multiple providers.
package embeddings

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/knowledged/internal/vectorstore"
	"go.uber.org/zap"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates the underlying model failed.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")
)

// Provider is the interface for embedding providers.
type Provider interface {
	vectorstore.Embedder
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is the provider type: "openai", "fastembed" or "hash".
	Provider string
	// Model is the embedding model name.
	Model string
	// BaseURL is the embedding server URL (OpenAI-compatible providers).
	BaseURL string
	// APIKey is the API key, optional for local servers.
	APIKey string
	// CacheDir is the model cache directory (FastEmbed only).
	CacheDir string
	// VectorSize is the embedding dimension the collection expects.
	VectorSize int
}

// NewProvider creates an embedding provider based on the configuration.
//
// The "hash" provider is a deterministic degraded mode for running
// without any embedding model; it logs a warning because its vectors
// carry no semantic signal.
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.VectorSize <= 0 {
		cfg.VectorSize = 384
	}

	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIProvider(OpenAIConfig{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			APIKey:     cfg.APIKey,
			VectorSize: cfg.VectorSize,
		}, logger)
	case "fastembed":
		return NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	case "hash":
		logger.Warn("using hash embedding provider, search quality is degraded",
			zap.Int("vector_size", cfg.VectorSize),
		)
		return NewHashProvider(cfg.VectorSize), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
