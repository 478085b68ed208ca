// Package config provides configuration loading for knowledged.
package config

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/knowledged/internal/logging"
	"github.com/fyrsmithlabs/knowledged/internal/telemetry"
)

// Config is the root configuration for the knowledged daemon.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    logging.Config   `koanf:"logging"`
	Vault      VaultConfig      `koanf:"vault"`
	Store      StoreConfig      `koanf:"store"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Generation GenerationConfig `koanf:"generation"`
	Watcher    WatcherConfig    `koanf:"watcher"`
	Telemetry  telemetry.Config `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// VaultConfig describes the markdown vault that backs the index.
type VaultConfig struct {
	// Path is the vault root directory. Required.
	Path string `koanf:"path"`

	// Extensions is the file extension allow-list for indexing.
	Extensions []string `koanf:"extensions"`
}

// StoreConfig holds vector store configuration.
type StoreConfig struct {
	// Path is the directory for persistent collection storage.
	Path string `koanf:"path"`

	// Collection is the collection name backing the retrievable corpus.
	Collection string `koanf:"collection"`

	// VectorSize is the expected embedding dimension. Must match the
	// embedding provider's output dimension.
	VectorSize int `koanf:"vector_size"`

	// Compress enables gzip compression for stored data.
	Compress bool `koanf:"compress"`
}

// EmbeddingsConfig selects and configures the embedding provider.
// The selection is fixed for the process lifetime; switching providers
// on an existing collection requires a forced rebuild.
type EmbeddingsConfig struct {
	// Provider is one of "openai" (OpenAI-compatible HTTP endpoint, the
	// default), "fastembed" (local ONNX models, cgo builds only) or
	// "hash" (deterministic degraded-mode fallback, must be chosen
	// explicitly).
	Provider string `koanf:"provider"`

	// Model is the embedding model name.
	Model string `koanf:"model"`

	// BaseURL is the embedding API base URL (openai provider only).
	BaseURL string `koanf:"base_url"`

	// APIKey is the API key for the embedding API, optional for local
	// OpenAI-compatible servers.
	APIKey string `koanf:"api_key"`

	// CacheDir is the model cache directory (fastembed provider only).
	CacheDir string `koanf:"cache_dir"`
}

// GenerationConfig configures the generation backend.
type GenerationConfig struct {
	// BaseURL is the LLM server base URL (Ollama or llama.cpp style).
	BaseURL string `koanf:"base_url"`

	// Model is the generation model name.
	Model string `koanf:"model"`

	// Temperature is the sampling temperature.
	Temperature float64 `koanf:"temperature"`

	// Timeout bounds a single generation HTTP call.
	Timeout time.Duration `koanf:"timeout"`

	// MaxAttempts is the retry ceiling per endpoint leg.
	MaxAttempts int `koanf:"max_attempts"`

	// BaseDelay is the initial retry backoff delay, doubled per attempt.
	BaseDelay time.Duration `koanf:"base_delay"`
}

// WatcherConfig configures the vault filesystem watcher.
type WatcherConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Debounce time.Duration `koanf:"debounce"`
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Vault.Path == "" {
		return fmt.Errorf("vault.path is required (set VAULT_PATH or vault.path in the config file)")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in range 1-65535, got %d", c.Server.Port)
	}
	if c.Store.VectorSize <= 0 {
		return fmt.Errorf("store.vector_size must be positive, got %d", c.Store.VectorSize)
	}
	if c.Generation.MaxAttempts <= 0 {
		return fmt.Errorf("generation.max_attempts must be positive, got %d", c.Generation.MaxAttempts)
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return fmt.Errorf("generation.temperature must be in range [0, 2], got %v", c.Generation.Temperature)
	}
	return nil
}
