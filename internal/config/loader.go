package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// Load loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (VAULT_PATH, GENERATION_BASE_URL, ...)
//  2. YAML config file (~/.config/knowledged/config.yaml)
//  3. Hardcoded defaults
//
// Environment variables use underscore separators and are uppercased;
// the transformer maps SECTION_FIELD_NAME to section.field_name:
//
//	VAULT_PATH           -> vault.path
//	SERVER_PORT          -> server.port
//	GENERATION_BASE_URL  -> generation.base_url
//
// configPath selects the YAML file; empty uses the default path. A
// missing file is not an error, only a malformed one.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "knowledged", "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Override with environment variables. Split on the first underscore
	// only: the section never contains one, the field name may.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		lower := strings.ToLower(s)
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg, k)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for missing configuration fields.
// Fields where the zero value is meaningful consult the loaded keys to
// tell "unset" from "explicitly zero".
func applyDefaults(cfg *Config, k *koanf.Koanf) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if len(cfg.Vault.Extensions) == 0 {
		cfg.Vault.Extensions = []string{".md"}
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = "~/.local/share/knowledged/vectorstore"
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = "obsidian_knowledge"
	}
	if cfg.Store.VectorSize == 0 {
		cfg.Store.VectorSize = 384 // all-MiniLM-L6-v2 / bge-small dimensions
	}

	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "openai"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "http://localhost:8081/v1"
	}

	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = "http://localhost:11434"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "Qwen3-Coder-30B"
	}
	// Temperature 0 is a valid deterministic setting; default only when
	// the key was never provided.
	if cfg.Generation.Temperature == 0 && !k.Exists("generation.temperature") {
		cfg.Generation.Temperature = 0.3
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 120 * time.Second
	}
	if cfg.Generation.MaxAttempts == 0 {
		cfg.Generation.MaxAttempts = 3
	}
	if cfg.Generation.BaseDelay == 0 {
		cfg.Generation.BaseDelay = 2 * time.Second
	}

	if cfg.Watcher.Debounce == 0 {
		cfg.Watcher.Debounce = 2 * time.Second
	}
}
