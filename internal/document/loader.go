package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// ErrNotFound is returned when the requested path does not exist.
var ErrNotFound = errors.New("path does not exist")

// defaultSkipDirs are directories that are never descended into during
// a vault walk. These hold generated data or version control state.
var defaultSkipDirs = map[string]bool{
	".git":         true,
	".obsidian":    true,
	".trash":       true,
	"node_modules": true,
}

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	// Extensions is the allow-list of file extensions (with dot).
	// Default: [".md"]
	Extensions []string

	// Recursive controls whether directory loads descend into
	// subdirectories.
	Recursive bool

	// MaxFileSize caps individual file size. Default: 10MB.
	MaxFileSize int64
}

// ApplyDefaults sets default values for unset fields.
func (c *LoaderConfig) ApplyDefaults() {
	if len(c.Extensions) == 0 {
		c.Extensions = []string{".md"}
	}
	if c.MaxFileSize == 0 {
		c.MaxFileSize = 10 * 1024 * 1024
	}
}

// Loader reads vault files into Documents.
//
// Hidden paths (any component starting with ".") are excluded, binary
// files (invalid UTF-8) are skipped, and a zero-result load is a valid,
// non-error outcome.
type Loader struct {
	config LoaderConfig
	logger *zap.Logger
}

// NewLoader creates a Loader with the given configuration.
func NewLoader(cfg LoaderConfig, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	return &Loader{config: cfg, logger: logger}
}

// Load produces Documents from a file or directory path.
//
// A directory is walked according to the Recursive flag and the
// extension allow-list; a file path is loaded regardless of extension
// (the caller already decided it belongs in the index).
func (l *Loader) Load(ctx context.Context, path string) ([]Document, error) {
	cleanPath := filepath.Clean(path)

	info, err := os.Stat(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, cleanPath)
		}
		return nil, fmt.Errorf("stat path: %w", err)
	}

	if !info.IsDir() {
		doc, ok, err := l.loadFile(cleanPath, info)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return []Document{doc}, nil
	}

	var docs []Document
	err = filepath.Walk(cleanPath, func(filePath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		name := filepath.Base(filePath)
		if info.IsDir() {
			if filePath == cleanPath {
				return nil
			}
			if !l.config.Recursive {
				return filepath.SkipDir
			}
			if defaultSkipDirs[name] || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}
		if !l.allowedExtension(name) {
			return nil
		}
		if info.Size() > l.config.MaxFileSize {
			l.logger.Warn("skipping oversized file",
				zap.String("path", filePath),
				zap.Int64("size", info.Size()),
			)
			return nil
		}

		doc, ok, err := l.loadFile(filePath, info)
		if err != nil {
			return err
		}
		if ok {
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking vault: %w", err)
	}

	l.logger.Debug("loaded documents",
		zap.String("path", cleanPath),
		zap.Int("count", len(docs)),
	)

	return docs, nil
}

// loadFile reads a single file into a Document. Returns ok=false for
// files skipped without error (binary content).
func (l *Loader) loadFile(path string, info os.FileInfo) (Document, bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Document{}, false, fmt.Errorf("reading file %s: %w", path, err)
	}

	if !utf8.Valid(content) {
		l.logger.Warn("skipping binary file", zap.String("path", path))
		return Document{}, false, nil
	}

	return Document{
		ID:   DeriveID(path),
		Text: string(content),
		Metadata: Metadata{
			FileName:   filepath.Base(path),
			SourcePath: path,
			CreatedAt:  info.ModTime(),
		},
	}, true, nil
}

func (l *Loader) allowedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range l.config.Extensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}
