// Package watch keeps the index in step with live vault edits.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// skipDirs are directories never watched. Matches the loader's walk
// exclusions.
var skipDirs = map[string]bool{
	".git":         true,
	".obsidian":    true,
	".trash":       true,
	"node_modules": true,
}

// Indexer is the slice of the index manager the watcher drives.
type Indexer interface {
	IncrementalIndex(ctx context.Context, filePath string) error
	RemoveFromIndex(ctx context.Context, filePath string) (int, error)
}

// Config holds configuration for the vault watcher.
type Config struct {
	// VaultPath is the directory to watch.
	VaultPath string

	// Extensions is the allow-list of file extensions (with dot).
	// Default: [".md"]
	Extensions []string

	// Debounce is how long a file must stay quiet before it is
	// re-indexed. Editors write in bursts. Default: 2s.
	Debounce time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if len(c.Extensions) == 0 {
		c.Extensions = []string{".md"}
	}
	if c.Debounce == 0 {
		c.Debounce = 2 * time.Second
	}
}

// Watcher translates filesystem events under the vault into index
// operations. Indexing failures are logged and watching continues; a
// later rebuild reconciles anything missed.
type Watcher struct {
	config  Config
	indexer Indexer
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	stop    chan struct{}

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher creates a vault watcher.
func NewWatcher(config Config, indexer Indexer, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if config.VaultPath == "" {
		return nil, fmt.Errorf("%w: vault path required", ErrWatcherFailed)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	return &Watcher{
		config:  config,
		indexer: indexer,
		watcher: fsWatcher,
		logger:  logger,
		stop:    make(chan struct{}),
		pending: make(map[string]*time.Timer),
	}, nil
}

// Start registers the vault tree and begins processing events in a
// background goroutine. Call Stop to clean up.
func (w *Watcher) Start(ctx context.Context) error {
	err := filepath.Walk(w.config.VaultPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		name := filepath.Base(path)
		if path != w.config.VaultPath && (skipDirs[name] || strings.HasPrefix(name, ".")) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
	if err != nil {
		return fmt.Errorf("registering vault directories: %w", err)
	}

	go w.processEvents(ctx)

	w.logger.Info("vault watcher started",
		zap.String("vault_path", w.config.VaultPath),
		zap.Duration("debounce", w.config.Debounce),
	)
	return nil
}

// Stop stops the watcher and cancels pending re-index timers.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		return
	default:
		close(w.stop)
		_ = w.watcher.Close()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	name := filepath.Base(event.Name)

	// New subdirectories must be registered; fsnotify is not recursive.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !skipDirs[name] && !strings.HasPrefix(name, ".") {
				if err := w.watcher.Add(event.Name); err != nil {
					w.logger.Warn("failed to watch new directory",
						zap.String("path", event.Name),
						zap.Error(err),
					)
				}
			}
			return
		}
	}

	if strings.HasPrefix(name, ".") || !w.allowedExtension(name) {
		return
	}

	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		w.scheduleIndex(ctx, event.Name)
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.cancelPending(event.Name)
		if _, err := w.indexer.RemoveFromIndex(ctx, event.Name); err != nil {
			w.logger.Warn("failed to remove file from index",
				zap.String("path", event.Name),
				zap.Error(err),
			)
		}
	}
}

// scheduleIndex (re)arms the debounce timer for a file. Only the last
// event in a write burst triggers indexing.
func (w *Watcher) scheduleIndex(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.config.Debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := w.indexer.IncrementalIndex(ctx, path); err != nil {
			w.logger.Warn("failed to index changed file",
				zap.String("path", path),
				zap.Error(err),
			)
		}
	})
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[path]; ok {
		timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) allowedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range w.config.Extensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}
