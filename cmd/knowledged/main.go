// Knowledged is a personal knowledge daemon: it indexes a markdown
// vault into an embedded vector store and answers questions over it
// with LLM synthesis.
//
// Configuration is loaded from ~/.config/knowledged/config.yaml and
// overridden by environment variables. See internal/config for details.
//
// Usage:
//
//	# Start the daemon with defaults
//	VAULT_PATH=~/notes knowledged
//
//	# Custom config file
//	knowledged -config /etc/knowledged/config.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowledged/internal/chunker"
	"github.com/fyrsmithlabs/knowledged/internal/config"
	"github.com/fyrsmithlabs/knowledged/internal/document"
	"github.com/fyrsmithlabs/knowledged/internal/embeddings"
	"github.com/fyrsmithlabs/knowledged/internal/generation"
	knowhttp "github.com/fyrsmithlabs/knowledged/internal/http"
	"github.com/fyrsmithlabs/knowledged/internal/index"
	"github.com/fyrsmithlabs/knowledged/internal/logging"
	"github.com/fyrsmithlabs/knowledged/internal/query"
	"github.com/fyrsmithlabs/knowledged/internal/retry"
	"github.com/fyrsmithlabs/knowledged/internal/summarize"
	"github.com/fyrsmithlabs/knowledged/internal/telemetry"
	"github.com/fyrsmithlabs/knowledged/internal/vectorstore"
	"github.com/fyrsmithlabs/knowledged/internal/watch"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  knowledged           Start the knowledged daemon\n")
			fmt.Fprintf(os.Stderr, "  knowledged version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("knowledged\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires all services and blocks until the context is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting knowledged",
		zap.String("version", version),
		zap.String("vault_path", cfg.Vault.Path),
	)

	tel, err := telemetry.New(ctx, cfg.Telemetry, "knowledged", version, logger)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	// An unusable embedding provider means nothing can be indexed or
	// queried, so this is fatal. The hash fallback has to be chosen
	// explicitly in config.
	provider, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:   cfg.Embeddings.Provider,
		Model:      cfg.Embeddings.Model,
		BaseURL:    cfg.Embeddings.BaseURL,
		APIKey:     cfg.Embeddings.APIKey,
		CacheDir:   cfg.Embeddings.CacheDir,
		VectorSize: cfg.Store.VectorSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing embedding provider: %w", err)
	}
	defer func() { _ = provider.Close() }()

	if dim := provider.Dimension(); dim != cfg.Store.VectorSize {
		return fmt.Errorf("embedding model produces %d-dimensional vectors but store.vector_size is %d; rebuild with matching settings", dim, cfg.Store.VectorSize)
	}

	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:       cfg.Store.Path,
		Collection: cfg.Store.Collection,
		VectorSize: cfg.Store.VectorSize,
		Compress:   cfg.Store.Compress,
	}, provider, logger)
	if err != nil {
		return fmt.Errorf("initializing vector store: %w", err)
	}
	defer func() { _ = store.Close() }()

	genClient := generation.NewClient(generation.Config{
		BaseURL:     cfg.Generation.BaseURL,
		Model:       cfg.Generation.Model,
		Temperature: cfg.Generation.Temperature,
		Timeout:     cfg.Generation.Timeout,
		Retry: retry.Policy{
			MaxAttempts: cfg.Generation.MaxAttempts,
			BaseDelay:   cfg.Generation.BaseDelay,
			Multiplier:  2,
		},
	}, logger)

	// The backend may come up later, so a failed probe only warns.
	if err := genClient.Probe(ctx); err != nil {
		logger.Warn("generation backend not reachable at startup",
			zap.String("base_url", cfg.Generation.BaseURL),
			zap.Error(err),
		)
	}

	loader := document.NewLoader(document.LoaderConfig{
		Extensions: cfg.Vault.Extensions,
		Recursive:  true,
	}, logger)

	manager := index.NewManager(cfg.Vault.Path, loader, chunker.NewSentenceChunker(0, 0), store, logger)
	engine := query.NewEngine(store, query.NewSynthesizer(genClient, 0, logger), logger)
	summarizer := summarize.NewService(genClient, nil, logger)

	if cfg.Watcher.Enabled {
		watcher, err := watch.NewWatcher(watch.Config{
			VaultPath:  cfg.Vault.Path,
			Extensions: cfg.Vault.Extensions,
			Debounce:   cfg.Watcher.Debounce,
		}, manager, logger)
		if err != nil {
			return fmt.Errorf("initializing vault watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("starting vault watcher: %w", err)
		}
		defer watcher.Stop()
	}

	server, err := knowhttp.NewServer(knowhttp.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}, manager, engine, summarizer, genClient, logger)
	if err != nil {
		return fmt.Errorf("initializing http server: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	return nil
}
