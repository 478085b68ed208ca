// Package index maintains the vector collection as a projection of the
// vault's files.
package index

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fyrsmithlabs/knowledged/internal/chunker"
	"github.com/fyrsmithlabs/knowledged/internal/document"
	"github.com/fyrsmithlabs/knowledged/internal/vectorstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var indexTracer = otel.Tracer("knowledged.index")

// Chunker splits a document into embeddable chunks.
type Chunker interface {
	Chunk(doc document.Document) []chunker.Chunk
}

// Summary reports what a rebuild did.
type Summary struct {
	// Documents is the number of files indexed.
	Documents int `json:"documents"`

	// Chunks is the number of chunks inserted.
	Chunks int `json:"chunks"`

	// Cleared reports whether the collection was cleared first.
	Cleared bool `json:"cleared"`
}

// Stats describes the collection's current state.
type Stats struct {
	// TotalDocuments is the number of stored chunk entries.
	TotalDocuments int `json:"total_documents"`

	// CollectionName is the backing collection's name.
	CollectionName string `json:"collection_name"`

	// DBPath is the on-disk storage directory.
	DBPath string `json:"db_path"`
}

// Manager owns all writes to the collection.
//
// Reads can run concurrently with anything; writers are serialized by
// the manager's mutex so a rebuild's clear-then-insert sequence is
// never interleaved with another write.
type Manager struct {
	vaultPath string
	loader    *document.Loader
	chunker   Chunker
	store     vectorstore.Store
	logger    *zap.Logger

	mu sync.Mutex
}

// NewManager creates an index manager for one vault and one collection.
func NewManager(vaultPath string, loader *document.Loader, ch Chunker, store vectorstore.Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		vaultPath: vaultPath,
		loader:    loader,
		chunker:   ch,
		store:     store,
		logger:    logger,
	}
}

// Rebuild loads every eligible vault file and inserts its chunks.
//
// With force the collection is cleared first, and clearing completes
// before any insert. Without force new entries are added on top of
// whatever is already stored. A vault with zero eligible documents is
// a success with zero counts.
func (m *Manager) Rebuild(ctx context.Context, force bool) (*Summary, error) {
	ctx, span := indexTracer.Start(ctx, "Manager.Rebuild")
	defer span.End()
	span.SetAttributes(
		attribute.String("vault_path", m.vaultPath),
		attribute.Bool("force", force),
	)

	m.mu.Lock()
	defer m.mu.Unlock()

	if force {
		if err := m.store.Clear(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("clearing collection: %w", err)
		}
	}

	docs, err := m.loader.Load(ctx, m.vaultPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("loading vault: %w", err)
	}

	if len(docs) == 0 {
		m.logger.Warn("vault contains no eligible documents",
			zap.String("vault_path", m.vaultPath),
		)
		span.SetStatus(codes.Ok, "empty vault")
		return &Summary{Cleared: force}, nil
	}

	inserted, err := m.insertDocuments(ctx, docs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	summary := &Summary{
		Documents: len(docs),
		Chunks:    inserted,
		Cleared:   force,
	}

	span.SetAttributes(
		attribute.Int("documents", summary.Documents),
		attribute.Int("chunks", summary.Chunks),
	)
	span.SetStatus(codes.Ok, "success")

	m.logger.Info("rebuild complete",
		zap.Int("documents", summary.Documents),
		zap.Int("chunks", summary.Chunks),
		zap.Bool("cleared", summary.Cleared),
	)

	return summary, nil
}

// IncrementalIndex loads one file and inserts its chunks.
//
// Inserts never replace: re-indexing a file accumulates entries for it
// alongside the old ones. Callers that want a clean slate for a file
// call RemoveFromIndex first or run Rebuild with force.
func (m *Manager) IncrementalIndex(ctx context.Context, filePath string) error {
	ctx, span := indexTracer.Start(ctx, "Manager.IncrementalIndex")
	defer span.End()
	span.SetAttributes(attribute.String("file_path", filePath))

	m.mu.Lock()
	defer m.mu.Unlock()

	docs, err := m.loader.Load(ctx, filePath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("loading file: %w", err)
	}
	if len(docs) == 0 {
		m.logger.Info("nothing to index", zap.String("file_path", filePath))
		span.SetStatus(codes.Ok, "no documents")
		return nil
	}

	inserted, err := m.insertDocuments(ctx, docs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetAttributes(attribute.Int("chunks", inserted))
	span.SetStatus(codes.Ok, "success")

	m.logger.Info("indexed file",
		zap.String("file_path", filePath),
		zap.Int("chunks", inserted),
	)

	return nil
}

// RemoveFromIndex deletes every entry whose file_name metadata equals
// the file's base name. Returns the number removed; zero matches is a
// warning, not an error.
func (m *Manager) RemoveFromIndex(ctx context.Context, filePath string) (int, error) {
	ctx, span := indexTracer.Start(ctx, "Manager.RemoveFromIndex")
	defer span.End()
	span.SetAttributes(attribute.String("file_path", filePath))

	m.mu.Lock()
	defer m.mu.Unlock()

	fileName := filepath.Base(filePath)
	removed, err := m.store.DeleteWhere(ctx, map[string]string{"file_name": fileName})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("removing %s from index: %w", fileName, err)
	}

	if removed == 0 {
		m.logger.Warn("no indexed entries for file", zap.String("file_name", fileName))
	} else {
		m.logger.Info("removed file from index",
			zap.String("file_name", fileName),
			zap.Int("removed", removed),
		)
	}

	span.SetAttributes(attribute.Int("removed", removed))
	span.SetStatus(codes.Ok, "success")

	return removed, nil
}

// Stats reports the collection state. It never fails: an internal
// error is logged and reflected as a zero count so status surfaces
// stay available.
func (m *Manager) Stats(ctx context.Context) Stats {
	stats := Stats{
		CollectionName: m.store.CollectionName(),
		DBPath:         m.store.Path(),
	}

	count, err := m.store.Count(ctx)
	if err != nil {
		m.logger.Warn("failed to count collection", zap.Error(err))
		return stats
	}
	stats.TotalDocuments = count
	return stats
}

// insertDocuments chunks documents and inserts them with store-assigned
// IDs. Caller holds the manager lock.
func (m *Manager) insertDocuments(ctx context.Context, docs []document.Document) (int, error) {
	var storeDocs []vectorstore.Document
	for _, doc := range docs {
		for _, chunk := range m.chunker.Chunk(doc) {
			storeDocs = append(storeDocs, vectorstore.Document{
				// ID left empty: the store assigns a fresh one per insert.
				Content:  chunk.Text,
				Metadata: chunk.Metadata,
			})
		}
	}
	if len(storeDocs) == 0 {
		return 0, nil
	}

	if _, err := m.store.AddDocuments(ctx, storeDocs); err != nil {
		return 0, fmt.Errorf("inserting chunks: %w", err)
	}
	return len(storeDocs), nil
}
