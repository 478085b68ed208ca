// Package vectorstore persists embedded chunks in a named on-disk
// collection and answers similarity searches over them.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when the collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrDimensionMismatch indicates an embedding whose dimension does
	// not match the collection's configured vector size. Mixing
	// embedding models within one collection is a contract violation.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts, one per
	// input, all with the same dimension.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query. Some models
	// optimize differently for queries vs documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Document is a (text, metadata) pair to be embedded and stored.
type Document struct {
	// ID is the unique identifier in the store. Empty means the store
	// assigns a fresh one, so repeated inserts of the same content
	// accumulate rather than overwrite.
	ID string

	// Content is the chunk text.
	Content string

	// Metadata holds filterable attributes; "file_name" is the
	// deletion key used by the index manager.
	Metadata map[string]string
}

// SearchResult is one similarity hit.
type SearchResult struct {
	ID       string
	Content  string
	Score    float32
	Metadata map[string]string
}

// Store is the persistence contract for exactly one collection.
//
// The store itself does not serialize writers; the single-writer
// discipline is enforced by the index manager.
type Store interface {
	// AddDocuments embeds and inserts documents. Returns the stored IDs.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// Search returns up to k hits ordered by similarity, highest first.
	// An empty collection yields an empty result, not an error.
	Search(ctx context.Context, query string, k int) ([]SearchResult, error)

	// DeleteWhere removes every entry whose metadata matches all filter
	// pairs. Returns the number of entries removed.
	DeleteWhere(ctx context.Context, filter map[string]string) (int, error)

	// Clear removes every entry in the collection. If the backend has
	// no bulk delete primitive the collection is dropped and recreated;
	// both paths converge to an empty collection before Clear returns.
	Clear(ctx context.Context) error

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	// CollectionName returns the collection's stable name.
	CollectionName() string

	// Path returns the on-disk storage directory.
	Path() string

	// Close releases store resources.
	Close() error
}
