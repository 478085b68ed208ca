// Package document loads normalized documents from the vault filesystem.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"time"
)

// Metadata carries the document attributes persisted alongside every
// chunk derived from it.
type Metadata struct {
	// FileName is the base name of the source file. Deletion from the
	// index is keyed on this field.
	FileName string

	// SourcePath is the cleaned path the document was loaded from.
	SourcePath string

	// CreatedAt is the source file's modification time at load.
	CreatedAt time.Time
}

// Document is a normalized text record produced by the Loader.
//
// Documents are immutable once embedded: an update is expressed by
// re-insertion, never by in-place mutation.
type Document struct {
	// ID is derived from the source path and stable across loads.
	ID string

	// Text is the full document body.
	Text string

	Metadata Metadata
}

// DeriveID returns the stable document ID for a source path.
func DeriveID(path string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(path)))
	return hex.EncodeToString(sum[:])
}
