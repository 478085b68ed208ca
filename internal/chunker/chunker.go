// Package chunker splits documents into embeddable text chunks.
package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/knowledged/internal/document"
)

// Chunk is a sub-span of a document's text sized for embedding. Every
// chunk is traceable to its source file through Metadata["file_name"].
type Chunk struct {
	// ID is "<documentID>#<index>".
	ID string

	// DocumentID references the parent document.
	DocumentID string

	// Text is the chunk body.
	Text string

	// Index is the chunk's position within the document.
	Index int

	// Metadata is the parent document's metadata projected to strings.
	Metadata map[string]string
}

// SentenceChunker splits text into sentence-based chunks with overlap.
// Chunk boundaries are an internal pipeline detail; callers only rely
// on the source-file back-reference.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
	splitter          *regexp.Regexp
}

// NewSentenceChunker creates a chunker producing chunks of
// sentencesPerChunk sentences, each overlapping the previous chunk by
// overlapSentences sentences.
func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 8
	}
	if overlapSentences < 0 || overlapSentences >= sentencesPerChunk {
		overlapSentences = 1
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
		splitter:          regexp.MustCompile(`(?m)(?U)([^.!?\n]+[.!?\n])`),
	}
}

// Chunk splits a document into chunks. An empty document yields nil.
func (c *SentenceChunker) Chunk(doc document.Document) []Chunk {
	sentences := c.splitter.FindAllString(doc.Text, -1)
	if len(sentences) == 0 {
		trimmed := strings.TrimSpace(doc.Text)
		if trimmed == "" {
			return nil
		}
		sentences = []string{trimmed}
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}

	meta := map[string]string{
		"file_name":   doc.Metadata.FileName,
		"source_path": doc.Metadata.SourcePath,
		"created_at":  doc.Metadata.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		"document_id": doc.ID,
	}

	var chunks []Chunk
	i := 0
	idx := 0
	for i < len(sentences) {
		end := i + c.sentencesPerChunk
		if end > len(sentences) {
			end = len(sentences)
		}
		text := strings.TrimSpace(strings.Join(sentences[i:end], " "))
		if text != "" {
			chunks = append(chunks, Chunk{
				ID:         fmt.Sprintf("%s#%d", doc.ID, idx),
				DocumentID: doc.ID,
				Text:       text,
				Index:      idx,
				Metadata:   meta,
			})
			idx++
		}
		if end == len(sentences) {
			break
		}
		i = end - c.overlapSentences
	}
	return chunks
}
