package chunker_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fyrsmithlabs/knowledged/internal/chunker"
	"github.com/fyrsmithlabs/knowledged/internal/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDoc(text string) document.Document {
	return document.Document{
		ID:   "doc1",
		Text: text,
		Metadata: document.Metadata{
			FileName:   "a.md",
			SourcePath: "/vault/a.md",
			CreatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		},
	}
}

func TestSentenceChunker_EmptyDocument(t *testing.T) {
	c := chunker.NewSentenceChunker(0, 0)
	assert.Nil(t, c.Chunk(testDoc("")))
	assert.Nil(t, c.Chunk(testDoc("   \n  ")))
}

func TestSentenceChunker_SingleChunk(t *testing.T) {
	c := chunker.NewSentenceChunker(8, 1)
	chunks := c.Chunk(testDoc("The sky is blue. Water is wet."))

	require.Len(t, chunks, 1)
	assert.Equal(t, "doc1#0", chunks[0].ID)
	assert.Equal(t, "doc1", chunks[0].DocumentID)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Contains(t, chunks[0].Text, "The sky is blue.")
	assert.Contains(t, chunks[0].Text, "Water is wet.")
}

func TestSentenceChunker_Metadata(t *testing.T) {
	c := chunker.NewSentenceChunker(0, 0)
	chunks := c.Chunk(testDoc("The sky is blue."))

	require.Len(t, chunks, 1)
	meta := chunks[0].Metadata
	assert.Equal(t, "a.md", meta["file_name"])
	assert.Equal(t, "/vault/a.md", meta["source_path"])
	assert.Equal(t, "doc1", meta["document_id"])
	assert.Equal(t, "2026-01-02T03:04:05Z", meta["created_at"])
}

func TestSentenceChunker_SplitsWithOverlap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&sb, "Sentence number %d. ", i)
	}

	c := chunker.NewSentenceChunker(4, 1)
	chunks := c.Chunk(testDoc(sb.String()))

	require.Greater(t, len(chunks), 1)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, fmt.Sprintf("doc1#%d", i), chunk.ID)
	}

	// The last sentence of one chunk opens the next.
	assert.Contains(t, chunks[0].Text, "Sentence number 3.")
	assert.Contains(t, chunks[1].Text, "Sentence number 3.")
}

func TestSentenceChunker_UnpunctuatedText(t *testing.T) {
	c := chunker.NewSentenceChunker(0, 0)
	chunks := c.Chunk(testDoc("no terminal punctuation at all"))

	require.Len(t, chunks, 1)
	assert.Equal(t, "no terminal punctuation at all", chunks[0].Text)
}

func TestNewSentenceChunker_Defaults(t *testing.T) {
	// Nonsense parameters fall back to safe defaults instead of panicking.
	c := chunker.NewSentenceChunker(-1, 99)
	chunks := c.Chunk(testDoc("One. Two. Three."))
	require.NotEmpty(t, chunks)
}
