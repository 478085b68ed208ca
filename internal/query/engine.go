// Package query answers natural-language questions over the indexed
// vault: retrieve, then synthesize.
package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/knowledged/internal/vectorstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var queryTracer = otel.Tracer("knowledged.query")

// DefaultTopK is the retrieval depth callers use when the request does
// not specify one.
const DefaultTopK = 5

// previewLength caps the source excerpt surfaced to callers, counted
// in runes so truncation never splits a multibyte character.
const previewLength = 200

// Source points an answer back at an indexed chunk.
type Source struct {
	// FileName is the originating file, "Unknown" when the entry
	// carries no file metadata.
	FileName string `json:"file_name"`

	// Preview is the chunk's leading text, truncated.
	Preview string `json:"preview"`

	// Score is the similarity score, absent when the backend did not
	// report one.
	Score *float32 `json:"score,omitempty"`
}

// Answer is a synthesized response with its supporting sources.
type Answer struct {
	Query   string   `json:"query"`
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Engine retrieves relevant chunks and synthesizes an answer.
type Engine struct {
	store       vectorstore.Store
	synthesizer *Synthesizer
	logger      *zap.Logger
}

// NewEngine creates a query engine over a store and a synthesizer.
func NewEngine(store vectorstore.Store, synthesizer *Synthesizer, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:       store,
		synthesizer: synthesizer,
		logger:      logger,
	}
}

// Query retrieves the topK most similar chunks and synthesizes an
// answer from them.
//
// Empty retrieval is not an error: synthesis runs with no context and
// states that nothing relevant was found. A generation failure
// propagates; there is no partial source-only answer.
func (e *Engine) Query(ctx context.Context, text string, topK int) (*Answer, error) {
	ctx, span := queryTracer.Start(ctx, "Engine.Query")
	defer span.End()
	span.SetAttributes(attribute.Int("top_k", topK))

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", topK)
	}

	results, err := e.store.Search(ctx, text, topK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching index: %w", err)
	}
	sortResults(results)

	chunks := make([]string, len(results))
	sources := make([]Source, len(results))
	for i, r := range results {
		chunks[i] = r.Content
		sources[i] = toSource(r)
	}

	answer, err := e.synthesizer.Synthesize(ctx, text, chunks)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("synthesizing answer: %w", err)
	}

	span.SetAttributes(attribute.Int("sources", len(sources)))
	span.SetStatus(codes.Ok, "success")

	e.logger.Info("query answered",
		zap.Int("top_k", topK),
		zap.Int("sources", len(sources)),
	)

	return &Answer{
		Query:   text,
		Answer:  answer,
		Sources: sources,
	}, nil
}

// sortResults orders hits by similarity descending; equal scores fall
// back to file name, then entry ID, so ordering is deterministic.
func sortResults(results []vectorstore.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		ni, nj := results[i].Metadata["file_name"], results[j].Metadata["file_name"]
		if ni != nj {
			return ni < nj
		}
		return results[i].ID < results[j].ID
	})
}

func toSource(r vectorstore.SearchResult) Source {
	fileName := r.Metadata["file_name"]
	if fileName == "" {
		fileName = "Unknown"
	}

	preview := r.Content
	if runes := []rune(preview); len(runes) > previewLength {
		preview = string(runes[:previewLength]) + "..."
	}

	score := r.Score
	return Source{
		FileName: fileName,
		Preview:  preview,
		Score:    &score,
	}
}
