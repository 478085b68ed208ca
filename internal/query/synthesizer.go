package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/knowledged/internal/generation"
	"go.uber.org/zap"
)

// Generator produces text from a prompt. Satisfied by
// *generation.Client.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (string, error)
}

// defaultCharBudget bounds the context text packed into one
// generation call.
const defaultCharBudget = 8000

const answerPromptTemplate = `Context information from a personal knowledge base is below.
---------------------
%s
---------------------
Given the context information and not prior knowledge, answer the question.
If the context contains no relevant information, say so.
Question: %s
Answer:`

const refinePromptTemplate = `The original question is as follows: %s
We have provided an existing answer: %s
We have the opportunity to refine the existing answer with more context below.
---------------------
%s
---------------------
Given the new context, refine the original answer. If the new context is not useful, return the existing answer.
Refined answer:`

// Synthesizer turns retrieved chunks into one answer with as few
// generation calls as possible.
//
// Chunks are packed greedily into a character budget; the first batch
// produces an initial answer and every further batch folds into it
// through a refine prompt carrying the running answer.
type Synthesizer struct {
	generator  Generator
	charBudget int
	logger     *zap.Logger
}

// NewSynthesizer creates a synthesizer. charBudget <= 0 selects the
// default.
func NewSynthesizer(generator Generator, charBudget int, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if charBudget <= 0 {
		charBudget = defaultCharBudget
	}
	return &Synthesizer{
		generator:  generator,
		charBudget: charBudget,
		logger:     logger,
	}
}

// Synthesize answers the question from the given chunks. No chunks
// still yields an answer; the model is told the context is empty.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, chunks []string) (string, error) {
	batches := s.pack(chunks)

	if len(batches) == 0 {
		batches = [][]string{{"(no relevant context found)"}}
	}

	answer, err := s.generator.Generate(ctx, generation.Request{
		Prompt: fmt.Sprintf(answerPromptTemplate, strings.Join(batches[0], "\n\n"), question),
	})
	if err != nil {
		return "", err
	}

	for _, batch := range batches[1:] {
		answer, err = s.generator.Generate(ctx, generation.Request{
			Prompt: fmt.Sprintf(refinePromptTemplate, question, answer, strings.Join(batch, "\n\n")),
		})
		if err != nil {
			return "", err
		}
	}

	if len(batches) > 1 {
		s.logger.Debug("answer refined across batches", zap.Int("batches", len(batches)))
	}

	return strings.TrimSpace(answer), nil
}

// pack groups chunks greedily under the character budget, preserving
// order. A single chunk over budget gets its own batch rather than
// being dropped.
func (s *Synthesizer) pack(chunks []string) [][]string {
	var batches [][]string
	var current []string
	size := 0

	for _, chunk := range chunks {
		if chunk == "" {
			continue
		}
		if size+len(chunk) > s.charBudget && len(current) > 0 {
			batches = append(batches, current)
			current = nil
			size = 0
		}
		current = append(current, chunk)
		size += len(chunk)
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
