// Package summarize derives summaries, keywords and categories from
// note content via the generation backend.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/knowledged/internal/generation"
	"go.uber.org/zap"
)

// Generator produces text from a prompt. Satisfied by
// *generation.Client.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (string, error)
}

// Content budgets keep prompts inside typical context windows.
const (
	summarizeMaxContent  = 4000
	keywordsMaxContent   = 2000
	categorizeMaxContent = 2000
)

// Sampling temperatures per task: summaries tolerate some variety,
// keyword and category extraction want near-deterministic output.
const (
	summarizeTemperature  = 0.3
	keywordsTemperature   = 0.2
	categorizeTemperature = 0.1
)

// DefaultCategories is the category set offered to the model.
var DefaultCategories = []string{
	"Technology", "Science", "Business", "Health",
	"Education", "Personal", "Project", "Reference", "Other",
}

// Service summarizes, extracts keywords from, and categorizes text.
type Service struct {
	generator  Generator
	categories []string
	logger     *zap.Logger
}

// NewService creates a summarization service. A nil categories slice
// selects DefaultCategories.
func NewService(generator Generator, categories []string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	return &Service{
		generator:  generator,
		categories: categories,
		logger:     logger,
	}
}

// Summarize produces a short summary of the content.
func (s *Service) Summarize(ctx context.Context, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("content cannot be empty")
	}

	prompt := fmt.Sprintf(
		"Summarize the following note in 2-3 sentences. Be factual and concise.\n\n%s",
		truncate(content, summarizeMaxContent),
	)

	summary, err := s.generator.Generate(ctx, generation.Request{
		Prompt:      prompt,
		Temperature: summarizeTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("summarizing content: %w", err)
	}
	return strings.TrimSpace(summary), nil
}

// Keywords extracts up to max keywords from the content. A generation
// failure degrades to an empty list rather than an error, since
// keywords are decoration on top of the note.
func (s *Service) Keywords(ctx context.Context, content string, max int) ([]string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("content cannot be empty")
	}
	if max <= 0 {
		max = 5
	}

	prompt := fmt.Sprintf(
		"Extract up to %d keywords from the following note. Respond with only the keywords, comma-separated, no other text.\n\n%s",
		max, truncate(content, keywordsMaxContent),
	)

	raw, err := s.generator.Generate(ctx, generation.Request{
		Prompt:      prompt,
		Temperature: keywordsTemperature,
	})
	if err != nil {
		s.logger.Warn("keyword extraction failed", zap.Error(err))
		return []string{}, nil
	}

	var keywords []string
	for _, part := range strings.Split(raw, ",") {
		keyword := strings.TrimSpace(part)
		if keyword == "" {
			continue
		}
		keywords = append(keywords, keyword)
		if len(keywords) == max {
			break
		}
	}
	return keywords, nil
}

// Categorize assigns the content to one of the configured categories.
// Any failure, including an answer outside the category set, falls
// back to "Other".
func (s *Service) Categorize(ctx context.Context, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("content cannot be empty")
	}

	prompt := fmt.Sprintf(
		"Classify the following note into exactly one of these categories: %s. Respond with only the category name.\n\n%s",
		strings.Join(s.categories, ", "), truncate(content, categorizeMaxContent),
	)

	raw, err := s.generator.Generate(ctx, generation.Request{
		Prompt:      prompt,
		Temperature: categorizeTemperature,
	})
	if err != nil {
		s.logger.Warn("categorization failed", zap.Error(err))
		return "Other", nil
	}

	answer := strings.TrimSpace(raw)
	for _, category := range s.categories {
		if strings.EqualFold(answer, category) {
			return category, nil
		}
	}

	s.logger.Warn("model returned unknown category", zap.String("answer", truncate(answer, 80)))
	return "Other", nil
}

// truncate caps text at limit bytes, backing up to a rune boundary so
// the cut never produces invalid UTF-8 in a prompt.
func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit]
}
