package analysis

import (
	"context"
	"strings"

	"github.com/spherical/doc-assistant/internal/domain"
	"github.com/spherical/doc-assistant/internal/llm"
	"github.com/spherical/doc-assistant/internal/pdf"
)

// DefaultContextChars bounds the document context given to a question.
const DefaultContextChars = 3000

// Answerer answers follow-up questions grounded in the extracted document text.
type Answerer struct {
	generator    domain.Generator
	contextChars int
	logger       *domain.Logger
}

// NewAnswerer creates an answerer using the first contextChars characters of
// the document as context.
func NewAnswerer(generator domain.Generator, contextChars int, logger *domain.Logger) *Answerer {
	if contextChars <= 0 {
		contextChars = DefaultContextChars
	}
	if logger == nil {
		logger = domain.DefaultLogger
	}
	return &Answerer{
		generator:    generator,
		contextChars: contextChars,
		logger:       logger.WithOperation("qa"),
	}
}

// Answer issues a single non-streaming completion for question.
func (a *Answerer) Answer(ctx context.Context, documentText, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", domain.ValidationError("question is empty", nil)
	}

	req := domain.GenerateRequest{
		Instruction: llm.QuestionInstruction(pdf.Truncate(documentText, a.contextChars), question),
	}

	answer, err := a.generator.Generate(ctx, req, nil)
	if err != nil {
		a.logger.Error().Err(err).Msg("Question answering failed")
		return "", err
	}

	a.logger.Info().Int("question_chars", len(question)).Int("answer_chars", len(answer)).Msg("Question answered")
	return answer, nil
}
