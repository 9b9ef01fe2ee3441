package service

import (
	"context"
	"strings"

	"ragqa/internal/domain"
	"ragqa/internal/llm"
)

// ContextState is whether generation has anything to ground an answer in.
type ContextState int

const (
	NeedsContext ContextState = iota
	HasContext
)

func (s ContextState) String() string {
	if s == HasContext {
		return "has_context"
	}
	return "needs_context"
}

func contextState(result domain.RetrievalResult) ContextState {
	if len(result) == 0 {
		return NeedsContext
	}
	return HasContext
}

// Generate answers question from result. An empty result yields the
// fallback answer with zero confidence and never reaches the model. A model
// failure is returned as a *domain.GenerationError.
func Generate(ctx context.Context, question string, result domain.RetrievalResult, client llm.Client, scorer ConfidenceScorer) (domain.Answer, error) {
	switch contextState(result) {
	case NeedsContext:
		return domain.Answer{Text: domain.FallbackAnswer, Confidence: 0}, nil
	default:
		text, err := client.Complete(ctx, BuildPrompt(question, result.Texts()))
		if err != nil {
			return domain.Answer{}, &domain.GenerationError{Err: err}
		}
		return domain.Answer{
			Text:       strings.TrimSpace(text),
			Confidence: scorer.Score(len(result)),
			Context:    result,
		}, nil
	}
}
