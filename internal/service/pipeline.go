package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"ragqa/internal/domain"
	"ragqa/internal/embedding"
	"ragqa/internal/llm"
	"ragqa/internal/vectorstore"
)

const DefaultTopK = 4

// QuestionAnswerer is the caller-facing contract of the pipeline.
type QuestionAnswerer interface {
	AnswerQuestion(ctx context.Context, question string) (domain.Answer, error)
}

// Deps are the collaborators shared by every question in a process.
type Deps struct {
	Embedder embedding.Embedder
	Index    vectorstore.Index
	LLM      llm.Client
	Logger   *zap.Logger
}

type Options struct {
	TopK           int
	ScoreThreshold *float64 // nil disables filtering
	Confidence     ConfidenceScorer
}

func DefaultOptions() Options {
	threshold := 0.3
	return Options{TopK: DefaultTopK, ScoreThreshold: &threshold, Confidence: DefaultConfidence()}
}

// Pipeline runs retrieval then generation for each question.
type Pipeline struct {
	deps   Deps
	opts   Options
	logger *zap.Logger
}

func NewPipeline(deps Deps, opts Options) (*Pipeline, error) {
	switch {
	case deps.Embedder == nil:
		return nil, domain.NewConfigurationError("pipeline", errors.New("embedder is required"))
	case deps.Index == nil:
		return nil, domain.NewConfigurationError("pipeline", domain.ErrIndexNotFound)
	case deps.LLM == nil:
		return nil, domain.NewConfigurationError("pipeline", errors.New("llm client is required"))
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Confidence == (ConfidenceScorer{}) {
		opts.Confidence = DefaultConfidence()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{deps: deps, opts: opts, logger: logger}, nil
}

// Manifest describes the loaded index.
func (p *Pipeline) Manifest() vectorstore.Manifest { return p.deps.Index.Manifest() }

func (p *Pipeline) AnswerQuestion(ctx context.Context, question string) (domain.Answer, error) {
	start := time.Now()

	result, err := Retrieve(ctx, question, p.deps.Embedder, p.deps.Index, p.opts.TopK, p.opts.ScoreThreshold)
	if err != nil {
		p.logger.Error("retrieval failed", zap.Error(err))
		return domain.Answer{}, err
	}
	p.logger.Debug("retrieved",
		zap.Int("segments", len(result)),
		zap.Stringer("state", contextState(result)),
		zap.Duration("elapsed", time.Since(start)))

	answer, err := Generate(ctx, question, result, p.deps.LLM, p.opts.Confidence)
	if err != nil {
		p.logger.Error("generation failed", zap.String("provider", p.deps.LLM.Name()), zap.Error(err))
		return domain.Answer{}, err
	}
	p.logger.Info("answered",
		zap.Int("segments", len(answer.Context)),
		zap.Float64("confidence", answer.Confidence),
		zap.Bool("not_found", answer.NotFound()),
		zap.Duration("elapsed", time.Since(start)))
	return answer, nil
}

var _ QuestionAnswerer = (*Pipeline)(nil)
