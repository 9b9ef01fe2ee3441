// Package metrics exposes pipeline outcomes as Prometheus collectors.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ragqa/internal/domain"
	"ragqa/internal/service"
)

// Outcome labels for the questions counter.
const (
	OutcomeAnswered        = "answered"
	OutcomeNotFound        = "not_found"
	OutcomeRetrievalError  = "retrieval_error"
	OutcomeGenerationError = "generation_error"
	OutcomeError           = "error"
)

type Collectors struct {
	Questions  *prometheus.CounterVec
	Latency    prometheus.Histogram
	Segments   prometheus.Histogram
	Confidence prometheus.Histogram
}

// NewCollectors creates the collectors and registers them with reg.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		Questions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragqa",
			Name:      "questions_total",
			Help:      "Questions handled, by outcome.",
		}, []string{"outcome"}),
		Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragqa",
			Name:      "answer_duration_seconds",
			Help:      "Time to answer a question, retrieval and generation included.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		Segments: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragqa",
			Name:      "retrieved_segments",
			Help:      "Segments used as context per answered question.",
			Buckets:   []float64{0, 1, 2, 3, 4, 6, 8},
		}),
		Confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragqa",
			Name:      "answer_confidence",
			Help:      "Heuristic confidence of returned answers.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}
	reg.MustRegister(c.Questions, c.Latency, c.Segments, c.Confidence)
	return c
}

type instrumented struct {
	next service.QuestionAnswerer
	c    *Collectors
}

// Instrument records every call to next.
func Instrument(next service.QuestionAnswerer, c *Collectors) service.QuestionAnswerer {
	return &instrumented{next: next, c: c}
}

func (i *instrumented) AnswerQuestion(ctx context.Context, question string) (domain.Answer, error) {
	start := time.Now()
	ans, err := i.next.AnswerQuestion(ctx, question)
	i.c.Latency.Observe(time.Since(start).Seconds())
	i.c.Questions.WithLabelValues(outcome(ans, err)).Inc()
	if err == nil {
		i.c.Segments.Observe(float64(len(ans.Context)))
		i.c.Confidence.Observe(ans.Confidence)
	}
	return ans, err
}

func outcome(ans domain.Answer, err error) string {
	switch {
	case err == nil && ans.NotFound():
		return OutcomeNotFound
	case err == nil:
		return OutcomeAnswered
	case domain.IsRetrieval(err):
		return OutcomeRetrievalError
	case domain.IsGeneration(err):
		return OutcomeGenerationError
	default:
		return OutcomeError
	}
}
