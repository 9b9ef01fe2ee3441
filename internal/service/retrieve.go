package service

import (
	"context"
	"fmt"

	"ragqa/internal/domain"
	"ragqa/internal/embedding"
	"ragqa/internal/vectorstore"
)

// Retrieve embeds question and returns at most k segments ordered by
// decreasing similarity. With a threshold, weaker segments are dropped and
// the result may be empty. Failures are returned as *domain.RetrievalError.
func Retrieve(ctx context.Context, question string, e embedding.Embedder, index vectorstore.Index, k int, threshold *float64) (domain.RetrievalResult, error) {
	vec, err := e.Embed(ctx, question)
	if err != nil {
		return nil, &domain.RetrievalError{Err: fmt.Errorf("embed question: %w", err)}
	}
	hits, err := index.Search(ctx, vec, k, threshold)
	if err != nil {
		return nil, &domain.RetrievalError{Err: fmt.Errorf("search index: %w", err)}
	}

	// Backends differ in how exactly they apply k and the threshold.
	result := make(domain.RetrievalResult, 0, len(hits))
	for _, h := range hits {
		if threshold != nil && h.Score < *threshold {
			continue
		}
		result = append(result, h)
		if k > 0 && len(result) == k {
			break
		}
	}
	return result, nil
}
