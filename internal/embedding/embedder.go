package embedding

import (
	"context"
	"math"
)

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
// The same embedder (name, model and state) must be used to build an index
// and to query it; a mismatch degrades retrieval without any error.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder is implemented by embedders that can embed many texts per call.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// StatefulEmbedder is implemented by embedders whose vectors depend on
// state derived from the corpus. The state is persisted with the index and
// restored before the first query.
type StatefulEmbedder interface {
	State() ([]byte, error)
	Restore(state []byte) error
}

// EmbedAll embeds texts in batches of batchSize when e supports batching,
// one by one otherwise.
func EmbedAll(ctx context.Context, e Embedder, texts []string, batchSize int) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	if be, ok := e.(BatchEmbedder); ok && batchSize > 1 {
		for start := 0; start < len(texts); start += batchSize {
			end := min(start+batchSize, len(texts))
			vecs, err := be.EmbedBatch(ctx, texts[start:end])
			if err != nil {
				return nil, err
			}
			out = append(out, vecs...)
		}
		return out, nil
	}
	for _, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Normalize scales v to unit length in place. Zero vectors are left alone.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1.0 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
