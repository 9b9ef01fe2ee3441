package memory

import (
	"context"
	"fmt"
	"sort"

	"ragqa/internal/domain"
	"ragqa/internal/embedding"
	"ragqa/internal/vectorstore"
)

// Index is an in-process exact nearest-neighbour index using brute-force
// cosine similarity. It is immutable after construction, so concurrent
// searches need no locking.
type Index struct {
	manifest vectorstore.Manifest
	segments []domain.Segment
	vectors  [][]float32
}

// NewIndex builds an index from a snapshot. Vectors are copied and
// normalised, so scores are cosine similarities regardless of the input scale.
func NewIndex(snap vectorstore.Snapshot) (*Index, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(snap.Vectors))
	for i, v := range snap.Vectors {
		c := make([]float32, len(v))
		copy(c, v)
		embedding.Normalize(c)
		vectors[i] = c
	}
	m := snap.Manifest
	m.SegmentCount = len(snap.Segments)
	return &Index{manifest: m, segments: snap.Segments, vectors: vectors}, nil
}

func (x *Index) Manifest() vectorstore.Manifest { return x.manifest }

func (x *Index) Search(_ context.Context, vector []float32, k int, threshold *float64) ([]domain.ScoredSegment, error) {
	if len(vector) != x.manifest.Dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", domain.ErrDimensionMismatch, len(vector), x.manifest.Dimension)
	}
	q := make([]float32, len(vector))
	copy(q, vector)
	embedding.Normalize(q)

	type hit struct {
		idx   int
		score float64
	}
	hits := make([]hit, 0, len(x.vectors))
	for i := range x.vectors {
		score := dot(x.vectors[i], q)
		if threshold != nil && score < *threshold {
			continue
		}
		hits = append(hits, hit{i, score})
	}
	// Ties keep corpus order, which makes results reproducible.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if k > 0 && k < len(hits) {
		hits = hits[:k]
	}
	results := make([]domain.ScoredSegment, len(hits))
	for i, h := range hits {
		results[i] = domain.ScoredSegment{Segment: x.segments[h.idx], Score: h.score}
	}
	return results, nil
}

func (x *Index) Close() error { return nil }

func dot(a, b []float32) float64 {
	sum := 0.0
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

var _ vectorstore.Index = (*Index)(nil)
