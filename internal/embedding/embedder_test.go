package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls int
}

func (e *countingEmbedder) Name() string           { return "counting" }
func (e *countingEmbedder) Prepare([]string) error { return nil }
func (e *countingEmbedder) Dimension() int         { return 1 }
func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	return []float32{float32(len(text))}, nil
}

type batchingEmbedder struct {
	countingEmbedder
	batches []int
	fail    bool
}

func (e *batchingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if e.fail {
		return nil, errors.New("quota exceeded")
	}
	e.batches = append(e.batches, len(texts))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func TestEmbedAll_Sequential(t *testing.T) {
	e := &countingEmbedder{}
	vecs, err := EmbedAll(context.Background(), e, []string{"a", "bb", "ccc"}, 8)
	require.NoError(t, err)
	assert.Equal(t, 3, e.calls)
	assert.Equal(t, [][]float32{{1}, {2}, {3}}, vecs)
}

func TestEmbedAll_Batches(t *testing.T) {
	e := &batchingEmbedder{}
	vecs, err := EmbedAll(context.Background(), e, []string{"a", "bb", "ccc", "dddd", "eeeee"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, e.batches)
	assert.Len(t, vecs, 5)
	assert.Equal(t, float32(5), vecs[4][0])
}

func TestEmbedAll_PropagatesErrors(t *testing.T) {
	e := &batchingEmbedder{fail: true}
	_, err := EmbedAll(context.Background(), e, []string{"a"}, 4)
	require.Error(t, err)
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0}
	Normalize(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}
