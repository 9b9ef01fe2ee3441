package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
	"ragqa/internal/vectorstore"
)

func snapshot() vectorstore.Snapshot {
	return vectorstore.Snapshot{
		Manifest: vectorstore.Manifest{EmbedderName: "test", Dimension: 2},
		Segments: []domain.Segment{
			{ID: "a", Text: "east", Position: 0},
			{ID: "b", Text: "north", Position: 1},
			{ID: "c", Text: "north-east", Position: 2},
			{ID: "d", Text: "east again", Position: 3},
		},
		Vectors: [][]float32{{1, 0}, {0, 1}, {1, 1}, {2, 0}},
	}
}

func ptr(f float64) *float64 { return &f }

func TestNewIndex_Validates(t *testing.T) {
	snap := snapshot()
	snap.Vectors = snap.Vectors[:2]
	_, err := NewIndex(snap)
	require.Error(t, err)

	snap = snapshot()
	snap.Vectors[1] = []float32{1, 2, 3}
	_, err = NewIndex(snap)
	require.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestIndex_SearchOrdersBySimilarity(t *testing.T) {
	idx, err := NewIndex(snapshot())
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Manifest().SegmentCount)

	res, err := idx.Search(context.Background(), []float32{1, 0}, 3, nil)
	require.NoError(t, err)
	require.Len(t, res, 3)
	// a and d are both exactly east; ties keep corpus order.
	assert.Equal(t, "a", res[0].Segment.ID)
	assert.Equal(t, "d", res[1].Segment.ID)
	assert.Equal(t, "c", res[2].Segment.ID)
	assert.InDelta(t, 1.0, res[0].Score, 1e-6)
	assert.InDelta(t, 0.7071, res[2].Score, 1e-3)
}

func TestIndex_SearchThreshold(t *testing.T) {
	idx, err := NewIndex(snapshot())
	require.NoError(t, err)

	res, err := idx.Search(context.Background(), []float32{1, 0}, 10, ptr(0.8))
	require.NoError(t, err)
	require.Len(t, res, 2)
	for _, r := range res {
		assert.GreaterOrEqual(t, r.Score, 0.8)
	}

	res, err = idx.Search(context.Background(), []float32{0, 0}, 10, ptr(0.3))
	require.NoError(t, err)
	assert.Empty(t, res, "zero query vector scores zero everywhere")
}

func TestIndex_SearchNoLimit(t *testing.T) {
	idx, err := NewIndex(snapshot())
	require.NoError(t, err)

	res, err := idx.Search(context.Background(), []float32{0, 1}, 0, nil)
	require.NoError(t, err)
	assert.Len(t, res, 4)
}

func TestIndex_SearchDimensionMismatch(t *testing.T) {
	idx, err := NewIndex(snapshot())
	require.NoError(t, err)

	_, err = idx.Search(context.Background(), []float32{1, 0, 0}, 2, nil)
	require.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestIndex_ConcurrentSearch(t *testing.T) {
	idx, err := NewIndex(snapshot())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := idx.Search(context.Background(), []float32{1, 1}, 1, nil)
			assert.NoError(t, err)
			assert.Equal(t, "c", res[0].Segment.ID)
		}()
	}
	wg.Wait()
}
