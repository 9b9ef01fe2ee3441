package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
	"ragqa/internal/vectorstore"
)

var letterCorpus = []string{
	"abc abc abc",
	"xyz xyz",
	"aab",
	"the quick brown fox",
	"zzz",
	"cab cab",
	"lorem ipsum dolor",
}

func TestRetrieve_BoundsAndThreshold(t *testing.T) {
	e := letterEmbedder{}
	idx := buildIndex(t, e, letterCorpus...)
	questions := []string{"abc", "zebra", "quick fox", "ipsum", "a"}

	for _, q := range questions {
		for k := 1; k <= len(letterCorpus)+1; k++ {
			for _, th := range []*float64{nil, ptr(0), ptr(0.3), ptr(0.8), ptr(0.99)} {
				res, err := Retrieve(context.Background(), q, e, idx, k, th)
				require.NoError(t, err)
				assert.LessOrEqual(t, len(res), k)
				for i, r := range res {
					if th != nil {
						assert.GreaterOrEqual(t, r.Score, *th)
					}
					if i > 0 {
						assert.GreaterOrEqual(t, res[i-1].Score, r.Score, "ordered by decreasing similarity")
					}
				}
			}
		}
	}
}

func TestRetrieve_IsPure(t *testing.T) {
	e := letterEmbedder{}
	idx := buildIndex(t, e, letterCorpus...)

	first, err := Retrieve(context.Background(), "cab", e, idx, 4, ptr(0.1))
	require.NoError(t, err)
	require.NotEmpty(t, first)
	for i := 0; i < 20; i++ {
		again, err := Retrieve(context.Background(), "cab", e, idx, 4, ptr(0.1))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRetrieve_EmbedFailure(t *testing.T) {
	idx := buildIndex(t, letterEmbedder{}, letterCorpus...)
	_, err := Retrieve(context.Background(), "boom", letterEmbedder{failOn: "boom"}, idx, 4, nil)
	require.Error(t, err)
	assert.True(t, domain.IsRetrieval(err))
}

type brokenIndex struct{ vectorstore.Index }

func (brokenIndex) Search(context.Context, []float32, int, *float64) ([]domain.ScoredSegment, error) {
	return nil, errors.New("connection refused")
}

func TestRetrieve_SearchFailure(t *testing.T) {
	_, err := Retrieve(context.Background(), "q", letterEmbedder{}, brokenIndex{}, 4, nil)
	require.Error(t, err)
	assert.True(t, domain.IsRetrieval(err))
	assert.Contains(t, err.Error(), "connection refused")
}

// looseIndex ignores k and the threshold, as a remote backend might.
type looseIndex struct{ vectorstore.Index }

func (looseIndex) Search(context.Context, []float32, int, *float64) ([]domain.ScoredSegment, error) {
	return []domain.ScoredSegment{{Score: 0.9}, {Score: 0.5}, {Score: 0.2}, {Score: 0.1}}, nil
}

func TestRetrieve_EnforcesBoundsOnBackendResults(t *testing.T) {
	res, err := Retrieve(context.Background(), "q", letterEmbedder{}, looseIndex{}, 3, ptr(0.3))
	require.NoError(t, err)
	assert.Len(t, res, 2)

	res, err = Retrieve(context.Background(), "q", letterEmbedder{}, looseIndex{}, 1, nil)
	require.NoError(t, err)
	assert.Len(t, res, 1)
}
