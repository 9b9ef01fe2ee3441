package qdrant

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
	"ragqa/internal/vectorstore"
)

func TestSegmentPayloadRoundTrip(t *testing.T) {
	seg := domain.Segment{ID: "doc:3:120", Source: "doc.pdf", Page: 3, Offset: 120, Text: "agents plan"}
	got := segmentFromPayload(segmentPayload(seg, 7))
	seg.Position = 7
	assert.Equal(t, seg, got)
}

func TestSegmentFromPayload_MissingFields(t *testing.T) {
	got := segmentFromPayload(map[string]*pb.Value{})
	assert.Equal(t, domain.Segment{}, got)
}

func TestSwapActions(t *testing.T) {
	first := swapActions("docs", "", "docs_v1")
	require.Len(t, first, 1)
	assert.Equal(t, "docs_v1", first[0].GetCreateAlias().GetCollectionName())

	swap := swapActions("docs", "docs_v1", "docs_v2")
	require.Len(t, swap, 2)
	assert.Equal(t, "docs", swap[0].GetDeleteAlias().GetAliasName())
	assert.Equal(t, "docs", swap[1].GetCreateAlias().GetAliasName())
	assert.Equal(t, "docs_v2", swap[1].GetCreateAlias().GetCollectionName())
}

func TestVersionedName(t *testing.T) {
	a := versionedName("docs", time.Date(2026, 3, 1, 10, 0, 0, 1, time.UTC))
	b := versionedName("docs", time.Date(2026, 3, 1, 10, 0, 0, 2, time.UTC))
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "docs_20260301T100000")
}

func TestSortResults(t *testing.T) {
	r := []domain.ScoredSegment{
		{Segment: domain.Segment{Position: 5}, Score: 0.5},
		{Segment: domain.Segment{Position: 2}, Score: 0.9},
		{Segment: domain.Segment{Position: 1}, Score: 0.5},
	}
	sortResults(r)
	assert.Equal(t, 2, r[0].Segment.Position)
	assert.Equal(t, 1, r[1].Segment.Position)
	assert.Equal(t, 5, r[2].Segment.Position)
}

func TestManifestSidecar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qdrant", "manifest.json")
	_, err := readManifest(path)
	require.ErrorIs(t, err, domain.ErrIndexNotFound)

	m := vectorstore.Manifest{Source: "a.pdf", EmbedderName: "tfidf", Dimension: 12, SegmentCount: 3, EmbedderState: []byte("{}")}
	staged, err := stageManifest(path, m)
	require.NoError(t, err)
	assert.Equal(t, filepath.Dir(path), filepath.Dir(staged))
	_, err = readManifest(path)
	require.ErrorIs(t, err, domain.ErrIndexNotFound, "staging does not publish")
	require.NoError(t, os.Rename(staged, path))
	got, err := readManifest(path)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestIndex_SearchRejectsWrongDimension(t *testing.T) {
	x := &Index{manifest: vectorstore.Manifest{Dimension: 4}}
	_, err := x.Search(context.Background(), []float32{1}, 3, nil)
	require.ErrorIs(t, err, domain.ErrDimensionMismatch)
}
