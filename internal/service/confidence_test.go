package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfidenceScorer_Defaults(t *testing.T) {
	s := DefaultConfidence()
	tests := []struct {
		n    int
		want float64
	}{
		{-1, 0},
		{0, 0},
		{1, 0.45},
		{2, 0.6},
		{3, 0.75},
		{4, 0.9},
		{5, 1.0},
		{40, 1.0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.Score(tt.n), "n=%d", tt.n)
	}
}

func TestConfidenceScorer_MonotonicAndBounded(t *testing.T) {
	scorers := []ConfidenceScorer{
		DefaultConfidence(),
		{Base: 0.1, PerDoc: 0.05, Cap: 0.8},
		{Base: 0.9, PerDoc: 0.5, Cap: 2}, // cap above 1 still clamps
	}
	for _, s := range scorers {
		prev := 0.0
		for n := 0; n <= 100; n++ {
			got := s.Score(n)
			assert.GreaterOrEqual(t, got, prev, "scorer %+v n=%d", s, n)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
			prev = got
		}
	}
}

func TestConfidenceScorer_Rounds(t *testing.T) {
	s := ConfidenceScorer{Base: 0.333, PerDoc: 0.111, Cap: 1}
	assert.Equal(t, 0.44, s.Score(1))
}
