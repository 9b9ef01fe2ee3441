package service

import "math"

// ConfidenceScorer maps the number of retrieved segments to a heuristic
// confidence in [0, 1]. It says how much context backed the answer, not
// whether the answer is correct.
type ConfidenceScorer struct {
	Base   float64
	PerDoc float64
	Cap    float64
}

func DefaultConfidence() ConfidenceScorer {
	return ConfidenceScorer{Base: 0.3, PerDoc: 0.15, Cap: 1.0}
}

// Score returns min(Cap, Base + PerDoc*n) rounded to two decimals, or 0
// when nothing was retrieved.
func (s ConfidenceScorer) Score(n int) float64 {
	if n <= 0 {
		return 0
	}
	v := math.Min(s.Cap, s.Base+s.PerDoc*float64(n))
	v = math.Max(0, math.Min(1, v))
	return math.Round(v*100) / 100
}
