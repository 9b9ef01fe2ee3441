package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var (
	wordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	// A trailing fragment without terminal punctuation still counts as a sentence.
	sentenceRe = regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`)
)

var stopwords = func() map[string]struct{} {
	m := map[string]struct{}{}
	for _, w := range strings.Fields(`a an the and or but if then else for to of in on at by with as
		is are was were be been being it this that these those from up down over under again
		further than so such into about between through during before after above below out
		off own same too very can will just don should now`) {
		m[w] = struct{}{}
	}
	return m
}()

type FrequencySummarizer struct{}

func NewFrequencySummarizer() *FrequencySummarizer { return &FrequencySummarizer{} }

type rankedSentence struct {
	pos    int
	text   string
	tokens []string
	score  float64
}

// Summarize picks the maxSentences sentences whose content words are most
// frequent across text, scaled down by the square root of sentence length.
// Picked sentences appear in document order.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	var sents []rankedSentence
	for _, raw := range sentenceRe.FindAllString(text, -1) {
		if t := strings.TrimSpace(raw); t != "" {
			sents = append(sents, rankedSentence{pos: len(sents), text: t, tokens: wordRe.FindAllString(strings.ToLower(t), -1)})
		}
	}
	if len(sents) == 0 {
		return strings.TrimSpace(text), nil
	}

	weights := contentWeights(sents)
	for i := range sents {
		for _, tok := range sents[i].tokens {
			sents[i].score += weights[tok]
		}
		if n := len(sents[i].tokens); n > 0 {
			sents[i].score /= math.Sqrt(float64(n))
		}
	}

	sort.SliceStable(sents, func(i, j int) bool { return sents[i].score > sents[j].score })
	picked := sents[:min(maxSentences, len(sents))]
	sort.Slice(picked, func(i, j int) bool { return picked[i].pos < picked[j].pos })

	out := make([]string, len(picked))
	for i, p := range picked {
		out[i] = p.text
	}
	return strings.Join(out, " "), nil
}

// contentWeights maps each non-stopword to its frequency relative to the
// most frequent one.
func contentWeights(sents []rankedSentence) map[string]float64 {
	counts := map[string]float64{}
	top := 0.0
	for _, s := range sents {
		for _, tok := range s.tokens {
			if _, stop := stopwords[tok]; stop {
				continue
			}
			counts[tok]++
			top = math.Max(top, counts[tok])
		}
	}
	for tok, c := range counts {
		counts[tok] = c / top
	}
	return counts
}
