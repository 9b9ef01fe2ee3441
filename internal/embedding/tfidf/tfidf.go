// Package tfidf is a local, deterministic embedder. Vectors are smoothed
// TF-IDF weights over the corpus vocabulary, L2-normalised.
package tfidf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

var (
	ErrNotPrepared = errors.New("tfidf embedder not prepared")

	wordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

	// Question words are dropped too, so "what is X" embeds like "X".
	stopwords = func() map[string]struct{} {
		m := map[string]struct{}{}
		for _, w := range strings.Fields(`a an the and or but if then else for to of in on at by with as
			is are was were be been being it this that these those from up down over under again
			further than so such into about between through during before after above below out
			off own same too very can will just don should now
			what which who whom how why when where do does did`) {
			m[w] = struct{}{}
		}
		return m
	}()
)

// Embedder holds a vocabulary in sorted term order. The vocabulary is part
// of the embedding function, so it travels with the index via State.
type Embedder struct {
	terms []string
	idf   []float64
	index map[string]int
}

func NewEmbedder() *Embedder { return &Embedder{} }

func (e *Embedder) Name() string { return "tfidf" }

func (e *Embedder) Dimension() int { return len(e.terms) }

// Prepare fits the vocabulary and IDF table to corpus.
func (e *Embedder) Prepare(corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("tfidf: empty corpus")
	}
	df := documentFrequencies(corpus)
	if len(df) == 0 {
		return errors.New("tfidf: corpus has no indexable words")
	}
	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	n := float64(len(corpus))
	idf := make([]float64, len(terms))
	for i, t := range terms {
		idf[i] = 1 + math.Log((1+n)/(1+float64(df[t])))
	}
	e.set(terms, idf)
	return nil
}

func documentFrequencies(corpus []string) map[string]int {
	df := map[string]int{}
	for _, doc := range corpus {
		seen := map[string]bool{}
		for _, w := range tokenize(doc) {
			if !seen[w] {
				seen[w] = true
				df[w]++
			}
		}
	}
	return df
}

// Embed returns the unit TF-IDF vector of text. Text sharing no word with
// the vocabulary maps to the zero vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.index == nil {
		return nil, ErrNotPrepared
	}
	counts := map[int]int{}
	total := 0
	for _, w := range tokenize(text) {
		if i, ok := e.index[w]; ok {
			counts[i]++
			total++
		}
	}
	vec := make([]float32, len(e.terms))
	if total == 0 {
		return vec, nil
	}

	// Sum in index order so equal text gives bit-identical vectors.
	dims := make([]int, 0, len(counts))
	for i := range counts {
		dims = append(dims, i)
	}
	sort.Ints(dims)
	w := make([]float64, len(dims))
	var sq float64
	for j, i := range dims {
		w[j] = float64(counts[i]) / float64(total) * e.idf[i]
		sq += w[j] * w[j]
	}
	l2 := math.Sqrt(sq)
	for j, i := range dims {
		vec[i] = float32(w[j] / l2)
	}
	return vec, nil
}

type state struct {
	Terms []string  `json:"terms"`
	IDF   []float64 `json:"idf"`
}

func (e *Embedder) State() ([]byte, error) {
	if e.index == nil {
		return nil, ErrNotPrepared
	}
	return json.Marshal(state{Terms: e.terms, IDF: e.idf})
}

// Restore replaces the vocabulary with one exported by State.
func (e *Embedder) Restore(data []byte) error {
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("decode tfidf state: %w", err)
	}
	if len(st.Terms) == 0 || len(st.Terms) != len(st.IDF) {
		return fmt.Errorf("invalid tfidf state: %d terms, %d idf values", len(st.Terms), len(st.IDF))
	}
	e.set(st.Terms, st.IDF)
	return nil
}

func (e *Embedder) set(terms []string, idf []float64) {
	e.terms, e.idf = terms, idf
	e.index = make(map[string]int, len(terms))
	for i, t := range terms {
		e.index[t] = i
	}
}

func tokenize(text string) []string {
	var out []string
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if _, stop := stopwords[w]; !stop {
			out = append(out, w)
		}
	}
	return out
}
