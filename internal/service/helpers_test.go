package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
	"ragqa/internal/embedding"
	"ragqa/internal/embedding/tfidf"
	"ragqa/internal/vectorstore"
	"ragqa/internal/vectorstore/memory"
)

// fakeLLM counts calls and answers with reply, or fails with err.
type fakeLLM struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	reply   func(prompt string) string
	err     error
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if f.reply != nil {
		return f.reply(prompt), nil
	}
	return "  a grounded answer\n", nil
}

func (f *fakeLLM) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// letterEmbedder maps text to its a-z letter histogram.
type letterEmbedder struct {
	failOn string
}

func (letterEmbedder) Name() string           { return "letters" }
func (letterEmbedder) Prepare([]string) error { return nil }
func (letterEmbedder) Dimension() int         { return 26 }

func (e letterEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.failOn != "" && strings.Contains(text, e.failOn) {
		return nil, fmt.Errorf("embedding backend rejected %q", text)
	}
	v := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	return v, nil
}

func segmentsOf(texts ...string) []domain.Segment {
	segs := make([]domain.Segment, len(texts))
	for i, t := range texts {
		segs[i] = domain.Segment{ID: fmt.Sprintf("doc:0:%d", i), Source: "doc.txt", Position: i, Text: t}
	}
	return segs
}

// buildIndex embeds texts with e (preparing it first) into an in-memory index.
func buildIndex(t *testing.T, e embedding.Embedder, texts ...string) *memory.Index {
	t.Helper()
	require.NoError(t, e.Prepare(texts))
	vecs, err := embedding.EmbedAll(context.Background(), e, texts, 1)
	require.NoError(t, err)
	idx, err := memory.NewIndex(vectorstore.Snapshot{
		Manifest: vectorstore.Manifest{EmbedderName: e.Name(), Dimension: len(vecs[0])},
		Segments: segmentsOf(texts...),
		Vectors:  vecs,
	})
	require.NoError(t, err)
	return idx
}

func newTFIDFPipeline(t *testing.T, client *fakeLLM, opts Options, corpus ...string) *Pipeline {
	t.Helper()
	e := tfidf.NewEmbedder()
	idx := buildIndex(t, e, corpus...)
	p, err := NewPipeline(Deps{Embedder: e, Index: idx, LLM: client}, opts)
	require.NoError(t, err)
	return p
}

func ptr(f float64) *float64 { return &f }
