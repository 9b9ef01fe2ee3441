package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"ragqa/internal/domain"
	"ragqa/internal/embedding"
	"ragqa/internal/loader"
	"ragqa/internal/vectorstore"
)

// DocumentLoader reads a source document into pages.
type DocumentLoader interface {
	Load(ctx context.Context, path string) ([]domain.Page, error)
}

type IndexerOptions struct {
	BatchSize        int // embedding batch size for batch-capable embedders
	SummarySentences int // 0 disables the corpus summary
}

// Indexer turns documents into a persisted index.
type Indexer struct {
	loader     DocumentLoader
	chunker    domain.Chunker
	embedder   embedding.Embedder
	builder    vectorstore.Builder
	summarizer domain.Summarizer // optional
	opts       IndexerOptions
	logger     *zap.Logger
	now        func() time.Time
}

func NewIndexer(l DocumentLoader, c domain.Chunker, e embedding.Embedder, b vectorstore.Builder, s domain.Summarizer, opts IndexerOptions, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		loader:     l,
		chunker:    c,
		embedder:   e,
		builder:    b,
		summarizer: s,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// IndexFile indexes a single document, replacing any previous index.
func (ix *Indexer) IndexFile(ctx context.Context, path string) (vectorstore.Manifest, error) {
	return ix.IndexFiles(ctx, []string{path})
}

// IndexFiles indexes every supported document matched by patterns as one corpus.
func (ix *Indexer) IndexFiles(ctx context.Context, patterns []string) (vectorstore.Manifest, error) {
	paths, err := loader.Expand(patterns)
	if err != nil {
		return vectorstore.Manifest{}, domain.NewConfigurationError("index", err)
	}
	if len(paths) == 0 {
		return vectorstore.Manifest{}, domain.NewConfigurationError("index",
			fmt.Errorf("%w: no supported documents in %v", domain.ErrSourceNotFound, patterns))
	}

	labels := sourceLabels(paths)
	var (
		segments []domain.Segment
		sources  []string
	)
	for _, p := range paths {
		pages, err := ix.loader.Load(ctx, p)
		if err != nil {
			if errors.Is(err, domain.ErrSourceNotFound) {
				return vectorstore.Manifest{}, domain.NewConfigurationError("index", err)
			}
			return vectorstore.Manifest{}, fmt.Errorf("load %s: %w", p, err)
		}
		for i := range pages {
			pages[i].Source = labels[p]
		}
		segs, err := ix.chunker.Chunk(pages)
		if err != nil {
			return vectorstore.Manifest{}, fmt.Errorf("chunk %s: %w", p, err)
		}
		ix.logger.Info("document loaded", zap.String("path", p), zap.Int("pages", len(pages)), zap.Int("segments", len(segs)))
		segments = append(segments, segs...)
		sources = append(sources, labels[p])
	}
	return ix.IndexSegments(ctx, strings.Join(sources, ","), segments)
}

// sourceLabels names each document by its base name, or by its slash
// separated path when another document shares that base name.
func sourceLabels(paths []string) map[string]string {
	count := map[string]int{}
	for _, p := range paths {
		count[filepath.Base(p)]++
	}
	labels := make(map[string]string, len(paths))
	for _, p := range paths {
		if base := filepath.Base(p); count[base] == 1 {
			labels[p] = base
		} else {
			labels[p] = filepath.ToSlash(filepath.Clean(p))
		}
	}
	return labels
}

// IndexSegments embeds segments and atomically replaces the index with them.
func (ix *Indexer) IndexSegments(ctx context.Context, source string, segments []domain.Segment) (vectorstore.Manifest, error) {
	if len(segments) == 0 {
		return vectorstore.Manifest{}, errors.New("no segments to index")
	}
	segs := make([]domain.Segment, len(segments))
	texts := make([]string, len(segments))
	for i, s := range segments {
		s.Position = i
		segs[i] = s
		texts[i] = s.Text
	}

	if err := ix.embedder.Prepare(texts); err != nil {
		return vectorstore.Manifest{}, fmt.Errorf("prepare embedder: %w", err)
	}
	vectors, err := embedding.EmbedAll(ctx, ix.embedder, texts, ix.opts.BatchSize)
	if err != nil {
		return vectorstore.Manifest{}, fmt.Errorf("embed segments: %w", err)
	}

	m := vectorstore.Manifest{
		Source:       source,
		EmbedderName: ix.embedder.Name(),
		Dimension:    ix.embedder.Dimension(),
		SegmentCount: len(segs),
		BuiltAt:      ix.now().UTC(),
	}
	if m.Dimension == 0 && len(vectors) > 0 {
		m.Dimension = len(vectors[0])
	}
	if se, ok := ix.embedder.(embedding.StatefulEmbedder); ok {
		if m.EmbedderState, err = se.State(); err != nil {
			return vectorstore.Manifest{}, fmt.Errorf("export embedder state: %w", err)
		}
	}
	if ix.summarizer != nil && ix.opts.SummarySentences > 0 {
		summary, err := ix.summarizer.Summarize(strings.Join(texts, "\n"), ix.opts.SummarySentences)
		if err != nil {
			// The summary is informational only.
			ix.logger.Warn("summary failed", zap.Error(err))
		}
		m.Summary = summary
	}

	if err := ix.builder.Build(ctx, vectorstore.Snapshot{Manifest: m, Segments: segs, Vectors: vectors}); err != nil {
		return vectorstore.Manifest{}, fmt.Errorf("build index: %w", err)
	}
	ix.logger.Info("index built",
		zap.String("source", source),
		zap.String("embedder", m.EmbedderName),
		zap.Int("dimension", m.Dimension),
		zap.Int("segments", m.SegmentCount))
	return m, nil
}
