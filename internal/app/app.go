// Package app assembles pipeline components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"ragqa/internal/chunker"
	"ragqa/internal/config"
	"ragqa/internal/domain"
	"ragqa/internal/embedding"
	embopenai "ragqa/internal/embedding/openai"
	"ragqa/internal/embedding/tfidf"
	"ragqa/internal/llm"
	llmopenai "ragqa/internal/llm/openai"
	"ragqa/internal/loader"
	"ragqa/internal/service"
	"ragqa/internal/summarizer"
	"ragqa/internal/vectorstore"
	"ragqa/internal/vectorstore/file"
	"ragqa/internal/vectorstore/qdrant"
	"ragqa/internal/vectorstore/sqlite"
)

func BuildEmbedder(cfg *config.AppConfig) (embedding.Embedder, error) {
	switch cfg.Embedder.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(), nil
	case "openai":
		o := cfg.Embedder.OpenAI
		return embopenai.NewClient(embopenai.Config{
			BaseURL:   o.BaseURL,
			APIKeyEnv: o.APIKeyEnv,
			Model:     o.Model,
			Timeout:   secs(o.TimeoutSecs),
		})
	default:
		return nil, domain.NewConfigurationError("embedder", fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type))
	}
}

func BuildChunker(cfg *config.AppConfig) (domain.Chunker, error) {
	c := cfg.Chunker
	switch c.Type {
	case "character", "":
		return chunker.NewCharacterChunker(c.ChunkSize, c.ChunkOverlap), nil
	case "sentence":
		return chunker.NewSentenceChunker(c.SentencesPerChunk, c.OverlapSentences), nil
	default:
		return nil, domain.NewConfigurationError("chunker", fmt.Errorf("unknown chunker: %s", c.Type))
	}
}

func BuildStore(cfg *config.AppConfig) (vectorstore.Store, error) {
	vs := cfg.VectorStore
	switch vs.Type {
	case "file", "":
		return file.NewStore(vs.Path), nil
	case "sqlite":
		return sqlite.NewStore(vs.Path), nil
	case "qdrant":
		q := vs.Qdrant
		return qdrant.NewStore(qdrant.Config{
			Host:         q.Host,
			Port:         q.Port,
			APIKey:       q.APIKey,
			Collection:   q.Collection,
			ManifestPath: q.ManifestPath,
			Timeout:      secs(q.TimeoutSecs),
		}), nil
	default:
		return nil, domain.NewConfigurationError("vector store", fmt.Errorf("unknown vector store: %s", vs.Type))
	}
}

// BuildSummarizer returns nil when summaries are disabled.
func BuildSummarizer(cfg *config.AppConfig) (domain.Summarizer, error) {
	switch cfg.Summarizer.Type {
	case "frequency", "":
		return summarizer.NewFrequencySummarizer(), nil
	case "none":
		return nil, nil
	default:
		return nil, domain.NewConfigurationError("summarizer", fmt.Errorf("unknown summarizer: %s", cfg.Summarizer.Type))
	}
}

// BuildLLM creates the chat client for the configured provider, wrapped
// with retries and, when requests_per_minute is set, rate limiting.
func BuildLLM(cfg *config.AppConfig, logger *zap.Logger) (llm.Client, error) {
	l := cfg.LLM
	preset, err := llm.ResolvePreset(l.Provider, llm.Preset{BaseURL: l.BaseURL, APIKeyEnv: l.APIKeyEnv})
	if err != nil {
		return nil, domain.NewConfigurationError("llm", err)
	}
	var key string
	if preset.APIKeyEnv != "" {
		key = os.Getenv(preset.APIKeyEnv)
		if key == "" {
			return nil, domain.NewConfigurationError("llm",
				fmt.Errorf("%w: set %s for provider %s", domain.ErrMissingCredentials, preset.APIKeyEnv, l.Provider))
		}
	}
	model := l.Model
	if model == "" {
		model = preset.DefaultModel
	}
	client, err := llmopenai.New(llmopenai.Config{
		Provider:    l.Provider,
		BaseURL:     preset.BaseURL,
		APIKey:      key,
		Model:       model,
		Temperature: float32(l.Temperature),
		MaxTokens:   l.MaxTokens,
		Timeout:     l.Timeout(),
	})
	if err != nil {
		return nil, domain.NewConfigurationError("llm", err)
	}

	retry := llm.DefaultRetryConfig()
	retry.MaxRetries = l.MaxRetries
	if d := l.RetryDelay(); d > 0 {
		retry.RetryDelay = d
	}
	if t := l.Timeout(); t > 0 {
		retry.Timeout = t
	}
	return llm.NewRateLimitedClient(llm.NewRetryClient(client, retry, logger), l.RequestsPerMinute), nil
}

// NewIndexer wires the indexing side of the pipeline.
func NewIndexer(cfg *config.AppConfig, logger *zap.Logger) (*service.Indexer, error) {
	emb, err := BuildEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	ch, err := BuildChunker(cfg)
	if err != nil {
		return nil, err
	}
	st, err := BuildStore(cfg)
	if err != nil {
		return nil, err
	}
	sum, err := BuildSummarizer(cfg)
	if err != nil {
		return nil, err
	}
	opts := service.IndexerOptions{BatchSize: cfg.Embedder.OpenAI.BatchSize}
	if sum != nil {
		opts.SummarySentences = cfg.Summarizer.MaxSentences
	}
	return service.NewIndexer(loader.New(logger), ch, emb, st, sum, opts, logger), nil
}

// Runtime is an assembled question-answering pipeline over a loaded index.
type Runtime struct {
	Pipeline *service.Pipeline
	Index    vectorstore.Index
}

func (r *Runtime) Close() error { return r.Index.Close() }

// Open loads the persisted index and assembles the pipeline around it.
func Open(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Runtime, error) {
	client, err := BuildLLM(cfg, logger)
	if err != nil {
		return nil, err
	}
	return OpenWithLLM(ctx, cfg, client, logger)
}

// OpenWithLLM is Open with an explicit chat client.
func OpenWithLLM(ctx context.Context, cfg *config.AppConfig, client llm.Client, logger *zap.Logger) (*Runtime, error) {
	emb, err := BuildEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	st, err := BuildStore(cfg)
	if err != nil {
		return nil, err
	}
	index, err := st.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrIndexNotFound) {
			return nil, domain.NewConfigurationError("open index", fmt.Errorf("%w: run `ragqa index` first", err))
		}
		return nil, domain.NewConfigurationError("open index", err)
	}
	if err := prepareEmbedder(emb, index.Manifest()); err != nil {
		index.Close()
		return nil, err
	}

	p, err := service.NewPipeline(service.Deps{
		Embedder: emb,
		Index:    index,
		LLM:      client,
		Logger:   logger,
	}, service.Options{
		TopK:           cfg.Retrieval.TopK,
		ScoreThreshold: cfg.Retrieval.Threshold(),
		Confidence: service.ConfidenceScorer{
			Base:   cfg.Generation.ConfidenceBase,
			PerDoc: cfg.Generation.ConfidencePerDoc,
			Cap:    cfg.Generation.ConfidenceCap,
		},
	})
	if err != nil {
		index.Close()
		return nil, err
	}
	return &Runtime{Pipeline: p, Index: index}, nil
}

// prepareEmbedder checks emb matches the one the index was built with and
// restores its fitted state.
func prepareEmbedder(emb embedding.Embedder, m vectorstore.Manifest) error {
	if emb.Name() != m.EmbedderName {
		return domain.NewConfigurationError("open index",
			fmt.Errorf("%w: index built with %q, configured %q", domain.ErrEmbedderMismatch, m.EmbedderName, emb.Name()))
	}
	se, ok := emb.(embedding.StatefulEmbedder)
	if !ok {
		return nil
	}
	if len(m.EmbedderState) == 0 {
		return domain.NewConfigurationError("open index", errors.New("index carries no embedder state"))
	}
	if err := se.Restore(m.EmbedderState); err != nil {
		return domain.NewConfigurationError("restore embedder", err)
	}
	return nil
}

func secs(n int) time.Duration { return time.Duration(n) * time.Second }
