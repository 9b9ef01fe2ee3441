package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"ragqa/internal/domain"
	"ragqa/internal/llm"
)

// EnvPrefix prefixes environment overrides, e.g. RAGQA_RETRIEVAL_TOP_K=8.
const EnvPrefix = "RAGQA"

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env" mapstructure:"api_key_env"`
	Model       string `yaml:"model" mapstructure:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string               `yaml:"type" mapstructure:"type"`
	OpenAI OpenAIEmbedderConfig `yaml:"openai" mapstructure:"openai"`
}

// ChunkerConfig configures how documents are split into segments.
type ChunkerConfig struct {
	Type              string `yaml:"type" mapstructure:"type"`
	ChunkSize         int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	ChunkOverlap      int    `yaml:"chunk_overlap" mapstructure:"chunk_overlap"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk" mapstructure:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences" mapstructure:"overlap_sentences"`
}

// VectorStoreConfig selects where the index is persisted.
type VectorStoreConfig struct {
	Type   string       `yaml:"type" mapstructure:"type"`
	Path   string       `yaml:"path" mapstructure:"path"`
	Qdrant QdrantConfig `yaml:"qdrant" mapstructure:"qdrant"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	Host         string `yaml:"host" mapstructure:"host"`
	Port         int    `yaml:"port" mapstructure:"port"`
	APIKey       string `yaml:"api_key" mapstructure:"api_key"`
	Collection   string `yaml:"collection" mapstructure:"collection"`
	ManifestPath string `yaml:"manifest_path" mapstructure:"manifest_path"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

type RetrievalConfig struct {
	TopK int `yaml:"top_k" mapstructure:"top_k"`
	// ScoreThreshold drops segments less similar than this. A negative
	// value or null disables filtering.
	ScoreThreshold *float64 `yaml:"score_threshold" mapstructure:"score_threshold"`
}

// Threshold returns the effective threshold, nil when disabled.
func (c RetrievalConfig) Threshold() *float64 {
	if c.ScoreThreshold == nil || *c.ScoreThreshold < 0 {
		return nil
	}
	t := *c.ScoreThreshold
	return &t
}

// GenerationConfig parameterises the confidence heuristic.
type GenerationConfig struct {
	ConfidenceBase   float64 `yaml:"confidence_base" mapstructure:"confidence_base"`
	ConfidencePerDoc float64 `yaml:"confidence_per_doc" mapstructure:"confidence_per_doc"`
	ConfidenceCap    float64 `yaml:"confidence_cap" mapstructure:"confidence_cap"`
}

type LLMConfig struct {
	Provider          string  `yaml:"provider" mapstructure:"provider"`
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env" mapstructure:"api_key_env"`
	Model             string  `yaml:"model" mapstructure:"model"`
	Temperature       float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens         int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
	RetryDelayMs      int     `yaml:"retry_delay_ms" mapstructure:"retry_delay_ms"`
	RequestsPerMinute int     `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

func (c LLMConfig) Timeout() time.Duration    { return time.Duration(c.TimeoutSecs) * time.Second }
func (c LLMConfig) RetryDelay() time.Duration { return time.Duration(c.RetryDelayMs) * time.Millisecond }

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type" mapstructure:"type"`
	MaxSentences int    `yaml:"max_sentences" mapstructure:"max_sentences"`
}

type ServerConfig struct {
	Addr               string `yaml:"addr" mapstructure:"addr"`
	RequestTimeoutSecs int    `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	MaxInFlight        int    `yaml:"max_in_flight" mapstructure:"max_in_flight"`
}

func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}

// MaxContextChunks is the most retrieved segments the UI will display.
const MaxContextChunks = 4

type UIConfig struct {
	ShowContext       bool   `yaml:"show_context" mapstructure:"show_context"`
	MaxContextChunks  int    `yaml:"max_context_chunks" mapstructure:"max_context_chunks"`
	ConfidenceDisplay string `yaml:"confidence_display" mapstructure:"confidence_display"`
	ExportDir         string `yaml:"export_dir" mapstructure:"export_dir"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	File   string `yaml:"file" mapstructure:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder" mapstructure:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker" mapstructure:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store" mapstructure:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval" mapstructure:"retrieval"`
	Generation  GenerationConfig  `yaml:"generation" mapstructure:"generation"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Summarizer  SummarizerConfig  `yaml:"summarizer" mapstructure:"summarizer"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	UI          UIConfig          `yaml:"ui" mapstructure:"ui"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	threshold := 0.3
	return &AppConfig{
		Embedder: EmbedderConfig{
			Type: "tfidf",
			OpenAI: OpenAIEmbedderConfig{
				BaseURL:     "https://api.openai.com/v1",
				APIKeyEnv:   "OPENAI_API_KEY",
				Model:       "text-embedding-3-small",
				TimeoutSecs: 30,
				BatchSize:   32,
			},
		},
		Chunker: ChunkerConfig{
			Type:              "character",
			ChunkSize:         500,
			ChunkOverlap:      100,
			SentencesPerChunk: 5,
			OverlapSentences:  1,
		},
		VectorStore: VectorStoreConfig{
			Type: "file",
			Path: filepath.Join(".ragqa", "index.gob"),
			Qdrant: QdrantConfig{
				Host:         "localhost",
				Port:         6334,
				Collection:   "ragqa",
				ManifestPath: filepath.Join(".ragqa", "qdrant-manifest.json"),
				TimeoutSecs:  15,
			},
		},
		Retrieval:  RetrievalConfig{TopK: 4, ScoreThreshold: &threshold},
		Generation: GenerationConfig{ConfidenceBase: 0.3, ConfidencePerDoc: 0.15, ConfidenceCap: 1.0},
		LLM: LLMConfig{
			Provider:     "groq",
			Model:        "llama-3.1-8b-instant",
			MaxTokens:    512,
			TimeoutSecs:  60,
			MaxRetries:   3,
			RetryDelayMs: 1000,
		},
		Summarizer: SummarizerConfig{Type: "frequency", MaxSentences: 3},
		Server:     ServerConfig{Addr: ":8080", RequestTimeoutSecs: 60, MaxInFlight: 4},
		UI: UIConfig{
			ShowContext:       true,
			MaxContextChunks:  MaxContextChunks,
			ConfidenceDisplay: "percentage",
			ExportDir:         ".",
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads a config from path layered over the defaults, then applies
// RAGQA_* environment overrides. A missing file yields the defaults.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return nil, err
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("reading defaults: %w", err)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
			return nil, domain.NewConfigurationError("read "+path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, domain.NewConfigurationError("read "+path, err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, domain.NewConfigurationError("decode "+path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err != nil {
		if err := Save(userPath, Default()); err != nil {
			return nil, "", err
		}
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragqa", "config.yaml"), nil
}

// Validate reports every invalid value at once as a ConfigurationError.
func (c *AppConfig) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	oneOf := func(v string, allowed ...string) bool {
		for _, a := range allowed {
			if v == a {
				return true
			}
		}
		return false
	}

	check(oneOf(c.Embedder.Type, "tfidf", "openai"), "embedder.type %q must be tfidf or openai", c.Embedder.Type)
	if c.Embedder.Type == "openai" {
		check(c.Embedder.OpenAI.Model != "", "embedder.openai.model is required")
		check(c.Embedder.OpenAI.BatchSize >= 0, "embedder.openai.batch_size must not be negative")
	}

	check(oneOf(c.Chunker.Type, "character", "sentence"), "chunker.type %q must be character or sentence", c.Chunker.Type)
	if c.Chunker.Type == "character" {
		check(c.Chunker.ChunkSize > 0, "chunker.chunk_size must be positive")
		check(c.Chunker.ChunkOverlap >= 0 && c.Chunker.ChunkOverlap < c.Chunker.ChunkSize,
			"chunker.chunk_overlap must be in [0, chunk_size)")
	}
	if c.Chunker.Type == "sentence" {
		check(c.Chunker.SentencesPerChunk > 0, "chunker.sentences_per_chunk must be positive")
	}

	check(oneOf(c.VectorStore.Type, "file", "sqlite", "qdrant"), "vector_store.type %q must be file, sqlite or qdrant", c.VectorStore.Type)
	if c.VectorStore.Type == "qdrant" {
		q := c.VectorStore.Qdrant
		check(q.Host != "" && q.Collection != "" && q.ManifestPath != "", "vector_store.qdrant needs host, collection and manifest_path")
	} else {
		check(c.VectorStore.Path != "", "vector_store.path is required")
	}

	check(c.Retrieval.TopK > 0, "retrieval.top_k must be positive")
	if t := c.Retrieval.Threshold(); t != nil {
		check(*t <= 1, "retrieval.score_threshold must be at most 1")
	}

	g := c.Generation
	check(g.ConfidenceBase >= 0 && g.ConfidenceBase <= 1, "generation.confidence_base must be in [0, 1]")
	check(g.ConfidencePerDoc >= 0, "generation.confidence_per_doc must not be negative")
	check(g.ConfidenceCap > 0 && g.ConfidenceCap <= 1, "generation.confidence_cap must be in (0, 1]")

	if _, err := llm.ResolvePreset(c.LLM.Provider, llm.Preset{BaseURL: c.LLM.BaseURL}); err != nil {
		errs = append(errs, fmt.Errorf("llm.provider: %w", err))
	}
	check(c.LLM.Temperature >= 0 && c.LLM.Temperature <= 2, "llm.temperature must be in [0, 2]")
	check(c.LLM.MaxTokens >= 0, "llm.max_tokens must not be negative")
	check(c.LLM.MaxRetries >= 0, "llm.max_retries must not be negative")
	check(c.LLM.RequestsPerMinute >= 0, "llm.requests_per_minute must not be negative")

	check(c.Server.MaxInFlight > 0, "server.max_in_flight must be positive")
	check(c.Server.RequestTimeoutSecs > 0, "server.request_timeout_secs must be positive")

	check(c.UI.MaxContextChunks >= 1 && c.UI.MaxContextChunks <= MaxContextChunks,
		"ui.max_context_chunks must be in [1, %d]", MaxContextChunks)
	check(oneOf(c.UI.ConfidenceDisplay, "percentage", "bar"), "ui.confidence_display %q must be percentage or bar", c.UI.ConfidenceDisplay)

	check(oneOf(c.Log.Level, "debug", "info", "warn", "error"), "log.level %q is not a level", c.Log.Level)
	check(oneOf(c.Log.Format, "console", "json"), "log.format %q must be console or json", c.Log.Format)

	if len(errs) > 0 {
		return domain.NewConfigurationError("validate config", errors.Join(errs...))
	}
	return nil
}
