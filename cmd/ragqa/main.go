package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ragqa/internal/app"
	"ragqa/internal/config"
	"ragqa/internal/domain"
	"ragqa/internal/httpapi"
	"ragqa/internal/llm"
	"ragqa/internal/logging"
	"ragqa/internal/metrics"
	"ragqa/internal/session"
	"ragqa/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var (
		configPath string
		logLevel   string
	)

	rootCmd := &cobra.Command{
		Use:           "ragqa",
		Short:         "Ask questions about your documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default ./config.yaml or ~/.config/ragqa/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level")

	load := func() (*config.AppConfig, error) {
		var (
			cfg *config.AppConfig
			err error
		)
		if configPath == "" {
			cfg, _, err = config.LoadDefault()
		} else {
			cfg, err = config.Load(configPath)
		}
		if err != nil {
			return nil, err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		return cfg, nil
	}

	indexCmd := &cobra.Command{
		Use:   "index <file|glob>...",
		Short: "Build the index from PDF, text or markdown documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runIndex(cmd.Context(), cfg, args, logger)
		},
	}

	var (
		askJSON    bool
		askContext bool
	)
	askCmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question from the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runAsk(cmd.Context(), cfg, strings.Join(args, " "), askJSON, askContext, logger)
		},
	}
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Output the answer as JSON")
	askCmd.Flags().BoolVar(&askContext, "context", false, "Print the retrieved passages")

	chatCmd := &cobra.Command{
		Use:   "chat [file|glob]...",
		Short: "Start the interactive chat, indexing the given documents first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			// The terminal belongs to the UI.
			if cfg.Log.File == "" {
				cfg.Log.File = filepath.Join(".ragqa", "ragqa.log")
			}
			if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0o755); err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runChat(cmd.Context(), cfg, args, logger)
		},
	}

	var addr string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the question endpoint over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			logger, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runServe(cmd.Context(), cfg, logger)
		},
	}
	serveCmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List available LLM providers",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("Available LLM providers:")
			cmd.Println()
			for _, name := range llm.ProviderNames() {
				p, ok := llm.KnownProviders[name]
				if !ok {
					cmd.Printf("  %-10s (set llm.base_url to any OpenAI-compatible endpoint)\n", name)
					continue
				}
				key := p.APIKeyEnv
				if key == "" {
					key = "no key"
				}
				cmd.Printf("  %-10s %-34s %-18s %s\n", name, p.BaseURL, key, p.DefaultModel)
			}
			cmd.Println()
			cmd.Println("Configure in config.yaml or via environment:")
			cmd.Println("  RAGQA_LLM_PROVIDER=groq")
			cmd.Println("  RAGQA_LLM_MODEL=llama-3.1-8b-instant")
		},
	}

	rootCmd.AddCommand(indexCmd, askCmd, chatCmd, serveCmd, providersCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if domain.IsConfiguration(err) {
		return 2
	}
	return 1
}

func runIndex(ctx context.Context, cfg *config.AppConfig, patterns []string, logger *zap.Logger) error {
	ix, err := app.NewIndexer(cfg, logger)
	if err != nil {
		return err
	}
	m, err := ix.IndexFiles(ctx, patterns)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d segments from %s (embedder %s, dim %d)\n", m.SegmentCount, m.Source, m.EmbedderName, m.Dimension)
	if m.Summary != "" {
		fmt.Printf("\nSummary:\n%s\n", m.Summary)
	}
	return nil
}

type askOutput struct {
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	NotFound   bool     `json:"not_found"`
	Context    []string `json:"context,omitempty"`
}

func runAsk(ctx context.Context, cfg *config.AppConfig, question string, asJSON, showContext bool, logger *zap.Logger) error {
	if strings.TrimSpace(question) == "" {
		return errors.New("question is empty")
	}
	rt, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	ans, err := rt.Pipeline.AnswerQuestion(ctx, question)
	if err != nil {
		return err
	}
	if asJSON {
		out := askOutput{Answer: ans.Text, Confidence: ans.Confidence, NotFound: ans.NotFound()}
		if showContext {
			out.Context = ans.Context.Texts()
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	fmt.Println(ans.Text)
	fmt.Printf("\nConfidence: %.0f%%\n", ans.Confidence*100)
	if showContext {
		for i, s := range ans.Context {
			fmt.Printf("\n[%d] %.2f %s\n%s\n", i+1, s.Score, s.Segment.Source, s.Segment.Text)
		}
	}
	return nil
}

func runChat(ctx context.Context, cfg *config.AppConfig, patterns []string, logger *zap.Logger) error {
	if len(patterns) > 0 {
		ix, err := app.NewIndexer(cfg, logger)
		if err != nil {
			return err
		}
		if _, err := ix.IndexFiles(ctx, patterns); err != nil {
			return err
		}
	}
	rt, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	m := rt.Index.Manifest()
	model := tui.New(ctx, rt.Pipeline, session.NewTranscript(), tui.Options{
		ShowContext:       cfg.UI.ShowContext,
		MaxContextChunks:  cfg.UI.MaxContextChunks,
		ConfidenceDisplay: cfg.UI.ConfidenceDisplay,
		ExportDir:         cfg.UI.ExportDir,
		Source:            m.Source,
		Summary:           m.Summary,
	})
	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func runServe(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) error {
	rt, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	qa := metrics.Instrument(rt.Pipeline, metrics.NewCollectors(reg))

	srv := httpapi.New(qa, rt.Index.Manifest(), promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), httpapi.Config{
		RequestTimeout: cfg.Server.RequestTimeout(),
		MaxInFlight:    cfg.Server.MaxInFlight,
	}, logger).HTTPServer(cfg.Server.Addr)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
