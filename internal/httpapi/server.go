// Package httpapi serves the question-answering pipeline over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"ragqa/internal/domain"
	"ragqa/internal/service"
	"ragqa/internal/vectorstore"
)

const maxBodyBytes = 64 << 10

type Config struct {
	RequestTimeout time.Duration
	MaxInFlight    int
}

type Server struct {
	qa       service.QuestionAnswerer
	manifest vectorstore.Manifest
	metrics  http.Handler
	cfg      Config
	sem      chan struct{}
	logger   *zap.Logger
}

// New builds a server. metrics may be nil to leave /metrics unrouted.
func New(qa service.QuestionAnswerer, manifest vectorstore.Manifest, metrics http.Handler, cfg Config, logger *zap.Logger) *Server {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		qa:       qa,
		manifest: manifest,
		metrics:  metrics,
		cfg:      cfg,
		sem:      make(chan struct{}, cfg.MaxInFlight),
		logger:   logger,
	}
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	router.HandleFunc("/v1/index", s.index).Methods(http.MethodGet)
	router.HandleFunc("/v1/ask", s.ask).Methods(http.MethodPost)
	if s.metrics != nil {
		router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
	return router
}

// HTTPServer wraps Router in an http.Server listening on addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	write := s.cfg.RequestTimeout
	if write > 0 {
		write += 5 * time.Second
	}
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      write,
		IdleTimeout:       2 * time.Minute,
	}
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	Context    []string `json:"context"`
	NotFound   bool     `json:"not_found"`
}

type indexResponse struct {
	Source       string    `json:"source"`
	Embedder     string    `json:"embedder"`
	Dimension    int       `json:"dimension"`
	SegmentCount int       `json:"segment_count"`
	BuiltAt      time.Time `json:"built_at"`
	Summary      string    `json:"summary,omitempty"`
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	m := s.manifest
	writeJSON(w, http.StatusOK, indexResponse{
		Source:       m.Source,
		Embedder:     m.EmbedderName,
		Dimension:    m.Dimension,
		SegmentCount: m.SegmentCount,
		BuiltAt:      m.BuiltAt,
		Summary:      m.Summary,
	})
}

func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "body must be a JSON object with a question")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, "empty_question", "question must not be empty")
		return
	}

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	default:
		writeError(w, http.StatusServiceUnavailable, "busy", "too many questions in flight")
		return
	}

	ctx := r.Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	ans, err := s.qa.AnswerQuestion(ctx, question)
	if err != nil {
		status, code := classify(ctx, err)
		s.logger.Warn("ask failed", zap.Int("status", status), zap.Error(err))
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, askResponse{
		Answer:     ans.Text,
		Confidence: ans.Confidence,
		Context:    ans.Context.Texts(),
		NotFound:   ans.NotFound(),
	})
}

// classify maps pipeline errors to an HTTP status and error code.
func classify(ctx context.Context, err error) (int, string) {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case domain.IsGeneration(err):
		return http.StatusBadGateway, "generation_failed"
	case domain.IsRetrieval(err):
		return http.StatusServiceUnavailable, "retrieval_failed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error":             code,
		"error_description": message,
		"status":            status,
	})
}
