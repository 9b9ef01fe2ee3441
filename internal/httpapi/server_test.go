package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
	"ragqa/internal/vectorstore"
)

type qaFunc func(ctx context.Context, q string) (domain.Answer, error)

func (f qaFunc) AnswerQuestion(ctx context.Context, q string) (domain.Answer, error) { return f(ctx, q) }

func post(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func TestAsk_Answer(t *testing.T) {
	var got string
	qa := qaFunc(func(_ context.Context, q string) (domain.Answer, error) {
		got = q
		return domain.Answer{
			Text:       "Agents act autonomously.",
			Confidence: 0.6,
			Context: domain.RetrievalResult{
				{Segment: domain.Segment{Text: "first"}, Score: 0.8},
				{Segment: domain.Segment{Text: "second"}, Score: 0.5},
			},
		}, nil
	})
	h := New(qa, vectorstore.Manifest{}, nil, Config{}, nil).Router()

	rec, out := post(t, h, `{"question":"  What do agents do?  "}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "What do agents do?", got)
	assert.Equal(t, "Agents act autonomously.", out["answer"])
	assert.Equal(t, 0.6, out["confidence"])
	assert.Equal(t, []any{"first", "second"}, out["context"])
	assert.Equal(t, false, out["not_found"])
}

func TestAsk_NotFoundIsNotAnError(t *testing.T) {
	qa := qaFunc(func(context.Context, string) (domain.Answer, error) {
		return domain.Answer{Text: domain.FallbackAnswer}, nil
	})
	rec, out := post(t, New(qa, vectorstore.Manifest{}, nil, Config{}, nil).Router(), `{"question":"quarks?"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["not_found"])
	assert.Equal(t, 0.0, out["confidence"])
	assert.Equal(t, []any{}, out["context"])
}

func TestAsk_BadRequests(t *testing.T) {
	qa := qaFunc(func(context.Context, string) (domain.Answer, error) {
		t.Fatal("pipeline must not be called")
		return domain.Answer{}, nil
	})
	h := New(qa, vectorstore.Manifest{}, nil, Config{}, nil).Router()

	for _, body := range []string{`{"question":"   "}`, `{}`, `not json`} {
		rec, out := post(t, h, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.NotEmpty(t, out["error"])
	}
}

func TestAsk_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"generation", &domain.GenerationError{Err: errors.New("quota")}, http.StatusBadGateway, "generation_failed"},
		{"retrieval", &domain.RetrievalError{Err: errors.New("index")}, http.StatusServiceUnavailable, "retrieval_failed"},
		{"upstream timeout", &domain.GenerationError{Err: context.DeadlineExceeded}, http.StatusBadGateway, "generation_failed"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qa := qaFunc(func(context.Context, string) (domain.Answer, error) { return domain.Answer{}, tt.err })
			rec, out := post(t, New(qa, vectorstore.Manifest{}, nil, Config{}, nil).Router(), `{"question":"q"}`)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.code, out["error"])
		})
	}
}

func TestAsk_RequestTimeout(t *testing.T) {
	qa := qaFunc(func(ctx context.Context, _ string) (domain.Answer, error) {
		<-ctx.Done()
		return domain.Answer{}, &domain.GenerationError{Err: ctx.Err()}
	})
	h := New(qa, vectorstore.Manifest{}, nil, Config{RequestTimeout: 20 * time.Millisecond}, nil).Router()
	rec, out := post(t, h, `{"question":"slow"}`)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, "timeout", out["error"])
}

func TestAsk_InFlightLimit(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	qa := qaFunc(func(context.Context, string) (domain.Answer, error) {
		close(entered)
		<-release
		return domain.Answer{Text: "late"}, nil
	})
	h := New(qa, vectorstore.Manifest{}, nil, Config{MaxInFlight: 1}, nil).Router()

	done := make(chan int)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"first"}`))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		done <- rec.Code
	}()
	<-entered

	rec, out := post(t, h, `{"question":"second"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "busy", out["error"])

	close(release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestHealthzIndexAndMetrics(t *testing.T) {
	m := vectorstore.Manifest{
		Source:       "ebook.pdf",
		EmbedderName: "tfidf",
		Dimension:    120,
		SegmentCount: 42,
		BuiltAt:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Summary:      "About agents.",
	}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) })
	h := New(nil, m, metrics, Config{}, nil).Router()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/index", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"source":"ebook.pdf","embedder":"tfidf","dimension":120,"segment_count":42,
		"built_at":"2026-01-01T00:00:00Z","summary":"About agents."}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "# metrics", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ask", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
