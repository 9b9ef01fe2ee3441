// Package session keeps the in-memory conversation of one front-end session.
package session

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"ragqa/internal/domain"
)

// Entry is one question and its answer.
type Entry struct {
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Confidence float64   `json:"confidence"`
	NotFound   bool      `json:"not_found"`
	Context    []string  `json:"context"`
	Timestamp  time.Time `json:"timestamp"`
}

// Transcript is safe for concurrent use.
type Transcript struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewTranscript() *Transcript { return &Transcript{} }

func (t *Transcript) Append(question string, answer domain.Answer, now time.Time) Entry {
	e := Entry{
		Question:   question,
		Answer:     answer.Text,
		Confidence: answer.Confidence,
		NotFound:   answer.NotFound(),
		Context:    answer.Context.Texts(),
		Timestamp:  now.UTC().Truncate(time.Second),
	}
	t.mu.Lock()
	t.entries = append(t.entries, e)
	t.mu.Unlock()
	return e
}

// Entries returns a copy of all entries, oldest first.
func (t *Transcript) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Recent returns up to n entries, newest first.
func (t *Transcript) Recent(n int) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if n > len(t.entries) {
		n = len(t.entries)
	}
	out := make([]Entry, 0, max(n, 0))
	for i := len(t.entries) - 1; i >= len(t.entries)-n; i-- {
		out = append(out, t.entries[i])
	}
	return out
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

func (t *Transcript) Clear() {
	t.mu.Lock()
	t.entries = nil
	t.mu.Unlock()
}

// ExportJSON writes the transcript as an indented JSON array.
func (t *Transcript) ExportJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(t.Entries()); err != nil {
		return fmt.Errorf("export transcript: %w", err)
	}
	return nil
}

// ExportFileName is the default file name for a transcript exported at now.
func ExportFileName(now time.Time) string {
	return "conversation_" + now.Format("20060102_150405") + ".json"
}

// AnswerFileName is the default file name for the i-th answer (1-based).
func AnswerFileName(i int) string {
	return fmt.Sprintf("answer_%d.txt", i)
}
