// Package loader reads source documents into pages of plain text.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"ragqa/internal/domain"
)

// Supported lists the file extensions Load understands.
var Supported = []string{".pdf", ".txt", ".md"}

type Loader struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// Load returns the pages of the document at path. Plain-text files yield a
// single page numbered 0; PDF pages are numbered from 1.
func (l *Loader) Load(ctx context.Context, path string) ([]domain.Page, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSourceNotFound, path)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		return l.loadPDF(ctx, path)
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return []domain.Page{{Source: filepath.Base(path), Text: string(data)}}, nil
	default:
		return nil, fmt.Errorf("unsupported document type %q", ext)
	}
}

func (l *Loader) loadPDF(ctx context.Context, path string) ([]domain.Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	source := filepath.Base(path)
	var pages []domain.Page
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			l.logger.Warn("skipping unreadable pdf page", zap.String("source", source), zap.Int("page", i), zap.Error(err))
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, domain.Page{Source: source, Number: i, Text: text})
	}
	l.logger.Debug("pdf loaded", zap.String("source", source), zap.Int("pages", r.NumPage()), zap.Int("with_text", len(pages)))
	return pages, nil
}

// Expand resolves glob patterns to supported files, sorted and deduplicated.
// A pattern without matches is kept as a literal path so Load can report it.
func Expand(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			m = filepath.Clean(m)
			if seen[m] || !IsSupported(m) {
				continue
			}
			seen[m] = true
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range Supported {
		if s == ext {
			return true
		}
	}
	return false
}
