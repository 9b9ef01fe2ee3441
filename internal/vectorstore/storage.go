package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ragqa/internal/domain"
)

// Manifest describes how an index was built. EmbedderName, Dimension and
// EmbedderState pin the embedding function the index is only valid for.
type Manifest struct {
	Source        string
	EmbedderName  string
	Dimension     int
	SegmentCount  int
	BuiltAt       time.Time
	EmbedderState []byte
	Summary       string
}

// Snapshot is a complete index ready to be persisted: segments[i] was
// embedded as vectors[i].
type Snapshot struct {
	Manifest Manifest
	Segments []domain.Segment
	Vectors  [][]float32
}

// Validate checks that segments and vectors line up and share one dimension.
func (s Snapshot) Validate() error {
	if len(s.Segments) != len(s.Vectors) {
		return errors.New("segments and vectors length mismatch")
	}
	if len(s.Segments) == 0 {
		return errors.New("snapshot has no segments")
	}
	if s.Manifest.Dimension <= 0 {
		return errors.New("invalid dimension")
	}
	for i, v := range s.Vectors {
		if len(v) != s.Manifest.Dimension {
			return fmt.Errorf("vector %d: %w: got %d, want %d", i, domain.ErrDimensionMismatch, len(v), s.Manifest.Dimension)
		}
	}
	return nil
}

// Index is a loaded, read-only nearest-neighbour index. Implementations are
// safe for concurrent Search calls.
type Index interface {
	Manifest() Manifest
	// Search returns up to k segments ordered by decreasing cosine
	// similarity. When threshold is non-nil, segments scoring below it are
	// dropped. k <= 0 means no limit.
	Search(ctx context.Context, vector []float32, k int, threshold *float64) ([]domain.ScoredSegment, error)
	Close() error
}

// Builder persists snapshots.
type Builder interface {
	// Build replaces any existing index atomically: on failure the
	// previous index stays loadable and nothing partial is left behind.
	Build(ctx context.Context, snap Snapshot) error
}

// Loader opens a persisted index.
type Loader interface {
	// Load opens the persisted index. A missing index yields an error
	// wrapping domain.ErrIndexNotFound.
	Load(ctx context.Context) (Index, error)
}

// Store is a backend that can both build and load an index.
type Store interface {
	Builder
	Loader
}
