// Package file persists an index as a single gob-encoded snapshot.
package file

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ragqa/internal/domain"
	"ragqa/internal/vectorstore"
	"ragqa/internal/vectorstore/memory"
)

// Store keeps the snapshot at path. Build writes a temp file in the same
// directory and renames it over path, so readers see either the old or the
// new index, never a partial one.
type Store struct {
	path string
}

func NewStore(path string) *Store { return &Store{path: path} }

func (s *Store) Build(_ context.Context, snap vectorstore.Snapshot) (err error) {
	if err := snap.Validate(); err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".index-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = gob.NewEncoder(tmp).Encode(snap); err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync index: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("swap index: %w", err)
	}
	return nil
}

func (s *Store) Load(_ context.Context) (vectorstore.Index, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, s.path)
		}
		return nil, err
	}
	defer f.Close()

	var snap vectorstore.Snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode index %s: %w", s.path, err)
	}
	return memory.NewIndex(snap)
}

var _ vectorstore.Store = (*Store)(nil)
