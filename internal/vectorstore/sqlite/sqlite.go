// Package sqlite persists an index in a single SQLite database file. The
// whole index is read into memory on Load; SQLite is only the durable format.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"ragqa/internal/domain"
	"ragqa/internal/vectorstore"
	"ragqa/internal/vectorstore/memory"
)

const schema = `
CREATE TABLE meta (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	manifest BLOB NOT NULL
);
CREATE TABLE segments (
	position INTEGER PRIMARY KEY,
	id TEXT NOT NULL,
	source TEXT NOT NULL,
	page INTEGER NOT NULL,
	char_offset INTEGER NOT NULL,
	text TEXT NOT NULL,
	vector BLOB NOT NULL
);`

// Store keeps the index database at path. Build writes a fresh database
// next to it and renames it into place.
type Store struct {
	path string
}

func NewStore(path string) *Store { return &Store{path: path} }

func (s *Store) Build(ctx context.Context, snap vectorstore.Snapshot) (err error) {
	if err := snap.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp := s.path + ".tmp-" + uuid.NewString()
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if err = writeDB(ctx, tmp, snap); err != nil {
		return err
	}
	if err = os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("swap index: %w", err)
	}
	return nil
}

func writeDB(ctx context.Context, path string, snap vectorstore.Snapshot) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	m := snap.Manifest
	m.SegmentCount = len(snap.Segments)
	manifest, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT INTO meta (id, manifest) VALUES (1, ?)`, manifest); err != nil {
		return fmt.Errorf("insert manifest: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO segments (position, id, source, page, char_offset, text, vector) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, seg := range snap.Segments {
		if _, err := stmt.ExecContext(ctx, i, seg.ID, seg.Source, seg.Page, seg.Offset, seg.Text, encodeVector(snap.Vectors[i])); err != nil {
			return fmt.Errorf("insert segment %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context) (vectorstore.Index, error) {
	if _, err := os.Stat(s.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, s.path)
		}
		return nil, err
	}
	db, err := sql.Open("sqlite", s.path+"?_pragma=query_only(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	var raw []byte
	if err := db.QueryRowContext(ctx, `SELECT manifest FROM meta WHERE id = 1`).Scan(&raw); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var snap vectorstore.Snapshot
	if err := json.Unmarshal(raw, &snap.Manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT id, source, page, char_offset, text, vector FROM segments ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("read segments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			seg  domain.Segment
			blob []byte
		)
		if err := rows.Scan(&seg.ID, &seg.Source, &seg.Page, &seg.Offset, &seg.Text, &blob); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		seg.Position = len(snap.Segments)
		snap.Segments = append(snap.Segments, seg)
		snap.Vectors = append(snap.Vectors, decodeVector(blob))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read segments: %w", err)
	}
	return memory.NewIndex(snap)
}

// encodeVector converts a float32 slice to little-endian bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

var _ vectorstore.Store = (*Store)(nil)
