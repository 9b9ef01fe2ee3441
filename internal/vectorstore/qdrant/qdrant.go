// Package qdrant stores segment vectors in a Qdrant collection over gRPC.
//
// Every Build creates a fresh versioned collection, fills it and then points
// the configured alias at it, so searches never observe a half-written
// index. The manifest lives in a sidecar JSON file because Qdrant has no
// place for per-collection metadata.
package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"ragqa/internal/domain"
	"ragqa/internal/vectorstore"
)

const upsertBatch = 256

type Config struct {
	Host         string
	Port         int
	APIKey       string
	Collection   string // alias searched by Load
	ManifestPath string
	Timeout      time.Duration
}

type Store struct {
	cfg Config
}

func NewStore(cfg Config) *Store {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	return &Store{cfg: cfg}
}

type conn struct {
	cc          *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	apiKey      string
}

func (s *Store) dial() (*conn, error) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &conn{
		cc:          cc,
		points:      pb.NewPointsClient(cc),
		collections: pb.NewCollectionsClient(cc),
		apiKey:      s.cfg.APIKey,
	}, nil
}

func (c *conn) ctx(ctx context.Context) context.Context {
	if c.apiKey == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "api-key", c.apiKey)
}

func (s *Store) Build(ctx context.Context, snap vectorstore.Snapshot) (err error) {
	if err := snap.Validate(); err != nil {
		return err
	}
	c, err := s.dial()
	if err != nil {
		return err
	}
	defer c.cc.Close()

	ctx, cancel := context.WithTimeout(c.ctx(ctx), s.cfg.Timeout*time.Duration(1+len(snap.Segments)/upsertBatch))
	defer cancel()

	name := versionedName(s.cfg.Collection, time.Now())
	_, err = c.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{
			Params: &pb.VectorParams{Size: uint64(snap.Manifest.Dimension), Distance: pb.Distance_Cosine},
		}},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	// keepNew is set when the alias could not be restored and still points at name.
	keepNew := false
	defer func() {
		if err != nil && !keepNew {
			cleanup, stop := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timeout)
			defer stop()
			_, _ = c.collections.Delete(cleanup, &pb.DeleteCollection{CollectionName: name})
		}
	}()

	if err = upsert(ctx, c.points, name, snap); err != nil {
		return err
	}

	m := snap.Manifest
	m.SegmentCount = len(snap.Segments)
	staged, err := stageManifest(s.cfg.ManifestPath, m)
	if err != nil {
		return err
	}
	defer os.Remove(staged)

	previous, err := aliasTarget(ctx, c.collections, s.cfg.Collection)
	if err != nil {
		return err
	}
	if _, err = c.collections.UpdateAliases(ctx, &pb.ChangeAliases{Actions: swapActions(s.cfg.Collection, previous, name)}); err != nil {
		return fmt.Errorf("swap alias: %w", err)
	}
	if err = os.Rename(staged, s.cfg.ManifestPath); err != nil {
		// Point the alias back before the deferred cleanup drops name.
		rollback, stop := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timeout)
		defer stop()
		if _, rerr := c.collections.UpdateAliases(rollback, &pb.ChangeAliases{Actions: restoreActions(s.cfg.Collection, previous)}); rerr != nil {
			keepNew = true
			return errors.Join(fmt.Errorf("swap manifest: %w", err), fmt.Errorf("restore alias: %w", rerr))
		}
		return fmt.Errorf("swap manifest: %w", err)
	}
	if previous != "" {
		// The old collection is unreachable now; failing to drop it only leaks storage.
		_, _ = c.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: previous})
	}
	return nil
}

func upsert(ctx context.Context, points pb.PointsClient, collection string, snap vectorstore.Snapshot) error {
	wait := true
	for start := 0; start < len(snap.Segments); start += upsertBatch {
		end := min(start+upsertBatch, len(snap.Segments))
		batch := make([]*pb.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, &pb.PointStruct{
				Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: uuid.NewString()}},
				Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: snap.Vectors[i]}}},
				Payload: segmentPayload(snap.Segments[i], i),
			})
		}
		if _, err := points.Upsert(ctx, &pb.UpsertPoints{CollectionName: collection, Wait: &wait, Points: batch}); err != nil {
			return fmt.Errorf("upsert points %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func aliasTarget(ctx context.Context, collections pb.CollectionsClient, alias string) (string, error) {
	resp, err := collections.ListAliases(ctx, &pb.ListAliasesRequest{})
	if err != nil {
		return "", fmt.Errorf("list aliases: %w", err)
	}
	for _, a := range resp.GetAliases() {
		if a.GetAliasName() == alias {
			return a.GetCollectionName(), nil
		}
	}
	return "", nil
}

// swapActions re-points alias at next in one request.
func swapActions(alias, previous, next string) []*pb.AliasOperations {
	var ops []*pb.AliasOperations
	if previous != "" {
		ops = append(ops, &pb.AliasOperations{Action: &pb.AliasOperations_DeleteAlias{
			DeleteAlias: &pb.DeleteAlias{AliasName: alias},
		}})
	}
	return append(ops, &pb.AliasOperations{Action: &pb.AliasOperations_CreateAlias{
		CreateAlias: &pb.CreateAlias{CollectionName: next, AliasName: alias},
	}})
}

// restoreActions points alias back at previous, or removes it when the
// failed build was the first one.
func restoreActions(alias, previous string) []*pb.AliasOperations {
	ops := []*pb.AliasOperations{{Action: &pb.AliasOperations_DeleteAlias{
		DeleteAlias: &pb.DeleteAlias{AliasName: alias},
	}}}
	if previous == "" {
		return ops
	}
	return append(ops, &pb.AliasOperations{Action: &pb.AliasOperations_CreateAlias{
		CreateAlias: &pb.CreateAlias{CollectionName: previous, AliasName: alias},
	}})
}

func versionedName(alias string, now time.Time) string {
	return fmt.Sprintf("%s_%s", alias, now.UTC().Format("20060102T150405.000000000"))
}

func (s *Store) Load(_ context.Context) (vectorstore.Index, error) {
	m, err := readManifest(s.cfg.ManifestPath)
	if err != nil {
		return nil, err
	}
	c, err := s.dial()
	if err != nil {
		return nil, err
	}
	return &Index{conn: c, manifest: m, collection: s.cfg.Collection, timeout: s.cfg.Timeout}, nil
}

// Index searches the collection behind the alias.
type Index struct {
	conn       *conn
	manifest   vectorstore.Manifest
	collection string
	timeout    time.Duration
}

func (x *Index) Manifest() vectorstore.Manifest { return x.manifest }

func (x *Index) Search(ctx context.Context, vector []float32, k int, threshold *float64) ([]domain.ScoredSegment, error) {
	if len(vector) != x.manifest.Dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", domain.ErrDimensionMismatch, len(vector), x.manifest.Dimension)
	}
	limit := k
	if limit <= 0 {
		limit = x.manifest.SegmentCount
	}
	req := &pb.SearchPoints{
		CollectionName: x.collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if threshold != nil {
		t := float32(*threshold)
		req.ScoreThreshold = &t
	}

	ctx, cancel := context.WithTimeout(x.conn.ctx(ctx), x.timeout)
	defer cancel()
	resp, err := x.conn.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	out := make([]domain.ScoredSegment, 0, len(resp.GetResult()))
	for _, pt := range resp.GetResult() {
		score := float64(pt.GetScore())
		if threshold != nil && score < *threshold {
			continue
		}
		out = append(out, domain.ScoredSegment{Segment: segmentFromPayload(pt.GetPayload()), Score: score})
	}
	sortResults(out)
	return out, nil
}

func (x *Index) Close() error { return x.conn.cc.Close() }

// sortResults orders by score, breaking ties by corpus position.
func sortResults(r []domain.ScoredSegment) {
	sort.SliceStable(r, func(i, j int) bool {
		if r[i].Score != r[j].Score {
			return r[i].Score > r[j].Score
		}
		return r[i].Segment.Position < r[j].Segment.Position
	})
}

func segmentPayload(seg domain.Segment, position int) map[string]*pb.Value {
	str := func(s string) *pb.Value { return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}} }
	num := func(n int) *pb.Value { return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(n)}} }
	return map[string]*pb.Value{
		"segment_id": str(seg.ID),
		"source":     str(seg.Source),
		"text":       str(seg.Text),
		"page":       num(seg.Page),
		"offset":     num(seg.Offset),
		"position":   num(position),
	}
}

func segmentFromPayload(p map[string]*pb.Value) domain.Segment {
	return domain.Segment{
		ID:       p["segment_id"].GetStringValue(),
		Source:   p["source"].GetStringValue(),
		Text:     p["text"].GetStringValue(),
		Page:     int(p["page"].GetIntegerValue()),
		Offset:   int(p["offset"].GetIntegerValue()),
		Position: int(p["position"].GetIntegerValue()),
	}
}

// stageManifest writes m to a temp file beside path and returns its name.
// The caller renames it into place.
func stageManifest(path string, m vectorstore.Manifest) (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create manifest dir: %w", err)
	}
	f, err := os.CreateTemp(dir, ".manifest-*.tmp")
	if err != nil {
		return "", fmt.Errorf("stage manifest: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("stage manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("stage manifest: %w", err)
	}
	return f.Name(), nil
}

func readManifest(path string) (vectorstore.Manifest, error) {
	var m vectorstore.Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return m, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, path)
		}
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return m, nil
}

var (
	_ vectorstore.Store = (*Store)(nil)
	_ vectorstore.Index = (*Index)(nil)
)
