package snapshot

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/vectralite/vectralite/engine"
	"github.com/vectralite/vectralite/index"
	"github.com/vectralite/vectralite/index/hnsw"
	"github.com/vectralite/vectralite/vector"
)

func testGraphConfig() hnsw.Config {
	return hnsw.Config{M: 8, EfConstruction: 100, EfSearch: 50, Seed: 21}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	db, err := engine.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open database failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	m, err := NewManager(db, filepath.Join(dir, "snapshots"), testGraphConfig(), nil)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func buildGraph(t *testing.T, n, dim int, seed int64) *hnsw.Graph {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	points := make([]index.Point, n)
	for i := range points {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(rng.NormFloat64())
		}
		if err := vector.Normalize(v); err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		points[i] = index.Point{ID: int64(i), Vector: v}
	}
	cfg := testGraphConfig()
	g := hnsw.New(cfg)
	if err := g.Build(points); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return g
}

func TestPersistLoadRoundtrip(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	g := buildGraph(t, 50, 8, 1)
	rec, err := m.Persist(ctx, g)
	if err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if rec.ID == 0 || rec.FileName == "" || rec.Checksum == "" {
		t.Fatalf("incomplete record: %+v", rec)
	}

	got, loaded, err := m.LoadLatest(ctx)
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if loaded.ID != rec.ID {
		t.Fatalf("loaded wrong record: %d vs %d", loaded.ID, rec.ID)
	}
	if got.Len() != g.Len() || got.Dim() != g.Dim() {
		t.Fatalf("graph changed across persistence: %d/%d vs %d/%d",
			got.Len(), got.Dim(), g.Len(), g.Dim())
	}

	query := make([]float32, 8)
	query[0] = 1
	want, err := g.Search(query, 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	have, err := got.Search(query, 3)
	if err != nil {
		t.Fatalf("Search on loaded graph failed: %v", err)
	}
	for i := range want {
		if want[i].ID != have[i].ID {
			t.Fatalf("search result %d differs after reload: %d vs %d", i, want[i].ID, have[i].ID)
		}
	}
}

func TestLoadLatestReturnsNewest(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Persist(ctx, buildGraph(t, 20, 4, 1)); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	newest := buildGraph(t, 35, 4, 2)
	rec, err := m.Persist(ctx, newest)
	if err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	got, loaded, err := m.LoadLatest(ctx)
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if loaded.ID != rec.ID {
		t.Fatalf("expected newest record %d, got %d", rec.ID, loaded.ID)
	}
	if got.Len() != 35 {
		t.Fatalf("expected newest graph with 35 nodes, got %d", got.Len())
	}
}

func TestLoadLatestNoSnapshot(t *testing.T) {
	m := newTestManager(t)
	if _, _, err := m.LoadLatest(context.Background()); !errors.Is(err, ErrNone) {
		t.Fatalf("expected ErrNone, got %v", err)
	}
}

func TestCorruptSnapshotDetected(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	rec, err := m.Persist(ctx, buildGraph(t, 30, 6, 3))
	if err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	path := filepath.Join(m.Dir(), rec.FileName)
	blob, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot failed: %v", err)
	}
	// Flip one byte in the middle of the blob.
	blob[len(blob)/2] ^= 0xFF
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		t.Fatalf("write snapshot failed: %v", err)
	}

	if _, _, err := m.LoadLatest(ctx); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestMissingSnapshotFileIsCorrupt(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	rec, err := m.Persist(ctx, buildGraph(t, 10, 4, 4))
	if err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if err := os.Remove(filepath.Join(m.Dir(), rec.FileName)); err != nil {
		t.Fatalf("remove snapshot failed: %v", err)
	}
	if _, _, err := m.LoadLatest(ctx); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestGCKeepsMostRecent(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	var last Record
	for i := 0; i < 5; i++ {
		rec, err := m.Persist(ctx, buildGraph(t, 10, 4, int64(i)))
		if err != nil {
			t.Fatalf("Persist failed: %v", err)
		}
		last = rec
	}

	removed, err := m.GC(ctx, 2)
	if err != nil {
		t.Fatalf("GC failed: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
	n, err := m.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 remaining records, got %d", n)
	}

	entries, err := os.ReadDir(m.Dir())
	if err != nil {
		t.Fatalf("read snapshot dir failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 remaining files, got %d", len(entries))
	}

	_, loaded, err := m.LoadLatest(ctx)
	if err != nil {
		t.Fatalf("LoadLatest after GC failed: %v", err)
	}
	if loaded.ID != last.ID {
		t.Fatalf("newest snapshot lost by GC: %d vs %d", loaded.ID, last.ID)
	}
}
