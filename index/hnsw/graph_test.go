package hnsw

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/vectralite/vectralite/index"
	"github.com/vectralite/vectralite/index/bruteforce"
	"github.com/vectralite/vectralite/vector"
)

func unitPoints(t *testing.T, vecs [][]float32) []index.Point {
	t.Helper()
	points := make([]index.Point, len(vecs))
	for i, v := range vecs {
		cp := make([]float32, len(v))
		copy(cp, v)
		if err := vector.Normalize(cp); err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		points[i] = index.Point{ID: int64(i), Vector: cp}
	}
	return points
}

func TestSearchFindsNearestNeighbor(t *testing.T) {
	points := unitPoints(t, [][]float32{
		{1, 0},
		{0, 1},
		{-1, 0},
		{0, -1},
		{0.9, 0.1},
	})
	g := New(Config{M: 4, Seed: 1})
	if err := g.Build(points); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	results, err := g.Search([]float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].ID != 0 {
		t.Fatalf("expected point 0 as nearest to [1,0], got %d", results[0].ID)
	}
	if math.Abs(results[0].Score-1) > 1e-6 {
		t.Fatalf("expected score 1 for exact match, got %v", results[0].Score)
	}
}

func TestSearchOrdersByDescendingSimilarity(t *testing.T) {
	points := unitPoints(t, [][]float32{
		{1, 0},
		{0.9, 0.1},
		{0, 1},
		{-1, 0},
	})
	g := New(Config{M: 4, Seed: 7})
	if err := g.Build(points); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	results, err := g.Search([]float32{1, 0}, 4)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Fatalf("results out of order at %d: %v then %v", i, results[i-1].Score, results[i].Score)
		}
	}
	if results[0].ID != 0 || results[1].ID != 1 {
		t.Fatalf("unexpected head of results: %+v", results[:2])
	}
}

func TestEmptyGraphSearch(t *testing.T) {
	g := New(Config{})
	results, err := g.Search([]float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search on empty graph failed: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results from empty graph, got %d", len(results))
	}
}

func TestSearchDimensionMismatch(t *testing.T) {
	g := New(Config{M: 4, Seed: 1})
	if err := g.Build(unitPoints(t, [][]float32{{1, 0}, {0, 1}, {1, 1}})); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if _, err := g.Search([]float32{1, 0, 0}, 1); !errors.Is(err, vector.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestBuildRejectsDuplicateIDs(t *testing.T) {
	g := New(Config{M: 4})
	err := g.Build([]index.Point{
		{ID: 1, Vector: []float32{1, 0}},
		{ID: 1, Vector: []float32{0, 1}},
	})
	if err == nil {
		t.Fatal("expected error for duplicate point ids")
	}
}

func TestBuildRejectsMixedDimensions(t *testing.T) {
	g := New(Config{M: 4})
	err := g.Build([]index.Point{
		{ID: 1, Vector: []float32{1, 0}},
		{ID: 2, Vector: []float32{0, 1, 0}},
	})
	if !errors.Is(err, vector.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSeedDeterminism(t *testing.T) {
	vecs := randomVectors(200, 16, 42)
	points := unitPoints(t, vecs)

	build := func() *Graph {
		g := New(Config{M: 8, EfConstruction: 100, Seed: 99})
		if err := g.Build(points); err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		return g
	}
	a, b := build(), build()

	blobA, err := a.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}
	blobB, err := b.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}
	if len(blobA) != len(blobB) {
		t.Fatalf("rebuilds with the same seed differ in size: %d vs %d", len(blobA), len(blobB))
	}
	for i := range blobA {
		if blobA[i] != blobB[i] {
			t.Fatalf("rebuilds with the same seed differ at byte %d", i)
		}
	}
}

func TestRecallAgainstBruteForce(t *testing.T) {
	const (
		n       = 500
		dim     = 24
		queries = 50
	)
	vecs := randomVectors(n, dim, 7)
	points := unitPoints(t, vecs)

	g := New(Config{M: 16, EfConstruction: 200, EfSearch: 100, Seed: 3})
	if err := g.Build(points); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	exact := &bruteforce.Index{}
	if err := exact.Build(points); err != nil {
		t.Fatalf("brute force Build failed: %v", err)
	}

	rng := rand.New(rand.NewSource(11))
	hits := 0
	for q := 0; q < queries; q++ {
		query := make([]float32, dim)
		for i := range query {
			query[i] = float32(rng.NormFloat64())
		}
		if err := vector.Normalize(query); err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		want, err := exact.Search(query, 1)
		if err != nil {
			t.Fatalf("brute force Search failed: %v", err)
		}
		got, err := g.Search(query, 1)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(got) == 1 && got[0].ID == want[0].ID {
			hits++
		}
	}
	recall := float64(hits) / queries
	if recall < 0.9 {
		t.Fatalf("recall@1 too low: %.2f", recall)
	}
}

func randomVectors(n, dim int, seed int64) [][]float32 {
	rng := rand.New(rand.NewSource(seed))
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(rng.NormFloat64())
		}
		out[i] = v
	}
	return out
}
