package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/vectralite/vectralite/docsource"
	"github.com/vectralite/vectralite/embedder"
	"github.com/vectralite/vectralite/engine"
	"github.com/vectralite/vectralite/hybrid"
	"github.com/vectralite/vectralite/index/hnsw"
	"github.com/vectralite/vectralite/snapshot"
	"github.com/vectralite/vectralite/vector"
)

const testDim = 16

func newTestServer(t *testing.T) (*httptest.Server, *docsource.Static) {
	t.Helper()
	dir := t.TempDir()
	db, err := engine.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open database failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store, err := vector.NewSQLiteStore(db, testDim)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	graphCfg := hnsw.Config{M: 8, EfConstruction: 100, EfSearch: 50, Dim: testDim}
	snaps, err := snapshot.NewManager(db, filepath.Join(dir, "snapshots"), graphCfg, nil)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	source := docsource.NewStatic()
	eng, err := hybrid.NewEngine(hybrid.Config{
		NumClusters:      2,
		SearchProbeCount: 2,
		MinEmbeddings:    3,
		Graph:            graphCfg,
	}, hybrid.Deps{
		Store:     store,
		Source:    source,
		Embedder:  embedder.NewStatic(testDim),
		Snapshots: snaps,
	})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if err := eng.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	ts := httptest.NewServer(New(eng, source, nil).Router())
	t.Cleanup(ts.Close)
	return ts, source
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body failed: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func upsertDoc(t *testing.T, ts *httptest.Server, id, text string) {
	t.Helper()
	resp := doJSON(t, http.MethodPut, ts.URL+"/api/v1/documents/"+id, map[string]string{
		"title": id,
		"text":  text,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upsert %s returned %d", id, resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body["state"] != "ready" {
		t.Fatalf("unexpected state: %q", body["state"])
	}
}

func TestDocumentLifecycleAndSearch(t *testing.T) {
	ts, _ := newTestServer(t)

	upsertDoc(t, ts, "d1", "gophers dig tunnels in the garden")
	upsertDoc(t, ts, "d2", "gophers dig burrows near the fence")
	upsertDoc(t, ts, "d3", "satellites relay signals from orbit")

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/rebuild", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rebuild returned %d", resp.StatusCode)
	}
	var rebuild map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&rebuild); err != nil {
		t.Fatalf("decode rebuild failed: %v", err)
	}
	if rebuild["centroids"] != 2 {
		t.Fatalf("expected 2 centroids, got %d", rebuild["centroids"])
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/search", map[string]any{
		"query": "gophers dig",
		"k":     2,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search returned %d", resp.StatusCode)
	}
	var search struct {
		Results []struct {
			DocumentID string  `json:"document_id"`
			Score      float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&search); err != nil {
		t.Fatalf("decode search failed: %v", err)
	}
	if len(search.Results) == 0 {
		t.Fatal("expected search results")
	}
	top := search.Results[0].DocumentID
	if top != "d1" && top != "d2" {
		t.Fatalf("expected a gopher document first, got %q", top)
	}

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/v1/documents/d3", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete returned %d", resp.StatusCode)
	}
}

func TestSimilarEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	upsertDoc(t, ts, "a", "winter storms over the mountains")
	upsertDoc(t, ts, "b", "winter storms over the valleys")
	upsertDoc(t, ts, "c", "recipes for summer salads")
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/rebuild", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rebuild returned %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/v1/documents/a/similar?k=2", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("similar returned %d", resp.StatusCode)
	}
	var similar struct {
		Results []struct {
			DocumentID string `json:"document_id"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&similar); err != nil {
		t.Fatalf("decode similar failed: %v", err)
	}
	for _, r := range similar.Results {
		if r.DocumentID == "a" {
			t.Fatal("document listed as similar to itself")
		}
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/v1/documents/missing/similar", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing document, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/v1/documents/a/similar?k=zero", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad k, got %d", resp.StatusCode)
	}
}

func TestRebuildInsufficientData(t *testing.T) {
	ts, _ := newTestServer(t)

	upsertDoc(t, ts, "solo", "a single lonely document")
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/rebuild", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for insufficient data, got %d", resp.StatusCode)
	}
}

func TestSearchBadRequest(t *testing.T) {
	ts, _ := newTestServer(t)
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/search", bytes.NewBufferString("{not json"))
	if err != nil {
		t.Fatalf("new request failed: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestStatsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	for i := 0; i < 3; i++ {
		upsertDoc(t, ts, fmt.Sprintf("s%d", i), fmt.Sprintf("stats doc %d", i))
	}
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/rebuild", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rebuild returned %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/v1/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats returned %d", resp.StatusCode)
	}
	var stats struct {
		State      string `json:"state"`
		IndexBuilt bool   `json:"index_built"`
		Embeddings int    `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats failed: %v", err)
	}
	if stats.State != "ready" || !stats.IndexBuilt || stats.Embeddings != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
