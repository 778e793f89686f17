package hybrid

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/vectralite/vectralite/embedder"
	"github.com/vectralite/vectralite/index/hnsw"
	"github.com/vectralite/vectralite/snapshot"
	"github.com/vectralite/vectralite/vector"
)

// Document is a corpus entry as supplied by a DocumentSource: a stable id, a
// title, and already-extracted plain text.
type Document struct {
	ID    string
	Title string
	Text  string
}

// DocumentSource provides the current corpus snapshot used by RebuildIndex.
type DocumentSource interface {
	ListAll(ctx context.Context) ([]Document, error)
}

// Result is one search hit.
type Result struct {
	DocumentID string
	Title      string
	Text       string
	Score      float64
}

// State tracks engine initialization.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds the engine tuning knobs. Larger NumClusters improves recall
// granularity at higher rebuild cost; larger SearchProbeCount improves recall
// at higher query latency.
type Config struct {
	NumClusters      int   // target centroid count (default 64)
	SearchProbeCount int   // clusters probed per query (default 4)
	MinEmbeddings    int   // minimum corpus size for a rebuild (default 3)
	SnapshotKeep     int   // snapshots retained after GC (default 3)
	Seed             int64 // centroid sampling and level RNG seed
	Graph            hnsw.Config
}

func (c Config) withDefaults() Config {
	if c.NumClusters == 0 {
		c.NumClusters = 64
	}
	if c.SearchProbeCount == 0 {
		c.SearchProbeCount = 4
	}
	if c.MinEmbeddings == 0 {
		c.MinEmbeddings = 3
	}
	if c.SnapshotKeep == 0 {
		c.SnapshotKeep = 3
	}
	return c
}

func (c Config) validate() error {
	if c.NumClusters < 1 {
		return fmt.Errorf("%w: numClusters must be positive, got %d", ErrInvalidConfig, c.NumClusters)
	}
	if c.SearchProbeCount < 1 {
		return fmt.Errorf("%w: searchProbeCount must be positive, got %d", ErrInvalidConfig, c.SearchProbeCount)
	}
	if c.MinEmbeddings < 1 {
		return fmt.Errorf("%w: minEmbeddings must be positive, got %d", ErrInvalidConfig, c.MinEmbeddings)
	}
	return nil
}

// Deps are the engine's collaborators, passed in explicitly so independent
// instances and deterministic tests are possible.
type Deps struct {
	Store     vector.Store
	Source    DocumentSource
	Embedder  embedder.Embedder
	Snapshots *snapshot.Manager
	Logger    *zap.Logger
}

// Engine orchestrates centroid sampling, cluster assignment, the two-phase
// query, and incremental document upsert/removal.
type Engine struct {
	cfg    Config
	store  vector.Store
	source DocumentSource
	embed  embedder.Embedder
	snaps  *snapshot.Manager
	logger *zap.Logger
	rng    *rand.Rand

	rebuildMu sync.Mutex // serializes rebuilds

	mu                 sync.RWMutex // guards graph, state, and rebuild counters
	graph              *hnsw.Graph
	state              State
	lastRebuildSkipped int
}

// NewEngine constructs an engine. Call Init before any other operation.
func NewEngine(cfg Config, deps Deps) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if deps.Store == nil || deps.Source == nil || deps.Embedder == nil || deps.Snapshots == nil {
		return nil, fmt.Errorf("%w: store, source, embedder, and snapshots are required", ErrInvalidConfig)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	cfg.Graph.Seed = cfg.Seed
	if cfg.Graph.Dim == 0 {
		cfg.Graph.Dim = deps.Embedder.Dimension()
	}
	return &Engine{
		cfg:    cfg,
		store:  deps.Store,
		source: deps.Source,
		embed:  deps.Embedder,
		snaps:  deps.Snapshots,
		logger: deps.Logger,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Init waits for the embedding provider and attempts to load the most recent
// graph snapshot. A missing snapshot leaves the index unbuilt; a corrupt one
// is logged and likewise leaves the index unbuilt rather than serving wrong
// results.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateUninitialized {
		e.mu.Unlock()
		return wrap("Init", fmt.Errorf("already initialized (state %s)", e.state))
	}
	e.state = StateInitializing
	e.mu.Unlock()

	fail := func(err error) error {
		e.mu.Lock()
		e.state = StateUninitialized
		e.mu.Unlock()
		return wrap("Init", err)
	}

	if err := e.embed.Ready(ctx); err != nil {
		return fail(err)
	}

	g, rec, err := e.snaps.LoadLatest(ctx)
	switch {
	case err == nil:
		e.logger.Info("loaded graph snapshot",
			zap.String("file", rec.FileName),
			zap.Int("centroids", g.Len()))
	case errors.Is(err, snapshot.ErrNone):
		e.logger.Info("no graph snapshot recorded, starting unbuilt")
	case errors.Is(err, snapshot.ErrCorrupt):
		e.logger.Warn("graph snapshot corrupt, starting unbuilt", zap.Error(err))
		g = nil
	default:
		return fail(err)
	}

	e.mu.Lock()
	e.graph = g
	e.state = StateReady
	e.mu.Unlock()
	return nil
}

func (e *Engine) requireReady() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state != StateReady {
		return ErrNotReady
	}
	return nil
}

// State returns the engine lifecycle state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// AddOrUpdateDocument embeds the text and upserts an unclustered embedding
// row. Empty or whitespace-only text is treated as a removal, not an error;
// the row becomes visible to search after the next rebuild.
func (e *Engine) AddOrUpdateDocument(ctx context.Context, id, title, text string) error {
	if err := e.requireReady(); err != nil {
		return wrap("AddOrUpdateDocument", err)
	}
	if id == "" {
		return wrap("AddOrUpdateDocument", fmt.Errorf("empty document id"))
	}
	if strings.TrimSpace(text) == "" {
		return wrap("AddOrUpdateDocument", e.store.Delete(ctx, id))
	}
	vec, err := e.embedOne(ctx, text)
	if err != nil {
		return wrap("AddOrUpdateDocument", err)
	}
	err = e.store.InsertOrUpdate(ctx, vector.Embedding{
		DocumentID: id,
		Title:      title,
		Content:    text,
		Vector:     vec,
	})
	return wrap("AddOrUpdateDocument", err)
}

// RemoveDocument deletes the embedding row. The graph is untouched: if the
// removed vector happened to be a centroid it goes stale until the next
// rebuild.
func (e *Engine) RemoveDocument(ctx context.Context, id string) error {
	if err := e.requireReady(); err != nil {
		return wrap("RemoveDocument", err)
	}
	return wrap("RemoveDocument", e.store.Delete(ctx, id))
}

// IsIndexBuilt reports whether a graph with at least one centroid is loaded.
func (e *Engine) IsIndexBuilt() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.graph != nil && e.graph.Len() > 0
}

// CentroidCount returns the number of centroids in the loaded graph.
func (e *Engine) CentroidCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.graph == nil {
		return 0
	}
	return e.graph.Len()
}

// EmbeddingCount returns the number of stored embeddings.
func (e *Engine) EmbeddingCount(ctx context.Context) (int, error) {
	if err := e.requireReady(); err != nil {
		return 0, wrap("EmbeddingCount", err)
	}
	n, err := e.store.Count(ctx)
	return n, wrap("EmbeddingCount", err)
}

func (e *Engine) currentGraph() *hnsw.Graph {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.graph
}

// Search embeds the query, probes the centroid graph for the nearest
// clusters, and exactly rescores only the rows in those clusters. It returns
// up to k results by descending similarity; an unbuilt index or empty query
// yields an empty result, never an error. Rows not yet assigned a cluster are
// invisible until the next rebuild.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if err := e.requireReady(); err != nil {
		return nil, wrap("Search", err)
	}
	g := e.currentGraph()
	if g == nil || g.Len() == 0 || k <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	qv, err := e.embedOne(ctx, query)
	if err != nil {
		return nil, wrap("Search", err)
	}
	probes, err := g.Search(qv, e.cfg.SearchProbeCount)
	if err != nil {
		return nil, wrap("Search", err)
	}
	if len(probes) == 0 {
		return nil, nil
	}
	clusterIDs := make([]int64, len(probes))
	for i, p := range probes {
		clusterIDs[i] = p.ID
	}
	rows, err := e.store.SelectByClusterIDs(ctx, clusterIDs)
	if err != nil {
		return nil, wrap("Search", err)
	}
	scored := make([]Result, 0, len(rows))
	for _, row := range rows {
		s, err := vector.CosineSimilarityUnit(qv, row.Vector)
		if err != nil {
			return nil, wrap("Search", err)
		}
		scored = append(scored, Result{
			DocumentID: row.DocumentID,
			Title:      row.Title,
			Text:       row.Content,
			Score:      s,
		})
	}
	sort.Slice(scored, func(a, b int) bool { return scored[a].Score > scored[b].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	e.logger.Debug("search complete",
		zap.Int("probed", len(clusterIDs)),
		zap.Int("rescored", len(rows)),
		zap.Int("returned", len(scored)))
	return scored, nil
}

// SimilarToDocument returns the k stored documents most similar to an
// existing one, rescoring its cluster neighborhood inside SQLite. The
// document itself is excluded from the results.
func (e *Engine) SimilarToDocument(ctx context.Context, id string, k int) ([]Result, error) {
	if err := e.requireReady(); err != nil {
		return nil, wrap("SimilarToDocument", err)
	}
	g := e.currentGraph()
	if g == nil || g.Len() == 0 || k <= 0 {
		return nil, nil
	}
	emb, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, wrap("SimilarToDocument", err)
	}
	probes, err := g.Search(emb.Vector, e.cfg.SearchProbeCount)
	if err != nil {
		return nil, wrap("SimilarToDocument", err)
	}
	clusterIDs := make([]int64, len(probes))
	for i, p := range probes {
		clusterIDs[i] = p.ID
	}
	scored, err := e.store.SimilarInClusters(ctx, emb.Vector, clusterIDs, k+1)
	if err != nil {
		return nil, wrap("SimilarToDocument", err)
	}
	out := make([]Result, 0, k)
	for _, sc := range scored {
		if sc.DocumentID == id {
			continue
		}
		if len(out) == k {
			break
		}
		out = append(out, Result{
			DocumentID: sc.DocumentID,
			Title:      sc.Title,
			Text:       sc.Content,
			Score:      sc.Score,
		})
	}
	return out, nil
}

func (e *Engine) embedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, _, err := e.embed.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one input", len(vecs))
	}
	v := vecs[0]
	// Providers promise unit vectors; enforce the invariant regardless.
	if err := vector.Normalize(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Stats is a point-in-time view of engine state for diagnostics.
// LastRebuildSkipped is the partial-success count of the most recent rebuild:
// documents whose embedding failed and were left out.
type Stats struct {
	State              string `json:"state"`
	IndexBuilt         bool   `json:"index_built"`
	Embeddings         int    `json:"embeddings"`
	Unclustered        int    `json:"unclustered"`
	Centroids          int    `json:"centroids"`
	Snapshots          int    `json:"snapshots"`
	LastRebuildSkipped int    `json:"last_rebuild_skipped"`
	Model              string `json:"model"`
}

// GetStats collects counts from the store, graph, and snapshot index.
func (e *Engine) GetStats(ctx context.Context) (Stats, error) {
	st := Stats{State: e.State().String(), IndexBuilt: e.IsIndexBuilt(), Centroids: e.CentroidCount(), Model: e.embed.ModelInfo()}
	e.mu.RLock()
	st.LastRebuildSkipped = e.lastRebuildSkipped
	e.mu.RUnlock()
	rows, err := e.store.SelectAll(ctx)
	if err != nil {
		return Stats{}, wrap("GetStats", err)
	}
	st.Embeddings = len(rows)
	for _, r := range rows {
		if r.ClusterID == nil {
			st.Unclustered++
		}
	}
	if st.Snapshots, err = e.snaps.Count(ctx); err != nil {
		return Stats{}, wrap("GetStats", err)
	}
	return st, nil
}
