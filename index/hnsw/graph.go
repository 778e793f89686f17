package hnsw

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/vectralite/vectralite/index"
	"github.com/vectralite/vectralite/vector"
	"github.com/viant/vec/search"
)

// Config configures the HNSW graph.
type Config struct {
	M              int   // max neighbors retained per node per level (default 16)
	EfConstruction int   // candidate-list width while inserting (default 200)
	EfSearch       int   // beam width while searching (default 50)
	Dim            int   // fixed dimension; 0 infers from the first point
	Seed           int64 // level RNG seed; rebuilds with the same seed and input are identical

	// Similarity overrides the scoring function; nil means cosine.
	Similarity func(a, b []float32) float64
}

func (c Config) withDefaults() Config {
	if c.M == 0 {
		c.M = 16
	}
	if c.EfConstruction == 0 {
		c.EfConstruction = 200
	}
	if c.EfSearch == 0 {
		c.EfSearch = 50
	}
	return c
}

type node struct {
	id     int64
	vector []float32
	mag    float32
	level  int
	// neighbors[l] holds node positions; len is the occupied count, cap is M.
	neighbors [][]uint32
}

// Graph is an HNSW index over a point set. It is not safe for concurrent
// mutation; the engine owns one instance and swaps it wholesale on rebuild.
type Graph struct {
	cfg       Config
	levelMult float64
	rng       *rand.Rand
	nodes     []node
	byID      map[int64]uint32
	entry     int32 // position of the entry point, -1 when empty
	maxLevel  int
	dim       int
}

// New creates an empty graph with the given configuration.
func New(cfg Config) *Graph {
	cfg = cfg.withDefaults()
	return &Graph{
		cfg:       cfg,
		levelMult: 1 / math.Log(float64(cfg.M)),
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		byID:      make(map[int64]uint32),
		entry:     -1,
		dim:       cfg.Dim,
	}
}

// Build constructs the graph from the given points, inserting them one at a
// time in input order and replacing any prior contents.
func (g *Graph) Build(points []index.Point) error {
	g.nodes = nil
	g.byID = make(map[int64]uint32, len(points))
	g.entry = -1
	g.maxLevel = 0
	g.dim = g.cfg.Dim
	for _, p := range points {
		if err := g.insert(p); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) insert(p index.Point) error {
	if len(p.Vector) == 0 {
		return fmt.Errorf("hnsw: point %d has empty vector", p.ID)
	}
	if g.dim == 0 {
		g.dim = len(p.Vector)
	} else if len(p.Vector) != g.dim {
		return fmt.Errorf("hnsw: %w: point %d has dim %d, want %d",
			vector.ErrDimensionMismatch, p.ID, len(p.Vector), g.dim)
	}
	if _, dup := g.byID[p.ID]; dup {
		return fmt.Errorf("hnsw: duplicate point id %d", p.ID)
	}

	level := g.randomLevel()
	pos := uint32(len(g.nodes))
	n := node{
		id:        p.ID,
		vector:    p.Vector,
		mag:       vector.Magnitude(p.Vector),
		level:     level,
		neighbors: make([][]uint32, level+1),
	}
	for l := range n.neighbors {
		n.neighbors[l] = make([]uint32, 0, g.cfg.M)
	}
	g.nodes = append(g.nodes, n)
	g.byID[p.ID] = pos

	if g.entry < 0 {
		g.entry = int32(pos)
		g.maxLevel = level
		return nil
	}

	// Greedy descent through the levels above the new node's level.
	curr := uint32(g.entry)
	qmag := g.nodes[pos].mag
	for l := g.maxLevel; l > level; l-- {
		curr = g.greedyClosest(p.Vector, qmag, curr, l)
	}

	// Beam search and bidirectional connect at each level the node occupies.
	for l := min(level, g.maxLevel); l >= 0; l-- {
		candidates := g.searchLayer(p.Vector, qmag, curr, g.cfg.EfConstruction, l)
		g.connect(pos, candidates, l)
		if len(candidates) > 0 {
			curr = candidates[0]
		}
	}

	// A node whose level exceeds the current maximum becomes the entry point.
	if level > g.maxLevel {
		g.maxLevel = level
		g.entry = int32(pos)
	}
	return nil
}

// randomLevel draws from an exponentially decaying distribution: higher
// levels are exponentially rarer.
func (g *Graph) randomLevel() int {
	// 1-Float64() is in (0, 1], so the log is finite.
	return int(-math.Log(1-g.rng.Float64()) * g.levelMult)
}

// dist returns 1 - similarity, so smaller is closer.
func (g *Graph) dist(query []float32, qmag float32, pos uint32) float64 {
	n := &g.nodes[pos]
	if g.cfg.Similarity != nil {
		return 1 - g.cfg.Similarity(query, n.vector)
	}
	if qmag == 0 || n.mag == 0 {
		return 1
	}
	return float64(search.Float32s(query).CosineDistance(n.vector))
}

// greedyClosest walks level l edges until no neighbor is closer to query.
func (g *Graph) greedyClosest(query []float32, qmag float32, entry uint32, l int) uint32 {
	curr := entry
	currDist := g.dist(query, qmag, curr)
	for {
		improved := false
		if l <= g.nodes[curr].level {
			for _, nb := range g.nodes[curr].neighbors[l] {
				if d := g.dist(query, qmag, nb); d < currDist {
					curr, currDist = nb, d
					improved = true
				}
			}
		}
		if !improved {
			return curr
		}
	}
}

// searchLayer expands the candidate set along level l edges, keeping the ef
// best-scoring nodes, and terminates when no unvisited neighbor improves the
// set. Results are ordered by ascending distance.
func (g *Graph) searchLayer(query []float32, qmag float32, entry uint32, ef, l int) []uint32 {
	visited := map[uint32]bool{entry: true}
	d := g.dist(query, qmag, entry)
	candidates := &distHeap{}
	candidates.push(distItem{pos: entry, dist: d})
	results := &distHeap{}
	results.push(distItem{pos: entry, dist: d})

	for candidates.len() > 0 {
		curr := candidates.pop()
		if results.len() >= ef && curr.dist > results.worst() {
			break
		}
		if l > g.nodes[curr.pos].level {
			continue
		}
		for _, nb := range g.nodes[curr.pos].neighbors[l] {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			nd := g.dist(query, qmag, nb)
			if results.len() < ef || nd < results.worst() {
				candidates.push(distItem{pos: nb, dist: nd})
				results.push(distItem{pos: nb, dist: nd})
				if results.len() > ef {
					results.dropWorst()
				}
			}
		}
	}

	out := make([]distItem, len(results.items))
	copy(out, results.items)
	sort.Slice(out, func(a, b int) bool { return out[a].dist < out[b].dist })
	positions := make([]uint32, len(out))
	for i, it := range out {
		positions[i] = it.pos
	}
	return positions
}

// connect links the new node to its M best candidates at level l and prunes
// any neighbor whose list now exceeds M by dropping its farthest connections.
func (g *Graph) connect(pos uint32, candidates []uint32, l int) {
	m := g.cfg.M
	selected := candidates
	if len(selected) > m {
		selected = selected[:m]
	}
	g.nodes[pos].neighbors[l] = append(g.nodes[pos].neighbors[l], selected...)
	for _, nb := range selected {
		if l > g.nodes[nb].level {
			continue
		}
		g.nodes[nb].neighbors[l] = append(g.nodes[nb].neighbors[l], pos)
		if len(g.nodes[nb].neighbors[l]) > m {
			g.prune(nb, l, m)
		}
	}
}

// prune keeps the m closest connections of node nb at level l.
func (g *Graph) prune(nb uint32, l, m int) {
	n := &g.nodes[nb]
	type conn struct {
		pos  uint32
		dist float64
	}
	conns := make([]conn, len(n.neighbors[l]))
	for i, other := range n.neighbors[l] {
		conns[i] = conn{pos: other, dist: g.dist(n.vector, n.mag, other)}
	}
	sort.Slice(conns, func(a, b int) bool { return conns[a].dist < conns[b].dist })
	kept := make([]uint32, m, g.cfg.M)
	for i := 0; i < m; i++ {
		kept[i] = conns[i].pos
	}
	n.neighbors[l] = kept
}

// Search runs a greedy beam search from the entry point's top level down and
// returns up to k results ordered by descending similarity. An empty graph
// returns an empty result; a query of mismatched dimension is an error.
func (g *Graph) Search(query []float32, k int) ([]index.Result, error) {
	if g.entry < 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != g.dim {
		return nil, fmt.Errorf("hnsw: %w: query dim %d, index dim %d",
			vector.ErrDimensionMismatch, len(query), g.dim)
	}
	qmag := vector.Magnitude(query)

	curr := uint32(g.entry)
	for l := g.maxLevel; l > 0; l-- {
		curr = g.greedyClosest(query, qmag, curr, l)
	}
	beam := g.cfg.EfSearch
	if k > beam {
		beam = k
	}
	positions := g.searchLayer(query, qmag, curr, beam, 0)
	if len(positions) > k {
		positions = positions[:k]
	}
	out := make([]index.Result, len(positions))
	for i, pos := range positions {
		out[i] = index.Result{ID: g.nodes[pos].id, Score: 1 - g.dist(query, qmag, pos)}
	}
	return out, nil
}

// Len returns the number of points in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

// Dim returns the vector dimension, 0 when the graph is empty and no fixed
// dimension was configured.
func (g *Graph) Dim() int { return g.dim }

// IDs returns the point ids in insertion order.
func (g *Graph) IDs() []int64 {
	out := make([]int64, len(g.nodes))
	for i := range g.nodes {
		out[i] = g.nodes[i].id
	}
	return out
}

var _ index.Index = (*Graph)(nil)

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
