package bruteforce

import (
	"fmt"
	"sort"

	"github.com/vectralite/vectralite/index"
	"github.com/vectralite/vectralite/vector"
)

// Index is a brute-force vector index scoring every point with exact cosine
// similarity. It is the ground-truth baseline the approximate indexes are
// measured against.
type Index struct {
	ids  []int64
	vecs [][]float32
	mags []float32
	dim  int
}

// Build loads points and precomputes magnitudes.
func (i *Index) Build(points []index.Point) error {
	if len(points) == 0 {
		i.ids, i.vecs, i.mags, i.dim = nil, nil, nil, 0
		return nil
	}
	dim := len(points[0].Vector)
	ids := make([]int64, len(points))
	vecs := make([][]float32, len(points))
	mags := make([]float32, len(points))
	for j, p := range points {
		if len(p.Vector) != dim {
			return fmt.Errorf("bruteforce: %w: point %d has dim %d, want %d",
				vector.ErrDimensionMismatch, p.ID, len(p.Vector), dim)
		}
		ids[j] = p.ID
		vecs[j] = p.Vector
		mags[j] = vector.Magnitude(p.Vector)
	}
	i.ids, i.vecs, i.mags, i.dim = ids, vecs, mags, dim
	return nil
}

// Search returns the top-k points by cosine similarity.
func (i *Index) Search(query []float32, k int) ([]index.Result, error) {
	if i.dim == 0 || len(i.vecs) == 0 {
		return nil, nil
	}
	if len(query) != i.dim {
		return nil, fmt.Errorf("bruteforce: %w: query dim %d, index dim %d",
			vector.ErrDimensionMismatch, len(query), i.dim)
	}
	qm := vector.Magnitude(query)
	if qm == 0 {
		return nil, nil
	}
	out := make([]index.Result, 0, len(i.vecs))
	for j := range i.vecs {
		if i.mags[j] == 0 {
			continue
		}
		s, err := vector.CosineSimilarity(query, i.vecs[j])
		if err != nil {
			return nil, err
		}
		out = append(out, index.Result{ID: i.ids[j], Score: s})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	if k > 0 && k < len(out) {
		out = out[:k]
	}
	return out, nil
}

// Len returns the number of indexed points.
func (i *Index) Len() int { return len(i.ids) }

var _ index.Index = (*Index)(nil)
