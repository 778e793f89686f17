package index

// Point is one (id, vector) pair fed to an index build.
type Point struct {
	ID     int64
	Vector []float32
}

// Result is a single kNN match. Higher score means more similar
// (cosine similarity by default).
type Result struct {
	ID    int64
	Score float64
}

// Index defines a generic vector index with basic lifecycle methods: building
// from integer-keyed points and answering kNN queries.
type Index interface {
	// Build constructs the index from the given points, replacing any prior
	// contents. Point ids must be unique; vectors must share one dimension.
	Build(points []Point) error

	// Search runs a kNN query and returns up to k matches ordered by
	// descending score; fewer when the index holds fewer points.
	Search(query []float32, k int) ([]Result, error)

	// Len returns the number of indexed points.
	Len() int
}
