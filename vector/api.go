package vector

import (
	"context"
	"errors"
	"time"

	sqlite "modernc.org/sqlite"
)

// Sentinel errors shared across the module.
var (
	// ErrDimensionMismatch indicates a vector whose dimension does not match
	// the configured index dimension. It is a configuration error and not
	// retryable.
	ErrDimensionMismatch = errors.New("vector: dimension mismatch")

	// ErrNotFound indicates the requested document has no embedding row.
	ErrNotFound = errors.New("vector: embedding not found")
)

// Embedding represents one stored document embedding. ClusterID is nil for
// rows embedded after the last rebuild; such rows are invisible to search
// until the next rebuild assigns them a cluster.
type Embedding struct {
	// DocumentID is the stable identifier of the source document.
	DocumentID string

	// Title and Content are carried verbatim from the source document so
	// search results can be rendered without a second lookup.
	Title   string
	Content string

	// Vector is the unit-normalized embedding of Content.
	Vector []float32

	// ClusterID is the id of the centroid this row was assigned to by the
	// most recent rebuild, or nil when unassigned.
	ClusterID *int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Scored pairs an embedding row with its exact similarity to a query.
type Scored struct {
	Embedding
	Score float64
}

// Store is the durable table of per-document embeddings, keyed by document id
// and partitioned by cluster id. It is the sole source of truth for document
// vectors; the in-memory centroid graph is a rebuildable cache derived from a
// sample of these rows.
type Store interface {
	// InsertOrUpdate upserts an embedding row by document id.
	InsertOrUpdate(ctx context.Context, emb Embedding) error

	// Delete removes the row for the given document id. Deleting a missing
	// row is not an error.
	Delete(ctx context.Context, documentID string) error

	// Get returns the row for the given document id or ErrNotFound.
	Get(ctx context.Context, documentID string) (Embedding, error)

	// SelectAll scans every stored embedding.
	SelectAll(ctx context.Context) ([]Embedding, error)

	// SelectByClusterIDs returns all rows whose cluster id is in ids.
	SelectByClusterIDs(ctx context.Context, ids []int64) ([]Embedding, error)

	// Count returns the number of stored embeddings.
	Count(ctx context.Context) (int, error)

	// AssignCluster sets the cluster id for one document.
	AssignCluster(ctx context.Context, documentID string, clusterID int64) error

	// ResetClusters clears every cluster assignment, returning all rows to
	// the unclustered state.
	ResetClusters(ctx context.Context) error

	// SimilarInClusters scores every row in the given clusters against the
	// query vector with exact cosine similarity and returns the top k,
	// ordered by descending score.
	SimilarInClusters(ctx context.Context, query []float32, clusterIDs []int64, k int) ([]Scored, error)
}

// Transient reports whether err is a temporary store failure (SQLite busy or
// locked) that is safe to retry.
func Transient(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case 5, 6: // SQLITE_BUSY, SQLITE_LOCKED
			return true
		}
	}
	return false
}
