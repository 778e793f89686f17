package vector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/vectralite/vectralite/engine"
)

// SQLiteStore implements Store on top of a SQLite database. One store owns
// the embeddings table of one database; exact in-cluster scoring runs inside
// SQLite via the vec_cosine scalar function.
type SQLiteStore struct {
	db    *sql.DB
	codec Codec
}

// NewSQLiteStore creates a SQLite-backed Store. It ensures the embeddings
// schema exists and registers the vector scalar functions with the driver.
// dim fixes the expected vector dimension; pass 0 to accept any.
func NewSQLiteStore(db *sql.DB, dim int) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("vector: db is nil")
	}
	if err := engine.RegisterVectorFunctions(db); err != nil {
		return nil, err
	}
	if err := EnsureSchema(db); err != nil {
		return nil, fmt.Errorf("vector: ensure schema: %w", err)
	}
	return &SQLiteStore{db: db, codec: Codec{Dim: dim}}, nil
}

// InsertOrUpdate upserts an embedding row by document id. CreatedAt is
// preserved on update; UpdatedAt always advances.
func (s *SQLiteStore) InsertOrUpdate(ctx context.Context, emb Embedding) error {
	if emb.DocumentID == "" {
		return fmt.Errorf("vector: InsertOrUpdate called with empty document id")
	}
	blob, err := s.codec.Encode(emb.Vector)
	if err != nil {
		return err
	}
	if len(blob) == 0 {
		return fmt.Errorf("vector: InsertOrUpdate called with empty vector for %q", emb.DocumentID)
	}
	now := time.Now().Unix()
	var cluster sql.NullInt64
	if emb.ClusterID != nil {
		cluster = sql.NullInt64{Int64: *emb.ClusterID, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO embeddings(document_id, title, content, embedding, cluster_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(document_id) DO UPDATE SET
  title = excluded.title,
  content = excluded.content,
  embedding = excluded.embedding,
  cluster_id = excluded.cluster_id,
  updated_at = excluded.updated_at`,
		emb.DocumentID, emb.Title, emb.Content, blob, cluster, now, now)
	if err != nil {
		return fmt.Errorf("vector: upsert %q: %w", emb.DocumentID, err)
	}
	return nil
}

// Delete removes the row for the given document id.
func (s *SQLiteStore) Delete(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("vector: Delete called with empty document id")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("vector: delete %q: %w", documentID, err)
	}
	return nil
}

// Get returns the row for the given document id or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, documentID string) (Embedding, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT document_id, title, content, embedding, cluster_id, created_at, updated_at
FROM embeddings WHERE document_id = ?`, documentID)
	emb, err := s.scanRow(row.Scan)
	if err == sql.ErrNoRows {
		return Embedding{}, fmt.Errorf("vector: get %q: %w", documentID, ErrNotFound)
	}
	if err != nil {
		return Embedding{}, fmt.Errorf("vector: get %q: %w", documentID, err)
	}
	return emb, nil
}

// SelectAll scans every stored embedding in document-id order.
func (s *SQLiteStore) SelectAll(ctx context.Context) ([]Embedding, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT document_id, title, content, embedding, cluster_id, created_at, updated_at
FROM embeddings ORDER BY document_id`)
	if err != nil {
		return nil, fmt.Errorf("vector: select all: %w", err)
	}
	defer rows.Close()
	return s.collect(rows)
}

// SelectByClusterIDs returns all rows whose cluster id is in ids.
func (s *SQLiteStore) SelectByClusterIDs(ctx context.Context, ids []int64) ([]Embedding, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := fmt.Sprintf(`
SELECT document_id, title, content, embedding, cluster_id, created_at, updated_at
FROM embeddings WHERE cluster_id IN (%s)`, placeholders(len(ids)))
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("vector: select by clusters: %w", err)
	}
	defer rows.Close()
	return s.collect(rows)
}

// Count returns the number of stored embeddings.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("vector: count: %w", err)
	}
	return n, nil
}

// AssignCluster sets the cluster id for one document.
func (s *SQLiteStore) AssignCluster(ctx context.Context, documentID string, clusterID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE embeddings SET cluster_id = ? WHERE document_id = ?`, clusterID, documentID)
	if err != nil {
		return fmt.Errorf("vector: assign cluster for %q: %w", documentID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("vector: assign cluster for %q: %w", documentID, ErrNotFound)
	}
	return nil
}

// ResetClusters clears every cluster assignment.
func (s *SQLiteStore) ResetClusters(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE embeddings SET cluster_id = NULL`); err != nil {
		return fmt.Errorf("vector: reset clusters: %w", err)
	}
	return nil
}

// SimilarInClusters scores every row in the given clusters against the query
// with vec_cosine inside SQLite and returns the top k by descending score.
func (s *SQLiteStore) SimilarInClusters(ctx context.Context, query []float32, clusterIDs []int64, k int) ([]Scored, error) {
	if len(clusterIDs) == 0 || k <= 0 {
		return nil, nil
	}
	qblob, err := s.codec.Encode(query)
	if err != nil {
		return nil, err
	}
	args := make([]interface{}, 0, len(clusterIDs)+2)
	args = append(args, qblob)
	for _, id := range clusterIDs {
		args = append(args, id)
	}
	args = append(args, k)
	q := fmt.Sprintf(`
SELECT document_id, title, content, embedding, cluster_id, created_at, updated_at,
       vec_cosine(embedding, ?) AS score
FROM embeddings
WHERE cluster_id IN (%s)
ORDER BY score DESC
LIMIT ?`, placeholders(len(clusterIDs)))
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("vector: similar in clusters: %w", err)
	}
	defer rows.Close()

	var out []Scored
	for rows.Next() {
		var sc Scored
		emb, err := s.scanRowScore(rows.Scan, &sc.Score)
		if err != nil {
			return nil, fmt.Errorf("vector: similar in clusters: %w", err)
		}
		sc.Embedding = emb
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vector: similar in clusters: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) collect(rows *sql.Rows) ([]Embedding, error) {
	var out []Embedding
	for rows.Next() {
		emb, err := s.scanRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("vector: scan: %w", err)
		}
		out = append(out, emb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vector: scan: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) scanRow(scan func(dest ...interface{}) error) (Embedding, error) {
	return s.scanRowScore(scan, nil)
}

func (s *SQLiteStore) scanRowScore(scan func(dest ...interface{}) error, score *float64) (Embedding, error) {
	var (
		emb     Embedding
		blob    []byte
		cluster sql.NullInt64
		created int64
		updated int64
	)
	dest := []interface{}{&emb.DocumentID, &emb.Title, &emb.Content, &blob, &cluster, &created, &updated}
	if score != nil {
		dest = append(dest, score)
	}
	if err := scan(dest...); err != nil {
		return Embedding{}, err
	}
	vec, err := s.codec.Decode(blob)
	if err != nil {
		return Embedding{}, err
	}
	emb.Vector = vec
	if cluster.Valid {
		id := cluster.Int64
		emb.ClusterID = &id
	}
	emb.CreatedAt = time.Unix(created, 0).UTC()
	emb.UpdatedAt = time.Unix(updated, 0).UTC()
	return emb, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Ensure SQLiteStore satisfies the Store interface.
var _ Store = (*SQLiteStore)(nil)
