package vector

import (
	"database/sql"
)

const embeddingsSchema = `
CREATE TABLE IF NOT EXISTS embeddings (
    document_id TEXT PRIMARY KEY,
    title       TEXT NOT NULL DEFAULT '',
    content     TEXT NOT NULL DEFAULT '',
    embedding   BLOB NOT NULL,
    cluster_id  INTEGER,
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_embeddings_cluster ON embeddings(cluster_id);
`

// EnsureSchema creates the embeddings table and its cluster index in the
// provided database if they do not already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(embeddingsSchema)
	return err
}
