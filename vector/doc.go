// Package vector defines the embedding data model and SQLite-backed store
// used by this module. It includes:
//   - Embedding row model and the Store interface
//   - SQLiteStore: durable storage for per-document embeddings keyed by
//     cluster id
//   - Schema helpers for the embeddings table
//   - Embedding encoding (big-endian BLOB), normalization, and similarity
package vector
