// Package index defines a minimal abstraction for vector indexes that can be
// built from integer-keyed embeddings and queried for kNN. Implementations in
// this module are the HNSW centroid graph and a brute-force baseline.
package index
