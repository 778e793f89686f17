// Package bruteforce provides a vector index that answers kNN queries by
// scanning all points and scoring via exact cosine similarity. It serves as
// the recall baseline for the HNSW centroid graph.
package bruteforce
