// Package hybrid implements the two-phase search engine: a small in-memory
// HNSW graph over sampled centroids selects candidate clusters, and exact
// cosine rescoring runs only within those clusters against the durable
// embedding store. The engine owns the graph, keeps it consistent with the
// store through explicit rebuilds, and persists it via the snapshot manager.
//
// One engine instance is a single logical writer: document upserts and
// removals may interleave with searches, but a rebuild must not run
// concurrently with another rebuild, and documents added while a rebuild is
// in flight may stay unclustered until the next one.
package hybrid
