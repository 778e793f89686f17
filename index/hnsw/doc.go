// Package hnsw implements a Hierarchical Navigable Small World proximity
// graph over a small set of integer-keyed points (cluster centroids). Nodes
// are assigned a random level from an exponentially decaying distribution;
// search descends greedily from the entry point's top level and runs a beam
// search at level 0. Neighbor lists are slices with capacity M and an
// explicit length, so no sentinel ids exist anywhere.
//
// The graph is rebuilt wholesale at rebuild time rather than updated
// incrementally: the centroid set only changes when the whole index does.
//
// Reference: "Efficient and robust approximate nearest neighbor search using
// Hierarchical Navigable Small World graphs" (Malkov & Yashunin, 2016).
package hnsw
