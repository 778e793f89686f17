// Package snapshot persists the in-memory centroid graph and recovers it
// after restart. Blobs are written to uniquely named files; a row per
// snapshot in the graph_snapshots table records the file name, a SHA-256
// checksum, and the creation time. Loading recomputes the checksum over the
// read bytes and refuses to return a graph on any mismatch; superseded
// snapshots are garbage-collected, keeping the most recent N.
package snapshot
