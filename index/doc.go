// Package index defines a minimal abstraction for exact nearest-neighbour
// indexes that are built from embeddings and queried by Euclidean distance.
// Implementations in this module are a KD-tree and a brute-force baseline.
package index
