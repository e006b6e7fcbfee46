// Package kdtree adapts the in-memory KD-tree to the index.Index contract.
// Trees are rebuilt from caller records and never serialized.
package kdtree
