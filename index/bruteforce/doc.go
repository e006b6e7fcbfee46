// Package bruteforce provides an index that answers kNN queries by scanning
// all vectors. It serves small galleries and acts as the reference result
// for the KD-tree.
package bruteforce
