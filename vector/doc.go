// Package vector defines a face-store API and SQLite-backed utilities used by
// this project. It includes:
//   - Face model and Store interface
//   - SQLiteStore: durable faces table searched through an in-memory KD-tree
//   - Schema helper to create the faces table
//   - Embedding encoding (BLOB) and L2 distance functions
package vector
