// Package kdtab implements the kdtree SQLite virtual table: a per-table shadow
// store of face embeddings grouped by gallery, searched with MATCH through an
// in-memory KD-tree that is rebuilt whenever the shadow changes.
//
//	CREATE VIRTUAL TABLE faces_knn USING kdtree(person_id, dim=128);
//	SELECT person_id, distance FROM faces_knn
//	 WHERE gallery_id = 'lobby' AND person_id MATCH ? AND k = 5;
package kdtab
