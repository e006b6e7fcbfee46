package index

// Index defines an exact nearest-neighbour index over fixed-length embeddings.
type Index interface {
	// Build constructs the index from the given ids and vectors.
	// ids and vectors must have the same length and all vectors one dimension.
	Build(ids []string, vectors [][]float32) error

	// Query returns up to k matches as parallel slices of ids and Euclidean
	// distances, nearest first. k <= 0 returns every indexed vector.
	Query(query []float32, k int) (ids []string, distances []float64, err error)

	// Len returns the number of indexed vectors.
	Len() int
}
