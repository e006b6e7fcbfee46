package vector

import (
	"context"
)

// Face is an enrolled face embedding belonging to one gallery.
type Face struct {
	// ID is the person identifier, unique within the gallery.
	ID string

	// Gallery groups faces that are searched together.
	Gallery string

	// Label is an optional display name.
	Label string

	Embedding []float32

	// Distance is set on search results only.
	Distance float64
}

// Store defines the application-level face store API. Implementations keep
// records durable in SQLite and rebuild a KD-tree in memory for search.
type Store interface {
	// AddFaces inserts or replaces faces and returns their ids.
	AddFaces(ctx context.Context, faces []Face) ([]string, error)

	// SimilaritySearch returns up to k faces of gallery closest to query,
	// ordered by ascending Euclidean distance.
	SimilaritySearch(ctx context.Context, gallery string, query []float32, k int) ([]Face, error)

	// Remove deletes the face with the given id from gallery.
	Remove(ctx context.Context, gallery, id string) error
}
