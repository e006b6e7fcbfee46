package server

// InsertFaceRequest is the body of POST /insert-face.
type InsertFaceRequest struct {
	Embedding []float32 `json:"embedding"`
	PersonID  string    `json:"person_id"`
}

// NearestRequest is the body of POST /find-nearest-neighbors.
type NearestRequest struct {
	QueryEmbedding []float32 `json:"query_embedding"`
	NNeighbors     *int      `json:"n_neighbors,omitempty"`
}

// NeighborResult is one entry of the nearest-neighbor response.
type NeighborResult struct {
	PersonID  string    `json:"person_id"`
	Embedding []float32 `json:"embedding"`
	Distance  float64   `json:"distance"`
}

// MessageResponse carries a human-readable outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
