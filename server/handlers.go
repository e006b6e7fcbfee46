package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/viant/sqlite-kdtree/gallery"
)

type requestIDKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id assigned to the request carrying ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	s.gallery.Reset()
	writeJSON(w, http.StatusOK, MessageResponse{Message: "KD-Tree initialized successfully."})
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	var req InsertFaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	dim := s.gallery.Dimension()
	if len(req.Embedding) != dim {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Embedding must have %d dimensions.", dim))
		return
	}
	if req.PersonID == "" {
		writeError(w, http.StatusBadRequest, "Person ID cannot be empty.")
		return
	}
	if limit := s.gallery.MaxIDLength(); len(req.PersonID) >= limit {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Person ID too long (max %d bytes).", limit-1))
		return
	}
	if err := s.gallery.Insert(req.Embedding, req.PersonID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, gallery.ErrNotReady) {
			status = http.StatusServiceUnavailable
		}
		s.logger.With("request_id", RequestID(r.Context())).WithError(err).Error("insert-face")
		writeError(w, status, "Failed to insert face embedding: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("Face embedding for '%s' inserted successfully.", req.PersonID),
	})
}

func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	var req NearestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	dim := s.gallery.Dimension()
	if len(req.QueryEmbedding) != dim {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Query embedding must have %d dimensions.", dim))
		return
	}
	k := 1
	if req.NNeighbors != nil {
		k = *req.NNeighbors
	}
	if k < 1 {
		writeError(w, http.StatusBadRequest, "n_neighbors must be >= 1.")
		return
	}
	if size := s.gallery.Len(); k > size {
		k = size
	}
	out := make([]gallery.Record, k)
	n := s.gallery.Search(req.QueryEmbedding, k, out)
	result := make([]NeighborResult, 0, n)
	for _, rec := range out[:n] {
		result = append(result, NeighborResult{
			PersonID:  rec.ID,
			Embedding: rec.Vector,
			Distance:  rec.Distance,
		})
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}
