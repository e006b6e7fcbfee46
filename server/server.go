// Package server exposes a gallery over HTTP with JSON bodies.
package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/viant/sqlite-kdtree/gallery"
	"github.com/viant/sqlite-kdtree/internal/logging"
)

// RequestIDHeader carries the per-request id on every response.
const RequestIDHeader = "X-Request-ID"

// Config configures a new Server.
type Config struct {
	Gallery *gallery.Gallery
	Logger  *logging.Logger
}

// Server routes HTTP requests to a gallery.
type Server struct {
	gallery *gallery.Gallery
	logger  *logging.Logger
	mux     *http.ServeMux
}

// New creates a Server. A nil gallery gets a default one.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	g := cfg.Gallery
	if g == nil {
		g = gallery.New(gallery.WithLogger(logger))
	}
	s := &Server{gallery: g, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /initialize-tree", s.handleInitialize)
	s.mux.HandleFunc("POST /insert-face", s.handleInsert)
	s.mux.HandleFunc("POST /find-nearest-neighbors", s.handleNearest)
}

// Gallery returns the gallery served by s.
func (s *Server) Gallery() *gallery.Gallery { return s.gallery }

// ServeHTTP tags the request with an id, dispatches it and logs the outcome.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, requestID)
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	started := time.Now()
	s.mux.ServeHTTP(rec, r.WithContext(withRequestID(r.Context(), requestID)))
	s.logger.WithFields(log.Fields{
		"request_id": requestID,
		"method":     r.Method,
		"path":       r.URL.Path,
		"status":     rec.status,
		"elapsed":    time.Since(started),
	}).Info("request")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
