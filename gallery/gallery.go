// Package gallery provides the index handle that callers hold: a KD-tree of
// face embeddings with an explicit lifecycle and a reader/writer lock.
package gallery

import (
	"errors"
	"sync"

	"github.com/viant/sqlite-kdtree/internal/kd/tree"
	"github.com/viant/sqlite-kdtree/internal/logging"
)

const (
	// Dimension is the default embedding length.
	Dimension = tree.DefaultDimension
	// MaxIDLength is the default identifier buffer size; ids keep MaxIDLength-1 bytes.
	MaxIDLength = tree.DefaultMaxIDLength
)

var (
	// ErrNotReady is returned when the gallery has been closed.
	ErrNotReady = errors.New("gallery: index not initialized")
	// ErrEmptyID is returned when a face is inserted without a person id.
	ErrEmptyID = errors.New("gallery: empty person id")
)

type (
	// Record is a stored face or a search result.
	Record = tree.Record
	// Tree is the underlying KD-tree.
	Tree = tree.Tree
	// DimensionError reports an embedding of the wrong length.
	DimensionError = tree.DimensionError
)

// Option configures a Gallery.
type Option func(*options)

type options struct {
	dimension   int
	maxIDLength int
	logger      *logging.Logger
}

// WithDimension overrides the embedding length.
func WithDimension(dimension int) Option {
	return func(o *options) {
		if dimension > 0 {
			o.dimension = dimension
		}
	}
}

// WithMaxIDLength overrides the identifier buffer size.
func WithMaxIDLength(n int) Option {
	return func(o *options) {
		if n > 1 {
			o.maxIDLength = n
		}
	}
}

// WithLogger sets the logger used for lifecycle and operation events.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Gallery owns one KD-tree. Inserts, resets and closes are exclusive; searches share the lock.
type Gallery struct {
	mu    sync.RWMutex
	tree  *tree.Tree
	ready bool
	opts  options
}

// New returns a ready, empty gallery.
func New(opts ...Option) *Gallery {
	o := options{dimension: Dimension, maxIDLength: MaxIDLength, logger: logging.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	g := &Gallery{opts: o}
	g.initialize()
	return g
}

func (g *Gallery) initialize() {
	g.tree = tree.New(tree.WithDimension(g.opts.dimension), tree.WithMaxIDLength(g.opts.maxIDLength))
	g.ready = true
	g.opts.logger.WithField("dimension", g.opts.dimension).Info("gallery initialized")
}

func (g *Gallery) teardown() {
	if !g.ready {
		return
	}
	released := g.tree.Reset()
	g.tree = nil
	g.ready = false
	g.opts.logger.LogReset(released)
}

// Reset discards any stored faces and installs a fresh empty tree.
// It may be called any number of times, including after Close.
func (g *Gallery) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.teardown()
	g.initialize()
}

// Replace builds a new tree from faces and swaps it in under one lock, so
// concurrent searches see either the old faces or all of the new ones. Faces
// with an empty id or the wrong dimension are logged and skipped. It returns
// the number of faces loaded and readies a closed gallery.
func (g *Gallery) Replace(faces []Record) int {
	next := tree.New(tree.WithDimension(g.opts.dimension), tree.WithMaxIDLength(g.opts.maxIDLength))
	for _, face := range faces {
		err := validate(face.Vector, face.ID, g.opts.dimension)
		if err == nil {
			err = next.Insert(tree.NewRecord(face.Vector, face.ID, g.opts.maxIDLength))
		}
		if err != nil {
			g.opts.logger.LogInsert(face.ID, len(face.Vector), err)
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.teardown()
	g.tree = next
	g.ready = true
	g.opts.logger.WithField("faces", next.Len()).Info("gallery replaced")
	return next.Len()
}

// Close releases the tree; later inserts fail with ErrNotReady until Reset.
func (g *Gallery) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.teardown()
}

func (g *Gallery) Ready() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.ready
}

// Len returns the number of stored faces.
func (g *Gallery) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.ready {
		return 0
	}
	return g.tree.Len()
}

func (g *Gallery) Dimension() int   { return g.opts.dimension }
func (g *Gallery) MaxIDLength() int { return g.opts.maxIDLength }

// Insert copies vector and id into a new record owned by the gallery.
// Every failure is logged and returned; the gallery is unchanged on error.
func (g *Gallery) Insert(vector []float32, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	err := g.insert(vector, id)
	g.opts.logger.LogInsert(id, len(vector), err)
	return err
}

func (g *Gallery) insert(vector []float32, id string) error {
	if !g.ready {
		return ErrNotReady
	}
	if err := validate(vector, id, g.opts.dimension); err != nil {
		return err
	}
	return g.tree.Insert(tree.NewRecord(vector, id, g.opts.maxIDLength))
}

func validate(vector []float32, id string, dimension int) error {
	if id == "" {
		return ErrEmptyID
	}
	if len(vector) != dimension {
		return &DimensionError{Expected: dimension, Actual: len(vector)}
	}
	return nil
}

// Nearest returns up to k stored faces closest to query, nearest first.
func (g *Gallery) Nearest(query []float32, k int) ([]Record, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.ready {
		g.opts.logger.LogSearch(k, 0, ErrNotReady)
		return nil, ErrNotReady
	}
	found, err := g.tree.KNearestNeighbors(query, k)
	g.opts.logger.LogSearch(k, len(found), err)
	if err != nil {
		return nil, err
	}
	result := make([]Record, len(found))
	for i, r := range found {
		result[i] = *r
	}
	return result, nil
}

// Search writes up to k nearest faces into out, nearest first, and returns how
// many were written. A closed or empty gallery, k <= 0 or a query of the wrong
// length yields 0 and leaves out untouched.
func (g *Gallery) Search(query []float32, k int, out []Record) int {
	if k > len(out) {
		k = len(out)
	}
	if k <= 0 {
		return 0
	}
	result, err := g.Nearest(query, k)
	if err != nil {
		return 0
	}
	return copy(out, result)
}

// Tree returns the underlying tree, initializing the gallery if it was closed.
// The caller must not mutate it concurrently with gallery operations.
func (g *Gallery) Tree() *Tree {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.ready {
		g.opts.logger.Warn("gallery accessed before initialization; initializing")
		g.initialize()
	}
	return g.tree
}
