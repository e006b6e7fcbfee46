package kdtree

import (
	"errors"
	"fmt"

	"github.com/viant/sqlite-kdtree/internal/kd/tree"
	"github.com/viant/sqlite-kdtree/internal/logging"
)

// DefaultMaxIDLength bounds ids accepted by Build. Ids are keys back into
// SQL tables, so Build rejects longer ids rather than truncating them.
const DefaultMaxIDLength = 4096

// Index implements index.Index with a KD-tree ranking by Euclidean distance.
type Index struct {
	tree        *tree.Tree
	maxIDLength int
	logger      *logging.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithMaxIDLength sets the identifier buffer size; ids must be shorter than n bytes.
func WithMaxIDLength(n int) Option {
	return func(i *Index) {
		if n > 1 {
			i.maxIDLength = n
		}
	}
}

// WithLogger sets the build logger.
func WithLogger(logger *logging.Logger) Option {
	return func(i *Index) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// New creates an empty index.
func New(opts ...Option) *Index {
	i := &Index{maxIDLength: DefaultMaxIDLength, logger: logging.Discard()}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Len returns the number of indexed vectors.
func (i *Index) Len() int {
	if i.tree == nil {
		return 0
	}
	return i.tree.Len()
}

// Dimension returns the vector length of the built tree, or 0 before Build.
func (i *Index) Dimension() int {
	if i.tree == nil {
		return 0
	}
	return i.tree.Dimension()
}

// Build inserts vectors in the given order into a fresh tree. The previous
// tree is kept when Build fails.
func (i *Index) Build(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("kdtree: ids and vectors length mismatch: %d != %d", len(ids), len(vectors))
	}
	if len(vectors) == 0 {
		i.tree = nil
		return nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return errors.New("kdtree: empty vector")
	}
	t := tree.New(tree.WithDimension(dim), tree.WithMaxIDLength(i.maxIDLength))
	for j := range vectors {
		if len(ids[j]) >= i.maxIDLength {
			return fmt.Errorf("kdtree: id %q exceeds %d bytes", ids[j], i.maxIDLength-1)
		}
		if err := t.Insert(tree.NewRecord(vectors[j], ids[j], i.maxIDLength)); err != nil {
			return fmt.Errorf("kdtree: failed to insert %q: %w", ids[j], err)
		}
	}
	i.tree = t
	i.logger.WithFields(map[string]interface{}{"count": t.Len(), "dimension": dim, "height": t.Height()}).Debug("kdtree built")
	return nil
}

// Query returns up to k nearest ids with their distances; k <= 0 returns all.
func (i *Index) Query(query []float32, k int) ([]string, []float64, error) {
	if i.tree == nil || i.tree.Len() == 0 {
		return nil, nil, nil
	}
	if k <= 0 || k > i.tree.Len() {
		k = i.tree.Len()
	}
	found, err := i.tree.KNearestNeighbors(query, k)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]string, len(found))
	distances := make([]float64, len(found))
	for n, r := range found {
		ids[n] = r.ID
		distances[n] = r.Distance
	}
	return ids, distances, nil
}
