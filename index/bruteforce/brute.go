package bruteforce

import (
	"fmt"
	"sort"

	"github.com/viant/vec/search"
)

// Index is a brute-force vector index ranking by Euclidean distance.
type Index struct {
	ids  []string
	vecs []search.Float32s
	dim  int
}

// Len returns the number of indexed vectors.
func (i *Index) Len() int { return len(i.ids) }

// Build loads ids and vectors; the vectors are copied.
func (i *Index) Build(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("bruteforce: ids and vectors length mismatch: %d != %d", len(ids), len(vectors))
	}
	if len(ids) == 0 {
		i.ids, i.vecs, i.dim = nil, nil, 0
		return nil
	}
	dim := len(vectors[0])
	for j := range vectors {
		if len(vectors[j]) != dim {
			return fmt.Errorf("bruteforce: inconsistent vector dims %d vs %d", len(vectors[j]), dim)
		}
	}
	vecs := make([]search.Float32s, len(vectors))
	for j := range vectors {
		vecs[j] = append(search.Float32s(nil), vectors[j]...)
	}
	i.ids = append([]string(nil), ids...)
	i.vecs = vecs
	i.dim = dim
	return nil
}

// Query returns top-k by ascending Euclidean distance; equal distances keep build order.
func (i *Index) Query(query []float32, k int) ([]string, []float64, error) {
	if i.dim == 0 || len(i.vecs) == 0 {
		return nil, nil, nil
	}
	if len(query) != i.dim {
		return nil, nil, fmt.Errorf("bruteforce: query dim %d != index dim %d", len(query), i.dim)
	}
	type scored struct {
		idx      int
		distance float64
	}
	q := search.Float32s(query)
	scoreds := make([]scored, len(i.vecs))
	for j := range i.vecs {
		scoreds[j] = scored{idx: j, distance: float64(q.EuclideanDistance(i.vecs[j]))}
	}
	sort.SliceStable(scoreds, func(a, b int) bool { return scoreds[a].distance < scoreds[b].distance })
	if k <= 0 || k > len(scoreds) {
		k = len(scoreds)
	}
	outIDs := make([]string, k)
	outDistances := make([]float64, k)
	for n := 0; n < k; n++ {
		outIDs[n] = i.ids[scoreds[n].idx]
		outDistances[n] = scoreds[n].distance
	}
	return outIDs, outDistances, nil
}
