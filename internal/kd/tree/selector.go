package tree

import (
	"container/heap"
	"sort"
)

// selectorPrealloc caps the up-front allocation for large capacities.
const selectorPrealloc = 1024

// Candidate pairs a stored record with its squared distance to a query.
type Candidate struct {
	Record     *Record
	DistanceSq float64
}

// candidates implements heap.Interface sorted by descending distance (max-heap).
type candidates []Candidate

func (h candidates) Len() int           { return len(h) }
func (h candidates) Less(i, j int) bool { return h[i].DistanceSq > h[j].DistanceSq }
func (h candidates) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *candidates) Push(x interface{}) {
	*h = append(*h, x.(Candidate))
}

func (h *candidates) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Selector retains the capacity closest candidates offered to it.
// The worst retained candidate sits at the root.
type Selector struct {
	heap     candidates
	capacity int
}

// NewSelector creates an empty selector bounded to capacity entries.
func NewSelector(capacity int) (*Selector, error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	prealloc := capacity
	if prealloc > selectorPrealloc {
		prealloc = selectorPrealloc
	}
	return &Selector{heap: make(candidates, 0, prealloc), capacity: capacity}, nil
}

// Offer considers record at squared distance distSq. Once full, the selector
// only admits candidates strictly closer than its current worst.
func (s *Selector) Offer(record *Record, distSq float64) {
	if len(s.heap) < s.capacity {
		heap.Push(&s.heap, Candidate{Record: record, DistanceSq: distSq})
		return
	}
	if distSq < s.heap[0].DistanceSq {
		s.heap[0] = Candidate{Record: record, DistanceSq: distSq}
		heap.Fix(&s.heap, 0)
	}
}

// Worst returns the largest retained squared distance.
func (s *Selector) Worst() (float64, bool) {
	if len(s.heap) == 0 {
		return 0, false
	}
	return s.heap[0].DistanceSq, true
}

func (s *Selector) Len() int   { return len(s.heap) }
func (s *Selector) Cap() int   { return s.capacity }
func (s *Selector) Full() bool { return len(s.heap) >= s.capacity }

// DrainSorted removes all retained candidates and returns them nearest first.
func (s *Selector) DrainSorted() []Candidate {
	out := make([]Candidate, len(s.heap))
	copy(out, s.heap)
	s.heap = s.heap[:0]
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceSq < out[j].DistanceSq })
	return out
}
