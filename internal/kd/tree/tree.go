package tree

import (
	"fmt"
	"math"
)

// Tree is an unbalanced KD-tree over fixed-dimension records.
// It is not safe for concurrent mutation; callers serialize access.
type Tree struct {
	root        *node
	dimension   int
	maxIDLength int
	size        int
}

// Option configures a Tree.
type Option func(*Tree)

// WithDimension sets the vector length accepted by the tree.
func WithDimension(dimension int) Option {
	return func(t *Tree) {
		if dimension > 0 {
			t.dimension = dimension
		}
	}
}

// WithMaxIDLength sets the identifier buffer size; ids keep at most n-1 bytes.
func WithMaxIDLength(n int) Option {
	return func(t *Tree) {
		if n > 1 {
			t.maxIDLength = n
		}
	}
}

// New constructs an empty tree.
func New(options ...Option) *Tree {
	t := &Tree{dimension: DefaultDimension, maxIDLength: DefaultMaxIDLength}
	for _, opt := range options {
		opt(t)
	}
	return t
}

func (t *Tree) Len() int         { return t.size }
func (t *Tree) Dimension() int   { return t.dimension }
func (t *Tree) MaxIDLength() int { return t.maxIDLength }

// Insert adds record to the tree, taking ownership of it. Coordinates equal to
// the splitting value descend to the right. On error the tree is unchanged.
func (t *Tree) Insert(record *Record) error {
	if record == nil {
		return ErrNilRecord
	}
	if len(record.Vector) != t.dimension {
		return &DimensionError{Expected: t.dimension, Actual: len(record.Vector)}
	}
	record.ID = TruncateID(record.ID, t.maxIDLength)
	leaf := &node{record: record}
	if t.root == nil {
		t.root = leaf
		t.size++
		return nil
	}
	current := t.root
	for depth := 0; ; depth++ {
		axis := depth % t.dimension
		if record.Vector[axis] < current.record.Vector[axis] {
			if current.left == nil {
				current.left = leaf
				break
			}
			current = current.left
			continue
		}
		if current.right == nil {
			current.right = leaf
			break
		}
		current = current.right
	}
	t.size++
	return nil
}

// searchFrame is a pending visit. A far frame is only visited if the
// hyperplane check still passes when it is popped.
type searchFrame struct {
	node    *node
	depth   int
	far     bool
	planeSq float64
}

// KNearestNeighbors returns up to k records closest to query, nearest first.
// Results are copies of the stored records with Distance set.
func (t *Tree) KNearestNeighbors(query []float32, k int) ([]*Record, error) {
	if t.root == nil || k <= 0 {
		return nil, nil
	}
	if len(query) != t.dimension {
		return nil, &DimensionError{Expected: t.dimension, Actual: len(query)}
	}
	selector, err := NewSelector(k)
	if err != nil {
		return nil, err
	}
	t.search(query, selector, nil)
	drained := selector.DrainSorted()
	result := make([]*Record, len(drained))
	for i, candidate := range drained {
		result[i] = candidate.Record.result(math.Sqrt(candidate.DistanceSq))
	}
	return result, nil
}

// search visits the near side of every node before deciding on its far side.
// The far frame is pushed below the near child so that the decision sees the
// selector state left by the whole near subtree. visit, when set, is called
// for every node offered to the selector.
func (t *Tree) search(query []float32, selector *Selector, visit func(*Record)) {
	stack := make([]searchFrame, 0, 64)
	stack = append(stack, searchFrame{node: t.root})
	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if frame.far && selector.Full() {
			if worst, _ := selector.Worst(); frame.planeSq >= worst {
				continue
			}
		}
		current := frame.node
		point := current.record.Vector
		if visit != nil {
			visit(current.record)
		}
		selector.Offer(current.record, SquaredDistance(query, point))

		axis := frame.depth % t.dimension
		near, far := current.right, current.left
		if query[axis] < point[axis] {
			near, far = current.left, current.right
		}
		if far != nil {
			stack = append(stack, searchFrame{node: far, depth: frame.depth + 1, far: true, planeSq: planeDistance(query, point, axis)})
		}
		if near != nil {
			stack = append(stack, searchFrame{node: near, depth: frame.depth + 1})
		}
	}
}

// Height returns the number of nodes on the longest root-to-leaf path.
func (t *Tree) Height() int {
	if t.root == nil {
		return 0
	}
	type level struct {
		node  *node
		depth int
	}
	height := 0
	stack := []level{{t.root, 1}}
	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if item.depth > height {
			height = item.depth
		}
		if item.node.left != nil {
			stack = append(stack, level{item.node.left, item.depth + 1})
		}
		if item.node.right != nil {
			stack = append(stack, level{item.node.right, item.depth + 1})
		}
	}
	return height
}

// Reset releases every node in post-order and returns how many were released.
func (t *Tree) Reset() int {
	released := 0
	var pending []*node
	var last *node
	current := t.root
	for current != nil || len(pending) > 0 {
		if current != nil {
			pending = append(pending, current)
			current = current.left
			continue
		}
		top := pending[len(pending)-1]
		if top.right != nil && top.right != last {
			current = top.right
			continue
		}
		pending = pending[:len(pending)-1]
		top.left, top.right, top.record = nil, nil, nil
		released++
		last = top
	}
	t.root = nil
	t.size = 0
	return released
}

type bound struct {
	axis  int
	value float32
	left  bool
}

// CheckInvariant verifies that every node lies on the correct side of each
// ancestor's splitting value.
func (t *Tree) CheckInvariant() error {
	if t.root == nil {
		return nil
	}
	type visit struct {
		node   *node
		depth  int
		bounds []bound
	}
	count := 0
	stack := []visit{{node: t.root}}
	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++
		v := item.node.record.Vector
		if len(v) != t.dimension {
			return &DimensionError{Expected: t.dimension, Actual: len(v)}
		}
		for _, b := range item.bounds {
			if b.left && !(v[b.axis] < b.value) {
				return fmt.Errorf("kdtree: record %q on axis %d: %v is not < %v", item.node.record.ID, b.axis, v[b.axis], b.value)
			}
			if !b.left && !(v[b.axis] >= b.value) {
				return fmt.Errorf("kdtree: record %q on axis %d: %v is not >= %v", item.node.record.ID, b.axis, v[b.axis], b.value)
			}
		}
		axis := item.depth % t.dimension
		for _, child := range []struct {
			node *node
			left bool
		}{{item.node.left, true}, {item.node.right, false}} {
			if child.node == nil {
				continue
			}
			bounds := make([]bound, len(item.bounds), len(item.bounds)+1)
			copy(bounds, item.bounds)
			bounds = append(bounds, bound{axis: axis, value: v[axis], left: child.left})
			stack = append(stack, visit{node: child.node, depth: item.depth + 1, bounds: bounds})
		}
	}
	if count != t.size {
		return fmt.Errorf("kdtree: size %d does not match %d reachable nodes", t.size, count)
	}
	return nil
}
