package vector

import (
	"fmt"
	"math"
)

// SquaredL2Distance computes the squared Euclidean distance between two
// vectors. It returns an error if the vectors have different lengths.
func SquaredL2Distance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector: L2 distance dimension mismatch: %d vs %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum, nil
}

// L2Distance computes the Euclidean (L2) distance between two vectors.
func L2Distance(a, b []float32) (float64, error) {
	sum, err := SquaredL2Distance(a, b)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(sum), nil
}
