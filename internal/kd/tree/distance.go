package tree

// SquaredDistance returns the squared Euclidean distance between a and b,
// accumulated in float64. Both vectors must have the same length.
func SquaredDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// planeDistance returns the squared distance from query to the splitting
// hyperplane of point on axis.
func planeDistance(query, point []float32, axis int) float64 {
	d := float64(query[axis]) - float64(point[axis])
	return d * d
}
