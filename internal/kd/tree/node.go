package tree

// node owns one record; the partition axis is derived from its depth.
type node struct {
	record *Record
	left   *node
	right  *node
}
