package tree

import (
	"errors"
	"fmt"
)

var (
	// ErrNilRecord is returned when Insert receives a nil record.
	ErrNilRecord = errors.New("kdtree: nil record")
	// ErrInvalidCapacity is returned for a selector capacity below one.
	ErrInvalidCapacity = errors.New("kdtree: selector capacity must be positive")
)

// DimensionError reports a vector whose length does not match the index dimension.
type DimensionError struct {
	Expected int
	Actual   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("kdtree: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}
