package tree

import "unicode/utf8"

const (
	// DefaultDimension is the vector length of every record in a default index.
	DefaultDimension = 128
	// DefaultMaxIDLength is the identifier buffer size, terminator included.
	DefaultMaxIDLength = 100
)

// Record represents a stored embedding and the identifier of its owner.
type Record struct {
	Vector []float32
	ID     string
	// Distance is the distance to the most recent query; only set on search results.
	Distance float64
}

// NewRecord copies vector into a new record and truncates id to fit maxIDLength.
func NewRecord(vector []float32, id string, maxIDLength int) *Record {
	owned := make([]float32, len(vector))
	copy(owned, vector)
	return &Record{Vector: owned, ID: TruncateID(id, maxIDLength)}
}

// TruncateID shortens id to at most maxIDLength-1 bytes without splitting a UTF-8 sequence.
// A non-positive maxIDLength selects DefaultMaxIDLength.
func TruncateID(id string, maxIDLength int) string {
	if maxIDLength <= 0 {
		maxIDLength = DefaultMaxIDLength
	}
	limit := maxIDLength - 1
	if len(id) <= limit {
		return id
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(id[cut]) {
		cut--
	}
	return id[:cut]
}

func (r *Record) result(distance float64) *Record {
	vector := make([]float32, len(r.Vector))
	copy(vector, r.Vector)
	return &Record{Vector: vector, ID: r.ID, Distance: distance}
}
