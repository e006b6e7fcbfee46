package engine

import (
	"database/sql"
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math"

	sqlite "modernc.org/sqlite"

	"github.com/viant/sqlite-kdtree/internal/kd/tree"
)

// RegisterDistanceFunctions registers kd_l2 and kd_l2sq with the driver so
// they are available on new connections opened after this call.
// Note: existing open connections will not see new functions.
func RegisterDistanceFunctions(_ *sql.DB) error {
	// Idempotent registration; driver rejects duplicates but we ignore errors silently here.
	_ = sqlite.RegisterDeterministicScalarFunction("kd_l2", 2, distanceImpl("kd_l2", true))
	_ = sqlite.RegisterDeterministicScalarFunction("kd_l2sq", 2, distanceImpl("kd_l2sq", false))
	return nil
}

func asEmbedding(arg driver.Value) ([]float32, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return decodeEmbedding(v)
	default:
		return nil, fmt.Errorf("kd: unsupported argument type %T for embedding; want BLOB", arg)
	}
}

func distanceImpl(name string, rooted bool) func(*sqlite.FunctionContext, []driver.Value) (driver.Value, error) {
	return func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%s: expected 2 arguments, got %d", name, len(args))
		}
		a, err := asEmbedding(args[0])
		if err != nil {
			return nil, err
		}
		b, err := asEmbedding(args[1])
		if err != nil {
			return nil, err
		}
		if a == nil || b == nil {
			return nil, nil
		}
		if len(a) != len(b) {
			return nil, fmt.Errorf("%s: dimension mismatch %d vs %d", name, len(a), len(b))
		}
		d := tree.SquaredDistance(a, b)
		if rooted {
			d = math.Sqrt(d)
		}
		return d, nil
	}
}

// Local decoder; the vector package imports engine in its tests.
func decodeEmbedding(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("kd: invalid embedding blob length %d", len(b))
	}
	n := len(b) / 4
	v := make([]float32, n)
	for i := 0; i < n; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
