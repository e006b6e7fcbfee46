package engine

import (
	"math"
	"testing"

	"github.com/viant/sqlite-kdtree/vector"
)

func TestRegisterDistanceFunctionsAndUse(t *testing.T) {
	// Register globally before first connection so functions are available.
	if err := RegisterDistanceFunctions(nil); err != nil {
		t.Fatalf("RegisterDistanceFunctions failed: %v", err)
	}
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer db.Close()

	zeroBlob, err := vector.EncodeEmbedding([]float32{0, 0})
	if err != nil {
		t.Fatalf("EncodeEmbedding zero failed: %v", err)
	}
	pBlob, err := vector.EncodeEmbedding([]float32{3, 4})
	if err != nil {
		t.Fatalf("EncodeEmbedding p failed: %v", err)
	}

	var d float64
	if err := db.QueryRow(`SELECT kd_l2(?, ?)`, zeroBlob, pBlob).Scan(&d); err != nil {
		t.Fatalf("kd_l2 query failed: %v", err)
	}
	if math.Abs(d-5) > 1e-9 {
		t.Fatalf("kd_l2 = %v, want 5", d)
	}
	if err := db.QueryRow(`SELECT kd_l2sq(?, ?)`, zeroBlob, pBlob).Scan(&d); err != nil {
		t.Fatalf("kd_l2sq query failed: %v", err)
	}
	if math.Abs(d-25) > 1e-9 {
		t.Fatalf("kd_l2sq = %v, want 25", d)
	}

	var null *float64
	if err := db.QueryRow(`SELECT kd_l2(NULL, ?)`, pBlob).Scan(&null); err != nil {
		t.Fatalf("kd_l2 NULL query failed: %v", err)
	}
	if null != nil {
		t.Fatalf("kd_l2(NULL, p) = %v, want NULL", *null)
	}

	short, _ := vector.EncodeEmbedding([]float32{1})
	if err := db.QueryRow(`SELECT kd_l2(?, ?)`, short, pBlob).Scan(&d); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
}
