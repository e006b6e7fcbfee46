package vector

import (
	"testing"

	"github.com/viant/sqlite-kdtree/engine"
)

// TestEnsureSchema verifies that EnsureSchema creates the faces table without
// error on a fresh in-memory database.
func TestEnsureSchema(t *testing.T) {
	db, err := engine.Open(":memory:")
	if err != nil {
		t.Fatalf("engine.Open(:memory:) failed: %v", err)
	}
	defer db.Close()

	if err := EnsureSchema(db); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	if err := EnsureSchema(db); err != nil {
		t.Fatalf("EnsureSchema second call failed: %v", err)
	}

	if _, err := db.Exec(`INSERT INTO faces(gallery_id, id, label, embedding) VALUES('g', '1', 'alice', X'0000803F')`); err != nil {
		t.Fatalf("insert into faces failed: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO faces(gallery_id, id, label, embedding) VALUES('g', '1', 'dup', X'0000803F')`); err == nil {
		t.Fatalf("expected primary key violation")
	}
}
