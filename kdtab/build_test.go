package kdtab

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"modernc.org/sqlite/vtab"

	"github.com/viant/sqlite-kdtree/engine"
	"github.com/viant/sqlite-kdtree/index/bruteforce"
	"github.com/viant/sqlite-kdtree/index/kdtree"
	"github.com/viant/sqlite-kdtree/internal/logging"
	"github.com/viant/sqlite-kdtree/vector"
)

// openShadow opens a file database holding only the shadow table of name,
// as if the kdtree table had been declared with settings.
func openShadow(t *testing.T, name string, settings tableSettings) (*sql.DB, string) {
	t.Helper()
	db, err := engine.Open(filepath.Join(t.TempDir(), name+".sqlite"))
	if err != nil {
		t.Fatalf("engine.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)
	declareTable("main", name, settings)
	t.Cleanup(func() { forgetTable("main", name) })
	if err := EnsureShadow(context.Background(), db, ShadowName("main", name)); err != nil {
		t.Fatalf("EnsureShadow failed: %v", err)
	}
	dbPath, err := resolveDbPath(context.Background(), db, "main")
	if err != nil {
		t.Fatalf("resolveDbPath failed: %v", err)
	}
	return db, dbPath
}

func TestReindexUsesDeclaredDimension(t *testing.T) {
	db, dbPath := openShadow(t, "faces_rd", tableSettings{dimension: 2, indexKind: indexKindKDTree, logger: logging.Discard()})
	insertFace(t, db, "faces_rd", "a", "bad", []float32{9, 9, 9})
	insertFace(t, db, "faces_rd", "a", "x", []float32{1, 1})
	insertFace(t, db, "faces_rd", "a", "y", []float32{2, 2})

	n, err := Reindex(context.Background(), db, "main._kd_faces_rd")
	if err != nil {
		t.Fatalf("Reindex failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("Reindex indexed %d rows, want 2", n)
	}
	idx := getCacheEntry(cacheKey(dbPath, "faces_rd", "a")).get()
	if _, ok := idx.(*kdtree.Index); !ok {
		t.Fatalf("cached index is %T, want *kdtree.Index", idx)
	}
	ids, distances, err := idx.Query([]float32{1, 1}, 1)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "x" || distances[0] != 0 {
		t.Fatalf("unexpected result: %v %v", ids, distances)
	}
}

func TestReindexKeepsDeclaredIndexKind(t *testing.T) {
	db, dbPath := openShadow(t, "faces_rb", tableSettings{dimension: 2, indexKind: indexKindBrute, logger: logging.Discard()})
	insertFace(t, db, "faces_rb", "a", "x", []float32{1, 1})

	if _, err := Reindex(context.Background(), db, "main._kd_faces_rb"); err != nil {
		t.Fatalf("Reindex failed: %v", err)
	}
	idx := getCacheEntry(cacheKey(dbPath, "faces_rb", "a")).get()
	if _, ok := idx.(*bruteforce.Index); !ok {
		t.Fatalf("cached index is %T, want *bruteforce.Index", idx)
	}
}

func TestReindexUndeclaredTable(t *testing.T) {
	db, err := engine.Open(filepath.Join(t.TempDir(), "undeclared.sqlite"))
	if err != nil {
		t.Fatalf("engine.Open failed: %v", err)
	}
	defer db.Close()
	if err := EnsureShadow(context.Background(), db, "main._kd_faces_none"); err != nil {
		t.Fatalf("EnsureShadow failed: %v", err)
	}
	if _, err := Reindex(context.Background(), db, "main._kd_faces_none"); err == nil {
		t.Fatalf("expected error for a shadow without a declared table")
	}
}

func TestBuildIndexSkipsWrongDimension(t *testing.T) {
	db, _ := openShadow(t, "faces_bi", tableSettings{dimension: 2, indexKind: indexKindKDTree, logger: logging.Discard()})
	emb, _ := vector.EncodeEmbedding([]float32{9, 9, 9})
	if _, err := db.Exec(`INSERT INTO main._kd_faces_bi(gallery_id, id, embedding) VALUES('a', 'bad', ?)`, emb); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	insertFace(t, db, "faces_bi", "a", "x", []float32{1, 1})
	idx, err := buildIndex(context.Background(), db, "main._kd_faces_bi", "a", 2, indexKindKDTree, logging.Discard())
	if err != nil {
		t.Fatalf("buildIndex failed: %v", err)
	}
	if idx.Len() != 1 {
		t.Fatalf("index holds %d rows, want 1", idx.Len())
	}
}

func TestCursorFilterMatch(t *testing.T) {
	db, _ := openShadow(t, "faces_cf", tableSettings{dimension: 2, indexKind: indexKindKDTree, logger: logging.Discard()})
	insertFace(t, db, "faces_cf", "a", "bad", []float32{9, 9, 9})
	insertFace(t, db, "faces_cf", "a", "x", []float32{1, 1})
	insertFace(t, db, "faces_cf", "a", "y", []float32{2, 2})
	table := &Table{
		db:        db,
		dbName:    "main",
		tableName: "faces_cf",
		shadow:    ShadowName("main", "faces_cf"),
		logger:    logging.Discard(),
		dimension: 2,
		indexKind: indexKindKDTree,
	}

	cursor := &Cursor{table: table}
	if err := cursor.Filter(idxGalleryMatchK, "", []vtab.Value{"a", "[2.1,2.1]", int64(1)}); err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if cursor.Eof() {
		t.Fatalf("expected one row")
	}
	id, _ := cursor.Column(colID)
	k, _ := cursor.Column(colK)
	if id != "y" || k != int64(1) {
		t.Fatalf("unexpected row: id=%v k=%v", id, k)
	}
	if err := cursor.Next(); err != nil || !cursor.Eof() {
		t.Fatalf("expected end of rows, err=%v", err)
	}

	if err := cursor.Filter(idxGalleryMatch, "", []vtab.Value{"a", "[1,1,1]"}); err == nil {
		t.Fatalf("expected dimension error")
	}
	if err := cursor.Filter(idxGalleryScan, "", []vtab.Value{"a"}); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	rows := 0
	for ; !cursor.Eof(); _ = cursor.Next() {
		rows++
	}
	if rows != 3 {
		t.Fatalf("scan returned %d rows, want 3", rows)
	}
}
