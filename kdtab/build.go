package kdtab

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	idxapi "github.com/viant/sqlite-kdtree/index"
	"github.com/viant/sqlite-kdtree/index/bruteforce"
	"github.com/viant/sqlite-kdtree/index/kdtree"
	"github.com/viant/sqlite-kdtree/internal/logging"
	"github.com/viant/sqlite-kdtree/vector"
)

func (t *Table) cachedDbPath(ctx context.Context) string {
	t.dbPathOnce.Do(func() {
		path, err := resolveDbPath(ctx, t.db, t.dbName)
		if err != nil {
			t.logger.WithError(err).Warn("failed to resolve database path")
			path = t.dbName
			if path == "" {
				path = "main"
			}
		}
		t.dbPath = path
	})
	return t.dbPath
}

func (t *Table) scan(ctx context.Context, gallery string) ([]resultRow, error) {
	if err := EnsureShadow(ctx, t.db, t.shadow); err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT rowid, gallery_id, id FROM %s WHERE gallery_id = ? ORDER BY rowid", t.shadow)
	rows, err := t.db.QueryContext(ctx, q, gallery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []resultRow
	for rows.Next() {
		var r resultRow
		if err := rows.Scan(&r.rowid, &r.gallery, &r.id); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (t *Table) match(ctx context.Context, gallery string, query []float32, k int) ([]resultRow, error) {
	idx, err := t.ensureIndex(ctx, gallery)
	if err != nil {
		return nil, err
	}
	ids, distances, err := idx.Query(query, k)
	if err != nil {
		return nil, err
	}
	out := make([]resultRow, 0, len(ids))
	for i, id := range ids {
		rid, err := t.lookupRow(ctx, gallery, id)
		if err != nil {
			return nil, err
		}
		if rid == 0 {
			continue
		}
		out = append(out, resultRow{rowid: rid, gallery: gallery, id: id, distance: distances[i]})
	}
	return out, nil
}

// ensureIndex returns the cached tree for gallery, building it once when missing.
func (t *Table) ensureIndex(ctx context.Context, gallery string) (idxapi.Index, error) {
	if strings.TrimSpace(gallery) == "" {
		return nil, fmt.Errorf("kdtab: gallery_id is required")
	}
	if err := EnsureShadow(ctx, t.db, t.shadow); err != nil {
		return nil, err
	}

	key := cacheKey(t.cachedDbPath(ctx), t.tableName, gallery)
	entry := getCacheEntry(key)
	for {
		if idx := entry.get(); idx != nil {
			return idx, nil
		}
		if entry.startBuild() {
			break
		}
		if idx := entry.waitForBuild(); idx != nil {
			return idx, nil
		}
	}
	defer entry.finishBuild()

	built, err := buildIndex(ctx, t.db, t.shadow, gallery, t.dimension, t.indexKind, t.logger)
	if err != nil {
		return nil, err
	}
	entry.set(built)
	return built, nil
}

// buildIndex loads a gallery from shadow and builds an index over rows whose
// embedding has the expected dimension; other rows are logged and skipped.
func buildIndex(ctx context.Context, db *sql.DB, shadow, gallery string, dimension int, kind string, logger *logging.Logger) (idxapi.Index, error) {
	q := fmt.Sprintf("SELECT id, embedding FROM %s WHERE gallery_id = ? AND embedding IS NOT NULL ORDER BY rowid", shadow)
	rows, err := db.QueryContext(ctx, q, gallery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	var vecs [][]float32
	for rows.Next() {
		var id string
		var emb []byte
		if err := rows.Scan(&id, &emb); err != nil {
			return nil, err
		}
		v, err := vector.DecodeEmbeddingDim(emb, dimension)
		if err != nil {
			logger.WithError(err).WithField("id", id).Warn("skipping face")
			continue
		}
		ids = append(ids, id)
		vecs = append(vecs, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var built idxapi.Index
	switch kind {
	case indexKindBrute:
		built = &bruteforce.Index{}
	default:
		built = kdtree.New(kdtree.WithLogger(logger))
	}
	if err := built.Build(ids, vecs); err != nil {
		return nil, err
	}
	logger.WithField("gallery", gallery).WithField("count", built.Len()).Debug("index built")
	return built, nil
}

// lookupRow resolves rowid for a given gallery/id pair; 0 when the row is gone.
func (t *Table) lookupRow(ctx context.Context, gallery, id string) (int64, error) {
	q := fmt.Sprintf("SELECT rowid FROM %s WHERE gallery_id = ? AND id = ?", t.shadow)
	var rid int64
	if err := t.db.QueryRowContext(ctx, q, gallery, id).Scan(&rid); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return rid, nil
}

// Reindex rebuilds the cached index of every gallery in shadow with the
// dimension and index kind its virtual table was declared with, and returns
// the number of indexed rows.
func Reindex(ctx context.Context, db *sql.DB, shadow string) (int, error) {
	dbName, tableName := splitShadow(shadow)
	if tableName == "" {
		return 0, fmt.Errorf("kdtab: %q is not a kdtree shadow table", shadow)
	}
	settings, ok := lookupTableSettings(dbName, tableName)
	if !ok {
		return 0, fmt.Errorf("kdtab: no kdtree table is declared for %q", shadow)
	}
	dbPath, err := resolveDbPath(ctx, db, dbName)
	if err != nil {
		return 0, err
	}
	galleries, err := listGalleries(ctx, db, shadow)
	if err != nil {
		return 0, err
	}
	InvalidateCache(shadow, "")
	total := 0
	for _, gallery := range galleries {
		built, err := buildIndex(ctx, db, shadow, gallery, settings.dimension, settings.indexKind, settings.logger)
		if err != nil {
			return total, err
		}
		getCacheEntry(cacheKey(dbPath, tableName, gallery)).set(built)
		total += built.Len()
	}
	return total, nil
}

func listGalleries(ctx context.Context, db *sql.DB, shadow string) ([]string, error) {
	q := fmt.Sprintf("SELECT DISTINCT gallery_id FROM %s ORDER BY gallery_id", shadow)
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var gallery string
		if err := rows.Scan(&gallery); err != nil {
			return nil, err
		}
		out = append(out, gallery)
	}
	return out, rows.Err()
}
