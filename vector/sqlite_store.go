package vector

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/viant/sqlite-kdtree/index/kdtree"
	"github.com/viant/sqlite-kdtree/internal/logging"
)

// SQLiteStore keeps faces in the faces table and answers searches with a
// KD-tree built from the gallery's rows.
type SQLiteStore struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewSQLiteStore creates a new SQLite-backed Store. It ensures the faces
// schema exists in the provided database.
func NewSQLiteStore(db *sql.DB, logger *logging.Logger) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("vector: db is nil")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if err := EnsureSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

// AddFaces upserts faces in one transaction. Every face needs an id, a
// gallery and a non-empty embedding.
func (s *SQLiteStore) AddFaces(ctx context.Context, faces []Face) ([]string, error) {
	if len(faces) == 0 {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO faces(gallery_id, id, label, embedding) VALUES(?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ids := make([]string, 0, len(faces))
	for _, f := range faces {
		if f.ID == "" || f.Gallery == "" {
			return nil, fmt.Errorf("vector: Face.ID and Face.Gallery must be set")
		}
		emb, err := EncodeEmbedding(f.Embedding)
		if err != nil {
			return nil, err
		}
		if emb == nil {
			return nil, fmt.Errorf("vector: face %q has no embedding", f.ID)
		}
		if _, err := stmt.ExecContext(ctx, f.Gallery, f.ID, f.Label, emb); err != nil {
			return nil, err
		}
		ids = append(ids, f.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// SimilaritySearch loads the gallery, builds a KD-tree over it and returns
// up to k faces nearest first.
func (s *SQLiteStore) SimilaritySearch(ctx context.Context, gallery string, query []float32, k int) ([]Face, error) {
	if k <= 0 || len(query) == 0 {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, label, embedding FROM faces WHERE gallery_id = ? ORDER BY rowid`, gallery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := map[string]Face{}
	var ids []string
	var vectors [][]float32
	for rows.Next() {
		var f Face
		var label sql.NullString
		var blob []byte
		if err := rows.Scan(&f.ID, &label, &blob); err != nil {
			return nil, err
		}
		emb, err := DecodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("vector: face %q: %w", f.ID, err)
		}
		if len(emb) != len(query) {
			s.logger.WithFields(map[string]interface{}{"gallery": gallery, "id": f.ID, "dimension": len(emb)}).Warn("skipping face with mismatched dimension")
			continue
		}
		f.Gallery = gallery
		f.Label = label.String
		f.Embedding = emb
		byID[f.ID] = f
		ids = append(ids, f.ID)
		vectors = append(vectors, emb)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	idx := kdtree.New(kdtree.WithLogger(s.logger))
	if err := idx.Build(ids, vectors); err != nil {
		return nil, err
	}
	matched, distances, err := idx.Query(query, k)
	if err != nil {
		return nil, err
	}
	out := make([]Face, len(matched))
	for i, id := range matched {
		out[i] = byID[id]
		out[i].Distance = distances[i]
	}
	s.logger.LogSearch(k, len(out), nil)
	return out, nil
}

// Remove deletes a face by gallery and id.
func (s *SQLiteStore) Remove(ctx context.Context, gallery, id string) error {
	if id == "" {
		return fmt.Errorf("vector: Remove called with empty id")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	_, err := s.db.ExecContext(ctx, `DELETE FROM faces WHERE gallery_id = ? AND id = ?`, gallery, id)
	return err
}

// Ensure SQLiteStore satisfies the Store interface.
var _ Store = (*SQLiteStore)(nil)
