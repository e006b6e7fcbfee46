// Package kdutil provides a client-side helper over a kdtree virtual table:
// enrolling faces into its shadow table and identifying a query embedding.
package kdutil

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/viant/sqlite-kdtree/kdtab"
	"github.com/viant/sqlite-kdtree/vector"
)

// Index addresses one gallery of a kdtree virtual table.
type Index struct {
	DB          *sql.DB
	VirtualName string
	ShadowName  string
	Column      string
	GalleryID   string
}

// NewIndex constructs an Index for a kdtree virtual table whose visible id
// column is column (person_id when empty). The shadow table is created when
// missing.
func NewIndex(ctx context.Context, db *sql.DB, virtualTable, column, galleryID string) (*Index, error) {
	if db == nil {
		return nil, fmt.Errorf("kdutil: db is nil")
	}
	if galleryID == "" {
		return nil, fmt.Errorf("kdutil: gallery id is empty")
	}
	if column == "" {
		column = "person_id"
	}
	shadow := kdtab.ShadowName("main", virtualTable)
	if err := kdtab.EnsureShadow(ctx, db, shadow); err != nil {
		return nil, err
	}
	return &Index{
		DB:          db,
		VirtualName: virtualTable,
		ShadowName:  shadow,
		Column:      column,
		GalleryID:   galleryID,
	}, nil
}

// Face is an enrolment request.
type Face struct {
	ID        string
	Label     string
	Embedding []float32
}

// Match is a single identification hit.
type Match struct {
	ID       string
	Label    string
	Distance float64
}

// EnrollFaces upserts faces into the shadow table in one transaction. Triggers
// installed by the kdtree module invalidate the cached tree of the gallery.
func (ix *Index) EnrollFaces(ctx context.Context, faces []Face) error {
	if len(faces) == 0 {
		return nil
	}
	tx, err := ix.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	stmt := fmt.Sprintf(`
INSERT INTO %s(gallery_id, id, label, embedding)
VALUES (?, ?, ?, ?)
ON CONFLICT(gallery_id, id) DO UPDATE SET
  label = excluded.label,
  embedding = excluded.embedding`, ix.ShadowName)
	for _, f := range faces {
		if f.ID == "" {
			return fmt.Errorf("kdutil: face id is empty")
		}
		blob, err := vector.EncodeEmbedding(f.Embedding)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, stmt, ix.GalleryID, f.ID, f.Label, blob); err != nil {
			return fmt.Errorf("kdutil: failed to enroll %q: %w", f.ID, err)
		}
	}
	return tx.Commit()
}

// DeleteFaces removes faces with the given ids from the gallery.
func (ix *Index) DeleteFaces(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	stmt := fmt.Sprintf("DELETE FROM %s WHERE gallery_id = ? AND id = ?", ix.ShadowName)
	for _, id := range ids {
		if _, err := ix.DB.ExecContext(ctx, stmt, ix.GalleryID, id); err != nil {
			return err
		}
	}
	return nil
}

// Identify returns up to k enrolled faces nearest to embedding. When k <= 0
// every face of the gallery is ranked.
func (ix *Index) Identify(ctx context.Context, embedding []float32, k int) ([]Match, error) {
	blob, err := vector.EncodeEmbedding(embedding)
	if err != nil {
		return nil, err
	}
	base := fmt.Sprintf("SELECT %s, distance FROM %s WHERE gallery_id = ? AND %s MATCH ?", ix.Column, ix.VirtualName, ix.Column)
	var rows *sql.Rows
	if k > 0 {
		rows, err = ix.DB.QueryContext(ctx, base+" AND k = ?", ix.GalleryID, blob, k)
	} else {
		rows, err = ix.DB.QueryContext(ctx, base, ix.GalleryID, blob)
	}
	if err != nil {
		return nil, err
	}
	var out []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Distance); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	stmt := fmt.Sprintf("SELECT label FROM %s WHERE gallery_id = ? AND id = ?", ix.ShadowName)
	for i := range out {
		var label sql.NullString
		if err := ix.DB.QueryRowContext(ctx, stmt, ix.GalleryID, out[i].ID).Scan(&label); err != nil {
			return nil, err
		}
		out[i].Label = label.String
	}
	return out, nil
}
