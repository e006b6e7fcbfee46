package kdsync

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/sqlite-kdtree/engine"
	"github.com/viant/sqlite-kdtree/gallery"
	"github.com/viant/sqlite-kdtree/vector"
)

const testShadow = "main._kd_faces"

func openLoggedShadow(t *testing.T) *sql.DB {
	t.Helper()
	db, err := engine.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)
	ctx := context.Background()
	require.NoError(t, Install(ctx, db, testShadow))
	require.NoError(t, Install(ctx, db, testShadow))
	return db
}

func upsert(t *testing.T, db *sql.DB, gallery, id string, v []float32) {
	t.Helper()
	emb, err := vector.EncodeEmbedding(v)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO `+testShadow+`(gallery_id, id, label, embedding) VALUES(?, ?, ?, ?)
ON CONFLICT(gallery_id, id) DO UPDATE SET embedding = excluded.embedding`, gallery, id, id, emb)
	require.NoError(t, err)
}

func nearestID(t *testing.T, g *gallery.Gallery, q []float32) string {
	t.Helper()
	result, err := g.Nearest(q, 1)
	require.NoError(t, err)
	require.Len(t, result, 1)
	return result[0].ID
}

func TestReplayer_Sync(t *testing.T) {
	db := openLoggedShadow(t)
	ctx := context.Background()
	upsert(t, db, "lobby", "P0", []float32{0, 0})
	upsert(t, db, "lobby", "P1", []float32{1, 1})
	upsert(t, db, "garage", "G0", []float32{0, 0})

	g := gallery.New(gallery.WithDimension(2))
	r, err := NewReplayer(ctx, db, g, Config{GalleryID: "lobby", ShadowTable: testShadow, BatchSize: 1}, nil)
	require.NoError(t, err)

	applied, err := r.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	assert.Equal(t, 2, g.Len())
	assert.Equal(t, int64(2), r.LastSeq())
	assert.Equal(t, "P0", nearestID(t, g, []float32{0.1, 0.1}))

	applied, err = r.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	// Moving P0 away cannot be expressed as an insert, so the gallery is rebuilt.
	upsert(t, db, "lobby", "P0", []float32{9, 9})
	upsert(t, db, "lobby", "P2", []float32{0.2, 0.2})
	_, err = r.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), r.LastSeq())
	assert.Equal(t, 3, g.Len())
	assert.Equal(t, "P2", nearestID(t, g, []float32{0, 0}))
	assert.Equal(t, "P0", nearestID(t, g, []float32{9, 9}))

	_, err = db.Exec(`DELETE FROM `+testShadow+` WHERE id = 'P2'`)
	require.NoError(t, err)
	_, err = r.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), r.LastSeq())
	assert.Equal(t, 2, g.Len())

	state, err := r.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, r.LastSeq(), state.LastSeq)

	resumed, err := NewReplayer(ctx, db, gallery.New(gallery.WithDimension(2)), Config{GalleryID: "lobby", ShadowTable: testShadow}, nil)
	require.NoError(t, err)
	assert.Equal(t, r.LastSeq(), resumed.LastSeq())
}

func TestReplayer_ClosedGallery(t *testing.T) {
	db := openLoggedShadow(t)
	ctx := context.Background()
	upsert(t, db, "lobby", "P0", []float32{0, 0})

	g := gallery.New(gallery.WithDimension(2))
	g.Close()
	r, err := NewReplayer(ctx, db, g, Config{GalleryID: "lobby", ShadowTable: testShadow}, nil)
	require.NoError(t, err)
	_, err = r.Sync(ctx)
	assert.ErrorIs(t, err, gallery.ErrNotReady)
	assert.Equal(t, int64(0), r.LastSeq())
}

func TestNewReplayer_Validation(t *testing.T) {
	db := openLoggedShadow(t)
	_, err := NewReplayer(context.Background(), db, gallery.New(), Config{ShadowTable: testShadow}, nil)
	assert.Error(t, err)
	_, err = NewReplayer(context.Background(), db, nil, Config{GalleryID: "g", ShadowTable: testShadow}, nil)
	assert.Error(t, err)
}
