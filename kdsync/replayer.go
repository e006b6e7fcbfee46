package kdsync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/viant/sqlite-kdtree/gallery"
	"github.com/viant/sqlite-kdtree/internal/logging"
	"github.com/viant/sqlite-kdtree/vector"
)

// Replayer applies change-log entries of one gallery to an in-memory gallery.
// The tree cannot delete points, so an update or delete triggers a rebuild
// from the shadow table.
type Replayer struct {
	db      *sql.DB
	cfg     Config
	gallery *gallery.Gallery
	logger  *logging.Logger
	lastSeq int64
}

// NewReplayer creates a replayer resuming from the persisted sync state.
func NewReplayer(ctx context.Context, db *sql.DB, g *gallery.Gallery, cfg Config, logger *logging.Logger) (*Replayer, error) {
	if db == nil {
		return nil, fmt.Errorf("kdsync: db is nil")
	}
	if g == nil {
		return nil, fmt.Errorf("kdsync: gallery is nil")
	}
	if cfg.GalleryID == "" || cfg.ShadowTable == "" {
		return nil, fmt.Errorf("kdsync: gallery id and shadow table are required")
	}
	cfg.init()
	if logger == nil {
		logger = logging.Discard()
	}
	r := &Replayer{db: db, cfg: cfg, gallery: g, logger: logger.With("gallery", cfg.GalleryID)}
	if _, err := db.ExecContext(ctx, StateTableDDL(cfg.StateTable)); err != nil {
		return nil, err
	}
	state, err := r.State(ctx)
	if err != nil {
		return nil, err
	}
	r.lastSeq = state.LastSeq
	return r, nil
}

// LastSeq returns the last applied sequence number.
func (r *Replayer) LastSeq() int64 { return r.lastSeq }

// State loads the persisted sync state; a missing row yields LastSeq 0.
func (r *Replayer) State(ctx context.Context) (*SyncState, error) {
	state := &SyncState{GalleryID: r.cfg.GalleryID, ShadowTable: r.cfg.ShadowTable}
	q := fmt.Sprintf(`SELECT last_seq, updated_at FROM %s WHERE gallery_id = ? AND shadow_table = ?`, r.cfg.StateTable)
	var updated interface{}
	err := r.db.QueryRowContext(ctx, q, r.cfg.GalleryID, r.cfg.ShadowTable).Scan(&state.LastSeq, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return state, nil
	}
	state.UpdatedAt = asTime(updated)
	return state, err
}

func (r *Replayer) saveState(ctx context.Context) error {
	q := fmt.Sprintf(`INSERT INTO %s(gallery_id, shadow_table, last_seq, updated_at) VALUES(?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(gallery_id, shadow_table) DO UPDATE SET last_seq = excluded.last_seq, updated_at = excluded.updated_at`, r.cfg.StateTable)
	_, err := r.db.ExecContext(ctx, q, r.cfg.GalleryID, r.cfg.ShadowTable, r.lastSeq)
	return err
}

// Sync applies every pending log entry and returns how many entries were read.
// Entries covered by a rebuild's snapshot are consumed without being read.
func (r *Replayer) Sync(ctx context.Context) (int, error) {
	applied := 0
	for {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		entries, err := r.fetch(ctx)
		if err != nil {
			return applied, err
		}
		if len(entries) == 0 {
			return applied, nil
		}
		if requiresRebuild(entries) {
			if _, err := r.Rebuild(ctx); err != nil {
				return applied, err
			}
		} else {
			for i := range entries {
				if err := r.applyInsert(&entries[i]); err != nil {
					return applied, err
				}
				r.lastSeq = entries[i].Seq
			}
		}
		applied += len(entries)
		if err := r.saveState(ctx); err != nil {
			return applied, err
		}
	}
}

func requiresRebuild(entries []LogEntry) bool {
	for _, e := range entries {
		if e.Op != OpInsert {
			return true
		}
	}
	return false
}

func (r *Replayer) applyInsert(entry *LogEntry) error {
	payload, emb, err := entry.Decode()
	if err != nil {
		r.logger.WithError(err).Warn("skipping undecodable log entry")
		return nil
	}
	err = r.gallery.Insert(emb, payload.ID)
	if errors.Is(err, gallery.ErrNotReady) {
		return err
	}
	if err != nil {
		r.logger.WithError(err).WithField("seq", entry.Seq).Warn("skipping face")
	}
	return nil
}

func (r *Replayer) fetch(ctx context.Context) ([]LogEntry, error) {
	q := fmt.Sprintf(`SELECT gallery_id, shadow_table, seq, op, face_id, payload, created_at FROM %s
WHERE gallery_id = ? AND shadow_table = ? AND seq > ? ORDER BY seq LIMIT ?`, r.cfg.LogTable)
	rows, err := r.db.QueryContext(ctx, q, r.cfg.GalleryID, r.cfg.ShadowTable, r.lastSeq, r.cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		var created interface{}
		if err := rows.Scan(&e.GalleryID, &e.ShadowTable, &e.Seq, &e.Op, &e.FaceID, &e.Payload, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = asTime(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Rebuild swaps the gallery contents for the rows of the shadow table. The log
// position and the rows are read from one snapshot, so the replayer resumes
// exactly after the last change the rebuild observed. It returns the number
// of faces loaded.
func (r *Replayer) Rebuild(ctx context.Context) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var seq int64
	q := fmt.Sprintf(`SELECT COALESCE(MAX(seq), 0) FROM %s WHERE gallery_id = ? AND shadow_table = ?`, r.cfg.LogTable)
	if err := tx.QueryRowContext(ctx, q, r.cfg.GalleryID, r.cfg.ShadowTable).Scan(&seq); err != nil {
		return 0, err
	}

	q = fmt.Sprintf(`SELECT id, embedding FROM %s WHERE gallery_id = ? AND embedding IS NOT NULL ORDER BY rowid`, r.cfg.ShadowTable)
	rows, err := tx.QueryContext(ctx, q, r.cfg.GalleryID)
	if err != nil {
		return 0, err
	}
	var faces []gallery.Record
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			rows.Close()
			return 0, err
		}
		emb, err := vector.DecodeEmbedding(blob)
		if err != nil {
			rows.Close()
			return 0, err
		}
		faces = append(faces, gallery.Record{Vector: emb, ID: id})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	loaded := r.gallery.Replace(faces)
	r.lastSeq = seq
	r.logger.WithField("faces", loaded).WithField("seq", seq).Info("gallery rebuilt")
	return loaded, nil
}
