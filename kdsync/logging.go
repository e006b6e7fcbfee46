package kdsync

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/viant/sqlite-kdtree/kdtab"
)

const (
	// DefaultLogTable captures row-level face changes.
	DefaultLogTable = "kd_shadow_log"

	// DefaultSeqTable stores the next sequence number per gallery.
	DefaultSeqTable = "kd_gallery_seq"

	// DefaultStateTable stores the last applied sequence per replica.
	DefaultStateTable = "kd_sync_state"
)

// LogTableDDL returns the DDL for the change-log table.
func LogTableDDL(logTable string) string {
	if logTable == "" {
		logTable = DefaultLogTable
	}
	return `CREATE TABLE IF NOT EXISTS ` + logTable + ` (
    gallery_id   TEXT NOT NULL,
    shadow_table TEXT NOT NULL,
    seq          INTEGER NOT NULL,
    op           TEXT NOT NULL,
    face_id      TEXT NOT NULL,
    payload      BLOB NOT NULL,
    created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY(gallery_id, shadow_table, seq)
);`
}

// SeqTableDDL returns the DDL for tracking the next sequence per gallery.
func SeqTableDDL(seqTable string) string {
	if seqTable == "" {
		seqTable = DefaultSeqTable
	}
	return `CREATE TABLE IF NOT EXISTS ` + seqTable + ` (
    gallery_id TEXT PRIMARY KEY,
    next_seq   INTEGER NOT NULL
);`
}

// StateTableDDL returns the DDL for replica sync state.
func StateTableDDL(stateTable string) string {
	if stateTable == "" {
		stateTable = DefaultStateTable
	}
	return `CREATE TABLE IF NOT EXISTS ` + stateTable + ` (
    gallery_id   TEXT NOT NULL,
    shadow_table TEXT NOT NULL,
    last_seq     INTEGER NOT NULL,
    updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY(gallery_id, shadow_table)
);`
}

// ShadowLogTriggers returns the trigger DDL statements capturing inserts,
// updates and deletes against a kdtree shadow table into the log table. The
// payload is a JSON object with a hex-encoded embedding.
func ShadowLogTriggers(shadowTable, seqTable, logTable string) []string {
	if seqTable == "" {
		seqTable = DefaultSeqTable
	}
	if logTable == "" {
		logTable = DefaultLogTable
	}
	base := sanitizeIdentifier(shadowTable)
	payload := func(alias string) string {
		return fmt.Sprintf(`json_object(
        'gallery_id', %[1]s.gallery_id,
        'id', %[1]s.id,
        'label', %[1]s.label,
        'embedding', lower(hex(%[1]s.embedding))
    )`, alias)
	}
	advance := func(alias string) string {
		return fmt.Sprintf(`INSERT INTO %[1]s(gallery_id, next_seq)
    VALUES (%[2]s.gallery_id, 1)
    ON CONFLICT(gallery_id) DO UPDATE SET next_seq = next_seq + 1;`, seqTable, alias)
	}
	seqExpr := func(alias string) string {
		return fmt.Sprintf(`(SELECT next_seq FROM %s WHERE gallery_id = %s.gallery_id)`, seqTable, alias)
	}
	trigger := func(suffix, event, op, alias string) string {
		return fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s_%s AFTER %s ON %s
BEGIN
    %s
    INSERT INTO %s(gallery_id, shadow_table, seq, op, face_id, payload)
    VALUES (
        %s.gallery_id,
        '%s',
        %s,
        '%s',
        %s.id,
        %s
    );
END;`, base, suffix, event, shadowTable, advance(alias), logTable, alias, shadowTable, seqExpr(alias), op, alias, payload(alias))
	}
	return []string{
		trigger("ai", "INSERT", OpInsert, "NEW"),
		trigger("au", "UPDATE", OpUpdate, "NEW"),
		trigger("ad", "DELETE", OpDelete, "OLD"),
	}
}

func sanitizeIdentifier(name string) string {
	if name == "" {
		return ""
	}
	replacer := strings.NewReplacer(".", "_", "-", "_")
	return replacer.Replace(name)
}

// Install creates the shadow table, the log and sequence tables and the
// capture triggers. It is safe to call on an already configured database.
func Install(ctx context.Context, db *sql.DB, shadowTable string) error {
	if err := kdtab.EnsureShadow(ctx, db, shadowTable); err != nil {
		return err
	}
	stmts := append([]string{LogTableDDL(""), SeqTableDDL("")}, ShadowLogTriggers(shadowTable, "", "")...)
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("kdsync: install %s: %w", shadowTable, err)
		}
	}
	return nil
}
