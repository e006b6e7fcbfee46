package kdtab

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const shadowPrefix = "_kd_"

// ShadowName returns the shadow table name of a kdtree virtual table.
func ShadowName(dbName, tableName string) string {
	base := shadowPrefix + tableName
	if strings.TrimSpace(dbName) == "" {
		return base
	}
	return dbName + "." + base
}

// ShadowDDL returns the statements creating a shadow table and the triggers
// that invalidate cached trees whenever its rows change.
func ShadowDDL(shadow string) []string {
	trigBase := sanitizeName("trg_kd_" + shadow)
	shadowLit := quoteLiteral(shadow)
	invNew := `SELECT kd_invalidate(` + shadowLit + `, NEW.gallery_id);`
	invOld := `SELECT kd_invalidate(` + shadowLit + `, OLD.gallery_id);`
	return []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    gallery_id TEXT NOT NULL,
    id TEXT NOT NULL,
    label TEXT,
    embedding BLOB,
    PRIMARY KEY(gallery_id, id)
);`, shadow),
		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s_ins AFTER INSERT ON %s BEGIN %s END;`, trigBase, shadow, invNew),
		// Both galleries are invalidated so that moving a face between galleries is seen.
		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s_upd AFTER UPDATE ON %s BEGIN %s %s END;`, trigBase, shadow, invNew, invOld),
		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s_del AFTER DELETE ON %s BEGIN %s END;`, trigBase, shadow, invOld),
	}
}

// EnsureShadow creates the shadow table and its triggers when missing.
func EnsureShadow(ctx context.Context, db *sql.DB, shadow string) error {
	if db == nil {
		return fmt.Errorf("kdtab: db is nil")
	}
	for _, stmt := range ShadowDDL(shadow) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("kdtab: failed to prepare shadow %s: %w", shadow, err)
		}
	}
	return nil
}

func splitShadow(shadow string) (dbName, tableName string) {
	if i := strings.Index(shadow, "."+shadowPrefix); i >= 0 {
		return shadow[:i], shadow[i+1+len(shadowPrefix):]
	}
	if strings.HasPrefix(shadow, shadowPrefix) {
		return "", strings.TrimPrefix(shadow, shadowPrefix)
	}
	return "", ""
}

func tableNameFromShadow(shadow string) string {
	_, tableName := splitShadow(shadow)
	return tableName
}

func resolveDbPath(ctx context.Context, db *sql.DB, dbName string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("kdtab: db is nil")
	}
	rows, err := db.QueryContext(ctx, `SELECT name, file FROM pragma_database_list`)
	if err != nil {
		return "", err
	}
	defer rows.Close()
	want := dbName
	if want == "" {
		want = "main"
	}
	for rows.Next() {
		var name, file string
		if err := rows.Scan(&name, &file); err != nil {
			return "", err
		}
		if name != want {
			continue
		}
		if file == "" {
			return name, nil
		}
		return file, nil
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return want, nil
}

// sanitizeName converts a qualified name into a safe identifier for triggers.
func sanitizeName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch r {
		case '.', '-', ' ':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

// quoteLiteral returns SQL string literal with single quotes escaped.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
