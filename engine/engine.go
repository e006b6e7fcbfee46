package engine

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// Open opens a SQLite database using the modernc.org/sqlite driver.
//
// For file-based databases, pass a path like "./faces.sqlite". For in-memory
// databases, pass ":memory:".
func Open(dsn string) (*sql.DB, error) { return sql.Open("sqlite", dsn) }

// OpenFile opens a file database in WAL mode with a busy timeout so that the
// virtual table's internal queries can run beside the caller's connection.
func OpenFile(path string, busyTimeoutMs int) (*sql.DB, error) {
	if busyTimeoutMs <= 0 {
		busyTimeoutMs = 5000
	}
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	pragmas := fmt.Sprintf(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=%d;`, busyTimeoutMs)
	if _, err := db.Exec(pragmas); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("engine: failed to apply pragmas: %w", err)
	}
	return db, nil
}
