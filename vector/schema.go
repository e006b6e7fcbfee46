package vector

import (
	"database/sql"
)

const facesSchema = `
CREATE TABLE IF NOT EXISTS faces (
    gallery_id TEXT NOT NULL,
    id TEXT NOT NULL,
    label TEXT,
    embedding BLOB NOT NULL,
    PRIMARY KEY (gallery_id, id)
);
`

// EnsureSchema creates the faces table if it does not already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(facesSchema)
	return err
}
