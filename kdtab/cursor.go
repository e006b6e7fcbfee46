package kdtab

import (
	"context"
	"fmt"

	"modernc.org/sqlite/vtab"
)

type resultRow struct {
	rowid    int64
	gallery  string
	id       string
	distance float64
}

// Cursor scans results from a kdtree table.
type Cursor struct {
	table *Table
	rows  []resultRow
	pos   int
	k     int64
}

// Filter computes the result set based on idxNum/vals.
func (c *Cursor) Filter(idxNum int, _ string, vals []vtab.Value) error {
	c.rows = nil
	c.pos = 0
	c.k = 0
	if c.table == nil || c.table.db == nil {
		return nil
	}
	ctx := context.Background()
	if len(vals) == 0 || vals[0] == nil {
		return fmt.Errorf("kdtab: gallery_id argument is required")
	}
	gallery, err := asString(vals[0])
	if err != nil {
		return err
	}

	switch idxNum {
	case idxGalleryScan:
		rows, err := c.table.scan(ctx, gallery)
		if err != nil {
			return err
		}
		c.rows = rows
		return nil
	case idxGalleryMatch, idxGalleryMatchK:
		if len(vals) < 2 || vals[1] == nil {
			return fmt.Errorf("kdtab: MATCH argument is required")
		}
		query, err := decodeMatchArg(vals[1])
		if err != nil {
			return err
		}
		if len(query) != c.table.dimension {
			return fmt.Errorf("kdtab: query dimension %d != table dimension %d", len(query), c.table.dimension)
		}
		k := 0
		if idxNum == idxGalleryMatchK {
			if len(vals) < 3 || vals[2] == nil {
				return fmt.Errorf("kdtab: missing k constraint")
			}
			if k, err = asInt(vals[2]); err != nil {
				return err
			}
			c.k = int64(k)
			if k <= 0 {
				return nil
			}
		}
		rows, err := c.table.match(ctx, gallery, query, k)
		if err != nil {
			return err
		}
		c.rows = rows
		if idxNum == idxGalleryMatch {
			c.k = int64(len(rows))
		}
		return nil
	default:
		return fmt.Errorf("kdtab: unsupported query plan")
	}
}

// Next advances the cursor.
func (c *Cursor) Next() error {
	if c.pos < len(c.rows) {
		c.pos++
	}
	return nil
}

// Eof reports end-of-rows.
func (c *Cursor) Eof() bool { return c.pos >= len(c.rows) }

// Column returns the value of a column in the current row.
func (c *Cursor) Column(col int) (vtab.Value, error) {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return nil, fmt.Errorf("kdtab: Column out of range (pos=%d,len=%d)", c.pos, len(c.rows))
	}
	row := c.rows[c.pos]
	switch col {
	case colGallery:
		return row.gallery, nil
	case colID:
		return row.id, nil
	case colDistance:
		return row.distance, nil
	case colK:
		return c.k, nil
	}
	return nil, fmt.Errorf("kdtab: unsupported column %d", col)
}

// Rowid returns the current rowid.
func (c *Cursor) Rowid() (int64, error) {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return 0, fmt.Errorf("kdtab: Rowid out of range (pos=%d,len=%d)", c.pos, len(c.rows))
	}
	return c.rows[c.pos].rowid, nil
}

// Close releases resources.
func (c *Cursor) Close() error { c.rows = nil; c.pos = 0; return nil }
