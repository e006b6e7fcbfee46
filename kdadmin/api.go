// Package kdadmin exposes administrative operations on kdtree tables through
// a virtual table.
//
//	CREATE VIRTUAL TABLE kd_admin USING kd_admin(op);
//	SELECT op FROM kd_admin WHERE op MATCH 'main._kd_faces_knn'; -- rebuild trees
//
// A rebuild returns a single row with op='reindexed:<count>'.
package kdadmin

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"modernc.org/sqlite/vtab"

	"github.com/viant/sqlite-kdtree/kdtab"
)

// ModuleName is the name used in CREATE VIRTUAL TABLE ... USING kd_admin(op).
const ModuleName = "kd_admin"

type Module struct{ db *sql.DB }

type Table struct{ db *sql.DB }

type Cursor struct {
	table *Table
	rows  []string
	pos   int
}

func Register(db *sql.DB) error {
	if err := vtab.RegisterModule(db, ModuleName, &Module{db: db}); err != nil {
		if !strings.Contains(err.Error(), "already registered") {
			return err
		}
	}
	return nil
}

func (m *Module) declare(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("kd_admin: need at least 3 args")
	}
	// Single TEXT column `op` reporting results.
	if err := ctx.Declare(fmt.Sprintf("CREATE TABLE %s(op)", args[2])); err != nil {
		return nil, err
	}
	return &Table{db: m.db}, nil
}

func (m *Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.declare(ctx, args)
}

func (m *Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.declare(ctx, args)
}

func (t *Table) BestIndex(info *vtab.IndexInfo) error {
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable {
			continue
		}
		if c.Column == 0 && c.Op == vtab.OpMATCH {
			c.ArgIndex = 0
			c.Omit = true
			info.IdxNum = 1
			break
		}
	}
	return nil
}

func (t *Table) Open() (vtab.Cursor, error) { return &Cursor{table: t}, nil }
func (t *Table) Disconnect() error          { return nil }
func (t *Table) Destroy() error             { return nil }

func (c *Cursor) Filter(idxNum int, _ string, vals []vtab.Value) error {
	c.rows = nil
	c.pos = 0
	if idxNum != 1 || len(vals) == 0 || vals[0] == nil {
		return nil
	}
	shadow, ok := vals[0].(string)
	if !ok {
		return fmt.Errorf("kd_admin: MATCH expects shadow table name as TEXT")
	}
	n, err := kdtab.Reindex(context.Background(), c.table.db, strings.TrimSpace(shadow))
	if err != nil {
		return err
	}
	c.rows = []string{fmt.Sprintf("reindexed:%d", n)}
	return nil
}

func (c *Cursor) Next() error {
	if c.pos < len(c.rows) {
		c.pos++
	}
	return nil
}

func (c *Cursor) Eof() bool { return c.pos >= len(c.rows) }

func (c *Cursor) Column(col int) (vtab.Value, error) {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return nil, fmt.Errorf("kd_admin: Column out of range")
	}
	if col == 0 {
		return c.rows[c.pos], nil
	}
	return nil, nil
}

func (c *Cursor) Rowid() (int64, error) { return int64(c.pos + 1), nil }
func (c *Cursor) Close() error          { c.rows = nil; c.pos = 0; return nil }
