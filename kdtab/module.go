package kdtab

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"modernc.org/sqlite/vtab"

	"github.com/viant/sqlite-kdtree/internal/kd/tree"
	"github.com/viant/sqlite-kdtree/internal/logging"
)

const (
	// ModuleName is the name used in CREATE VIRTUAL TABLE ... USING kdtree(...).
	ModuleName = "kdtree"

	indexKindKDTree = "kdtree"
	indexKindBrute  = "brute"
)

// Module implements vtab.Module for the kdtree virtual table.
type Module struct {
	db     *sql.DB
	logger *logging.Logger
}

// Table represents a single kdtree virtual table instance.
type Table struct {
	db        *sql.DB
	dbName    string
	tableName string
	shadow    string // qualified shadow table name (e.g. "main._kd_faces_knn")
	logger    *logging.Logger

	dbPathOnce sync.Once
	dbPath     string

	dimension int
	indexKind string
}

// Option configures the registered module.
type Option func(*Module)

// WithLogger sets the logger used for index builds.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Module) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Register registers the kdtree virtual table module with the provided *sql.DB.
func Register(db *sql.DB, opts ...Option) error {
	mod := &Module{db: db, logger: logging.Discard()}
	for _, opt := range opts {
		opt(mod)
	}
	if err := vtab.RegisterModule(db, ModuleName, mod); err != nil {
		if !strings.Contains(err.Error(), "already registered") {
			return err
		}
	}
	// Register kd_invalidate globally for new connections; idempotent.
	registerInvalidate()
	return nil
}

type tableOptions struct {
	column    string
	dimension int
	indexKind string
}

// tableSettings is what a rebuild needs to reproduce a table's own index.
type tableSettings struct {
	dimension int
	indexKind string
	logger    *logging.Logger
}

// declaredTables maps "<db>.<table>" to the settings of every kdtree table
// created or connected in this process.
var declaredTables = struct {
	mu     sync.RWMutex
	byName map[string]tableSettings
}{byName: make(map[string]tableSettings)}

func declaredKey(dbName, tableName string) string {
	if dbName == "" {
		dbName = "main"
	}
	return strings.ToLower(dbName + "." + tableName)
}

func declareTable(dbName, tableName string, settings tableSettings) {
	declaredTables.mu.Lock()
	declaredTables.byName[declaredKey(dbName, tableName)] = settings
	declaredTables.mu.Unlock()
}

func forgetTable(dbName, tableName string) {
	declaredTables.mu.Lock()
	delete(declaredTables.byName, declaredKey(dbName, tableName))
	declaredTables.mu.Unlock()
}

func lookupTableSettings(dbName, tableName string) (tableSettings, bool) {
	declaredTables.mu.RLock()
	defer declaredTables.mu.RUnlock()
	settings, ok := declaredTables.byName[declaredKey(dbName, tableName)]
	return settings, ok
}

// parseArgs reads USING kdtree(<column>, dim=<n>, index=kdtree|brute).
func parseArgs(args []string) (tableOptions, error) {
	opts := tableOptions{column: "person_id", dimension: tree.DefaultDimension, indexKind: indexKindKDTree}
	for i, raw := range args {
		a := strings.TrimSpace(raw)
		if a == "" {
			continue
		}
		parts := strings.SplitN(a, "=", 2)
		if len(parts) != 2 {
			if i == 0 {
				opts.column = a
				continue
			}
			return opts, fmt.Errorf("kdtab: unexpected argument %q", a)
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		val := strings.TrimSpace(parts[1])
		switch key {
		case "dim", "dimension":
			n, err := strconv.Atoi(val)
			if err != nil || n <= 0 {
				return opts, fmt.Errorf("kdtab: invalid dimension %q", val)
			}
			opts.dimension = n
		case "index":
			switch strings.ToLower(val) {
			case indexKindKDTree, indexKindBrute:
				opts.indexKind = strings.ToLower(val)
			default:
				return opts, fmt.Errorf("kdtab: unsupported index %q", val)
			}
		default:
			return opts, fmt.Errorf("kdtab: unknown option %q", key)
		}
	}
	return opts, nil
}

func (m *Module) newTable(ctx vtab.Context, args []string, op string) (vtab.Table, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("kdtab: %s expects at least 3 args, got %d", op, len(args))
	}
	if err := ctx.EnableConstraintSupport(); err != nil {
		return nil, fmt.Errorf("kdtab: EnableConstraintSupport failed: %w", err)
	}
	opts, err := parseArgs(args[3:])
	if err != nil {
		return nil, err
	}
	// Declare the virtual table schema with hidden distance and k columns.
	if err := ctx.Declare(fmt.Sprintf("CREATE TABLE %s(gallery_id TEXT, %s TEXT, distance REAL HIDDEN, k INTEGER HIDDEN)", args[2], opts.column)); err != nil {
		return nil, err
	}
	t := &Table{
		db:        m.db,
		dbName:    args[1],
		tableName: args[2],
		logger:    m.logger.With("table", args[2]),
		dimension: opts.dimension,
		indexKind: opts.indexKind,
	}
	t.shadow = ShadowName(t.dbName, t.tableName)
	declareTable(t.dbName, t.tableName, tableSettings{dimension: t.dimension, indexKind: t.indexKind, logger: t.logger})
	// Shadow DDL is deferred to first use to avoid cross-connection DDL during xCreate.
	return t, nil
}

// Create initializes a kdtree table instance.
func (m *Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.newTable(ctx, args, "CREATE")
}

// Connect attaches to an existing kdtree table instance.
func (m *Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.newTable(ctx, args, "CONNECT")
}

const (
	idxGalleryScan = iota
	idxGalleryMatch
	idxGalleryMatchK
)

const (
	colGallery = iota
	colID
	colDistance
	colK
)

// BestIndex pushes down gallery_id equality, MATCH on the id column and k.
func (t *Table) BestIndex(info *vtab.IndexInfo) error {
	var (
		galleryConstraint *vtab.Constraint
		matchConstraint   *vtab.Constraint
		kConstraint       *vtab.Constraint
		nextArg           int
	)

	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable {
			continue
		}
		switch {
		case c.Column == colGallery && c.Op == vtab.OpEQ:
			galleryConstraint = c
		case c.Column == colID && c.Op == vtab.OpMATCH:
			matchConstraint = c
		case c.Column == colK && c.Op == vtab.OpEQ:
			kConstraint = c
		}
	}

	if galleryConstraint == nil {
		if matchConstraint != nil {
			return fmt.Errorf("kdtab: gallery_id constraint is required with MATCH")
		}
		return fmt.Errorf("kdtab: gallery_id constraint required")
	}
	galleryConstraint.ArgIndex = nextArg
	galleryConstraint.Omit = true
	nextArg++

	if matchConstraint == nil {
		info.IdxNum = idxGalleryScan
		return nil
	}
	matchConstraint.ArgIndex = nextArg
	matchConstraint.Omit = true
	nextArg++
	info.IdxNum = idxGalleryMatch
	if kConstraint != nil {
		kConstraint.ArgIndex = nextArg
		kConstraint.Omit = true
		info.IdxNum = idxGalleryMatchK
	}
	return nil
}

// Open allocates a new cursor.
func (t *Table) Open() (vtab.Cursor, error) { return &Cursor{table: t}, nil }

// Disconnect cleans up per-connection resources.
func (t *Table) Disconnect() error { return nil }

// Destroy drops cached trees; the shadow table persists.
func (t *Table) Destroy() error {
	InvalidateCache(t.shadow, "")
	forgetTable(t.dbName, t.tableName)
	return nil
}
