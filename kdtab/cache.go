package kdtab

import (
	"database/sql/driver"
	"strings"
	"sync"

	sqlite "modernc.org/sqlite"

	idxapi "github.com/viant/sqlite-kdtree/index"
)

// Global shared cache of trees keyed by db path/table/gallery for cross-connection reuse.
var sharedCache = struct {
	mu    sync.RWMutex
	byKey map[string]*cacheEntry
}{byKey: make(map[string]*cacheEntry)}

var registerInvalidateOnce sync.Once

// cacheEntry allows a single builder per key; other callers wait on cond.
type cacheEntry struct {
	mu       sync.RWMutex
	idx      idxapi.Index
	building bool
	cond     *sync.Cond
}

func newCacheEntry() *cacheEntry {
	e := &cacheEntry{}
	e.cond = sync.NewCond(&e.mu)
	return e
}

func (e *cacheEntry) get() idxapi.Index {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.idx
}

func (e *cacheEntry) set(idx idxapi.Index) {
	e.mu.Lock()
	e.idx = idx
	e.mu.Unlock()
}

func (e *cacheEntry) waitForBuild() idxapi.Index {
	e.mu.Lock()
	for e.building {
		e.cond.Wait()
	}
	idx := e.idx
	e.mu.Unlock()
	return idx
}

func (e *cacheEntry) startBuild() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.idx != nil || e.building {
		return false
	}
	e.building = true
	return true
}

func (e *cacheEntry) finishBuild() {
	e.mu.Lock()
	e.building = false
	e.cond.Broadcast()
	e.mu.Unlock()
}

func cacheKey(dbPath, tableName, gallery string) string {
	return dbPath + "|" + tableName + "|" + gallery
}

func getCacheEntry(key string) *cacheEntry {
	sharedCache.mu.RLock()
	entry := sharedCache.byKey[key]
	sharedCache.mu.RUnlock()
	if entry != nil {
		return entry
	}
	sharedCache.mu.Lock()
	defer sharedCache.mu.Unlock()
	if entry = sharedCache.byKey[key]; entry == nil {
		entry = newCacheEntry()
		sharedCache.byKey[key] = entry
	}
	return entry
}

// InvalidateCache drops cached trees for a shadow table; an empty gallery
// drops every gallery of that table. It returns the number of entries cleared.
func InvalidateCache(shadow, gallery string) int {
	sharedCache.mu.Lock()
	defer sharedCache.mu.Unlock()
	count := 0
	tableName := tableNameFromShadow(shadow)
	if tableName == "" {
		tableName = shadow
	}
	if gallery == "" {
		pattern := "|" + tableName + "|"
		for k, entry := range sharedCache.byKey {
			if strings.Contains(k, pattern) && entry.get() != nil {
				entry.set(nil)
				count++
			}
		}
		return count
	}
	suffix := "|" + tableName + "|" + gallery
	for k, entry := range sharedCache.byKey {
		if strings.HasSuffix(k, suffix) && entry.get() != nil {
			entry.set(nil)
			count++
		}
	}
	return count
}

// invalidateFunc implements SQL scalar kd_invalidate(shadow TEXT, gallery TEXT) → INT.
func invalidateFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 || args[0] == nil {
		return int64(0), nil
	}
	shadow, err := asString(args[0])
	if err != nil {
		return int64(0), nil
	}
	gallery, err := asString(args[1])
	if err != nil {
		return int64(0), nil
	}
	return int64(InvalidateCache(shadow, gallery)), nil
}

func init() { registerInvalidate() }

func registerInvalidate() {
	registerInvalidateOnce.Do(func() {
		_ = sqlite.RegisterDeterministicScalarFunction("kd_invalidate", 2, invalidateFunc)
	})
}
