// Package engine provides helpers for working with the modernc.org/sqlite
// driver in this module: opening connections and registering the kd_l2 and
// kd_l2sq scalar functions over embedding BLOBs.
package engine
