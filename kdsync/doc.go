// Package kdsync replays face changes recorded in kd_shadow_log into an
// in-memory gallery. SQLite triggers on a kdtree shadow table write one log
// row per insert, update or delete with a per-gallery sequence number; a
// Replayer applies the rows after its last applied sequence.
package kdsync
