package kdsync

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/viant/sqlite-kdtree/vector"
)

// Log operations.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// LogEntry mirrors a single row of the change-log table.
type LogEntry struct {
	GalleryID   string
	ShadowTable string
	Seq         int64
	Op          string
	FaceID      string
	Payload     []byte
	CreatedAt   time.Time
}

// Payload is the JSON document written by the log triggers.
type Payload struct {
	GalleryID string `json:"gallery_id"`
	ID        string `json:"id"`
	Label     string `json:"label"`
	Embedding string `json:"embedding"`
}

// Decode parses the entry payload and its hex-encoded embedding.
func (e *LogEntry) Decode() (*Payload, []float32, error) {
	var p Payload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return nil, nil, fmt.Errorf("kdsync: invalid payload at seq %d: %w", e.Seq, err)
	}
	raw, err := hex.DecodeString(p.Embedding)
	if err != nil {
		return nil, nil, fmt.Errorf("kdsync: invalid embedding at seq %d: %w", e.Seq, err)
	}
	emb, err := vector.DecodeEmbedding(raw)
	if err != nil {
		return nil, nil, err
	}
	return &p, emb, nil
}

// SyncState describes the latest sequence applied locally for a gallery/shadow pair.
type SyncState struct {
	GalleryID   string
	ShadowTable string
	LastSeq     int64
	UpdatedAt   time.Time
}

// Config captures the settings for replaying one gallery of a shadow table.
type Config struct {
	// GalleryID identifies the gallery being replayed.
	GalleryID string

	// ShadowTable is the shadow table name (e.g., "main._kd_faces_knn").
	ShadowTable string

	// LogTable and StateTable default to DefaultLogTable and DefaultStateTable.
	LogTable   string
	StateTable string

	// BatchSize controls how many log entries are fetched per iteration.
	BatchSize int
}

func (c *Config) init() {
	if c.LogTable == "" {
		c.LogTable = DefaultLogTable
	}
	if c.StateTable == "" {
		c.StateTable = DefaultStateTable
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 256
	}
}

const sqliteTimestamp = "2006-01-02 15:04:05"

// asTime converts a TIMESTAMP column value; the driver may return time.Time or text.
func asTime(v interface{}) time.Time {
	switch val := v.(type) {
	case time.Time:
		return val
	case string:
		t, _ := time.Parse(sqliteTimestamp, val)
		return t
	case []byte:
		t, _ := time.Parse(sqliteTimestamp, string(val))
		return t
	}
	return time.Time{}
}
