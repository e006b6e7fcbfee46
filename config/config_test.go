package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kdtree.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Addr)
	assert.Equal(t, 128, cfg.Index.Dimension)
	assert.Equal(t, 100, cfg.Index.MaxIDLength)
	assert.False(t, cfg.Sync.Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
addr: 127.0.0.1:9000
log:
  level: debug
  format: json
index:
  dimension: 64
sync:
  database: /tmp/faces.db
  gallery_id: lobby
  interval: 250ms
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 64, cfg.Index.Dimension)
	assert.Equal(t, 100, cfg.Index.MaxIDLength)
	assert.True(t, cfg.Sync.Enabled())
	assert.Equal(t, "lobby", cfg.Sync.GalleryID)
	assert.Equal(t, "main._kd_faces", cfg.Sync.ShadowTable)
	assert.Equal(t, 250*time.Millisecond, cfg.Sync.Interval)
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		description string
		content     string
	}{
		{description: "negative dimension", content: "index:\n  dimension: -1\n"},
		{description: "tiny id buffer", content: "index:\n  max_id_length: 1\n"},
		{description: "empty addr", content: "addr: \"\"\n"},
		{description: "sync without gallery", content: "sync:\n  database: x.db\n  gallery_id: \"\"\n"},
		{description: "malformed yaml", content: "index: [\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Index.Dimension = 32
	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
