package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sitepulse.db", cfg.Database.Path)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Scan.BatchSize)
	assert.Equal(t, 2, cfg.Scan.StartDelaySeconds)
	assert.Equal(t, 10, cfg.Scan.TickDelaySeconds)
	assert.False(t, cfg.Scan.CheckLinks)
	assert.Equal(t, []string{"post", "page"}, cfg.Scan.DefaultPostTypes)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sitepulse.toml")
	content := `
[database]
path = "/tmp/content.db"

[scan]
batch_size = 10
check_links = true

[server]
site_url = "https://blog.example.com"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/content.db", cfg.Database.Path)
	assert.Equal(t, 10, cfg.Scan.BatchSize)
	assert.True(t, cfg.Scan.CheckLinks)
	assert.Equal(t, "https://blog.example.com", cfg.Server.SiteURL)
	// Unset keys fall back to defaults
	assert.Equal(t, 10, cfg.Scan.TickDelaySeconds)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}
