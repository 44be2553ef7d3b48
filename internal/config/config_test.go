package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "webspace.db", cfg.DatabasePath)
	assert.Equal(t, 24*time.Hour, cfg.DedupWindow)
	assert.Equal(t, 0.7, cfg.SimilarityThreshold)
	assert.Equal(t, 0.01, cfg.MassTolerance)
	assert.Equal(t, 5*time.Minute, cfg.DateTolerance)
	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.Equal(t, time.Minute, cfg.RetryBaseDelay)
	assert.Zero(t, cfg.RunInterval)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("WEBSPACE_MAX_PARALLEL", "8")
	t.Setenv("WEBSPACE_LEASE_TTL", "5m")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.MaxParallel)
	assert.Equal(t, 5*time.Minute, cfg.LeaseTTL)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "webspace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"database_path: /tmp/test.db\nmax_parallel: 2\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/test.db", cfg.DatabasePath)
	assert.Equal(t, 2, cfg.MaxParallel)
}

func TestLoadSources(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`sources:
  - name: official
    url: https://official.example/launches.json
    adapter: http
    priority: 3
    quality: 0.95
  - name: backup
    url: https://backup.example/feed.json
    adapter: http
    priority: 2
    quality: 0.8
`), 0o644))

	srcs, err := LoadSources(path)
	require.NoError(t, err)
	require.Len(t, srcs, 2)
	assert.Equal(t, "official", srcs[0].Name)
	assert.Equal(t, 3, srcs[0].Priority)
	assert.Equal(t, 0.95, srcs[0].Quality)
}

func TestLoadSourcesRejectsBadQuality(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"sources:\n  - name: official\n    quality: 1.5\n"), 0o644))

	_, err := LoadSources(path)
	assert.Error(t, err)
}

func TestRankingOrder(t *testing.T) {
	cfg := &Config{}
	srcs, err := LoadSources(writeSources(t))
	require.NoError(t, err)
	cfg.Sources = srcs

	assert.Equal(t, []string{"official", "backup", "community"}, cfg.Ranking())
}

func writeSources(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`sources:
  - name: community
    priority: 1
  - name: official
    priority: 3
  - name: backup
    priority: 2
`), 0o644))
	return path
}
