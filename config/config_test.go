package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadSearchesUpwards(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte(`
table: Forum-dev
local:
  enabled: true
  in_memory: true
limits:
  max: 50
retry:
  base_delay: 10ms
  max_delay: 1s
log:
  level: debug
`), 0o644))
	t.Chdir(nested)

	assert.Equal(t, filepath.Join(root, FileName), Find())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "Forum-dev", cfg.Table)
	assert.True(t, cfg.Local.Enabled)
	assert.True(t, cfg.Local.InMemory)
	assert.Equal(t, 50, cfg.Limits.Max)
	assert.Equal(t, 20, cfg.Limits.Default)
	assert.Equal(t, 10*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 100, cfg.CascadeOptions().PageSize)
}

func TestLoadWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Table, cfg.Table)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PAIRENT_TABLE", "FromEnv")
	t.Setenv("PAIRENT_LIMITS_MAX", "30")
	t.Setenv("PAIRENT_METRICS_ENABLED", "true")
	t.Setenv("PAIRENT_CASCADE_BATCH_TIMEOUT", "3s")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "FromEnv", cfg.Table)
	assert.Equal(t, 3*time.Second, cfg.CascadeOptions().BatchTimeout)
	assert.Equal(t, 30, cfg.Limits.Max)
	assert.True(t, cfg.Metrics.Enabled)

	t.Setenv("PAIRENT_CASCADE_PAGE_SIZE", "lots")
	_, err = Load("")
	assert.ErrorContains(t, err, "PAIRENT_CASCADE_PAGE_SIZE")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"default above max", func(c *Config) { c.Limits.Default = 500 }, "limits"},
		{"zero min", func(c *Config) { c.Limits.Min = 0 }, "limits"},
		{"no table", func(c *Config) { c.Table = "" }, "table"},
		{"tiny cascade page", func(c *Config) { c.Cascade.PageSize = 1 }, "page_size"},
		{"inverted delays", func(c *Config) { c.Retry.MaxDelay = time.Millisecond; c.Retry.BaseDelay = time.Second }, "retry delays"},
		{"negative batch timeout", func(c *Config) { c.Cascade.BatchTimeout = -time.Second }, "batch_timeout"},
		{"search batches", func(c *Config) { c.Search.MaxBatch = 1 }, "search"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, store.ErrInvalidArgument)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
