package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "sqlite", cfg.StorageType)
	assert.Equal(t, int64(500), cfg.DailySpendLimit)
	assert.False(t, cfg.ESEnabled)
	assert.Equal(t, "caminata", cfg.ESIndexPrefix)
	assert.Equal(t, 90, cfg.ESRetentionDays)
	assert.Equal(t, time.Hour, cfg.ArchiveInterval)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("STORAGE_TYPE", "memory")
	t.Setenv("DAILY_SPEND_LIMIT", "1000")
	t.Setenv("ES_ENABLED", "true")
	t.Setenv("ARCHIVE_INTERVAL", "30m")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "memory", cfg.StorageType)
	assert.Equal(t, int64(1000), cfg.DailySpendLimit)
	assert.True(t, cfg.ESEnabled)
	assert.Equal(t, 30*time.Minute, cfg.ArchiveInterval)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())

	t.Run("non-numeric limit", func(t *testing.T) {
		t.Setenv("DAILY_SPEND_LIMIT", "lots")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("non-positive limit", func(t *testing.T) {
		t.Setenv("DAILY_SPEND_LIMIT", "0")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("unknown storage type", func(t *testing.T) {
		t.Setenv("STORAGE_TYPE", "postgres")
		_, err := Load()
		assert.Error(t, err)
	})
}
