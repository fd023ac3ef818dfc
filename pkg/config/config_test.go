package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "data/curbcast.db", cfg.Database.Path)
	assert.Equal(t, 300, cfg.Serving.CacheTTLSeconds)
	assert.Len(t, cfg.Neighborhoods, 10)
}

func TestLoadExpandsEnvReferences(t *testing.T) {
	t.Setenv("CURBCAST_TEST_DB", "/tmp/env.db")

	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := "database:\n  path: ${CURBCAST_TEST_DB}\nserving:\n  cache_ttl_seconds: 60\n"
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
	assert.Equal(t, 60, cfg.Serving.CacheTTLSeconds)
	// Untouched groups keep defaults
	assert.Equal(t, 0.4, cfg.Confidence.MeterDataWeight)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: ["), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDurationParsing(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"300", 300 * time.Second},
		{"10m", 10 * time.Minute},
		{"1h30m", 90 * time.Minute},
		{"", 0},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseDuration("soon")
	assert.Error(t, err)
}

func TestZoneHelpers(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "commercial", cfg.ZoneForNeighborhood("financial_district"))
	assert.Equal(t, "residential", cfg.ZoneForNeighborhood("marina"))
	assert.Equal(t, "mixed", cfg.ZoneForNeighborhood("atlantis"))

	assert.Equal(t, 2.5, cfg.BaseChurn("commercial"))
	assert.Equal(t, 1.0, cfg.BaseChurn("unknown"))

	assert.Equal(t, 1.25, cfg.TransferMultiplier("commercial"))
	assert.Equal(t, 1.20, cfg.TransferMultiplier("unknown"))
}
