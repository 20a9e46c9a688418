package config

import (
	"fmt"
	"road-editor/utils"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORAGE", "AUTH_REQUIRED", "CHORD_LENGTH", "REBUILD_DELAY", "ORIGIN_LAT", "CLUSTER_TOLERANCE"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.False(t, cfg.AuthRequired)
	assert.Equal(t, 1.0, cfg.ChordLength)
	assert.Equal(t, 0.02, cfg.AngleStep)
	assert.Equal(t, 0.005, cfg.LaneEpsilon)
	assert.Equal(t, 8.0, cfg.ClusterTolerance)
	assert.Equal(t, 150*time.Millisecond, cfg.RebuildDelay)
	assert.Equal(t, 3.5, cfg.LaneWidth)
	assert.Equal(t, "default", cfg.SessionID)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STORAGE", "memory")
	t.Setenv("AUTH_REQUIRED", "true")
	t.Setenv("CHORD_LENGTH", "0.5")
	t.Setenv("REBUILD_DELAY", "40")
	t.Setenv("ORIGIN_LAT", "31.23")
	t.Setenv("ORIGIN_LON", "121.47")

	cfg := Load()
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.True(t, cfg.AuthRequired)
	assert.Equal(t, 0.5, cfg.ChordLength)
	assert.Equal(t, 40*time.Millisecond, cfg.RebuildDelay)
	assert.Equal(t, 31.23, cfg.Origin.Lat)
	assert.Equal(t, 121.47, cfg.Origin.Lon)

	opts := cfg.EditorOptions()
	assert.Equal(t, 0.5, opts.Sampler.ChordLength)
	assert.Equal(t, cfg.Origin, opts.Origin)
	assert.Equal(t, 0.5, cfg.BuildOptions().Sampler.ChordLength)

	t.Setenv("REBUILD_DELAY", "2s")
	assert.Equal(t, 2*time.Second, Load().RebuildDelay)
}

func TestLoadInvalidFallsBack(t *testing.T) {
	var warnings []string
	prev := utils.SetLogger(func(format string, v ...interface{}) {
		warnings = append(warnings, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { utils.SetLogger(prev) })

	t.Setenv("STORAGE", "sqlite")
	t.Setenv("CHORD_LENGTH", "abc")
	t.Setenv("CLUSTER_TOLERANCE", "-3")
	t.Setenv("AUTH_REQUIRED", "maybe")
	t.Setenv("REBUILD_DELAY", "soon")

	cfg := Load()
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, 1.0, cfg.ChordLength)
	assert.Equal(t, 8.0, cfg.ClusterTolerance)
	assert.False(t, cfg.AuthRequired)
	assert.Equal(t, 150*time.Millisecond, cfg.RebuildDelay)
	assert.Len(t, warnings, 5)
}
