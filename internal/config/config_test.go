package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")
	t.Setenv("FOLIOS_DATA_DIR", dataDir)
	t.Setenv("FOLIOS_PORT", "9100")
	t.Setenv("BATCH_POLL_INTERVAL_SECONDS", "5")
	t.Setenv("BATCH_MAX_POLLS", "12")
	t.Setenv("RESEARCH_HOUR_UTC", "14")
	t.Setenv("DEV_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dataDir, "artifacts"), cfg.ArtifactDir)
	assert.DirExists(t, cfg.ArtifactDir)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 12, cfg.MaxPolls)
	assert.Equal(t, 14, cfg.ResearchHour)
	assert.Equal(t, 30, cfg.ResearchMinute)
	assert.True(t, cfg.DevMode)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FOLIOS_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)
	assert.Zero(t, cfg.PollInterval)
	assert.Zero(t, cfg.MaxPolls)
	assert.Equal(t, 9, cfg.ResearchHour)
	assert.Equal(t, 30, cfg.ResearchMinute)
	assert.Empty(t, cfg.ArchiveBucket)
	assert.Equal(t, "artifacts", cfg.ArchivePrefix)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{Port: 8001, ResearchHour: 9, ResearchMinute: 30}
	require.NoError(t, valid.Validate())

	badPort := valid
	badPort.Port = 0
	assert.Error(t, badPort.Validate())

	badHour := valid
	badHour.ResearchHour = 24
	assert.Error(t, badHour.Validate())

	badMinute := valid
	badMinute.ResearchMinute = -1
	assert.Error(t, badMinute.Validate())
}
