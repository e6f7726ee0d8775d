// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	DataDir     string // base directory for databases (always absolute)
	ArtifactDir string // base directory for per-task artifacts
	Port        int
	LogLevel    string
	DevMode     bool

	// Provider plugin definitions, loaded from PROVIDERS_CONFIG when set.
	ProvidersPath string

	// Batch runtime knobs. Zero values fall back to runtime defaults.
	PollInterval time.Duration
	MaxPolls     int

	// Screener credentials. Empty disables the Finnhub provider.
	FinnhubAPIKey string

	// Weekly research schedule (cron hour/minute, UTC).
	ResearchHour   int
	ResearchMinute int

	// S3 artifact archival. Empty bucket disables.
	ArchiveBucket string
	ArchivePrefix string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("FOLIOS_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	artifactDir := getEnv("FOLIOS_ARTIFACT_DIR", "")
	if artifactDir == "" {
		artifactDir = filepath.Join(absDataDir, "artifacts")
	}
	absArtifactDir, err := filepath.Abs(artifactDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve artifact directory path: %w", err)
	}
	if err := os.MkdirAll(absArtifactDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	cfg := &Config{
		DataDir:        absDataDir,
		ArtifactDir:    absArtifactDir,
		Port:           getEnvAsInt("FOLIOS_PORT", 8001),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		ProvidersPath:  getEnv("PROVIDERS_CONFIG", ""),
		PollInterval:   time.Duration(getEnvAsInt("BATCH_POLL_INTERVAL_SECONDS", 0)) * time.Second,
		MaxPolls:       getEnvAsInt("BATCH_MAX_POLLS", 0),
		FinnhubAPIKey:  getEnv("FINNHUB_API_KEY", ""),
		ResearchHour:   getEnvAsInt("RESEARCH_HOUR_UTC", 9),
		ResearchMinute: getEnvAsInt("RESEARCH_MINUTE_UTC", 30),
		ArchiveBucket:  getEnv("ARCHIVE_S3_BUCKET", ""),
		ArchivePrefix:  getEnv("ARCHIVE_S3_PREFIX", "artifacts"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if required configuration is present.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.ResearchHour < 0 || c.ResearchHour > 23 {
		return fmt.Errorf("invalid research hour %d", c.ResearchHour)
	}
	if c.ResearchMinute < 0 || c.ResearchMinute > 59 {
		return fmt.Errorf("invalid research minute %d", c.ResearchMinute)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
