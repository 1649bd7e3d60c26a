package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// HTTP server
	HTTPAddr string

	// Storage
	StorageType string // "sqlite" or "memory"
	DataDir     string

	// Economy settings
	DailySpendLimit int64 // Daily ceiling for capped coin spends

	// Elasticsearch archival (optional)
	ESEnabled       bool
	ESURL           string
	ESUsername      string
	ESPassword      string
	ESIndexPrefix   string
	ESRetentionDays int
	ArchiveInterval time.Duration

	// Environment
	Environment string // "development" or "production"
}

// Load reads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Only return error if file exists but couldn't be loaded
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	// Get working directory for resource paths
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	dailyLimit, err := getEnvInt64("DAILY_SPEND_LIMIT", 500)
	if err != nil {
		return nil, err
	}

	retentionDays, err := getEnvInt64("ES_RETENTION_DAYS", 90)
	if err != nil {
		return nil, err
	}

	archiveInterval, err := getEnvDuration("ARCHIVE_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        getEnvWithDefault("HTTP_ADDR", ":8080"),
		StorageType:     getEnvWithDefault("STORAGE_TYPE", "sqlite"),
		DataDir:         getEnvWithDefault("DATA_DIR", filepath.Join(wd, "data")),
		DailySpendLimit: dailyLimit,
		ESEnabled:       os.Getenv("ES_ENABLED") == "true",
		ESURL:           getEnvWithDefault("ES_URL", "http://localhost:9200"),
		ESUsername:      os.Getenv("ES_USERNAME"),
		ESPassword:      os.Getenv("ES_PASSWORD"),
		ESIndexPrefix:   getEnvWithDefault("ES_INDEX_PREFIX", "caminata"),
		ESRetentionDays: int(retentionDays),
		ArchiveInterval: archiveInterval,
		Environment:     getEnvWithDefault("ENVIRONMENT", "development"),
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// validate checks if all required configuration is present
func (c *Config) validate() error {
	if c.DailySpendLimit <= 0 {
		return fmt.Errorf("DAILY_SPEND_LIMIT must be positive, got %d", c.DailySpendLimit)
	}
	if c.StorageType != "sqlite" && c.StorageType != "memory" {
		return fmt.Errorf("STORAGE_TYPE must be \"sqlite\" or \"memory\", got %q", c.StorageType)
	}
	if c.ESRetentionDays <= 0 {
		return fmt.Errorf("ES_RETENTION_DAYS must be positive, got %d", c.ESRetentionDays)
	}
	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// getEnvWithDefault returns environment variable value or default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt64 returns an integer environment variable or default if not set
func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, value)
	}
	return parsed, nil
}

// getEnvDuration returns a duration environment variable or default if not set
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like \"1h\", got %q", key, value)
	}
	return parsed, nil
}
