// pkg/config/config.go
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

// Storage backend selection.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config represents the application configuration
type Config struct {
	// Database connection
	Postgres *PostgresConfig

	// Storage backend: "postgres" or "memory"
	StoreBackend string

	// HTTP server
	ServerPort  int
	CORSOrigins []string

	// Pipeline settings
	EmbedMinTextLen  int
	OutlierThreshold float64

	// Result cap validation
	DefaultListLimit   int
	MaxListLimit       int
	DefaultSearchLimit int
	MaxSearchLimit     int

	// Logging
	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		// Default values
		StoreBackend:       getEnv("STORE_BACKEND", BackendPostgres),
		ServerPort:         getEnvAsInt("SERVER_PORT", 8080),
		CORSOrigins:        getEnvAsStringSlice("CORS_ORIGINS", []string{"*"}),
		EmbedMinTextLen:    getEnvAsInt("EMBED_MIN_TEXT_LEN", 10),
		OutlierThreshold:   getEnvAsFloat("OUTLIER_VALUE_THRESHOLD", 1_000_000_000),
		DefaultListLimit:   getEnvAsInt("DEFAULT_LIST_LIMIT", 50),
		MaxListLimit:       getEnvAsInt("MAX_LIST_LIMIT", 500),
		DefaultSearchLimit: getEnvAsInt("DEFAULT_SEARCH_LIMIT", 5),
		MaxSearchLimit:     getEnvAsInt("MAX_SEARCH_LIMIT", 100),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
	}

	if cfg.StoreBackend == BackendPostgres {
		pgConfig, err := LoadPostgresConfig()
		if err != nil {
			return nil, errors.New("failed to load PostgreSQL configuration: " + err.Error())
		}
		cfg.Postgres = pgConfig
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendPostgres:
		if c.Postgres == nil {
			return errors.New("postgreSQL configuration is required")
		}
	case BackendMemory:
		// No database configuration needed
	default:
		return errors.New("store backend must be \"postgres\" or \"memory\"")
	}

	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return errors.New("server port must be between 1 and 65535")
	}

	if c.EmbedMinTextLen < 0 {
		return errors.New("embed minimum text length cannot be negative")
	}

	if c.OutlierThreshold <= 0 {
		return errors.New("outlier value threshold must be positive")
	}

	if c.DefaultListLimit <= 0 || c.DefaultListLimit > c.MaxListLimit {
		return errors.New("default list limit must be positive and within the maximum")
	}

	if c.DefaultSearchLimit <= 0 || c.DefaultSearchLimit > c.MaxSearchLimit {
		return errors.New("default search limit must be positive and within the maximum")
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result []string
	for _, v := range strings.Split(value, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			result = append(result, v)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}
