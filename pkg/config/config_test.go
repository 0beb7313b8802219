// pkg/config/config_test.go
package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 10, cfg.EmbedMinTextLen)
	assert.Equal(t, 1e9, cfg.OutlierThreshold)
	assert.Equal(t, 50, cfg.DefaultListLimit)
	assert.Equal(t, 500, cfg.MaxListLimit)
	assert.Equal(t, 5, cfg.DefaultSearchLimit)
	assert.Equal(t, 100, cfg.MaxSearchLimit)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Nil(t, cfg.Postgres)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("OUTLIER_VALUE_THRESHOLD", "5000000")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 5000000.0, cfg.OutlierThreshold)
}

func TestLoadConfigPostgresRequiresCredentials(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("POSTGRES_USER", "")
	t.Setenv("POSTGRES_PASSWORD", "")
	t.Setenv("POSTGRES_DB", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		return &Config{
			StoreBackend:       BackendMemory,
			ServerPort:         8080,
			OutlierThreshold:   1e9,
			DefaultListLimit:   50,
			MaxListLimit:       500,
			DefaultSearchLimit: 5,
			MaxSearchLimit:     100,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.StoreBackend = "redis" }},
		{"bad port", func(c *Config) { c.ServerPort = 0 }},
		{"negative min text len", func(c *Config) { c.EmbedMinTextLen = -1 }},
		{"zero threshold", func(c *Config) { c.OutlierThreshold = 0 }},
		{"list default above max", func(c *Config) { c.DefaultListLimit = 501 }},
		{"search default above max", func(c *Config) { c.DefaultSearchLimit = 101 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
