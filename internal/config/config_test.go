package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(env(nil))
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultMigrationsPath, cfg.MigrationsPath)
	assert.Equal(t, DefaultCatalogTTL, cfg.CatalogCacheTTL)
	assert.Zero(t, cfg.RulesCacheTTL)
	assert.Zero(t, cfg.RedisDB)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Empty(t, cfg.SeedTenants)
	assert.True(t, cfg.InMemory())
}

func TestFromEnvValues(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"DATABASE_URL":      "postgres://u:p@localhost/discovery?sslmode=disable",
		"PORT":              "9090",
		"REDIS_ADDR":        "localhost:6379",
		"REDIS_DB":          "2",
		"CATALOG_CACHE_TTL": "30s",
		"RULES_CACHE_TTL":   "1m",
		"SEED_TENANTS":      " tenant-a, ,tenant-b ",
		"LOG_LEVEL":         "debug",
	}))
	require.NoError(t, err)

	assert.False(t, cfg.InMemory())
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 30*time.Second, cfg.CatalogCacheTTL)
	assert.Equal(t, time.Minute, cfg.RulesCacheTTL)
	assert.Equal(t, []string{"tenant-a", "tenant-b"}, cfg.SeedTenants)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
}

func TestFromEnvInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"redis db not a number", "REDIS_DB", "primeiro"},
		{"negative redis db", "REDIS_DB", "-1"},
		{"catalog ttl without unit", "CATALOG_CACHE_TTL", "30"},
		{"negative rules ttl", "RULES_CACHE_TTL", "-5s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(env(map[string]string{tt.key: tt.val}))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestFromEnvBlankUsesDefault(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{"PORT": "  "}))
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Port)
}
