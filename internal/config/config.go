// Package config loads process configuration from the environment.
// A .env file in the working directory is read first when present;
// variables already set in the environment win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL    string
	Port           string
	MigrationsPath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// CatalogCacheTTL and RulesCacheTTL of 0 keep entries until invalidated
	CatalogCacheTTL time.Duration
	RulesCacheTTL   time.Duration

	// SeedTenants get the default catalog in in-memory mode
	SeedTenants []string

	LogLevel string
}

// Defaults used when a key is unset
const (
	DefaultPort           = "8080"
	DefaultMigrationsPath = "migrations"
	DefaultCatalogTTL     = 5 * time.Minute
	DefaultLogLevel       = "INFO"
)

// Load reads .env (if any) and then the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, which has the signature of os.LookupEnv
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return fallback
	}

	cfg := &Config{
		DatabaseURL:    get("DATABASE_URL", ""),
		Port:           get("PORT", DefaultPort),
		MigrationsPath: get("MIGRATIONS_PATH", DefaultMigrationsPath),
		RedisAddr:      get("REDIS_ADDR", ""),
		RedisPassword:  get("REDIS_PASSWORD", ""),
		LogLevel:       strings.ToUpper(get("LOG_LEVEL", DefaultLogLevel)),
	}

	var err error
	if cfg.RedisDB, err = strconv.Atoi(get("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	if cfg.RedisDB < 0 {
		return nil, fmt.Errorf("invalid REDIS_DB: %d is negative", cfg.RedisDB)
	}
	if cfg.CatalogCacheTTL, err = duration(get("CATALOG_CACHE_TTL", DefaultCatalogTTL.String())); err != nil {
		return nil, fmt.Errorf("invalid CATALOG_CACHE_TTL: %w", err)
	}
	if cfg.RulesCacheTTL, err = duration(get("RULES_CACHE_TTL", "0s")); err != nil {
		return nil, fmt.Errorf("invalid RULES_CACHE_TTL: %w", err)
	}

	for _, tenant := range strings.Split(get("SEED_TENANTS", ""), ",") {
		if tenant = strings.TrimSpace(tenant); tenant != "" {
			cfg.SeedTenants = append(cfg.SeedTenants, tenant)
		}
	}

	return cfg, nil
}

func duration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("%s is negative", s)
	}
	return d, nil
}

// InMemory reports whether no database is configured
func (c *Config) InMemory() bool {
	return c.DatabaseURL == ""
}
