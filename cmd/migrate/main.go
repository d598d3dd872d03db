package main

import (
	"errors"
	"flag"
	"fmt"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/liamcoop/discovery/internal/config"
	"github.com/liamcoop/discovery/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}

	var databaseURL string
	var migrationsPath string
	var command string

	flag.StringVar(&databaseURL, "database", cfg.DatabaseURL, "Database URL (defaults to DATABASE_URL)")
	flag.StringVar(&migrationsPath, "path", cfg.MigrationsPath, "Path to migrations directory")
	flag.StringVar(&command, "command", "up", "Migration command: up, down, steps, version, force")
	flag.Parse()

	if databaseURL == "" {
		logger.Fatal("database URL is required, use -database or DATABASE_URL")
	}

	logger.Info("connecting to database", "migrations", migrationsPath)

	m, err := migrate.New(fmt.Sprintf("file://%s", migrationsPath), databaseURL)
	if err != nil {
		logger.Fatal("failed to create migration instance", "error", err)
	}
	defer m.Close()

	switch command {
	case "up":
		err = m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("database is up to date")
			return
		}
		if err != nil {
			logger.Fatal("failed to run migrations", "error", err)
		}
		logger.Info("migrations applied")

	case "down":
		err = m.Down()
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatal("failed to roll back migrations", "error", err)
		}
		logger.Info("migrations rolled back")

	case "steps":
		n := argInt("steps")
		if err := m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatal("failed to migrate steps", "steps", n, "error", err)
		}
		logger.Info("migrated steps", "steps", n)

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("no migration applied yet")
			return
		}
		if err != nil {
			logger.Fatal("failed to get version", "error", err)
		}
		logger.Info("current version", "version", version, "dirty", dirty)

	case "force":
		version := argInt("force")
		if err := m.Force(version); err != nil {
			logger.Fatal("failed to force version", "version", version, "error", err)
		}
		logger.Info("forced version", "version", version)

	default:
		logger.Fatal("unknown command, use up, down, steps, version or force", "command", command)
	}
}

// argInt reads the first positional argument as an integer
func argInt(command string) int {
	if flag.NArg() < 1 {
		logger.Fatal("command requires a number: -command " + command + " <n>")
	}
	n, err := strconv.Atoi(flag.Arg(0))
	if err != nil {
		logger.Fatal("invalid number", "value", flag.Arg(0), "error", err)
	}
	return n
}
