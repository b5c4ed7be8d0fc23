// Command fintrack-migrate applies or rolls back schema migrations for the
// configured SQL backend.
//
// Usage:
//
//	fintrack-migrate [up|down|version|files] [-steps n]
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"

	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

func main() {
	steps := flag.Int("steps", 0, "number of migrations to apply (up) or roll back (down); 0 means all")
	flag.Parse()

	cmd := "up"
	if flag.NArg() > 0 {
		cmd = flag.Arg(0)
	}

	// Only the storage settings matter here, so the full validation is skipped.
	envErr := cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg).WithComponent(log.ComponentStorage)
	if envErr != nil {
		logger.Warn("Ignoring unreadable .env file", log.FieldError, envErr.Error())
	}

	if cmd == "files" {
		files, err := storage.MigrationFiles(cfg.DataBackend)
		if err != nil {
			logger.Error("Failed to list migrations", log.FieldError, err.Error())
			os.Exit(1)
		}
		for _, f := range files {
			fmt.Println(f)
		}
		return
	}

	m, err := newMigrator(cfg)
	if err != nil {
		logger.Error("Failed to open migrator", log.FieldError, err.Error(), "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer m.Close()

	if err := run(m, cmd, *steps); err != nil {
		logger.Error("Migration failed", log.FieldError, err.Error(), "command", cmd)
		os.Exit(1)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		logger.Info("No migrations applied", "command", cmd)
	case err != nil:
		logger.Error("Failed to read schema version", log.FieldError, err.Error())
		os.Exit(1)
	default:
		logger.Info("Migrations complete", "command", cmd, "version", version, "dirty", dirty)
	}
}

func newMigrator(cfg *config.Config) (*migrate.Migrate, error) {
	switch cfg.DataBackend {
	case "sqlite":
		return storage.NewSQLiteMigrator(storage.SQLiteDSN(cfg.SQLiteDBPath))
	case "postgres":
		return storage.NewPostgresMigrator(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("backend %q has no schema to migrate", cfg.DataBackend)
	}
}

func run(m *migrate.Migrate, cmd string, steps int) error {
	var err error
	switch cmd {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	case "version":
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
