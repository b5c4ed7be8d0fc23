package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrationsFS embed.FS

//go:embed migrations/postgres/*.sql
var postgresMigrationsFS embed.FS

// NewSQLiteMigrator builds a migrator over its own connection to dsn.
// Closing the migrator closes that connection.
func NewSQLiteMigrator(dsn string) (*migrate.Migrate, error) {
	// A separate connection keeps migrate's Close from closing the repository's pool.
	migrateDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open migration database: %w", err)
	}

	driver, err := sqlite.WithInstance(migrateDB, &sqlite.Config{})
	if err != nil {
		migrateDB.Close()
		return nil, fmt.Errorf("create sqlite driver: %w", err)
	}

	d, err := iofs.New(sqliteMigrationsFS, "migrations/sqlite")
	if err != nil {
		migrateDB.Close()
		return nil, fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite", driver)
	if err != nil {
		migrateDB.Close()
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

// NewPostgresMigrator builds a migrator for the PostgreSQL database at databaseURL.
// postgres:// and postgresql:// URLs are rewritten to the pgx5 scheme.
func NewPostgresMigrator(databaseURL string) (*migrate.Migrate, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	switch u.Scheme {
	case "postgres", "postgresql":
		u.Scheme = "pgx5"
	case "pgx5":
	default:
		return nil, fmt.Errorf("unsupported database url scheme %q", u.Scheme)
	}

	d, err := iofs.New(postgresMigrationsFS, "migrations/postgres")
	if err != nil {
		return nil, fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, u.String())
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

// RunSQLiteMigrations applies every pending SQLite migration.
func RunSQLiteMigrations(dsn string) error {
	m, err := NewSQLiteMigrator(dsn)
	if err != nil {
		return err
	}
	return up(m)
}

// RunPostgresMigrations applies every pending PostgreSQL migration.
func RunPostgresMigrations(databaseURL string) error {
	m, err := NewPostgresMigrator(databaseURL)
	if err != nil {
		return err
	}
	return up(m)
}

func up(m *migrate.Migrate) error {
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// MigrationFiles lists the embedded migration file names for a backend.
func MigrationFiles(backend string) ([]string, error) {
	var fsys fs.FS
	switch backend {
	case "sqlite":
		fsys, _ = fs.Sub(sqliteMigrationsFS, "migrations/sqlite")
	case "postgres":
		fsys, _ = fs.Sub(postgresMigrationsFS, "migrations/postgres")
	default:
		return nil, fmt.Errorf("no migrations for backend %q", backend)
	}
	return fs.Glob(fsys, "*.sql")
}
