package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// Migrator applies schema migrations from a filesystem directory.
type Migrator struct {
	migrate *migrate.Migrate
	sqlDB   *sql.DB // sql.DB wrapper around the pgx pool, must be closed
	logger  zerolog.Logger
}

// NewMigrator creates a migrator bound to the given pool and migrations
// directory.
func NewMigrator(db *DB, migrationsPath string, logger zerolog.Logger) (*Migrator, error) {
	switch {
	case db == nil:
		return nil, fmt.Errorf("database is required")
	case db.pool == nil:
		return nil, fmt.Errorf("database pool not initialized")
	case migrationsPath == "":
		return nil, fmt.Errorf("migrations path is required")
	}
	if _, err := os.Stat(migrationsPath); err != nil {
		return nil, fmt.Errorf("migrations path validation failed: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(db.pool)
	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return &Migrator{migrate: m, sqlDB: sqlDB, logger: logger}, nil
}

// Up applies all pending migrations. Already being up to date is not an
// error.
func (m *Migrator) Up() error {
	m.logger.Info().Msg("applying schema migrations")
	return m.tolerateNoChange(m.migrate.Up(), "apply migrations")
}

// Down rolls back all migrations.
func (m *Migrator) Down() error {
	m.logger.Warn().Msg("rolling back all schema migrations")
	return m.tolerateNoChange(m.migrate.Down(), "roll back migrations")
}

// Steps runs n migrations (positive = up, negative = down).
func (m *Migrator) Steps(n int) error {
	m.logger.Info().Int("steps", n).Msg("applying migration steps")
	err := m.migrate.Steps(n)
	// migrate reports ErrNotExist when stepping past the newest version.
	if errors.Is(err, os.ErrNotExist) {
		m.logger.Info().Msg("no more migrations available")
		return nil
	}
	return m.tolerateNoChange(err, "apply migration steps")
}

// Version returns the current migration version and whether the schema is
// dirty from a failed migration.
func (m *Migrator) Version() (uint, bool, error) {
	return m.migrate.Version()
}

// Force sets the migration version without running migrations. Useful for
// recovering from a failed migration.
func (m *Migrator) Force(version int) error {
	m.logger.Warn().Int("version", version).Msg("forcing schema version")
	return m.migrate.Force(version)
}

// DropAll drops every object in the database. Only for tests.
func (m *Migrator) DropAll() error {
	m.logger.Warn().Msg("dropping all database objects")
	return m.migrate.Drop()
}

// Close releases the migrator's database resources.
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if m.sqlDB != nil {
		if err := m.sqlDB.Close(); err != nil && dbErr == nil {
			dbErr = err
		}
	}

	switch {
	case sourceErr != nil && dbErr != nil:
		return fmt.Errorf("failed to close migrator: source error: %v, database error: %w", sourceErr, dbErr)
	case sourceErr != nil:
		return fmt.Errorf("failed to close source: %w", sourceErr)
	case dbErr != nil:
		return fmt.Errorf("failed to close database: %w", dbErr)
	}
	return nil
}

func (m *Migrator) tolerateNoChange(err error, action string) error {
	if err == nil {
		m.logger.Info().Msg("schema migrations completed")
		return nil
	}
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info().Msg("schema already up to date")
		return nil
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}
