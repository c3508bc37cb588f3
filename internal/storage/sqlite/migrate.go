package sqlite

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// MigrateUp applies all pending migrations from migrationsDir. Returns
// nil when the database is already at the latest version.
func (s *Store) MigrateUp(migrationsDir string) error {
	m, err := s.newMigrate(migrationsDir)
	if err != nil {
		return err
	}
	// The migrate instance is not closed: closing it would close the
	// shared database connection.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the current schema version and dirty state.
// Returns 0, false, nil when no migrations have been applied.
func (s *Store) MigrateVersion(migrationsDir string) (uint, bool, error) {
	m, err := s.newMigrate(migrationsDir)
	if err != nil {
		return 0, false, err
	}

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("migration version: %w", err)
	}
	return version, dirty, nil
}

func (s *Store) newMigrate(migrationsDir string) (*migrate.Migrate, error) {
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsDir, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}
