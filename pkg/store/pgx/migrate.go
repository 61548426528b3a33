package pgx

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// DefaultMigrationsURL points at the migrations directory of the repository.
const DefaultMigrationsURL = "file://migrations"

// Migrate applies all pending up migrations. It returns the schema version
// after the run.
func Migrate(sourceURL, databaseURL string) (uint, error) {
	if sourceURL == "" {
		sourceURL = DefaultMigrationsURL
	}
	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		return 0, fmt.Errorf("failed to init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to apply migrations: %w", err)
	}
	v, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, err
	}
	return v, nil
}
