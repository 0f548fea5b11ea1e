package postgres

import (
	"embed"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"webhook-gateway/internal/common/logging"
)

//go:embed migrate/*.sql
var migrationFiles embed.FS

// RunMigrations applies pending schema migrations
func RunMigrations(logger logging.Logger, databaseURL string) error {
	logger.Info("Running database migrations")

	sourceDriver, err := iofs.New(migrationFiles, "migrate")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// the pgx/v5 migrate driver registers the pgx5 scheme
	migrationURL := strings.Replace(databaseURL, "postgres://", "pgx5://", 1)

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, migrationURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	version, dirty, err := m.Version()
	if err != nil && !stderrors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}
	if dirty {
		logger.Warn("Database is in dirty state, forcing version", logging.Int("version", int(version)))
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force migration version: %w", err)
		}
	}

	err = m.Up()
	if stderrors.Is(err, migrate.ErrNoChange) {
		logger.Info("Database schema is up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	newVersion, _, _ := m.Version()
	logger.Info("Database migrations completed", logging.Int("version", int(newVersion)))
	return nil
}
