package persistence

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pagseguro-reconciler/internal/config"
)

// ErrDirtySchema means a previous migration stopped halfway. The order store
// is not touched again until an operator forces the version.
type ErrDirtySchema struct {
	Version uint
}

func (e ErrDirtySchema) Error() string {
	return fmt.Sprintf("order store schema is dirty at version %d", e.Version)
}

type schemaMigrator interface {
	Version() (uint, bool, error)
	Up() error
	Close() (error, error)
}

var openMigrator = func(sourceURL, databaseURL string) (schemaMigrator, error) {
	return migrate.New(sourceURL, databaseURL)
}

// MigrateOrderStore brings the orders, invoices, projection and outbox tables
// up to the newest migration under cfg.MigrationsPath.
func MigrateOrderStore(logger *slog.Logger, cfg *config.PostgresConfig) (err error) {
	if cfg.MigrationsPath == "" {
		return errors.New("migrations path cannot be empty")
	}
	if cfg.URL == "" {
		return errors.New("database URL cannot be empty")
	}

	m, err := openMigrator("file://"+cfg.MigrationsPath, cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to open order store migrations: %w", err)
	}
	defer func() {
		sourceErr, dbErr := m.Close()
		if err == nil {
			err = errors.Join(sourceErr, dbErr)
		}
	}()

	from, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		from = 0
	case err != nil:
		return fmt.Errorf("failed to read order store schema version: %w", err)
	case dirty:
		return ErrDirtySchema{Version: from}
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("Order store schema is current", "version", from)
			return nil
		}
		return fmt.Errorf("failed to migrate order store from version %d: %w", from, err)
	}

	to, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to read order store schema version: %w", err)
	}
	logger.Info("Migrated order store schema", "from_version", from, "to_version", to)
	return nil
}
