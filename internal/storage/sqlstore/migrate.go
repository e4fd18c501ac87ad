package sqlstore

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"

	"videosafety-worker/internal/config"
)

// Migrate applies (up) or rolls back one step of (down) the SQL files for the configured driver.
func Migrate(cfg config.DatabaseConfig, up bool, logger logrus.FieldLogger) error {
	source := cfg.MigrationsSource()
	m, err := migrate.New(source, cfg.MigrateURL())
	if err != nil {
		return fmt.Errorf("create migrate instance from %s: %w", source, err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.WithFields(logrus.Fields{"source_error": srcErr, "db_error": dbErr}).Warn("[Migrate] close failed")
		}
	}()

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is dirty at version %d, fix it by hand before migrating", version)
	}
	log := logger.WithFields(logrus.Fields{"source": source, "version": version, "db": cfg.DBName})

	if up {
		log.Info("[Migrate] applying migrations")
		err = m.Up()
	} else {
		log.Info("[Migrate] rolling back one migration")
		err = m.Steps(-1)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("[Migrate] schema already up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("run migration: %w", err)
	}
	newVersion, _, _ := m.Version()
	log.WithField("new_version", newVersion).Info("[Migrate] migration finished")
	return nil
}
