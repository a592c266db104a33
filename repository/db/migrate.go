package db

import (
	"embed"
	stderrors "errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/just-being-aryan/task-manager-app/pkg/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migration brings the schema at dbDSN up to date. An empty migratePath uses
// the migrations compiled into the binary; otherwise SQL files are read from
// that directory.
func Migration(dbDSN, migratePath string) error {
	if dbDSN == "" {
		return fmt.Errorf("migration: empty database DSN")
	}

	var (
		m   *migrate.Migrate
		err error
	)
	if migratePath == "" {
		src, srcErr := iofs.New(migrationsFS, "migrations")
		if srcErr != nil {
			return fmt.Errorf("migration: open embedded source: %w", srcErr)
		}
		m, err = migrate.NewWithSourceInstance("iofs", src, dbDSN)
	} else {
		m, err = migrate.New("file://"+migratePath, dbDSN)
	}
	if err != nil {
		return fmt.Errorf("migration: init: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			log := logger.Get()
			log.Warn().AnErr("source", srcErr).AnErr("database", dbErr).Msg("failed to close migrator")
		}
	}()

	if err := m.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration: up: %w", err)
	}
	return nil
}
