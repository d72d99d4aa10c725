package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const (
	migrationsDirectoryNameConstant        = "migrations"
	migrationSourceNameConstant            = "iofs"
	migrationDatabaseNameConstant          = "sqlite"
	migrationSourceErrorTemplateConstant   = "unable to load embedded migrations: %w"
	migrationDriverErrorTemplateConstant   = "unable to prepare migration driver: %w"
	migrationInstanceErrorTemplateConstant = "unable to prepare migrator: %w"
	migrationApplyErrorTemplateConstant    = "unable to apply migrations: %w"
)

func applyMigrations(databaseHandle *sql.DB) error {
	sourceDriver, sourceError := iofs.New(migrationFiles, migrationsDirectoryNameConstant)
	if sourceError != nil {
		return fmt.Errorf(migrationSourceErrorTemplateConstant, sourceError)
	}

	databaseDriver, driverError := migratesqlite.WithInstance(databaseHandle, &migratesqlite.Config{})
	if driverError != nil {
		return fmt.Errorf(migrationDriverErrorTemplateConstant, driverError)
	}

	migrator, instanceError := migrate.NewWithInstance(migrationSourceNameConstant, sourceDriver, migrationDatabaseNameConstant, databaseDriver)
	if instanceError != nil {
		return fmt.Errorf(migrationInstanceErrorTemplateConstant, instanceError)
	}

	if migrationError := migrator.Up(); migrationError != nil && !errors.Is(migrationError, migrate.ErrNoChange) {
		return fmt.Errorf(migrationApplyErrorTemplateConstant, migrationError)
	}
	return nil
}
