package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/smallbiznis/creditledger/internal/migration/schema"
	"gorm.io/gorm"
)

// Migrate brings the credit ledger schema up to date. Postgres runs the
// versioned SQL migrations; sqlite and mysql apply the idempotent DDL in
// package schema.
func Migrate(conn *gorm.DB, dbType string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}

	switch dbType {
	case "postgres":
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	case "sqlite":
		return schema.Apply(conn, schema.SQLite)
	case "mysql":
		return schema.Apply(conn, schema.MySQL)
	default:
		return fmt.Errorf("unsupported database type %q", dbType)
	}
}

// RunMigrations applies the embedded SQL migrations against postgres.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}
