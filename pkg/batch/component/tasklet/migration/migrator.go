// Package migration applies the embedded schema migrations with golang-migrate.
package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/database"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/logger"
)

// MigrationsTable tracks the applied schema version.
const MigrationsTable = "schema_migrations"

// Migrator applies migrations to one connection.
type Migrator struct {
	conn database.DBConnection
}

// NewMigrator creates a Migrator for conn.
func NewMigrator(conn database.DBConnection) *Migrator {
	return &Migrator{conn: conn}
}

func (m *Migrator) databaseDriver(sqlDB *sql.DB) (migratedb.Driver, error) {
	switch m.conn.Type() {
	case "postgres":
		return postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: MigrationsTable})
	case "mysql":
		return mysql.WithInstance(sqlDB, &mysql.Config{MigrationsTable: MigrationsTable})
	case "sqlite":
		return sqlite.WithInstance(sqlDB, &sqlite.Config{MigrationsTable: MigrationsTable})
	default:
		return nil, fmt.Errorf("unsupported database type for migration: %s", m.conn.Type())
	}
}

// Up applies every pending migration found under the directory named after
// the connection's database type. An up-to-date schema is not an error.
//
// The migrate instance is not closed: its database driver would close the
// shared *sql.DB along with it.
func (m *Migrator) Up(ctx context.Context, migrationFS fs.FS) error {
	dir := m.conn.Type()
	logger.Infof("Applying '%s' migrations (table: %s).", dir, MigrationsTable)

	sqlDB, err := m.conn.GetSQLDB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sourceDriver, err := iofs.New(migrationFS, dir)
	if err != nil {
		return fmt.Errorf("failed to create iofs source driver for path %s: %w", dir, err)
	}
	defer sourceDriver.Close()

	dbDriver, err := m.databaseDriver(sqlDB)
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}
	mInstance, err := migrate.NewWithInstance("iofs", sourceDriver, dir, dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := mInstance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		version, dirty, verr := mInstance.Version()
		if verr == nil {
			logger.Errorf("Migration failed at version %d (dirty: %t).", version, dirty)
		}
		return fmt.Errorf("migration up failed (DB: %s): %w", dir, err)
	}

	version, _, err := mInstance.Version()
	if err == nil {
		logger.Infof("Schema is at version %d.", version)
	}
	return nil
}
