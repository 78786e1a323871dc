package storage

import (
	"database/sql"
	"fmt"
)

// migration represents a single schema migration for one table pair.
type migration struct {
	Version int
	Name    string
	Apply   func(tx *sql.Tx, d dialect, t Tables) error
}

// MigrationRunner applies pending migrations for one pair of stat tables.
// Several stat groups may share a database; each table pair is tracked
// under its own scope (the main table name) in schema_migrations.
type MigrationRunner struct {
	db         *sql.DB
	driver     string
	tables     Tables
	migrations []migration
}

// NewMigrationRunner creates a MigrationRunner with all registered migrations.
func NewMigrationRunner(db *sql.DB, driver string, tables Tables) *MigrationRunner {
	return &MigrationRunner{
		db:     db,
		driver: driver,
		tables: tables,
		migrations: []migration{
			{Version: 1, Name: "initial_schema", Apply: migrateV001},
			{Version: 2, Name: "history_date_index", Apply: migrateV002},
		},
	}
}

// Run applies all pending migrations in order. On SQLite it enables WAL
// mode and foreign keys first. It then creates the schema_migrations
// tracking table and applies each migration not yet recorded for this scope.
func (r *MigrationRunner) Run() error {
	d, err := newDialect(r.driver)
	if err != nil {
		return err
	}
	if err := ValidateTables(r.tables); err != nil {
		return err
	}

	if d.driver == DriverSQLite {
		if _, err := r.db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			return fmt.Errorf("set WAL mode: %w", err)
		}
		if _, err := r.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	if _, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			scope      TEXT NOT NULL,
			version    INTEGER NOT NULL,
			name       TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (scope, version)
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range r.migrations {
		applied, err := r.isApplied(d, m.Version)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if applied {
			continue
		}

		if err := r.apply(d, m); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}
	}

	return nil
}

// isApplied checks whether a migration version has already been recorded.
func (r *MigrationRunner) isApplied(d dialect, version int) (bool, error) {
	var count int
	err := r.db.QueryRow(
		d.rebind("SELECT COUNT(*) FROM schema_migrations WHERE scope = ? AND version = ?"),
		r.tables.Main, version,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// apply executes a migration inside a transaction and records it.
func (r *MigrationRunner) apply(d dialect, m migration) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := m.Apply(tx, d, r.tables); err != nil {
		return err
	}

	if _, err := tx.Exec(
		d.rebind("INSERT INTO schema_migrations (scope, version, name) VALUES (?, ?, ?)"),
		r.tables.Main, m.Version, m.Name,
	); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}

	return tx.Commit()
}
