package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteDSN builds a go-sqlite3 DSN for path. Transactions are opened with
// BEGIN IMMEDIATE and writers wait up to busyTimeoutMS for the lock.
func SQLiteDSN(path string, busyTimeoutMS int) string {
	return path + "?_busy_timeout=" + strconv.Itoa(busyTimeoutMS) +
		"&_foreign_keys=on&_journal_mode=WAL&_txlock=immediate"
}

// Open opens and pings a database, creating the parent directory of dbPath
// for SQLite. For Postgres dsn is passed through to lib/pq unchanged.
func Open(ctx context.Context, driver, dsn, dbPath string) (*sql.DB, error) {
	if _, err := newDialect(driver); err != nil {
		return nil, err
	}

	if driver == DriverSQLite && dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// OpenStore runs migrations for tables and returns a ready-to-use store.
func OpenStore(db *sql.DB, driver string, tables Tables) (*SQLStore, error) {
	runner := NewMigrationRunner(db, driver, tables)
	if err := runner.Run(); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	store, err := NewSQLStore(db, driver, tables)
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}
	return store, nil
}
