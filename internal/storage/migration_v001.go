package storage

import (
	"database/sql"
	"fmt"
)

// migrateV001 creates the counter and history tables for a table pair.
// Timestamps are stored as unix seconds. Every statement uses IF NOT EXISTS
// so the migration is idempotent.
func migrateV001(tx *sql.Tx, _ dialect, t Tables) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id            TEXT PRIMARY KEY,
			item_id       TEXT NOT NULL,
			name          TEXT NOT NULL,
			counter_daily BIGINT NOT NULL DEFAULT 0,
			counter_sum   BIGINT NOT NULL DEFAULT 0,
			created       BIGINT NOT NULL,
			updated       BIGINT,
			UNIQUE (item_id, name)
		)`, t.Main),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id      TEXT PRIMARY KEY,
			stat_id TEXT NOT NULL REFERENCES %s(id),
			counter BIGINT NOT NULL,
			date    BIGINT NOT NULL,
			UNIQUE (stat_id, date)
		)`, t.History, t.Main),
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// migrateV002 indexes history by date for range queries.
func migrateV002(tx *sql.Tx, _ dialect, t Tables) error {
	_, err := tx.Exec(fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%s_date ON %s(date)`, t.History, t.History,
	))
	return err
}
