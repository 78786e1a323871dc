package storage

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTables = Tables{Main: "stats", History: "stats_history"}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open(DriverSQLite, SQLiteDSN(path, 5000))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, kind, name string) bool {
	t.Helper()
	var got string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type = ? AND name = ?", kind, name,
	).Scan(&got)
	if err == sql.ErrNoRows {
		return false
	}
	require.NoError(t, err)
	return got == name
}

func TestMigrationRunner_FreshDB(t *testing.T) {
	db := openTestDB(t)
	runner := NewMigrationRunner(db, DriverSQLite, testTables)

	require.NoError(t, runner.Run())

	for _, table := range []string{"stats", "stats_history", "schema_migrations"} {
		assert.True(t, tableExists(t, db, "table", table), "table %s should exist", table)
	}
	assert.True(t, tableExists(t, db, "index", "idx_stats_history_date"))
}

func TestMigrationRunner_Idempotent(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, NewMigrationRunner(db, DriverSQLite, testTables).Run())
	require.NoError(t, NewMigrationRunner(db, DriverSQLite, testTables).Run())

	var count int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM schema_migrations WHERE scope = ?", "stats",
	).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestMigrationRunner_ScopesPerTablePair(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, NewMigrationRunner(db, DriverSQLite, testTables).Run())
	other := Tables{Main: "downloads", History: "downloads_history"}
	require.NoError(t, NewMigrationRunner(db, DriverSQLite, other).Run())

	assert.True(t, tableExists(t, db, "table", "downloads"))
	assert.True(t, tableExists(t, db, "table", "downloads_history"))

	var scopes int
	require.NoError(t, db.QueryRow("SELECT COUNT(DISTINCT scope) FROM schema_migrations").Scan(&scopes))
	assert.Equal(t, 2, scopes)
}

func TestMigrationRunner_RejectsBadTableNames(t *testing.T) {
	db := openTestDB(t)

	err := NewMigrationRunner(db, DriverSQLite, Tables{Main: "stats; DROP TABLE x", History: "h"}).Run()
	assert.Error(t, err)

	err = NewMigrationRunner(db, DriverSQLite, Tables{Main: "same", History: "same"}).Run()
	assert.Error(t, err)
}

func TestMigrationRunner_RejectsUnknownDriver(t *testing.T) {
	db := openTestDB(t)
	err := NewMigrationRunner(db, "mysql", testTables).Run()
	assert.ErrorContains(t, err, "unsupported driver")
}

func TestMigrationRunner_UniqueKeys(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db, DriverSQLite, testTables).Run())

	_, err := db.Exec(`INSERT INTO stats (id, item_id, name, created) VALUES ('a', '1', 'view', 0)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO stats (id, item_id, name, created) VALUES ('b', '1', 'view', 0)`)
	assert.Error(t, err, "(item_id, name) must be unique")

	_, err = db.Exec(`INSERT INTO stats_history (id, stat_id, counter, date) VALUES ('h1', 'a', 3, 100)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO stats_history (id, stat_id, counter, date) VALUES ('h2', 'a', 4, 100)`)
	assert.Error(t, err, "(stat_id, date) must be unique")
}
