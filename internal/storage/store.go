package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when no counter exists for a key.
	ErrNotFound = errors.New("counter not found")
	// ErrConflict is returned when a counter changed between read and write.
	ErrConflict = errors.New("counter changed concurrently")
)

// Reader holds the read operations shared by Store and Tx.
type Reader interface {
	FindCounter(ctx context.Context, itemID, name string) (*Counter, error)
	HistoryRange(ctx context.Context, itemID, name string, from, to time.Time) ([]HistoryRow, error)
}

// Tx is a unit of work against one table pair. Counters read through a Tx
// are locked until the transaction ends.
type Tx interface {
	Reader
	InsertCounter(ctx context.Context, c *Counter) (bool, error)
	UpdateCounter(ctx context.Context, c *Counter, prevSum int64) error
	InsertHistory(ctx context.Context, e *HistoryEntry) (bool, error)
}

// Store defines the counter and history operations used by the stats service.
type Store interface {
	Reader
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

const counterCols = "id, item_id, name, counter_daily, counter_sum, created, updated"

// queries holds the SQL for one table pair, already rebound for the dialect.
type queries struct {
	findCounter       string
	findCounterLocked string
	insertCounter     string
	updateCounter     string
	insertHistory     string
	historyRange      string
}

func buildQueries(d dialect, t Tables) queries {
	find := fmt.Sprintf(`SELECT %s FROM %s WHERE item_id = ? AND name = ? LIMIT 1`, counterCols, t.Main)
	return queries{
		findCounter:       d.rebind(find),
		findCounterLocked: d.rebind(find + d.lockClause()),
		insertCounter: d.rebind(fmt.Sprintf(
			`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (item_id, name) DO NOTHING`, t.Main, counterCols)),
		updateCounter: d.rebind(fmt.Sprintf(
			`UPDATE %s SET counter_daily = ?, counter_sum = ?, updated = ? WHERE id = ? AND counter_sum = ?`, t.Main)),
		insertHistory: d.rebind(fmt.Sprintf(
			`INSERT INTO %s (id, stat_id, counter, date) VALUES (?, ?, ?, ?) ON CONFLICT (stat_id, date) DO NOTHING`, t.History)),
		historyRange: d.rebind(fmt.Sprintf(`
			SELECT h.id, h.stat_id, h.counter, h.date,
			       m.id, m.item_id, m.name, m.counter_daily, m.counter_sum, m.created, m.updated
			FROM %s m
			JOIN %s h ON m.id = h.stat_id
			WHERE m.item_id = ? AND m.name = ? AND h.date >= ? AND h.date <= ?
			ORDER BY h.date`, t.Main, t.History)),
	}
}

// SQLStore implements Store over database/sql for SQLite and Postgres.
type SQLStore struct {
	db     *sql.DB
	d      dialect
	tables Tables
	q      queries

	// Prepared statements for the non-transactional read path
	findCounter  *sql.Stmt
	historyRange *sql.Stmt
}

// NewSQLStore creates a SQLStore from an already-opened and migrated database.
func NewSQLStore(db *sql.DB, driver string, tables Tables) (*SQLStore, error) {
	d, err := newDialect(driver)
	if err != nil {
		return nil, err
	}
	if err := ValidateTables(tables); err != nil {
		return nil, err
	}

	s := &SQLStore{db: db, d: d, tables: tables, q: buildQueries(d, tables)}
	if err := s.prepareStatements(); err != nil {
		s.Close()
		return nil, fmt.Errorf("prepare statements: %w", err)
	}
	return s, nil
}

func (s *SQLStore) prepareStatements() error {
	var err error

	s.findCounter, err = s.db.Prepare(s.q.findCounter)
	if err != nil {
		return err
	}

	s.historyRange, err = s.db.Prepare(s.q.historyRange)
	if err != nil {
		return err
	}

	return nil
}

// Tables returns the table pair this store operates on.
func (s *SQLStore) Tables() Tables {
	return s.tables
}

// FindCounter looks up the counter for (itemID, name).
func (s *SQLStore) FindCounter(ctx context.Context, itemID, name string) (*Counter, error) {
	return scanCounter(s.findCounter.QueryRowContext(ctx, itemID, name))
}

// HistoryRange returns archived entries for (itemID, name) whose date lies
// in [from, to], joined with the owning counter and ordered by date.
func (s *SQLStore) HistoryRange(ctx context.Context, itemID, name string, from, to time.Time) ([]HistoryRow, error) {
	rows, err := s.historyRange.QueryContext(ctx, itemID, name, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return scanHistoryRows(rows)
}

// WithTx runs fn inside a single transaction, committing when fn returns nil.
// SQLite connections must be opened with _txlock=immediate (see SQLiteDSN)
// so that the write lock is taken before the counter is read.
func (s *SQLStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(&sqlTx{tx: tx, q: &s.q}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Stats returns aggregate row counts for the table pair.
func (s *SQLStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	var sum, oldest, newest sql.NullInt64

	err := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COUNT(*), SUM(counter_sum), MIN(created), MAX(COALESCE(updated, created)) FROM %s`, s.tables.Main,
	)).Scan(&stats.Counters, &sum, &oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("count counters: %w", err)
	}
	stats.EventsTotal = sum.Int64
	if oldest.Valid {
		stats.OldestCreated = time.Unix(oldest.Int64, 0)
	}
	if newest.Valid {
		stats.NewestActivity = time.Unix(newest.Int64, 0)
	}

	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.tables.History)).
		Scan(&stats.HistoryEntries)
	if err != nil {
		return nil, fmt.Errorf("count history: %w", err)
	}

	return stats, nil
}

// Close releases all prepared statements. The underlying *sql.DB is NOT
// closed; that is the caller's responsibility.
func (s *SQLStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.findCounter, s.historyRange} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}

// sqlTx implements Tx on a *sql.Tx.
type sqlTx struct {
	tx *sql.Tx
	q  *queries
}

func (t *sqlTx) FindCounter(ctx context.Context, itemID, name string) (*Counter, error) {
	return scanCounter(t.tx.QueryRowContext(ctx, t.q.findCounterLocked, itemID, name))
}

func (t *sqlTx) HistoryRange(ctx context.Context, itemID, name string, from, to time.Time) ([]HistoryRow, error) {
	rows, err := t.tx.QueryContext(ctx, t.q.historyRange, itemID, name, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return scanHistoryRows(rows)
}

// InsertCounter creates c. It reports false when a counter for the same
// (item_id, name) already exists, for instance one committed by a concurrent
// transaction after FindCounter came back empty.
func (t *sqlTx) InsertCounter(ctx context.Context, c *Counter) (bool, error) {
	res, err := t.tx.ExecContext(ctx, t.q.insertCounter,
		c.ID, c.ItemID, c.Name, c.Daily, c.Sum, c.Created.Unix(), nullUnix(c.Updated),
	)
	if err != nil {
		return false, fmt.Errorf("insert counter: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateCounter writes the daily/sum/updated fields of c, provided the stored
// counter_sum still equals prevSum. A mismatch returns ErrConflict.
func (t *sqlTx) UpdateCounter(ctx context.Context, c *Counter, prevSum int64) error {
	res, err := t.tx.ExecContext(ctx, t.q.updateCounter,
		c.Daily, c.Sum, nullUnix(c.Updated), c.ID, prevSum,
	)
	if err != nil {
		return fmt.Errorf("update counter: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update counter %s: %w", c.ID, ErrConflict)
	}
	return nil
}

// InsertHistory archives e. It reports false when an entry for the same
// (stat_id, date) already exists; the existing entry is left untouched.
func (t *sqlTx) InsertHistory(ctx context.Context, e *HistoryEntry) (bool, error) {
	res, err := t.tx.ExecContext(ctx, t.q.insertHistory, e.ID, e.StatID, e.Counter, e.Date.Unix())
	if err != nil {
		return false, fmt.Errorf("insert history: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCounter(row rowScanner) (*Counter, error) {
	var c Counter
	var created int64
	var updated sql.NullInt64

	err := row.Scan(&c.ID, &c.ItemID, &c.Name, &c.Daily, &c.Sum, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find counter: %w", err)
	}

	c.Created = time.Unix(created, 0)
	if updated.Valid {
		c.Updated = time.Unix(updated.Int64, 0)
	}
	return &c, nil
}

func scanHistoryRows(rows *sql.Rows) ([]HistoryRow, error) {
	defer rows.Close()

	result := []HistoryRow{}
	for rows.Next() {
		var r HistoryRow
		var date, created int64
		var updated sql.NullInt64
		if err := rows.Scan(
			&r.ID, &r.StatID, &r.Counter, &date,
			&r.Stat.ID, &r.Stat.ItemID, &r.Stat.Name, &r.Stat.Daily, &r.Stat.Sum, &created, &updated,
		); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		r.Date = time.Unix(date, 0)
		r.Stat.Created = time.Unix(created, 0)
		if updated.Valid {
			r.Stat.Updated = time.Unix(updated.Int64, 0)
		}
		result = append(result, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return result, nil
}

func nullUnix(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}
