package storage

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// dialect captures the few SQL differences between the supported drivers.
type dialect struct {
	driver string
}

func newDialect(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
		return dialect{driver: driver}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported driver %q", driver)
	}
}

// rebind rewrites ? placeholders to $N for Postgres.
func (d dialect) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// lockClause is appended to the counter lookup inside a transaction.
// SQLite serializes writers with BEGIN IMMEDIATE instead.
func (d dialect) lockClause() string {
	if d.driver == DriverPostgres {
		return " FOR UPDATE"
	}
	return ""
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateTables checks that both table names are plain SQL identifiers
// and that they differ.
func ValidateTables(t Tables) error {
	if !identRe.MatchString(t.Main) {
		return fmt.Errorf("invalid main table name %q", t.Main)
	}
	if !identRe.MatchString(t.History) {
		return fmt.Errorf("invalid history table name %q", t.History)
	}
	if t.Main == t.History {
		return fmt.Errorf("main and history tables must differ (both %q)", t.Main)
	}
	return nil
}
