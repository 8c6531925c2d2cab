package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// dialect captures the few places where SQLite and PostgreSQL differ.
// Everything else (ON CONFLICT, RETURNING, partial indexes) is shared SQL.
type dialect struct {
	name         string
	schema       string
	numbered     bool // $1, $2 placeholders instead of ?
	singleWriter bool
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite:
		return dialect{name: DriverSQLite, schema: sqliteSchema, singleWriter: true}, nil
	case DriverPostgres:
		return dialect{name: DriverPostgres, schema: postgresSchema, numbered: true}, nil
	}
	return dialect{}, fmt.Errorf("unsupported driver %q: must be %s or %s", driver, DriverSQLite, DriverPostgres)
}

// rebind rewrites ? placeholders to $n for numbered dialects. Question
// marks inside single-quoted literals are left alone.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// applyPragmas sets required SQLite configuration. No-op for postgres.
func (d dialect) applyPragmas(db *sql.DB) error {
	if d.name != DriverSQLite {
		return nil
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// version reads the schema version marker: PRAGMA user_version on SQLite,
// the schema_version table on PostgreSQL.
func (d dialect) version(db *sql.DB) (int, error) {
	var version int
	if d.name == DriverSQLite {
		err := db.QueryRow("PRAGMA user_version").Scan(&version)
		return version, err
	}
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	return version, err
}

func (d dialect) setVersion(db *sql.DB, version int) error {
	if d.name == DriverSQLite {
		_, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", version))
		return err
	}
	_, err := db.Exec("INSERT INTO schema_version (version) VALUES ($1) ON CONFLICT DO NOTHING", version)
	return err
}
