package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"regexp"

	commoncfg "github.com/RicardoMLopes/wsh/common/config"
)

//go:embed schema/postgres.sql
var postgresSchema string

//go:embed schema/sqlite.sql
var sqliteSchema string

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

// Dialect per-backend SQL differences. Queries are written with $n placeholders.
type Dialect struct {
	Name string
	// lockClause appended to row-locking SELECTs
	lockClause string
	// numbered is true when $n must be rewritten to ?n
	numbered bool
	schema   string
}

var (
	Postgres = Dialect{Name: commoncfg.DriverPostgres, lockClause: " FOR UPDATE", schema: postgresSchema}
	// SQLite has no row locks; transactions are BEGIN IMMEDIATE so the whole db is write-locked instead
	SQLite = Dialect{Name: commoncfg.DriverSQLite, numbered: true, schema: sqliteSchema}
)

// DialectFor maps a configured driver name
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "", commoncfg.DriverPostgres:
		return Postgres, nil
	case commoncfg.DriverSQLite:
		return SQLite, nil
	}
	return Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
}

// Rebind rewrites placeholders for the backend
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	return placeholderRe.ReplaceAllString(query, "?$1")
}

func (d Dialect) forUpdate(query string) string {
	return query + d.lockClause
}

// Migrate applies the embedded schema; every statement is idempotent
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		return fmt.Errorf("failed to apply %s schema: %w", d.Name, err)
	}
	return nil
}
