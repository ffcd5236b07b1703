// Package db builds the SQL statements shared by the store drivers. Every
// identifier goes through pgx.Identifier quoting and every value is bound as
// a parameter; no caller-supplied text is spliced into SQL unquoted.
package db

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Dialect selects placeholder syntax.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// Placeholder returns the n-th (1-based) bind parameter.
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Placeholders returns n comma-separated bind parameters starting at 1.
func (d Dialect) Placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = d.Placeholder(i + 1)
	}
	return strings.Join(ph, ", ")
}

// UpsertConfig defines a single-row upsert.
type UpsertConfig struct {
	Table        string   // target table (e.g., "app_bundle_data")
	Columns      []string // all columns being inserted
	ConflictKeys []string // columns forming the unique constraint
	UpdateCols   []string // columns to update on conflict; nil = all non-conflict columns
}

// UpsertSQL builds INSERT ... ON CONFLICT (keys) DO UPDATE SET ..., which
// both SQLite (3.24+) and Postgres accept. The conflicting row is fully
// overwritten with the new values.
func UpsertSQL(d Dialect, cfg UpsertConfig) (string, error) {
	if len(cfg.Columns) == 0 {
		return "", eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return "", eris.New("db: upsert: no conflict keys specified")
	}

	updateCols := cfg.UpdateCols
	if updateCols == nil {
		conflictSet := make(map[string]bool, len(cfg.ConflictKeys))
		for _, k := range cfg.ConflictKeys {
			conflictSet[k] = true
		}
		for _, c := range cfg.Columns {
			if !conflictSet[c] {
				updateCols = append(updateCols, c)
			}
		}
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s)",
		QuoteTable(cfg.Table),
		QuoteAndJoin(cfg.Columns),
		d.Placeholders(len(cfg.Columns)),
		QuoteAndJoin(cfg.ConflictKeys),
	)
	if len(updateCols) == 0 {
		return stmt + " DO NOTHING", nil
	}

	setClauses := make([]string, len(updateCols))
	for i, col := range updateCols {
		q := QuoteIdent(col)
		setClauses[i] = fmt.Sprintf("%s = excluded.%s", q, q)
	}
	return stmt + " DO UPDATE SET " + strings.Join(setClauses, ", "), nil
}

// CreateTableSQL builds a CREATE TABLE with every column as nullable TEXT
// except primaryKey, which becomes TEXT PRIMARY KEY.
func CreateTableSQL(table string, columns []string, primaryKey string) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		if c == primaryKey {
			defs[i] = QuoteIdent(c) + " TEXT PRIMARY KEY"
		} else {
			defs[i] = QuoteIdent(c) + " TEXT"
		}
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", QuoteTable(table), strings.Join(defs, ", "))
}

// SelectSQL builds a SELECT of columns from table in the given order.
func SelectSQL(table string, columns []string) string {
	return fmt.Sprintf("SELECT %s FROM %s", QuoteAndJoin(columns), QuoteTable(table))
}

// QuoteIdent quotes a single identifier.
func QuoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// QuoteTable handles schema-qualified table names like "public.app_bundle_data".
func QuoteTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// QuoteAndJoin quotes each column name and joins with commas.
func QuoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = QuoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}
