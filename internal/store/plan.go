package store

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sells-group/asp-search/internal/db"
	"github.com/sells-group/asp-search/internal/model"
)

// ColumnAlias maps a column name used by an earlier table layout to its
// current schema column.
type ColumnAlias struct {
	Old string
	New string
}

// LegacyColumns lists renamed columns, checked in order.
var LegacyColumns = []ColumnAlias{
	{Old: "bundle_id_lookup", New: "adamId"},
}

// legacyIDColumn is the service's own id column, accepted as adamId when no
// legacy alias supplies it.
const legacyIDColumn = "trackId"

// legacyRowPrefix prefixes keys synthesized for migrated rows that have no
// usable identity.
const legacyRowPrefix = "LEGACY_ROW_"

// ColumnSource records where a schema column's migrated values come from.
// Source is empty when the column has no counterpart in the old table.
type ColumnSource struct {
	Column string
	Source string
}

// NeedsReconcile reports whether existing differs from the fixed schema in
// count, names or order. An empty list (absent table) always does.
func NeedsReconcile(existing []string) bool {
	return len(existing) == 0 || !slices.Equal(existing, model.ColumnNames())
}

// PlanMigration resolves, for each fixed-schema column, its source column in
// the old layout: same name first, then a legacy alias, then trackId for
// adamId.
func PlanMigration(old []string) []ColumnSource {
	has := make(map[string]bool, len(old))
	for _, c := range old {
		has[c] = true
	}

	cols := model.ColumnNames()
	plan := make([]ColumnSource, len(cols))
	for i, col := range cols {
		plan[i] = ColumnSource{Column: col}
		if has[col] {
			plan[i].Source = col
			continue
		}
		aliased := false
		for _, a := range LegacyColumns {
			if a.New == col && has[a.Old] {
				plan[i].Source = a.Old
				aliased = true
				break
			}
		}
		if !aliased && col == model.PrimaryKey && has[legacyIDColumn] {
			plan[i].Source = legacyIDColumn
		}
	}
	return plan
}

// reconcileScript is the ordered statement list that rebuilds a table. The
// caller runs it inside one transaction.
type reconcileScript struct {
	Statements []string
	// CopyIndex is the position of the row copy in Statements, or -1.
	CopyIndex int
	Plan      []ColumnSource
}

func tempTableName(table string) string {
	return table + "_temp"
}

// baseName strips a schema qualifier, as required by ALTER TABLE ... RENAME TO.
func baseName(table string) string {
	if i := strings.LastIndex(table, "."); i >= 0 {
		return table[i+1:]
	}
	return table
}

// buildReconcileScript produces the statements that replace table (whose
// current columns are existing; empty when absent) with one in the fixed
// layout, carrying over every old row.
func buildReconcileScript(table string, existing []string) reconcileScript {
	temp := tempTableName(table)
	script := reconcileScript{CopyIndex: -1}

	script.Statements = append(script.Statements,
		"DROP TABLE IF EXISTS "+db.QuoteTable(temp),
		db.CreateTableSQL(temp, model.ColumnNames(), model.PrimaryKey),
	)

	if len(existing) > 0 {
		script.Plan = PlanMigration(existing)
		script.CopyIndex = len(script.Statements)
		script.Statements = append(script.Statements,
			copyRowsSQL(table, temp, script.Plan),
			"DROP TABLE "+db.QuoteTable(table),
		)
	}

	script.Statements = append(script.Statements,
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", db.QuoteTable(temp), db.QuoteIdent(baseName(table))))
	return script
}

// copyRowsSQL copies every old row in one statement. Values are cast to
// text; rows whose identity is missing get LEGACY_ROW_<n>; a second row with
// an identity already copied is skipped.
func copyRowsSQL(from, to string, plan []ColumnSource) string {
	var insertCols, selectExprs []string
	for _, cs := range plan {
		if cs.Column == model.PrimaryKey {
			fallback := fmt.Sprintf("'%s' || CAST(row_number() OVER () AS TEXT)", legacyRowPrefix)
			expr := fallback
			if cs.Source != "" {
				expr = fmt.Sprintf("COALESCE(NULLIF(CAST(%s AS TEXT), ''), %s)", db.QuoteIdent(cs.Source), fallback)
			}
			insertCols = append(insertCols, cs.Column)
			selectExprs = append(selectExprs, expr)
			continue
		}
		if cs.Source == "" {
			continue
		}
		insertCols = append(insertCols, cs.Column)
		selectExprs = append(selectExprs, fmt.Sprintf("CAST(%s AS TEXT)", db.QuoteIdent(cs.Source)))
	}

	// WHERE true keeps SQLite from reading ON CONFLICT as a join constraint.
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s WHERE true ON CONFLICT DO NOTHING",
		db.QuoteTable(to),
		db.QuoteAndJoin(insertCols),
		strings.Join(selectExprs, ", "),
		db.QuoteTable(from),
	)
}

// ReconcileResult describes what opening the store did to the data table.
type ReconcileResult struct {
	Reconciled bool
	// Created is true when the table did not exist before.
	Created    bool
	Before     []string
	After      []string
	Plan       []ColumnSource
	RowsCopied int64
}
