// Package store persists normalized records in a relational table whose
// columns always match the fixed record schema, reconciling older layouts on
// open.
package store

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/asp-search/internal/db"
	"github.com/sells-group/asp-search/internal/model"
)

// Store is an opened, reconciled record table plus its metadata table.
type Store interface {
	// Put writes every schema column for rec, replacing any row with the
	// same storage key.
	Put(ctx context.Context, rec model.Record) error
	// PutMetadata upserts one run bookkeeping value.
	PutMetadata(ctx context.Context, key, value string) error
	// Metadata returns every stored metadata pair.
	Metadata(ctx context.Context) (map[string]string, error)
	// Get returns the record stored under key, or nil when there is none.
	Get(ctx context.Context, key string) (*model.Record, error)
	// List returns up to limit records ordered by storage key.
	List(ctx context.Context, limit int) ([]model.Record, error)
	// Columns returns the data table's columns in table order.
	Columns(ctx context.Context) ([]string, error)
	Close() error
}

// Tables names the two tables a store owns.
type Tables struct {
	Data     string `yaml:"data" mapstructure:"data"`
	Metadata string `yaml:"metadata" mapstructure:"metadata"`
}

// DefaultTables returns the table names used by the lookup tool.
func DefaultTables() Tables {
	return Tables{Data: "app_bundle_data", Metadata: "run_metadata"}
}

func (t Tables) withDefaults() Tables {
	d := DefaultTables()
	if t.Data == "" {
		t.Data = d.Data
	}
	if t.Metadata == "" {
		t.Metadata = d.Metadata
	}
	return t
}

// Config selects and locates the backing database.
type Config struct {
	Driver      string // "sqlite" (default) or "postgres"
	Path        string // sqlite file
	DatabaseURL string // postgres connection string
	Tables      Tables
}

// Open connects to the configured database and reconciles its data table.
// Any failure is returned as *SetupError.
func Open(ctx context.Context, cfg Config) (Store, *ReconcileResult, error) {
	switch cfg.Driver {
	case "", "sqlite":
		st, err := NewSQLite(cfg.Path, cfg.Tables)
		if err != nil {
			return nil, nil, &SetupError{Target: cfg.Path, Err: err}
		}
		res, err := st.Reconcile(ctx)
		if err != nil {
			st.Close() //nolint:errcheck
			return nil, nil, &SetupError{Target: cfg.Path, Err: err}
		}
		return st, res, nil
	case "postgres":
		st, err := NewPostgres(ctx, cfg.DatabaseURL, cfg.Tables)
		if err != nil {
			return nil, nil, &SetupError{Target: "postgres", Err: err}
		}
		res, err := st.Reconcile(ctx)
		if err != nil {
			st.Close() //nolint:errcheck
			return nil, nil, &SetupError{Target: "postgres", Err: err}
		}
		return st, res, nil
	default:
		return nil, nil, &SetupError{Target: cfg.Driver, Err: eris.Errorf("store: unsupported driver %q", cfg.Driver)}
	}
}

// SetupError means the store could not be opened or reconciled; the run
// continues without it.
type SetupError struct {
	Target string
	Err    error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("store setup %s: %v", e.Target, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// WriteError is a failed upsert of one record.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("store write %s: %v", e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// statements holds the per-dialect upsert SQL for both tables.
type statements struct {
	tables    Tables
	upsertSQL string
	metaSQL   string
}

func buildStatements(d db.Dialect, tables Tables) (statements, error) {
	tables = tables.withDefaults()
	upsert, err := db.UpsertSQL(d, db.UpsertConfig{
		Table:        tables.Data,
		Columns:      model.ColumnNames(),
		ConflictKeys: []string{model.PrimaryKey},
	})
	if err != nil {
		return statements{}, eris.Wrapf(err, "%s: build record upsert", d)
	}
	meta, err := db.UpsertSQL(d, db.UpsertConfig{
		Table:        tables.Metadata,
		Columns:      []string{"key", "value"},
		ConflictKeys: []string{"key"},
	})
	if err != nil {
		return statements{}, eris.Wrapf(err, "%s: build metadata upsert", d)
	}
	return statements{tables: tables, upsertSQL: upsert, metaSQL: meta}, nil
}

func metadataTableSQL(table string) string {
	return "CREATE TABLE IF NOT EXISTS " + db.QuoteTable(table) + ` ("key" TEXT PRIMARY KEY, "value" TEXT)`
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*model.Record, error) {
	cols := make([]*string, len(model.ColumnNames()))
	dest := make([]any, len(cols))
	for i := range cols {
		dest[i] = &cols[i]
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	rec, err := model.RecordFromColumns(cols)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
