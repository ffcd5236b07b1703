package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/asp-search/internal/db"
	"github.com/sells-group/asp-search/internal/model"
)

// SQLiteStore implements Store on a single SQLite file using modernc.org/sqlite.
type SQLiteStore struct {
	statements
	db *sql.DB
}

// NewSQLite opens (creating if needed) the SQLite database at dsn. The
// rollback journal is kept so the database stays a single file.
func NewSQLite(dsn string, tables Tables) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, eris.New("sqlite: empty database path")
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	conn.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=DELETE",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}

	stmts, err := buildStatements(db.SQLite, tables)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &SQLiteStore{statements: stmts, db: conn}, nil
}

// Reconcile brings the data table to the fixed schema and ensures the
// metadata table exists. The rebuild runs in one transaction, so a failure
// leaves the previous table untouched.
func (s *SQLiteStore) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	if _, err := s.db.ExecContext(ctx, metadataTableSQL(s.tables.Metadata)); err != nil {
		return nil, eris.Wrap(err, "sqlite: create metadata table")
	}

	before, err := s.Columns(ctx)
	if err != nil {
		return nil, err
	}
	res := &ReconcileResult{Before: before, After: before}
	if !NeedsReconcile(before) {
		return res, nil
	}

	script := buildReconcileScript(s.tables.Data, before)
	res.Reconciled = true
	res.Created = len(before) == 0
	res.Plan = script.Plan

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin reconcile")
	}
	defer tx.Rollback() //nolint:errcheck

	for i, stmt := range script.Statements {
		r, err := tx.ExecContext(ctx, stmt)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: reconcile %s", s.tables.Data)
		}
		if i == script.CopyIndex {
			res.RowsCopied, _ = r.RowsAffected()
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit reconcile")
	}

	after, err := s.Columns(ctx)
	if err != nil {
		return nil, err
	}
	res.After = after

	zap.L().Info("store: table reconciled",
		zap.String("table", s.tables.Data),
		zap.Strings("before", before),
		zap.Int64("rows_copied", res.RowsCopied),
	)
	return res, nil
}

func (s *SQLiteStore) Columns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?) ORDER BY cid`, s.tables.Data)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: table info")
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan table info")
		}
		cols = append(cols, name)
	}
	return cols, eris.Wrap(rows.Err(), "sqlite: table info iterate")
}

func (s *SQLiteStore) Put(ctx context.Context, rec model.Record) error {
	if _, err := s.db.ExecContext(ctx, s.upsertSQL, rec.Row()...); err != nil {
		return &WriteError{Key: rec.StorageKey(), Err: eris.Wrap(err, "sqlite: upsert record")}
	}
	return nil
}

func (s *SQLiteStore) PutMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, s.metaSQL, key, value)
	return eris.Wrapf(err, "sqlite: upsert metadata %s", key)
}

func (s *SQLiteStore) Metadata(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT "key", "value" FROM `+db.QuoteTable(s.tables.Metadata))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list metadata")
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k string
		var v sql.NullString
		if err := rows.Scan(&k, &v); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan metadata")
		}
		out[k] = v.String
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list metadata iterate")
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*model.Record, error) {
	row := s.db.QueryRowContext(ctx,
		db.SelectSQL(s.tables.Data, model.ColumnNames())+` WHERE `+db.QuoteIdent(model.PrimaryKey)+` = ?`,
		key,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %s", key)
	}
	return rec, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]model.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		db.SelectSQL(s.tables.Data, model.ColumnNames())+` ORDER BY `+db.QuoteIdent(model.PrimaryKey)+` LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
