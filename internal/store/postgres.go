package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/asp-search/internal/db"
	"github.com/sells-group/asp-search/internal/model"
)

// pool is the subset of pgxpool.Pool used by PostgresStore; pgxmock
// satisfies it in tests.
type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store on a Postgres database via pgxpool.
type PostgresStore struct {
	statements
	pool pool
}

// NewPostgres connects to connString and pings the server.
func NewPostgres(ctx context.Context, connString string, tables Tables) (*PostgresStore, error) {
	if connString == "" {
		return nil, eris.New("postgres: empty database url")
	}
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	// One sequential writer per run.
	pgxCfg.MaxConns = 2
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	p, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresWithPool(p, tables)
}

func newPostgresWithPool(p pool, tables Tables) (*PostgresStore, error) {
	stmts, err := buildStatements(db.Postgres, tables)
	if err != nil {
		p.Close()
		return nil, err
	}
	return &PostgresStore{statements: stmts, pool: p}, nil
}

const columnsQuery = `SELECT column_name FROM information_schema.columns
WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema()) AND table_name = $2
ORDER BY ordinal_position`

func splitTable(table string) (schema, name string) {
	if i := strings.LastIndex(table, "."); i >= 0 {
		return table[:i], table[i+1:]
	}
	return "", table
}

// Reconcile brings the data table to the fixed schema inside one
// transaction and ensures the metadata table exists.
func (s *PostgresStore) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	if _, err := s.pool.Exec(ctx, metadataTableSQL(s.tables.Metadata)); err != nil {
		return nil, eris.Wrap(err, "postgres: create metadata table")
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin reconcile")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for i, stmt := range script.Statements {
		tag, err := tx.Exec(ctx, stmt)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: reconcile %s", s.tables.Data)
		}
		if i == script.CopyIndex {
			res.RowsCopied = tag.RowsAffected()
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit reconcile")
	}
	res.After = model.ColumnNames()

	zap.L().Info("store: table reconciled",
		zap.String("table", s.tables.Data),
		zap.Strings("before", before),
		zap.Int64("rows_copied", res.RowsCopied),
	)
	return res, nil
}

func (s *PostgresStore) Columns(ctx context.Context) ([]string, error) {
	schema, name := splitTable(s.tables.Data)
	rows, err := s.pool.Query(ctx, columnsQuery, schema, name)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: table columns")
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, eris.Wrap(err, "postgres: scan table columns")
		}
		cols = append(cols, c)
	}
	return cols, eris.Wrap(rows.Err(), "postgres: table columns iterate")
}

func (s *PostgresStore) Put(ctx context.Context, rec model.Record) error {
	if _, err := s.pool.Exec(ctx, s.upsertSQL, rec.Row()...); err != nil {
		return &WriteError{Key: rec.StorageKey(), Err: eris.Wrap(err, "postgres: upsert record")}
	}
	return nil
}

func (s *PostgresStore) PutMetadata(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, s.metaSQL, key, value)
	return eris.Wrapf(err, "postgres: upsert metadata %s", key)
}

func (s *PostgresStore) Metadata(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT "key", COALESCE("value", '') FROM `+db.QuoteTable(s.tables.Metadata))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list metadata")
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, eris.Wrap(err, "postgres: scan metadata")
		}
		out[k] = v
	}
	return out, eris.Wrap(rows.Err(), "postgres: list metadata iterate")
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*model.Record, error) {
	row := s.pool.QueryRow(ctx,
		db.SelectSQL(s.tables.Data, model.ColumnNames())+` WHERE `+db.QuoteIdent(model.PrimaryKey)+` = $1`,
		key,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get record %s", key)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]model.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		db.SelectSQL(s.tables.Data, model.ColumnNames())+` ORDER BY `+db.QuoteIdent(model.PrimaryKey)+` LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
