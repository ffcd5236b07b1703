package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/asp-search/internal/model"
)

func testDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

func openTestStore(t *testing.T, path string) (Store, *ReconcileResult) {
	t.Helper()
	st, res, err := Open(context.Background(), Config{Driver: "sqlite", Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st, res
}

// seedRaw runs statements against path outside of the store.
func seedRaw(t *testing.T, path string, stmts ...string) {
	t.Helper()
	conn, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer conn.Close()
	for _, s := range stmts {
		_, err := conn.Exec(s)
		require.NoError(t, err, s)
	}
}

func countRows(t *testing.T, path, table string) int {
	t.Helper()
	conn, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer conn.Close()
	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM "`+table+`"`).Scan(&n))
	return n
}

func pagesRecord(name string) model.Record {
	return model.NewRecord(model.LookupByID, "123456789").
		With(model.FieldAdamID, "123456789").
		With(model.FieldTrackName, name).
		With(model.FieldBundleID, "com.apple.Pages")
}

func TestSQLite_OpenCreatesFixedSchema(t *testing.T) {
	st, res := openTestStore(t, testDBPath(t))

	require.NotNil(t, res)
	assert.True(t, res.Reconciled)
	assert.True(t, res.Created)
	assert.Empty(t, res.Before)
	assert.Equal(t, model.ColumnNames(), res.After)

	cols, err := st.Columns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.ColumnNames(), cols)
}

func TestSQLite_ReopenDoesNotReconcile(t *testing.T) {
	path := testDBPath(t)
	st, _ := openTestStore(t, path)
	require.NoError(t, st.Put(context.Background(), pagesRecord("Pages")))
	require.NoError(t, st.Close())

	_, res := openTestStore(t, path)
	assert.False(t, res.Reconciled)
	assert.Equal(t, model.ColumnNames(), res.Before)
}

func TestSQLite_PutIsIdempotentPerIdentity(t *testing.T) {
	st, _ := openTestStore(t, testDBPath(t))
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, pagesRecord("Pages")))
	require.NoError(t, st.Put(ctx, pagesRecord("Pages 2")))

	recs, err := st.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Pages 2", recs[0].Value(model.FieldTrackName))
}

func TestSQLite_PutReplacesWholeRow(t *testing.T) {
	st, _ := openTestStore(t, testDBPath(t))
	ctx := context.Background()

	first := pagesRecord("Pages").With(model.FieldSellerName, "Apple Inc.")
	require.NoError(t, st.Put(ctx, first))

	second := model.NewRecord(model.LookupByID, "123456789").
		With(model.FieldAdamID, "123456789").
		With(model.FieldBundleID, model.NotAvailable).
		With(model.FieldErrorMessage, "no data found")
	require.NoError(t, st.Put(ctx, second))

	got, err := st.Get(ctx, "123456789")
	require.NoError(t, err)
	require.NotNil(t, got)
	_, ok := got.Get(model.FieldSellerName)
	assert.False(t, ok, "absent fields are stored as NULL")
	assert.Equal(t, "no data found", got.Value(model.FieldErrorMessage))
}

func TestSQLite_LastRunWins(t *testing.T) {
	path := testDBPath(t)
	ctx := context.Background()

	st1, _, err := Open(ctx, Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, st1.Put(ctx, pagesRecord("First Run")))
	require.NoError(t, st1.Close())

	st2, _, err := Open(ctx, Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, st2.Put(ctx, pagesRecord("Second Run")))
	require.NoError(t, st2.Close())

	st3, _ := openTestStore(t, path)
	got, err := st3.Get(ctx, "123456789")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Second Run", got.Value(model.FieldTrackName))
}

func TestSQLite_SynthesizedKeyForMissingAdamID(t *testing.T) {
	st, _ := openTestStore(t, testDBPath(t))
	ctx := context.Background()

	rec := model.NewRecord(model.LookupByBundle, "com.nope").
		With(model.FieldAdamID, model.NotAvailable).
		With(model.FieldBundleID, "com.nope").
		With(model.FieldErrorMessage, "no data found for com.nope (lookup by bundleId)")
	require.NoError(t, st.Put(ctx, rec))

	got, err := st.Get(ctx, "LOOKUP_FAIL_bundleId_com.nope")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "com.nope", got.Value(model.FieldBundleID))
}

func TestSQLite_GetMissing(t *testing.T) {
	st, _ := openTestStore(t, testDBPath(t))

	got, err := st.Get(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_Metadata_LastWriteWins(t *testing.T) {
	st, _ := openTestStore(t, testDBPath(t))
	ctx := context.Background()

	require.NoError(t, st.PutMetadata(ctx, "start_time", "2025-01-01 10:00:00"))
	require.NoError(t, st.PutMetadata(ctx, "lookup_kind", "adamId"))
	require.NoError(t, st.PutMetadata(ctx, "start_time", "2025-01-02 10:00:00"))

	meta, err := st.Metadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"start_time":  "2025-01-02 10:00:00",
		"lookup_kind": "adamId",
	}, meta)
}

func TestSQLite_ReconcileLegacyTrackID(t *testing.T) {
	path := testDBPath(t)
	seedRaw(t, path,
		`CREATE TABLE app_bundle_data (trackId INTEGER, trackName TEXT)`,
		`INSERT INTO app_bundle_data VALUES (361309726, 'Pages')`,
		`INSERT INTO app_bundle_data VALUES (409183694, 'Keynote')`,
	)

	st, res := openTestStore(t, path)
	ctx := context.Background()

	assert.True(t, res.Reconciled)
	assert.False(t, res.Created)
	assert.Equal(t, []string{"trackId", "trackName"}, res.Before)
	assert.Equal(t, model.ColumnNames(), res.After)
	assert.Equal(t, int64(2), res.RowsCopied)

	got, err := st.Get(ctx, "361309726")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Pages", got.Value(model.FieldTrackName))

	got, err = st.Get(ctx, "409183694")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Keynote", got.Value(model.FieldTrackName))
}

func TestSQLite_ReconcileLegacyAlias(t *testing.T) {
	path := testDBPath(t)
	seedRaw(t, path,
		`CREATE TABLE app_bundle_data (bundle_id_lookup TEXT, trackId TEXT, bundleId TEXT, sellerName TEXT)`,
		`INSERT INTO app_bundle_data VALUES ('111', '999', 'com.a', 'Seller A')`,
	)

	st, res := openTestStore(t, path)
	assert.Equal(t, "bundle_id_lookup", sourceOf(res.Plan, "adamId"))

	got, err := st.Get(context.Background(), "111")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "com.a", got.Value(model.FieldBundleID))
	assert.Equal(t, "Seller A", got.Value(model.FieldSellerName))
}

func TestSQLite_ReconcileReorderedColumns(t *testing.T) {
	path := testDBPath(t)
	seedRaw(t, path,
		`CREATE TABLE app_bundle_data (adamId TEXT PRIMARY KEY, trackName TEXT, currentVersionReleaseDate TEXT, releaseDate TEXT,
			bundleId TEXT, trackViewUrl TEXT, artistName TEXT, sellerName TEXT, sellerUrl TEXT, primaryGenreName TEXT, error_message TEXT)`,
		`INSERT INTO app_bundle_data (adamId, trackName, primaryGenreName) VALUES ('1', 'One', 'Games')`,
	)

	st, res := openTestStore(t, path)
	assert.True(t, res.Reconciled)

	cols, err := st.Columns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.ColumnNames(), cols)

	got, err := st.Get(context.Background(), "1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "One", got.Value(model.FieldTrackName))
	assert.Equal(t, "Games", got.Value(model.FieldPrimaryGenreName))
}

func TestSQLite_ReconcileSynthesizesMissingIdentity(t *testing.T) {
	path := testDBPath(t)
	seedRaw(t, path,
		`CREATE TABLE app_bundle_data (trackName TEXT, artistName TEXT)`,
		`INSERT INTO app_bundle_data VALUES ('Orphan', 'Someone')`,
	)

	st, res := openTestStore(t, path)
	assert.Equal(t, int64(1), res.RowsCopied)

	got, err := st.Get(context.Background(), "LEGACY_ROW_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Orphan", got.Value(model.FieldTrackName))
}

func TestSQLite_ReconcileDuplicateIdentitiesKeepOne(t *testing.T) {
	path := testDBPath(t)
	seedRaw(t, path,
		`CREATE TABLE app_bundle_data (trackId TEXT, trackName TEXT)`,
		`INSERT INTO app_bundle_data VALUES ('7', 'A')`,
		`INSERT INTO app_bundle_data VALUES ('7', 'B')`,
		`INSERT INTO app_bundle_data VALUES ('8', 'C')`,
	)

	st, _ := openTestStore(t, path)
	recs, err := st.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestSQLite_ReconcileFailureLeavesOldTable(t *testing.T) {
	path := testDBPath(t)
	seedRaw(t, path,
		`CREATE TABLE app_bundle_data (trackId TEXT, trackName TEXT)`,
		`INSERT INTO app_bundle_data VALUES ('7', 'A')`,
		// A view squatting on the temp name makes the rebuild fail.
		`CREATE VIEW app_bundle_data_temp AS SELECT 1`,
	)

	_, _, err := Open(context.Background(), Config{Path: path})
	require.Error(t, err)

	var serr *SetupError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, path, serr.Target)

	assert.Equal(t, 1, countRows(t, path, "app_bundle_data"))
}

func TestSQLite_CustomTables(t *testing.T) {
	st, _, err := Open(context.Background(), Config{
		Path:   testDBPath(t),
		Tables: Tables{Data: "apps", Metadata: "apps_meta"},
	})
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Put(context.Background(), pagesRecord("Pages")))
	require.NoError(t, st.PutMetadata(context.Background(), "k", "v"))

	got, err := st.Get(context.Background(), "123456789")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, _, err := Open(context.Background(), Config{Driver: "mysql"})
	require.Error(t, err)
	var serr *SetupError
	assert.True(t, errors.As(err, &serr))
	assert.Contains(t, err.Error(), "unsupported driver")
}

func TestOpen_UnwritablePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "x.db")
	_, _, err := Open(context.Background(), Config{Path: path})
	require.Error(t, err)
	var serr *SetupError
	assert.True(t, errors.As(err, &serr))
}

func TestSQLite_ListLimit(t *testing.T) {
	st, _ := openTestStore(t, testDBPath(t))
	ctx := context.Background()

	for _, id := range []string{"3", "1", "2"} {
		rec := model.NewRecord(model.LookupByID, id).With(model.FieldAdamID, id)
		require.NoError(t, st.Put(ctx, rec))
	}

	recs, err := st.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "1", recs[0].StorageKey())
	assert.Equal(t, "2", recs[1].StorageKey())
}
