package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnNames_CanonicalOrder(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		"currentVersionReleaseDate",
		"releaseDate",
		"adamId",
		"trackName",
		"bundleId",
		"trackViewUrl",
		"artistName",
		"sellerName",
		"sellerUrl",
		"primaryGenreName",
		"error_message",
	}, ColumnNames())
	assert.Equal(t, "adamId", PrimaryKey)
	assert.Len(t, Fields(), len(ColumnNames()))
}

func TestFieldByName(t *testing.T) {
	t.Parallel()

	f, ok := FieldByName("trackViewUrl")
	require.True(t, ok)
	assert.Equal(t, FieldTrackViewURL, f)

	_, ok = FieldByName("trackId")
	assert.False(t, ok)
}

func TestParseLookupKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want LookupKind
	}{
		{"adamId", LookupByID},
		{"ID", LookupByID},
		{"bundleId", LookupByBundle},
		{" bundle ", LookupByBundle},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseLookupKind(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLookupKind("trackId")
	assert.Error(t, err)
}

func TestLookupKind_QueryParamAndIdentity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "id", LookupByID.QueryParam())
	assert.Equal(t, "bundleId", LookupByBundle.QueryParam())
	assert.Equal(t, FieldAdamID, LookupByID.IdentityField())
	assert.Equal(t, FieldBundleID, LookupByBundle.IdentityField())
}

func TestRecord_WithDoesNotMutate(t *testing.T) {
	t.Parallel()

	base := NewRecord(LookupByID, "1")
	next := base.With(FieldTrackName, "Pages")

	_, ok := base.Get(FieldTrackName)
	assert.False(t, ok)
	v, ok := next.Get(FieldTrackName)
	assert.True(t, ok)
	assert.Equal(t, "Pages", v)
}

func TestRecord_StorageKey(t *testing.T) {
	t.Parallel()

	byID := NewRecord(LookupByID, "123").With(FieldAdamID, "123")
	assert.Equal(t, "123", byID.StorageKey())

	missing := NewRecord(LookupByBundle, "com.example.app").With(FieldAdamID, NotAvailable)
	assert.Equal(t, "LOOKUP_FAIL_bundleId_com.example.app", missing.StorageKey())

	unset := NewRecord(LookupByBundle, "com.example.other")
	assert.Equal(t, "LOOKUP_FAIL_bundleId_com.example.other", unset.StorageKey())
}

func TestRecord_DisplayID(t *testing.T) {
	t.Parallel()

	r := NewRecord(LookupByBundle, "com.apple.Pages").
		With(FieldAdamID, "361309726").
		With(FieldBundleID, "com.apple.Pages")
	assert.Equal(t, "com.apple.Pages", r.DisplayID())

	failed := NewRecord(LookupByID, "42").With(FieldAdamID, "42").With(FieldBundleID, NotAvailable)
	assert.Equal(t, "42", failed.DisplayID())
}

func TestRecord_Row(t *testing.T) {
	t.Parallel()

	r := NewRecord(LookupByBundle, "com.x").
		With(FieldAdamID, NotAvailable).
		With(FieldBundleID, "com.x").
		With(FieldErrorMessage, "boom")

	row := r.Row()
	require.Len(t, row, len(ColumnNames()))
	assert.Equal(t, "LOOKUP_FAIL_bundleId_com.x", row[FieldAdamID])
	assert.Equal(t, "com.x", row[FieldBundleID])
	assert.Equal(t, "boom", row[FieldErrorMessage])
	assert.Nil(t, row[FieldTrackName])
	assert.True(t, r.Failed())
}

func TestRecordFromColumns(t *testing.T) {
	t.Parallel()

	id, name := "123", "Pages"
	cols := make([]*string, len(ColumnNames()))
	cols[FieldAdamID] = &id
	cols[FieldTrackName] = &name

	r, err := RecordFromColumns(cols)
	require.NoError(t, err)
	assert.Equal(t, "123", r.StorageKey())
	assert.Equal(t, "Pages", r.Value(FieldTrackName))
	_, ok := r.Get(FieldBundleID)
	assert.False(t, ok)

	_, err = RecordFromColumns(cols[:3])
	assert.Error(t, err)
}

func TestRecord_MarshalJSONKeepsSchemaOrder(t *testing.T) {
	t.Parallel()

	r := NewRecord(LookupByBundle, "com.x").
		With(FieldErrorMessage, "No data found").
		With(FieldBundleID, "com.x").
		With(FieldAdamID, NotAvailable)

	b, err := r.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"adamId":"N/A","bundleId":"com.x","error_message":"No data found"}`, string(b))

	empty, err := NewRecord(LookupByID, "1").MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(empty))
}
