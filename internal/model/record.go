package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// NotAvailable marks an identity field that could not be determined.
const NotAvailable = "N/A"

// LookupKind selects which identifier space a lookup key belongs to.
type LookupKind string

const (
	LookupByID     LookupKind = "adamId"
	LookupByBundle LookupKind = "bundleId"
)

// ParseLookupKind accepts the canonical kind names plus the short forms
// "id" and "bundle", case-insensitively.
func ParseLookupKind(s string) (LookupKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "adamid", "id":
		return LookupByID, nil
	case "bundleid", "bundle":
		return LookupByBundle, nil
	default:
		return "", eris.Errorf("model: unknown lookup kind %q (want adamId or bundleId)", s)
	}
}

// QueryParam returns the lookup endpoint's query parameter for the kind.
func (k LookupKind) QueryParam() string {
	if k == LookupByBundle {
		return "bundleId"
	}
	return "id"
}

// IdentityField is the record field that carries the lookup key itself.
func (k LookupKind) IdentityField() Field {
	if k == LookupByBundle {
		return FieldBundleID
	}
	return FieldAdamID
}

// Field identifies one column of the fixed output schema.
type Field int

// Fields in canonical column order.
const (
	FieldCurrentVersionReleaseDate Field = iota
	FieldReleaseDate
	FieldAdamID
	FieldTrackName
	FieldBundleID
	FieldTrackViewURL
	FieldArtistName
	FieldSellerName
	FieldSellerURL
	FieldPrimaryGenreName
	FieldErrorMessage

	numFields
)

var fieldNames = [numFields]string{
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
}

// PrimaryKey is the column name of the stored identity.
var PrimaryKey = FieldAdamID.String()

func (f Field) String() string {
	if f < 0 || f >= numFields {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldNames[f]
}

// Fields returns every schema field in canonical order.
func Fields() []Field {
	out := make([]Field, numFields)
	for i := range out {
		out[i] = Field(i)
	}
	return out
}

// ColumnNames returns the fixed schema's column names in canonical order.
func ColumnNames() []string {
	return append([]string(nil), fieldNames[:]...)
}

// FieldByName resolves a schema column name to its Field.
func FieldByName(name string) (Field, bool) {
	for i, n := range fieldNames {
		if n == name {
			return Field(i), true
		}
	}
	return 0, false
}

// Record is one normalized lookup result: a fixed set of optional string
// fields plus the lookup that produced it. Records are values; With returns
// a modified copy and never mutates the receiver.
type Record struct {
	Kind LookupKind
	Key  string

	values  [numFields]string
	present [numFields]bool
}

// NewRecord returns an empty record for the given lookup.
func NewRecord(kind LookupKind, key string) Record {
	return Record{Kind: kind, Key: key}
}

// With returns a copy of r with field f set to v.
func (r Record) With(f Field, v string) Record {
	r.values[f] = v
	r.present[f] = true
	return r
}

// Get returns the value of f and whether it is set.
func (r Record) Get(f Field) (string, bool) {
	return r.values[f], r.present[f]
}

// Value returns the value of f, or "" when unset.
func (r Record) Value(f Field) string {
	return r.values[f]
}

// Failed reports whether the record carries an error message instead of data.
func (r Record) Failed() bool {
	return r.present[FieldErrorMessage]
}

// StorageKey is the primary-key value the record is stored under: adamId when
// it is known, otherwise a key derived from the lookup kind and original key.
func (r Record) StorageKey() string {
	if id, ok := r.Get(FieldAdamID); ok && id != "" && id != NotAvailable {
		return id
	}
	return fmt.Sprintf("LOOKUP_FAIL_%s_%s", r.Kind, r.Key)
}

// DisplayID is the identifier shown in report headers: the value of the
// lookup kind's identity field, falling back to the original key.
func (r Record) DisplayID() string {
	if v, ok := r.Get(r.Kind.IdentityField()); ok && v != "" && v != NotAvailable {
		return v
	}
	return r.Key
}

// Row returns the record as column values in schema order, with nil for
// unset fields and the storage key in the adamId position.
func (r Record) Row() []any {
	row := make([]any, numFields)
	for i := range row {
		if r.present[i] {
			row[i] = r.values[i]
		}
	}
	row[FieldAdamID] = r.StorageKey()
	return row
}

// RecordFromColumns rebuilds a record from stored column values in schema
// order; nil entries stay unset.
func RecordFromColumns(cols []*string) (Record, error) {
	if len(cols) != int(numFields) {
		return Record{}, eris.Errorf("model: expected %d columns, got %d", int(numFields), len(cols))
	}
	var r Record
	for i, c := range cols {
		if c != nil {
			r = r.With(Field(i), *c)
		}
	}
	r.Key = r.Value(FieldAdamID)
	r.Kind = LookupByID
	return r, nil
}

// MarshalJSON encodes the present fields as an object in schema order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for i, name := range fieldNames {
		if !r.present[i] {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, _ := json.Marshal(name)
		v, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, eris.Wrapf(err, "model: marshal %s", name)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
