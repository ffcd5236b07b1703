// Package normalize maps lookup responses onto the fixed record schema.
package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/sells-group/asp-search/internal/lookup"
	"github.com/sells-group/asp-search/internal/model"
)

// serviceIDField is the result field carrying the numeric store id.
const serviceIDField = "trackId"

// Normalize builds exactly one record for a lookup. lookupErr takes
// precedence over resp.
func Normalize(key string, kind model.LookupKind, resp *lookup.Response, lookupErr error) model.Record {
	if lookupErr != nil {
		return failed(key, kind, lookupErr.Error())
	}
	if resp == nil || resp.ResultCount == 0 || resp.First() == nil {
		return failed(key, kind, fmt.Sprintf("no data found for %s (lookup by %s)", key, kind))
	}
	return fromResult(key, kind, resp.First())
}

func failed(key string, kind model.LookupKind, msg string) model.Record {
	rec := model.NewRecord(kind, key)
	switch kind {
	case model.LookupByBundle:
		rec = rec.With(model.FieldAdamID, model.NotAvailable).With(model.FieldBundleID, key)
	default:
		rec = rec.With(model.FieldAdamID, key).With(model.FieldBundleID, model.NotAvailable)
	}
	return rec.With(model.FieldErrorMessage, msg)
}

func fromResult(key string, kind model.LookupKind, item map[string]any) model.Record {
	rec := model.NewRecord(kind, key)

	switch kind {
	case model.LookupByBundle:
		if v, ok := stringify(item[serviceIDField]); ok && v != "" {
			rec = rec.With(model.FieldAdamID, v)
		} else {
			rec = rec.With(model.FieldAdamID, model.NotAvailable)
		}
	default:
		rec = rec.With(model.FieldAdamID, key)
	}

	for name, raw := range item {
		f, ok := model.FieldByName(name)
		if !ok || f == model.FieldAdamID || f == model.FieldErrorMessage {
			continue
		}
		if v, ok := stringify(raw); ok {
			rec = rec.With(f, v)
		}
	}

	if _, ok := rec.Get(model.FieldBundleID); !ok && kind == model.LookupByBundle {
		rec = rec.With(model.FieldBundleID, key)
	}
	return rec
}

// stringify renders a decoded JSON value as stored text. JSON null counts as
// absent.
func stringify(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t), true
		}
		return string(b), true
	}
}
