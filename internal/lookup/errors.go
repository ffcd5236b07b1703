package lookup

import (
	"fmt"

	"github.com/sells-group/asp-search/internal/model"
)

// Error is the single failure class of a lookup: transport errors, non-200
// responses and malformed payloads all end up here.
type Error struct {
	Key        string
	Kind       model.LookupKind
	StatusCode int
	Err        error
}

func newError(key string, kind model.LookupKind, status int, err error) *Error {
	return &Error{Key: key, Kind: kind, StatusCode: status, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("error fetching data for %s (%s): %v", e.Key, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
