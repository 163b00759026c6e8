package domain

import (
	"fmt"
	"strings"
)

// Row is a transient record keyed by column name. Values are strings for
// text columns, []float32 for vector columns, []string for text arrays
// and bool for booleans. Persisted state belongs to the store adapter.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Active reports the is_active flag; rows lacking the column count as active.
func (r Row) Active() bool {
	v, ok := r[ColIsActive]
	if !ok || v == nil {
		return true
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return !strings.EqualFold(b, "false") && b != "0"
	case int64:
		return b != 0
	case int:
		return b != 0
	default:
		return true
	}
}

// Key identifies a row by the ordered values of its primary-key columns.
type Key []string

// keySep never occurs in CSV cell values parsed by the loader.
const keySep = "\x1f"

// String renders the key for use as a map key.
func (k Key) String() string {
	return strings.Join(k, keySep)
}

// KeyOf extracts the primary-key tuple from a row. It fails with
// ErrDataValidation if a declared key column is absent.
func KeyOf(row Row, primaryKeys []string) (Key, error) {
	key := make(Key, len(primaryKeys))
	for i, col := range primaryKeys {
		v, ok := row[col]
		if !ok {
			return nil, fmt.Errorf("primary key column %q missing from row: %w", col, ErrDataValidation)
		}
		key[i] = fmt.Sprint(v)
	}
	return key, nil
}

// SearchResult is one nearest-neighbor hit, constructed fresh per search.
type SearchResult struct {
	ID       string
	Document string
	Distance float64
	Metadata map[string]any
}
