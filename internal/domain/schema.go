// Package domain holds the core data model: rows, table schemas,
// embedding modes, and the error taxonomy shared by every layer.
package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// EmbedMode governs how embedding-source columns map to vector columns.
type EmbedMode string

const (
	// ModeCombined encodes all source columns jointly into one "embeddings" vector.
	ModeCombined EmbedMode = "combined"
	// ModeSeparated encodes each source column into its own "<col>_enc" vector.
	ModeSeparated EmbedMode = "separated"
)

// Valid reports whether the mode is one of the known values.
func (m EmbedMode) Valid() bool {
	return m == ModeCombined || m == ModeSeparated
}

// Reserved column names added during schema synthesis.
const (
	ColEmbedNames = "embed_columns_names"
	ColEmbedValue = "embed_columns_value"
	ColEmbeddings = "embeddings"
	ColIsActive   = "is_active"

	// EncSuffix is appended to source columns in separated mode.
	EncSuffix = "_enc"
)

// Column type tags.
const (
	TypeText      = "text"
	TypeTextArray = "text[]"
	TypeBoolean   = "boolean"
)

// VectorType returns the type tag for a vector column of the given dimension.
func VectorType(dim int) string {
	return fmt.Sprintf("vector(%d)", dim)
}

// VectorDim parses a vector type tag. Returns (0, false) for non-vector types.
func VectorDim(columnType string) (int, bool) {
	if !strings.HasPrefix(columnType, "vector(") || !strings.HasSuffix(columnType, ")") {
		return 0, false
	}
	dim, err := strconv.Atoi(columnType[len("vector(") : len(columnType)-1])
	if err != nil || dim <= 0 {
		return 0, false
	}
	return dim, true
}

// TableSchema maps column names to type tags and nullability.
// ColumnOrder preserves declaration order for DDL and display; it always
// lists exactly the keys of Columns.
type TableSchema struct {
	Columns     map[string]string
	Nullables   map[string]bool
	ColumnOrder []string
}

// Validate checks the schema invariant: Columns, Nullables and ColumnOrder
// cover exactly the same column set.
func (s TableSchema) Validate() error {
	if len(s.Columns) != len(s.Nullables) || len(s.Columns) != len(s.ColumnOrder) {
		return fmt.Errorf("schema maps out of sync: %d columns, %d nullables, %d ordered: %w",
			len(s.Columns), len(s.Nullables), len(s.ColumnOrder), ErrDataValidation)
	}
	for _, name := range s.ColumnOrder {
		if _, ok := s.Columns[name]; !ok {
			return fmt.Errorf("ordered column %q missing from column map: %w", name, ErrDataValidation)
		}
		if _, ok := s.Nullables[name]; !ok {
			return fmt.Errorf("column %q missing from nullability map: %w", name, ErrDataValidation)
		}
	}
	return nil
}

// HasColumn reports whether the schema declares the column.
func (s TableSchema) HasColumn(name string) bool {
	_, ok := s.Columns[name]
	return ok
}

// EmbeddingColumns returns the vector-typed columns in declaration order.
func (s TableSchema) EmbeddingColumns() []string {
	var cols []string
	for _, name := range s.ColumnOrder {
		if _, ok := VectorDim(s.Columns[name]); ok {
			cols = append(cols, name)
		}
	}
	return cols
}

// AddColumn extends the schema with a new nullable column.
func (s *TableSchema) AddColumn(name, columnType string) {
	if _, ok := s.Columns[name]; ok {
		return
	}
	s.Columns[name] = columnType
	s.Nullables[name] = true
	s.ColumnOrder = append(s.ColumnOrder, name)
}

// Clone returns a deep copy so adapters can hand schemas out without
// exposing their registry state.
func (s TableSchema) Clone() TableSchema {
	out := TableSchema{
		Columns:     make(map[string]string, len(s.Columns)),
		Nullables:   make(map[string]bool, len(s.Nullables)),
		ColumnOrder: append([]string(nil), s.ColumnOrder...),
	}
	for k, v := range s.Columns {
		out.Columns[k] = v
	}
	for k, v := range s.Nullables {
		out.Nullables[k] = v
	}
	return out
}
