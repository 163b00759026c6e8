// Package store defines the backend-agnostic vector store contract and
// helpers shared by the concrete adapters.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/embedload/internal/domain"
)

// Store is the uniform contract over heterogeneous vector backends.
// Every adapter implements the full set, simulating primitives its
// backend lacks. Operations against the same table must be serialized
// by the caller; adapters provide no per-table locking.
//
// Distance semantics are backend-native and documented per adapter.
type Store interface {
	// CreateTable creates backend storage sized to the synthesized schema.
	// It is idempotent: a second call for the same table returns the
	// existing schema unchanged.
	CreateTable(ctx context.Context, table string, columns, primaryKeys []string,
		mode domain.EmbedMode, embedColumns []string) (domain.TableSchema, error)

	// Insert adds rows, replacing any existing row with the same
	// primary-key tuple so a previously deactivated key reloads into a
	// single row. Rows carrying populated embedding columns are added to
	// the native index in the same call, preserving batch order. Fails
	// with domain.ErrTableNotFound for unknown tables and
	// domain.ErrDataValidation when a declared primary-key column is
	// absent from any input row.
	Insert(ctx context.Context, table string, rows []domain.Row, primaryKeys []string) error

	// Update replaces every row matching on all primary-key columns,
	// collapsing duplicate-keyed rows to one, and appends rows with no
	// match. Fails with domain.ErrTableNotFound for unknown tables.
	Update(ctx context.Context, table string, rows []domain.Row, primaryKeys []string) error

	// MarkInactive sets is_active=false on rows whose primary-key tuple is
	// in keys. No-op for unknown tables or an empty key set.
	MarkInactive(ctx context.Context, table string, keys []domain.Key) error

	// ListActive returns rows whose is_active flag is not explicitly false.
	// Returns empty for unknown tables.
	ListActive(ctx context.Context, table string) ([]domain.Row, error)

	// Columns returns the schema column names in declaration order, empty
	// for unknown tables.
	Columns(ctx context.Context, table string) ([]string, error)

	// EmbeddingColumns returns the vector-typed column names, empty for
	// unknown tables.
	EmbeddingColumns(ctx context.Context, table string) ([]string, error)

	// AddColumn extends the schema, backfilling null on existing rows.
	// Fails with domain.ErrTableNotFound for unknown tables.
	AddColumn(ctx context.Context, table, column, columnType string) error

	// Search returns up to topK active rows nearest to the query vector,
	// nearest first. embedColumn selects the vector column in separated
	// mode; empty targets the table's sole vector column. topK larger
	// than the stored row count returns all rows. Fails with
	// domain.ErrTableNotFound for unknown tables.
	Search(ctx context.Context, table string, query []float32, topK int,
		embedColumn string) ([]domain.SearchResult, error)
}

// ResolveEmbedColumn picks the vector column a search targets. An empty
// request resolves to the combined "embeddings" column when present, or to
// the table's single vector column otherwise.
func ResolveEmbedColumn(s domain.TableSchema, requested string) (string, error) {
	vectorCols := s.EmbeddingColumns()
	if requested == "" {
		if s.HasColumn(domain.ColEmbeddings) {
			return domain.ColEmbeddings, nil
		}
		if len(vectorCols) == 1 {
			return vectorCols[0], nil
		}
		return "", fmt.Errorf("embed column required: table has %d vector columns: %w",
			len(vectorCols), domain.ErrDataValidation)
	}
	if _, ok := domain.VectorDim(s.Columns[requested]); !ok {
		return "", fmt.Errorf("column %q is not a vector column: %w", requested, domain.ErrDataValidation)
	}
	return requested, nil
}

// Document derives the search result payload for a row. Combined mode
// surfaces the joined source text; separated mode falls back to the source
// column behind the targeted vector column.
func Document(row domain.Row, embedColumn string) string {
	if v, ok := row[domain.ColEmbedValue].(string); ok && v != "" {
		return v
	}
	if src, ok := strings.CutSuffix(embedColumn, domain.EncSuffix); ok {
		if v, present := row[src]; present && v != nil {
			return fmt.Sprint(v)
		}
	}
	return ""
}

// ResultID renders a row's primary-key tuple as a search result identifier.
func ResultID(row domain.Row, primaryKeys []string) string {
	key, err := domain.KeyOf(row, primaryKeys)
	if err != nil {
		return ""
	}
	return strings.Join(key, ":")
}

// Metadata projects a row onto its plain data columns, dropping vectors and
// the bookkeeping columns added by schema synthesis.
func Metadata(row domain.Row, s domain.TableSchema) map[string]any {
	md := make(map[string]any)
	for _, col := range s.ColumnOrder {
		switch col {
		case domain.ColEmbedNames, domain.ColEmbedValue, domain.ColIsActive:
			continue
		}
		if _, vector := domain.VectorDim(s.Columns[col]); vector {
			continue
		}
		if v, ok := row[col]; ok && v != nil {
			md[col] = v
		}
	}
	return md
}

// ValidateBatch checks the insert precondition: every declared
// primary-key column present in every row.
func ValidateBatch(rows []domain.Row, primaryKeys []string) error {
	for i, row := range rows {
		for _, pk := range primaryKeys {
			if _, ok := row[pk]; !ok {
				return fmt.Errorf("row %d: primary key column %q missing: %w", i, pk, domain.ErrDataValidation)
			}
		}
	}
	return nil
}
