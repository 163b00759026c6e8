package store

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/embedload/internal/domain"
)

func combinedSchema(t *testing.T) domain.TableSchema {
	t.Helper()
	return domain.TableSchema{
		Columns: map[string]string{
			"id": domain.TypeText, "name": domain.TypeText,
			"embed_columns_names": domain.TypeTextArray,
			"embed_columns_value": domain.TypeText,
			"embeddings":          domain.VectorType(4),
			"is_active":           domain.TypeBoolean,
		},
		Nullables: map[string]bool{
			"id": true, "name": true, "embed_columns_names": true,
			"embed_columns_value": true, "embeddings": true, "is_active": true,
		},
		ColumnOrder: []string{"id", "name", "embed_columns_names", "embed_columns_value", "embeddings", "is_active"},
	}
}

func separatedSchema(t *testing.T) domain.TableSchema {
	t.Helper()
	return domain.TableSchema{
		Columns: map[string]string{
			"id": domain.TypeText, "name": domain.TypeText, "description": domain.TypeText,
			"embed_columns_names": domain.TypeTextArray,
			"name_enc":            domain.VectorType(4),
			"description_enc":     domain.VectorType(4),
			"is_active":           domain.TypeBoolean,
		},
		Nullables: map[string]bool{
			"id": true, "name": true, "description": true,
			"embed_columns_names": true, "name_enc": true, "description_enc": true, "is_active": true,
		},
		ColumnOrder: []string{"id", "name", "description", "embed_columns_names", "name_enc", "description_enc", "is_active"},
	}
}

func TestResolveEmbedColumn(t *testing.T) {
	combined := combinedSchema(t)
	separated := separatedSchema(t)

	col, err := ResolveEmbedColumn(combined, "")
	if err != nil || col != "embeddings" {
		t.Fatalf("expected embeddings, got (%q, %v)", col, err)
	}

	col, err = ResolveEmbedColumn(separated, "name_enc")
	if err != nil || col != "name_enc" {
		t.Fatalf("expected name_enc, got (%q, %v)", col, err)
	}

	if _, err := ResolveEmbedColumn(separated, ""); !errors.Is(err, domain.ErrDataValidation) {
		t.Fatalf("expected ErrDataValidation for ambiguous target, got %v", err)
	}
	if _, err := ResolveEmbedColumn(combined, "name"); !errors.Is(err, domain.ErrDataValidation) {
		t.Fatalf("expected ErrDataValidation for non-vector column, got %v", err)
	}
}

func TestResolveEmbedColumn_SingleVectorFallback(t *testing.T) {
	s := separatedSchema(t)
	delete(s.Columns, "description_enc")
	delete(s.Nullables, "description_enc")
	s.ColumnOrder = []string{"id", "name", "description", "embed_columns_names", "name_enc", "is_active"}

	col, err := ResolveEmbedColumn(s, "")
	if err != nil || col != "name_enc" {
		t.Fatalf("expected sole vector column fallback, got (%q, %v)", col, err)
	}
}

func TestDocument(t *testing.T) {
	combined := domain.Row{"embed_columns_value": "alpha beta", "name": "alpha"}
	if got := Document(combined, "embeddings"); got != "alpha beta" {
		t.Fatalf("expected joined text, got %q", got)
	}

	separated := domain.Row{"name": "alpha"}
	if got := Document(separated, "name_enc"); got != "alpha" {
		t.Fatalf("expected source column fallback, got %q", got)
	}

	if got := Document(domain.Row{}, "embeddings"); got != "" {
		t.Fatalf("expected empty document, got %q", got)
	}
}

func TestResultID(t *testing.T) {
	row := domain.Row{"id": "1", "region": "eu"}
	if got := ResultID(row, []string{"id", "region"}); got != "1:eu" {
		t.Fatalf("unexpected id: %q", got)
	}
	if got := ResultID(row, []string{"missing"}); got != "" {
		t.Fatalf("expected empty id for missing key, got %q", got)
	}
}

func TestMetadata_ProjectsDataColumns(t *testing.T) {
	s := combinedSchema(t)
	row := domain.Row{
		"id": "1", "name": "alpha",
		"embed_columns_names": []string{"name"},
		"embed_columns_value": "alpha",
		"embeddings":          []float32{1, 0, 0, 0},
		"is_active":           true,
	}
	md := Metadata(row, s)
	if md["id"] != "1" || md["name"] != "alpha" {
		t.Fatalf("expected data columns, got %v", md)
	}
	for _, hidden := range []string{"embeddings", "embed_columns_names", "embed_columns_value", "is_active"} {
		if _, ok := md[hidden]; ok {
			t.Errorf("column %s must not appear in metadata", hidden)
		}
	}
}

func TestValidateBatch(t *testing.T) {
	rows := []domain.Row{{"id": "1"}, {"id": "2"}}
	if err := ValidateBatch(rows, []string{"id"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows = append(rows, domain.Row{"name": "x"})
	if err := ValidateBatch(rows, []string{"id"}); !errors.Is(err, domain.ErrDataValidation) {
		t.Fatalf("expected ErrDataValidation, got %v", err)
	}
}
