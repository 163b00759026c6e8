// Package schema derives vector-store table schemas from input row shapes.
package schema

import (
	"github.com/kailas-cloud/embedload/internal/domain"
)

// Synthesize derives a TableSchema from the input column set and embedding
// mode. Every input column becomes text; the reserved bookkeeping columns
// and the mode-dependent vector columns are appended after. All columns are
// nullable. Synthesis is pure: adapters are responsible for calling it at
// most once per table name.
func Synthesize(columns []string, mode domain.EmbedMode, embedColumns []string, dim int) domain.TableSchema {
	s := domain.TableSchema{
		Columns:   make(map[string]string),
		Nullables: make(map[string]bool),
	}

	// Later declarations win on type so reserved columns override
	// same-named input columns; order keeps the first appearance.
	add := func(name, columnType string) {
		if _, ok := s.Columns[name]; !ok {
			s.ColumnOrder = append(s.ColumnOrder, name)
		}
		s.Columns[name] = columnType
		s.Nullables[name] = true
	}

	for _, col := range columns {
		add(col, domain.TypeText)
	}

	add(domain.ColEmbedNames, domain.TypeTextArray)

	if mode == domain.ModeCombined {
		add(domain.ColEmbedValue, domain.TypeText)
		add(domain.ColEmbeddings, domain.VectorType(dim))
	} else {
		for _, col := range embedColumns {
			add(col+domain.EncSuffix, domain.VectorType(dim))
		}
	}

	add(domain.ColIsActive, domain.TypeBoolean)

	return s
}
