// Package flat implements the store contract on an in-memory exact-search
// index. The index has no native row retrieval, update or deletion, so the
// adapter maintains its own row table alongside and rebuilds the scan set
// from active rows on every search.
//
// Distance semantics: exact L2, nearest first.
package flat

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/embedload/internal/domain"
	"github.com/kailas-cloud/embedload/internal/schema"
	"github.com/kailas-cloud/embedload/internal/store"
	"github.com/kailas-cloud/embedload/internal/vec"
)

type table struct {
	schema      domain.TableSchema
	primaryKeys []string
	rows        []domain.Row
}

// Store keeps one registry of tables per instance; callers construct and
// tear it down, there is no process-wide instance.
type Store struct {
	dim    int
	tables map[string]*table
	logger *zap.Logger
}

var _ store.Store = (*Store)(nil)

// New creates a flat in-memory store producing vectors of the given dimension.
func New(dim int, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dim: dim, tables: make(map[string]*table), logger: logger}
}

// CreateTable synthesizes the schema on first call and is a no-op after.
func (s *Store) CreateTable(_ context.Context, name string, columns, primaryKeys []string,
	mode domain.EmbedMode, embedColumns []string) (domain.TableSchema, error) {
	if t, ok := s.tables[name]; ok {
		return t.schema.Clone(), nil
	}

	sch := schema.Synthesize(columns, mode, embedColumns, s.dim)
	s.tables[name] = &table{schema: sch, primaryKeys: append([]string(nil), primaryKeys...)}

	s.logger.Info("created table",
		zap.String("table", name),
		zap.String("mode", string(mode)),
		zap.Int("columns", len(sch.ColumnOrder)),
	)
	return sch.Clone(), nil
}

func (s *Store) Insert(_ context.Context, name string, rows []domain.Row, primaryKeys []string) error {
	t, ok := s.tables[name]
	if !ok {
		return fmt.Errorf("insert into %s: %w", name, domain.ErrTableNotFound)
	}
	if err := store.ValidateBatch(rows, primaryKeys); err != nil {
		return fmt.Errorf("insert into %s: %w", name, err)
	}
	for _, row := range rows {
		if err := t.upsert(row, primaryKeys); err != nil {
			return fmt.Errorf("insert into %s: %w", name, err)
		}
	}
	return nil
}

// Update replaces rows matching on every primary-key column and appends
// rows with no match. The scan is O(existing rows x batch rows),
// acceptable at the reference scale.
func (s *Store) Update(_ context.Context, name string, rows []domain.Row, primaryKeys []string) error {
	t, ok := s.tables[name]
	if !ok {
		return fmt.Errorf("update %s: %w", name, domain.ErrTableNotFound)
	}
	for _, row := range rows {
		if err := t.upsert(row, primaryKeys); err != nil {
			return fmt.Errorf("update %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) MarkInactive(_ context.Context, name string, keys []domain.Key) error {
	t, ok := s.tables[name]
	if !ok || len(keys) == 0 {
		return nil
	}
	target := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		target[k.String()] = struct{}{}
	}
	for _, row := range t.rows {
		key, err := domain.KeyOf(row, t.primaryKeys)
		if err != nil {
			continue
		}
		if _, hit := target[key.String()]; hit {
			row[domain.ColIsActive] = false
		}
	}
	return nil
}

func (s *Store) ListActive(_ context.Context, name string) ([]domain.Row, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, nil
	}
	var out []domain.Row
	for _, row := range t.rows {
		if row.Active() {
			out = append(out, row.Clone())
		}
	}
	return out, nil
}

func (s *Store) Columns(_ context.Context, name string) ([]string, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, nil
	}
	return append([]string(nil), t.schema.ColumnOrder...), nil
}

func (s *Store) EmbeddingColumns(_ context.Context, name string) ([]string, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, nil
	}
	return t.schema.EmbeddingColumns(), nil
}

func (s *Store) AddColumn(_ context.Context, name, column, columnType string) error {
	t, ok := s.tables[name]
	if !ok {
		return fmt.Errorf("add column to %s: %w", name, domain.ErrTableNotFound)
	}
	t.schema.AddColumn(column, columnType)
	for _, row := range t.rows {
		if _, present := row[column]; !present {
			row[column] = nil
		}
	}
	return nil
}

// Search brute-forces exact L2 over the active rows carrying a populated
// target vector, so deactivated rows never surface even though the adapter
// keeps them in raw storage.
func (s *Store) Search(_ context.Context, name string, query []float32, topK int,
	embedColumn string) ([]domain.SearchResult, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("search %s: %w", name, domain.ErrTableNotFound)
	}
	col, err := store.ResolveEmbedColumn(t.schema, embedColumn)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", name, err)
	}

	type scored struct {
		row  domain.Row
		dist float64
	}
	var hits []scored
	for _, row := range t.rows {
		if !row.Active() {
			continue
		}
		v, _ := row[col].([]float32)
		if v == nil {
			continue
		}
		d, err := vec.L2(query, v)
		if err != nil {
			return nil, fmt.Errorf("search %s: %w: %w", name, domain.ErrDimensionMismatch, err)
		}
		hits = append(hits, scored{row: row, dist: d})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })
	if topK > 0 && topK < len(hits) {
		hits = hits[:topK]
	}

	results := make([]domain.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = domain.SearchResult{
			ID:       store.ResultID(h.row, t.primaryKeys),
			Document: store.Document(h.row, col),
			Distance: h.dist,
			Metadata: store.Metadata(h.row, t.schema),
		}
	}
	return results, nil
}

// upsert replaces every row matching the primary-key tuple with the
// incoming row, collapsing duplicates to one, and appends when no row
// matches. A key that was deactivated and reloaded therefore occupies
// a single row again.
func (t *table) upsert(row domain.Row, primaryKeys []string) error {
	key, err := domain.KeyOf(row, primaryKeys)
	if err != nil {
		return err
	}
	matches := t.findAll(key, primaryKeys)
	if len(matches) == 0 {
		t.rows = append(t.rows, row.Clone())
		return nil
	}
	t.rows[matches[0]] = row.Clone()
	if len(matches) > 1 {
		t.drop(matches[1:])
	}
	return nil
}

func (t *table) findAll(key domain.Key, primaryKeys []string) []int {
	var matches []int
	for i, row := range t.rows {
		existing, err := domain.KeyOf(row, primaryKeys)
		if err != nil {
			continue
		}
		if existing.String() == key.String() {
			matches = append(matches, i)
		}
	}
	return matches
}

// drop removes the rows at the given ascending indices.
func (t *table) drop(indices []int) {
	skip := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		skip[i] = struct{}{}
	}
	kept := t.rows[:0]
	for i, row := range t.rows {
		if _, gone := skip[i]; !gone {
			kept = append(kept, row)
		}
	}
	t.rows = kept
}
