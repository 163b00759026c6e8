// Package chromemstore implements the store contract on chromem-go
// collections. The collection API exposes no row retrieval or in-place
// update, so the adapter keeps a shadow row table for the relational
// operations and overlays collection state by delete-and-readd.
//
// Distance semantics: chromem-go cosine similarity converted to a distance
// (1 - similarity), nearest first.
package chromemstore

import (
	"context"
	"fmt"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/embedload/internal/domain"
	"github.com/kailas-cloud/embedload/internal/schema"
	"github.com/kailas-cloud/embedload/internal/store"
)

const (
	metaEmbedColumn = "embed_column"
	metaRowID       = "row_id"
)

type table struct {
	schema      domain.TableSchema
	primaryKeys []string
	rows        []domain.Row
	coll        *chromem.Collection
}

// Store adapts the contract onto one chromem-go database instance.
type Store struct {
	db     *chromem.DB
	dim    int
	tables map[string]*table
	logger *zap.Logger
}

var _ store.Store = (*Store)(nil)

// New creates an in-memory chromem-backed store.
func New(dim int, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: chromem.NewDB(), dim: dim, tables: make(map[string]*table), logger: logger}
}

// rejectEmbedding guards against chromem computing embeddings itself;
// vectors are always attached upstream by the orchestrator.
func rejectEmbedding(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("embeddings are computed upstream: %w", domain.ErrEmbeddingProvider)
}

func (s *Store) CreateTable(_ context.Context, name string, columns, primaryKeys []string,
	mode domain.EmbedMode, embedColumns []string) (domain.TableSchema, error) {
	if t, ok := s.tables[name]; ok {
		return t.schema.Clone(), nil
	}

	coll, err := s.db.GetOrCreateCollection(name, nil, rejectEmbedding)
	if err != nil {
		return domain.TableSchema{}, fmt.Errorf("create collection %s: %w: %w", name, domain.ErrDBOperation, err)
	}

	sch := schema.Synthesize(columns, mode, embedColumns, s.dim)
	s.tables[name] = &table{
		schema:      sch,
		primaryKeys: append([]string(nil), primaryKeys...),
		coll:        coll,
	}

	s.logger.Info("created collection",
		zap.String("table", name),
		zap.String("mode", string(mode)),
	)
	return sch.Clone(), nil
}

func (s *Store) Insert(ctx context.Context, name string, rows []domain.Row, primaryKeys []string) error {
	t, ok := s.tables[name]
	if !ok {
		return fmt.Errorf("insert into %s: %w", name, domain.ErrTableNotFound)
	}
	if err := store.ValidateBatch(rows, primaryKeys); err != nil {
		return fmt.Errorf("insert into %s: %w", name, err)
	}

	for _, row := range rows {
		if err := t.upsert(ctx, row, primaryKeys); err != nil {
			return fmt.Errorf("insert into %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) Update(ctx context.Context, name string, rows []domain.Row, primaryKeys []string) error {
	t, ok := s.tables[name]
	if !ok {
		return fmt.Errorf("update %s: %w", name, domain.ErrTableNotFound)
	}

	for _, row := range rows {
		if err := t.upsert(ctx, row, primaryKeys); err != nil {
			return fmt.Errorf("update %s: %w", name, err)
		}
	}
	return nil
}

// MarkInactive flips the shadow flag and removes the rows' documents from
// the collection so they stop surfacing in search.
func (s *Store) MarkInactive(ctx context.Context, name string, keys []domain.Key) error {
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
		if _, hit := target[key.String()]; !hit {
			continue
		}
		if row.Active() {
			if err := t.unindex(ctx, row); err != nil {
				return fmt.Errorf("mark inactive %s: %w", name, err)
			}
		}
		row[domain.ColIsActive] = false
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

func (s *Store) Search(ctx context.Context, name string, query []float32, topK int,
	embedColumn string) ([]domain.SearchResult, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("search %s: %w", name, domain.ErrTableNotFound)
	}
	col, err := store.ResolveEmbedColumn(t.schema, embedColumn)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", name, err)
	}

	// chromem requires nResults <= stored documents.
	n := topK
	if count := t.coll.Count(); n > count {
		n = count
	}
	if n <= 0 {
		return nil, nil
	}

	hits, err := t.coll.QueryEmbedding(ctx, query, n, map[string]string{metaEmbedColumn: col}, nil)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w: %w", name, domain.ErrDBOperation, err)
	}

	results := make([]domain.SearchResult, len(hits))
	for i, h := range hits {
		md := make(map[string]any, len(h.Metadata))
		for k, v := range h.Metadata {
			if k == metaEmbedColumn || k == metaRowID {
				continue
			}
			md[k] = v
		}
		results[i] = domain.SearchResult{
			ID:       h.Metadata[metaRowID],
			Document: h.Content,
			Distance: 1 - float64(h.Similarity),
			Metadata: md,
		}
	}
	return results, nil
}

// --- collection overlay ---

// docID is stable per (row key, embedding column) so updates can replace
// the exact documents an earlier insert produced.
func docID(key domain.Key, embedColumn string) string {
	return key.String() + "\x1f" + embedColumn
}

// upsert replaces every shadow row matching the primary-key tuple with
// the incoming row, collapsing duplicates to one, and appends when no
// row matches. The stable doc IDs make reindexing overwrite the exact
// documents an earlier load produced.
func (t *table) upsert(ctx context.Context, row domain.Row, primaryKeys []string) error {
	key, err := domain.KeyOf(row, primaryKeys)
	if err != nil {
		return err
	}
	matches := t.findAll(key, primaryKeys)
	if len(matches) == 0 {
		t.rows = append(t.rows, row.Clone())
		return t.index(ctx, row)
	}
	for _, i := range matches {
		// Inactive rows were already removed from the collection.
		if t.rows[i].Active() {
			if err := t.unindex(ctx, t.rows[i]); err != nil {
				return err
			}
		}
	}
	t.rows[matches[0]] = row.Clone()
	if len(matches) > 1 {
		t.drop(matches[1:])
	}
	return t.index(ctx, row)
}

func (t *table) index(ctx context.Context, row domain.Row) error {
	key, err := domain.KeyOf(row, t.primaryKeys)
	if err != nil {
		return err
	}
	var docs []chromem.Document
	for _, col := range t.schema.EmbeddingColumns() {
		v, _ := row[col].([]float32)
		if v == nil {
			continue
		}
		md := map[string]string{
			metaEmbedColumn: col,
			metaRowID:       strings.Join(key, ":"),
		}
		for _, pk := range t.primaryKeys {
			md[pk] = fmt.Sprint(row[pk])
		}
		docs = append(docs, chromem.Document{
			ID:        docID(key, col),
			Content:   store.Document(row, col),
			Embedding: v,
			Metadata:  md,
		})
	}
	if len(docs) == 0 {
		return nil
	}
	if err := t.coll.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("add documents: %w: %w", domain.ErrDBOperation, err)
	}
	return nil
}

func (t *table) unindex(ctx context.Context, row domain.Row) error {
	key, err := domain.KeyOf(row, t.primaryKeys)
	if err != nil {
		return err
	}
	for _, col := range t.schema.EmbeddingColumns() {
		v, _ := row[col].([]float32)
		if v == nil {
			continue
		}
		if err := t.coll.Delete(ctx, nil, nil, docID(key, col)); err != nil {
			return fmt.Errorf("delete document: %w: %w", domain.ErrDBOperation, err)
		}
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

// drop removes the shadow rows at the given ascending indices.
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
