package store

import (
	"context"
	"time"

	"github.com/kailas-cloud/embedload/internal/domain"
	"github.com/kailas-cloud/embedload/internal/metrics"
)

// instrumented decorates a Store with Prometheus operation counters.
type instrumented struct {
	next   Store
	driver string
}

// WithMetrics wraps a store so every operation is counted and timed under
// the given driver label.
func WithMetrics(next Store, driver string) Store {
	return &instrumented{next: next, driver: driver}
}

func (s *instrumented) observe(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.StoreOperationsTotal.WithLabelValues(s.driver, op, status).Inc()
	metrics.StoreOperationDuration.WithLabelValues(s.driver, op).Observe(time.Since(start).Seconds())
}

func (s *instrumented) CreateTable(ctx context.Context, table string, columns, primaryKeys []string,
	mode domain.EmbedMode, embedColumns []string) (domain.TableSchema, error) {
	start := time.Now()
	sch, err := s.next.CreateTable(ctx, table, columns, primaryKeys, mode, embedColumns)
	s.observe("create_table", start, err)
	return sch, err
}

func (s *instrumented) Insert(ctx context.Context, table string, rows []domain.Row, primaryKeys []string) error {
	start := time.Now()
	err := s.next.Insert(ctx, table, rows, primaryKeys)
	s.observe("insert", start, err)
	return err
}

func (s *instrumented) Update(ctx context.Context, table string, rows []domain.Row, primaryKeys []string) error {
	start := time.Now()
	err := s.next.Update(ctx, table, rows, primaryKeys)
	s.observe("update", start, err)
	return err
}

func (s *instrumented) MarkInactive(ctx context.Context, table string, keys []domain.Key) error {
	start := time.Now()
	err := s.next.MarkInactive(ctx, table, keys)
	s.observe("mark_inactive", start, err)
	return err
}

func (s *instrumented) ListActive(ctx context.Context, table string) ([]domain.Row, error) {
	start := time.Now()
	rows, err := s.next.ListActive(ctx, table)
	s.observe("list_active", start, err)
	return rows, err
}

func (s *instrumented) Columns(ctx context.Context, table string) ([]string, error) {
	start := time.Now()
	cols, err := s.next.Columns(ctx, table)
	s.observe("columns", start, err)
	return cols, err
}

func (s *instrumented) EmbeddingColumns(ctx context.Context, table string) ([]string, error) {
	start := time.Now()
	cols, err := s.next.EmbeddingColumns(ctx, table)
	s.observe("embedding_columns", start, err)
	return cols, err
}

func (s *instrumented) AddColumn(ctx context.Context, table, column, columnType string) error {
	start := time.Now()
	err := s.next.AddColumn(ctx, table, column, columnType)
	s.observe("add_column", start, err)
	return err
}

func (s *instrumented) Search(ctx context.Context, table string, query []float32, topK int,
	embedColumn string) ([]domain.SearchResult, error) {
	start := time.Now()
	results, err := s.next.Search(ctx, table, query, topK, embedColumn)
	s.observe("search", start, err)
	return results, err
}
