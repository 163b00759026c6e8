// Package reconcile diffs an incoming batch against current active store
// state, deriving the insert, update and deactivate operations that keep
// repeated loads of the same logical table consistent.
package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/embedload/internal/domain"
	"github.com/kailas-cloud/embedload/internal/metrics"
)

// Service runs reconciliation against one store adapter.
type Service struct {
	store  Store
	logger *zap.Logger
}

// New creates a reconciliation service.
func New(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Input is one reconciliation run for one logical table.
type Input struct {
	Table        string
	Rows         []domain.Row
	Columns      []string
	PrimaryKeys  []string
	Mode         domain.EmbedMode
	EmbedColumns []string
	// CreateTable controls whether an absent table is synthesized or an error.
	CreateTable bool
}

// Result accounts the rows each step touched.
type Result struct {
	Inserted    int
	Updated     int
	Deactivated int
}

// Reconcile applies a batch in the fixed order create, update, insert,
// mark-inactive. Inserts are partitioned against the pre-batch active set,
// not against rows touched earlier in the same call. Any step failure
// aborts the remaining steps, leaving whatever intermediate state the
// sequence reached; the error reports the partial result.
func (s *Service) Reconcile(ctx context.Context, in Input) (Result, error) {
	var res Result
	if err := s.validate(in); err != nil {
		return res, err
	}

	if in.CreateTable {
		if _, err := s.store.CreateTable(ctx, in.Table, in.Columns, in.PrimaryKeys, in.Mode, in.EmbedColumns); err != nil {
			return res, fmt.Errorf("create table %s: %w", in.Table, err)
		}
	} else {
		cols, err := s.store.Columns(ctx, in.Table)
		if err != nil {
			return res, fmt.Errorf("check table %s: %w", in.Table, err)
		}
		if len(cols) == 0 {
			return res, fmt.Errorf("table %s absent and creation disabled: %w", in.Table, domain.ErrTableNotFound)
		}
	}

	active, err := s.store.ListActive(ctx, in.Table)
	if err != nil {
		return res, fmt.Errorf("list active %s: %w", in.Table, err)
	}
	existing := make(map[string]struct{}, len(active))
	for _, row := range active {
		key, err := domain.KeyOf(row, in.PrimaryKeys)
		if err != nil {
			return res, fmt.Errorf("keying active row of %s: %w", in.Table, err)
		}
		existing[key.String()] = struct{}{}
	}

	var inserts, updates []domain.Row
	seen := make(map[string]struct{}, len(in.Rows))
	for _, row := range in.Rows {
		key, err := domain.KeyOf(row, in.PrimaryKeys)
		if err != nil {
			return res, fmt.Errorf("keying batch row of %s: %w", in.Table, err)
		}
		seen[key.String()] = struct{}{}
		if _, ok := existing[key.String()]; ok {
			updates = append(updates, row)
		} else {
			inserts = append(inserts, row)
		}
	}

	if len(updates) > 0 {
		if err := s.store.Update(ctx, in.Table, updates, in.PrimaryKeys); err != nil {
			return res, fmt.Errorf("update %s: %w", in.Table, err)
		}
		res.Updated = len(updates)
	}
	if len(inserts) > 0 {
		if err := s.store.Insert(ctx, in.Table, inserts, in.PrimaryKeys); err != nil {
			return res, fmt.Errorf("insert %s (after %d updates): %w", in.Table, res.Updated, err)
		}
		res.Inserted = len(inserts)
	}

	// Soft delete by omission: previously active keys absent from the batch.
	var gone []domain.Key
	for _, row := range active {
		key, _ := domain.KeyOf(row, in.PrimaryKeys)
		if _, present := seen[key.String()]; !present {
			gone = append(gone, key)
		}
	}
	if len(gone) > 0 {
		if err := s.store.MarkInactive(ctx, in.Table, gone); err != nil {
			return res, fmt.Errorf("mark inactive %s (after %d updates, %d inserts): %w",
				in.Table, res.Updated, res.Inserted, err)
		}
		res.Deactivated = len(gone)
	}

	metrics.ReconcileRowsTotal.WithLabelValues(in.Table, "inserted").Add(float64(res.Inserted))
	metrics.ReconcileRowsTotal.WithLabelValues(in.Table, "updated").Add(float64(res.Updated))
	metrics.ReconcileRowsTotal.WithLabelValues(in.Table, "deactivated").Add(float64(res.Deactivated))

	s.logger.Info("reconciled table",
		zap.String("table", in.Table),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("deactivated", res.Deactivated),
	)
	return res, nil
}

// validate enforces the caller contract before any schema synthesis runs.
func (s *Service) validate(in Input) error {
	if in.Table == "" {
		return fmt.Errorf("table name required: %w", domain.ErrDataValidation)
	}
	if len(in.PrimaryKeys) == 0 {
		return fmt.Errorf("primary key set empty: %w", domain.ErrDataValidation)
	}
	if !in.Mode.Valid() {
		return fmt.Errorf("unknown embedding mode %q: %w", in.Mode, domain.ErrDataValidation)
	}
	if len(in.EmbedColumns) == 0 {
		return fmt.Errorf("no embedding source columns: %w", domain.ErrDataValidation)
	}
	declared := make(map[string]struct{}, len(in.Columns))
	for _, col := range in.Columns {
		declared[col] = struct{}{}
	}
	for _, pk := range in.PrimaryKeys {
		if _, ok := declared[pk]; !ok {
			return fmt.Errorf("primary key column %q not in input columns: %w", pk, domain.ErrDataValidation)
		}
	}
	for _, col := range in.EmbedColumns {
		if _, ok := declared[col]; !ok {
			return fmt.Errorf("embedding source column %q not in input columns: %w", col, domain.ErrDataValidation)
		}
	}
	return nil
}
