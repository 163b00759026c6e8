// Package dataload coordinates the loader and embedding collaborators
// with the reconciliation engine: load rows, attach vectors per the
// embedding mode, reconcile into the store.
package dataload

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/embedload/internal/domain"
	"github.com/kailas-cloud/embedload/internal/usecase/reconcile"
)

// Service is the ingestion use case.
type Service struct {
	loader   Loader
	embedder Embedder
	engine   Reconciler
	logger   *zap.Logger
}

// New creates the ingestion service.
func New(loader Loader, embedder Embedder, engine Reconciler, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{loader: loader, embedder: embedder, engine: engine, logger: logger}
}

// Execute loads the source file, computes embeddings for the designated
// columns per the chosen mode and reconciles the enriched batch into the
// table. createTable controls whether an absent table is synthesized or
// an error.
func (s *Service) Execute(ctx context.Context, sourcePath, table string,
	embedColumns, primaryKeys []string, createTable bool, mode domain.EmbedMode) (reconcile.Result, error) {
	rows, columns, err := s.loader.Load(sourcePath)
	if err != nil {
		return reconcile.Result{}, fmt.Errorf("load %s: %w", sourcePath, err)
	}

	declared := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		declared[col] = struct{}{}
	}
	for _, col := range embedColumns {
		if _, ok := declared[col]; !ok {
			return reconcile.Result{}, fmt.Errorf("embedding source column %q not in %s: %w",
				col, sourcePath, domain.ErrDataValidation)
		}
	}

	if err := s.attachEmbeddings(ctx, rows, embedColumns, mode); err != nil {
		return reconcile.Result{}, err
	}

	s.logger.Info("embedded batch",
		zap.String("source", sourcePath),
		zap.String("table", table),
		zap.String("mode", string(mode)),
		zap.Int("rows", len(rows)),
	)

	res, err := s.engine.Reconcile(ctx, reconcile.Input{
		Table:        table,
		Rows:         rows,
		Columns:      columns,
		PrimaryKeys:  primaryKeys,
		Mode:         mode,
		EmbedColumns: embedColumns,
		CreateTable:  createTable,
	})
	if err != nil {
		return res, fmt.Errorf("reconcile %s: %w", table, err)
	}
	return res, nil
}

// attachEmbeddings enriches rows in place under the naming convention
// fixed by the mode: one "embeddings" vector per row when combined, one
// "<col>_enc" vector per source column when separated.
func (s *Service) attachEmbeddings(ctx context.Context, rows []domain.Row,
	embedColumns []string, mode domain.EmbedMode) error {
	for _, row := range rows {
		row[domain.ColEmbedNames] = append([]string(nil), embedColumns...)
		row[domain.ColIsActive] = true
	}
	if len(rows) == 0 {
		return nil
	}

	switch mode {
	case domain.ModeCombined:
		texts := make([]string, len(rows))
		for i, row := range rows {
			parts := make([]string, len(embedColumns))
			for j, col := range embedColumns {
				parts[j] = fmt.Sprint(row[col])
			}
			texts[i] = strings.Join(parts, " ")
			row[domain.ColEmbedValue] = texts[i]
		}
		vectors, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed combined text: %w", err)
		}
		for i, row := range rows {
			row[domain.ColEmbeddings] = vectors[i]
		}
	case domain.ModeSeparated:
		for _, col := range embedColumns {
			texts := make([]string, len(rows))
			for i, row := range rows {
				texts[i] = fmt.Sprint(row[col])
			}
			vectors, err := s.embedder.Embed(ctx, texts)
			if err != nil {
				return fmt.Errorf("embed column %s: %w", col, err)
			}
			for i, row := range rows {
				row[col+domain.EncSuffix] = vectors[i]
			}
		}
	default:
		return fmt.Errorf("unknown embedding mode %q: %w", mode, domain.ErrDataValidation)
	}
	return nil
}
