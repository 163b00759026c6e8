package reconcile

import (
	"context"

	"github.com/kailas-cloud/embedload/internal/domain"
)

// Store is the consumer interface onto the vector store adapter.
type Store interface {
	CreateTable(ctx context.Context, table string, columns, primaryKeys []string,
		mode domain.EmbedMode, embedColumns []string) (domain.TableSchema, error)
	Columns(ctx context.Context, table string) ([]string, error)
	ListActive(ctx context.Context, table string) ([]domain.Row, error)
	Insert(ctx context.Context, table string, rows []domain.Row, primaryKeys []string) error
	Update(ctx context.Context, table string, rows []domain.Row, primaryKeys []string) error
	MarkInactive(ctx context.Context, table string, keys []domain.Key) error
}
