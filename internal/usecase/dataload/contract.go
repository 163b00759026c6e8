package dataload

import (
	"context"

	"github.com/kailas-cloud/embedload/internal/domain"
	"github.com/kailas-cloud/embedload/internal/usecase/reconcile"
)

// Loader reads tabular source files.
type Loader interface {
	Load(path string) (rows []domain.Row, columns []string, err error)
}

// Embedder vectorizes text batches, one vector per input in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Reconciler applies an embedded batch to the store.
type Reconciler interface {
	Reconcile(ctx context.Context, in reconcile.Input) (reconcile.Result, error)
}
