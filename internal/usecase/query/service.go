// Package query is the search use case: embed the query text and run
// nearest-neighbor search through the store contract.
package query

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/embedload/internal/domain"
)

// Searcher is the consumer interface onto the vector store adapter.
type Searcher interface {
	Search(ctx context.Context, table string, query []float32, topK int,
		embedColumn string) ([]domain.SearchResult, error)
}

// Embedder vectorizes text batches.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Service handles search requests.
type Service struct {
	store    Searcher
	embedder Embedder
	logger   *zap.Logger
}

// New creates the search service.
func New(store Searcher, embedder Embedder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, embedder: embedder, logger: logger}
}

// Search embeds the query text and returns up to topK nearest rows.
// embedColumn targets a specific vector column in separated mode.
func (s *Service) Search(ctx context.Context, table, queryText string, topK int,
	embedColumn string) ([]domain.SearchResult, error) {
	if queryText == "" {
		return nil, fmt.Errorf("query text required: %w", domain.ErrDataValidation)
	}
	if topK <= 0 {
		topK = 5
	}

	vectors, err := s.embedder.Embed(ctx, []string{queryText})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected one query vector, got %d: %w", len(vectors), domain.ErrEmbeddingProvider)
	}

	return s.SearchVector(ctx, table, vectors[0], topK, embedColumn)
}

// SearchVector runs nearest-neighbor search with a precomputed vector.
func (s *Service) SearchVector(ctx context.Context, table string, query []float32, topK int,
	embedColumn string) ([]domain.SearchResult, error) {
	results, err := s.store.Search(ctx, table, query, topK, embedColumn)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", table, err)
	}
	s.logger.Debug("search completed",
		zap.String("table", table),
		zap.Int("top_k", topK),
		zap.Int("results", len(results)),
	)
	return results, nil
}
