package query

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/kailas-cloud/embedload/internal/domain"
)

type mockSearcher struct {
	table       string
	query       []float32
	topK        int
	embedColumn string
	results     []domain.SearchResult
	err         error
}

func (m *mockSearcher) Search(_ context.Context, table string, query []float32, topK int,
	embedColumn string) ([]domain.SearchResult, error) {
	m.table, m.query, m.topK, m.embedColumn = table, query, topK, embedColumn
	return m.results, m.err
}

type mockEmbedder struct {
	vectors [][]float32
	err     error
	texts   []string
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.texts = texts
	return m.vectors, m.err
}

func TestSearch_EmbedsAndDelegates(t *testing.T) {
	store := &mockSearcher{results: []domain.SearchResult{{ID: "1", Distance: 0.1}}}
	embedder := &mockEmbedder{vectors: [][]float32{{1, 2, 3}}}
	svc := New(store, embedder, nil)

	results, err := svc.Search(context.Background(), "people", "who is alpha", 3, "name_enc")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "1" {
		t.Fatalf("unexpected results: %v", results)
	}
	if !reflect.DeepEqual(embedder.texts, []string{"who is alpha"}) {
		t.Fatalf("unexpected embed input: %v", embedder.texts)
	}
	if store.table != "people" || store.topK != 3 || store.embedColumn != "name_enc" {
		t.Fatalf("unexpected delegation: %+v", store)
	}
	if !reflect.DeepEqual(store.query, []float32{1, 2, 3}) {
		t.Fatalf("unexpected query vector: %v", store.query)
	}
}

func TestSearch_EmptyQueryText(t *testing.T) {
	svc := New(&mockSearcher{}, &mockEmbedder{}, nil)

	_, err := svc.Search(context.Background(), "people", "", 3, "")
	if !errors.Is(err, domain.ErrDataValidation) {
		t.Fatalf("expected ErrDataValidation, got %v", err)
	}
}

func TestSearch_DefaultTopK(t *testing.T) {
	store := &mockSearcher{}
	svc := New(store, &mockEmbedder{vectors: [][]float32{{1}}}, nil)

	if _, err := svc.Search(context.Background(), "people", "q", 0, ""); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if store.topK != 5 {
		t.Fatalf("expected default topK 5, got %d", store.topK)
	}
}

func TestSearch_EmbedderFailure(t *testing.T) {
	svc := New(&mockSearcher{}, &mockEmbedder{err: errors.New("api down")}, nil)

	if _, err := svc.Search(context.Background(), "people", "q", 3, ""); err == nil {
		t.Fatal("expected embedder failure to propagate")
	}
}

func TestSearch_MalformedEmbedderResponse(t *testing.T) {
	svc := New(&mockSearcher{}, &mockEmbedder{vectors: [][]float32{{1}, {2}}}, nil)

	_, err := svc.Search(context.Background(), "people", "q", 3, "")
	if !errors.Is(err, domain.ErrEmbeddingProvider) {
		t.Fatalf("expected ErrEmbeddingProvider, got %v", err)
	}
}

func TestSearchVector_StoreFailure(t *testing.T) {
	store := &mockSearcher{err: domain.ErrTableNotFound}
	svc := New(store, &mockEmbedder{}, nil)

	_, err := svc.SearchVector(context.Background(), "missing", []float32{1}, 3, "")
	if !errors.Is(err, domain.ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound, got %v", err)
	}
}
