package local

import (
	"context"
	"math"
	"testing"
)

func TestEmbed_Deterministic(t *testing.T) {
	e := New(32)
	a, err := e.Embed(context.Background(), []string{"hello world"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, _ := e.Embed(context.Background(), []string{"hello world"})

	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatal("embeddings are not deterministic")
		}
	}
}

func TestEmbed_DimensionAndNorm(t *testing.T) {
	e := New(16)
	vs, err := e.Embed(context.Background(), []string{"abc", "a much longer piece of text"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vs))
	}
	for _, v := range vs {
		if len(v) != 16 {
			t.Fatalf("expected dimension 16, got %d", len(v))
		}
		var norm float64
		for _, f := range v {
			norm += float64(f) * float64(f)
		}
		if math.Abs(math.Sqrt(norm)-1) > 1e-5 {
			t.Fatalf("expected unit norm, got %f", math.Sqrt(norm))
		}
	}
}

func TestEmbed_EmptyInput(t *testing.T) {
	e := New(8)
	vs, err := e.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vs) != 0 {
		t.Fatalf("expected no vectors, got %d", len(vs))
	}
}

func TestEmbed_EmptyText(t *testing.T) {
	e := New(8)
	vs, err := e.Embed(context.Background(), []string{""})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	// Empty text yields the zero vector rather than an error.
	for _, f := range vs[0] {
		if f != 0 {
			t.Fatal("expected zero vector for empty text")
		}
	}
}
