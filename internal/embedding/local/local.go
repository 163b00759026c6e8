// Package local provides a deterministic offline embedding provider.
// Vectors are normalized character-histogram projections: similar texts
// land near each other, identical texts map to identical vectors. It
// stands in for a real model in offline runs and tests.
package local

import (
	"context"
	"math"
)

// Embedder produces deterministic vectors of a fixed dimension.
type Embedder struct {
	dims int
}

// New creates a local embedder with the given dimensionality.
func New(dims int) *Embedder {
	return &Embedder{dims: dims}
}

// Dimensions returns the configured vector dimensionality.
func (e *Embedder) Dimensions() int { return e.dims }

// Embed returns one vector per input text, in input order.
func (e *Embedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *Embedder) vector(text string) []float32 {
	v := make([]float32, e.dims)
	for i, ch := range text {
		v[(int(ch)+i)%e.dims]++
	}
	var norm float64
	for _, f := range v {
		norm += float64(f) * float64(f)
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range v {
			v[i] = float32(float64(v[i]) / norm)
		}
	}
	return v
}
