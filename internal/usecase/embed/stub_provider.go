package embed

import (
	"context"
	"hash/fnv"
)

// StubProvider produces a deterministic, low-dimension pseudo-embedding
// from a text hash. Used in place of a real provider in tests and in
// local development when no API key is configured.
type StubProvider struct {
	dimension int
}

func NewStubProvider(dimension int) *StubProvider {
	if dimension <= 0 {
		dimension = 16
	}
	return &StubProvider{dimension: dimension}
}

func (p *StubProvider) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	out := make([]float32, p.dimension)
	for i := range out {
		seed = seed*6364136223846793005 + 1442695040888963407
		out[i] = float32(seed%2000)/1000 - 1
	}
	return out, nil
}

func (p *StubProvider) Dimension() int {
	return p.dimension
}
