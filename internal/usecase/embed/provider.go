// Package embed generates vector embeddings for entries, asynchronously
// and best-effort: a failed embedding never fails the Fetcher's upsert.
package embed

import "context"

// Provider turns text into a fixed-dimension embedding vector. Swappable
// behind this interface so the Fetcher never depends on which provider
// or model produced the vector.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}
