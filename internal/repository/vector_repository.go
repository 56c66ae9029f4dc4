package repository

import "context"

// VectorMatch is one nearest-neighbor hit from the Vector Store, before
// hydration from the Relational Store.
type VectorMatch struct {
	EntryID int64
	Score   float64
}

// VectorRepository is the Vector Store's surface: one vector per entry,
// keyed by the entry id as a string per spec §3/§6.
type VectorRepository interface {
	// Upsert stores or replaces the vector for entryID along with small
	// metadata (title prefix), called whenever the Fetcher inserts or
	// refreshes an entry.
	Upsert(ctx context.Context, entryID int64, embedding []float32, titlePrefix string) error

	// DeleteByEntryIDs removes vectors for the given entry ids,
	// best-effort: the retention sweep tolerates partial failure here by
	// re-attempting on the next sweep.
	DeleteByEntryIDs(ctx context.Context, entryIDs []int64) error

	// SearchSimilar returns the top-k nearest neighbors to query, in
	// descending similarity order.
	SearchSimilar(ctx context.Context, query []float32, topK int) ([]VectorMatch, error)
}
