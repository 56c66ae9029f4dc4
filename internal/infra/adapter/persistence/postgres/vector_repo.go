package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"planetcf/internal/repository"
)

const vectorQueryTimeout = 5 * time.Second

// maxSearchTopK bounds SearchSimilar's limit clause against an
// accidental unbounded scan from a misbehaving caller.
const maxSearchTopK = 100

// VectorRepo is the pgvector-backed VectorRepository implementation.
type VectorRepo struct {
	db dbExecutor
}

func NewVectorRepo(db dbExecutor) *VectorRepo {
	return &VectorRepo{db: db}
}

func (r *VectorRepo) Upsert(ctx context.Context, entryID int64, embedding []float32, titlePrefix string) error {
	ctx, cancel := context.WithTimeout(ctx, vectorQueryTimeout)
	defer cancel()

	vec := pgvector.NewVector(embedding)
	_, err := r.db.ExecContext(ctx, `
INSERT INTO entry_vectors (entry_id, embedding, title_prefix, created_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (entry_id) DO UPDATE SET
  embedding = EXCLUDED.embedding,
  title_prefix = EXCLUDED.title_prefix`,
		entryID, vec, titlePrefix)
	if err != nil {
		return fmt.Errorf("upsert vector entry=%d: %w", entryID, err)
	}
	return nil
}

func (r *VectorRepo) DeleteByEntryIDs(ctx context.Context, entryIDs []int64) error {
	if len(entryIDs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, vectorQueryTimeout)
	defer cancel()

	placeholders, args := intPlaceholders(entryIDs)
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM entry_vectors WHERE entry_id IN (%s)`, placeholders), args...)
	if err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	return nil
}

// SearchSimilar ranks by cosine distance (pgvector's <=> operator) and
// returns similarity as 1 - distance, descending.
func (r *VectorRepo) SearchSimilar(ctx context.Context, query []float32, topK int) ([]repository.VectorMatch, error) {
	if topK <= 0 {
		return nil, nil
	}
	if topK > maxSearchTopK {
		topK = maxSearchTopK
	}

	ctx, cancel := context.WithTimeout(ctx, vectorQueryTimeout)
	defer cancel()

	vec := pgvector.NewVector(query)
	rows, err := r.db.QueryContext(ctx, `
SELECT entry_id, 1 - (embedding <=> $1) AS similarity
FROM entry_vectors
ORDER BY embedding <=> $1
LIMIT $2`, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("search similar: %w", err)
	}
	defer rows.Close()

	var out []repository.VectorMatch
	for rows.Next() {
		var m repository.VectorMatch
		if err := rows.Scan(&m.EntryID, &m.Score); err != nil {
			return nil, fmt.Errorf("scan vector match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
