package vector

import (
	"context"
	"fmt"

	"papersearch/internal/models"

	"github.com/jackc/pgx/v5"
)

type Searcher struct {
	q Queryer
}

// Queryer is satisfied by *pgxpool.Pool and pgx.Tx. The HNSW recall setting is
// session-scoped, so callers that override it must pass the transaction.
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func NewSearcher(q Queryer) *Searcher {
	return &Searcher{q: q}
}

// Nearest returns up to k paper ids ordered by ascending cosine distance over the
// half-precision copy. k <= 0 means no cap.
func (s *Searcher) Nearest(ctx context.Context, queryVec []float32, k int) ([]models.Neighbor, error) {
	if err := Validate(queryVec); err != nil {
		return nil, err
	}
	var limit any
	if k > 0 {
		limit = k
	}
	rows, err := s.q.Query(ctx, `
SELECT paper_id::text,
       abstract_embedding_half <=> $1::halfvec AS distance
FROM paper_abstract_embeddings
ORDER BY abstract_embedding_half <=> $1::halfvec
LIMIT $2`, ToHalfLiteral(queryVec), limit)
	if err != nil {
		return nil, fmt.Errorf("query nearest embeddings: %w", err)
	}
	defer rows.Close()

	capHint := k
	if capHint <= 0 || capHint > 1024 {
		capHint = 64
	}
	out := make([]models.Neighbor, 0, capHint)
	for rows.Next() {
		var n models.Neighbor
		if err := rows.Scan(&n.PaperID, &n.Distance); err != nil {
			return nil, fmt.Errorf("scan neighbor: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate neighbors: %w", err)
	}
	return out, nil
}
