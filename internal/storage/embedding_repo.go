package storage

import (
	"context"
	"fmt"

	"papersearch/internal/vector"

	"github.com/google/uuid"
)

type EmbeddingRepo struct {
	q Querier
}

func NewEmbeddingRepo(q Querier) *EmbeddingRepo {
	return &EmbeddingRepo{q: q}
}

// Insert stores the full and half precision copies. A paper that already has an
// embedding is left untouched and Insert reports false.
func (r *EmbeddingRepo) Insert(ctx context.Context, paperID string, vec []float32) (bool, error) {
	if err := vector.Validate(vec); err != nil {
		return false, fmt.Errorf("insert abstract embedding: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return false, fmt.Errorf("new embedding id: %w", err)
	}
	tag, err := r.q.Exec(ctx, `
INSERT INTO paper_abstract_embeddings (id, paper_id, abstract_embedding, abstract_embedding_half)
VALUES ($1::uuid, $2::uuid, $3::vector, $4::halfvec)
ON CONFLICT (paper_id) DO NOTHING`,
		id.String(), paperID, vector.ToLiteral(vec), vector.ToHalfLiteral(vec),
	)
	if err != nil {
		return false, fmt.Errorf("insert abstract embedding: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
