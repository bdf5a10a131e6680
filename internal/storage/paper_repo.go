package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"papersearch/internal/models"

	"github.com/jackc/pgx/v5"
)

const paperColumns = `id::text, universal_id, title, abstract, publication_date, votes`

type PaperRepo struct {
	q Querier
}

func NewPaperRepo(q Querier) *PaperRepo {
	return &PaperRepo{q: q}
}

func (r *PaperRepo) InsertPaper(ctx context.Context, p models.Paper) error {
	_, err := r.q.Exec(ctx, `
INSERT INTO papers (id, universal_id, title, abstract, publication_date, votes)
VALUES ($1::uuid, $2, $3, $4, $5, $6)`,
		p.ID, p.UniversalID, p.Title, p.Abstract, p.PublicationDate, p.Votes,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert paper %s: %w", p.UniversalID, ErrDuplicate)
		}
		return fmt.Errorf("insert paper: %w", err)
	}
	return nil
}

func (r *PaperRepo) GetPaperByUniversalID(ctx context.Context, universalID string) (models.Paper, bool, error) {
	var p models.Paper
	err := r.q.QueryRow(ctx, `SELECT `+paperColumns+` FROM papers WHERE universal_id=$1`, universalID).
		Scan(&p.ID, &p.UniversalID, &p.Title, &p.Abstract, &p.PublicationDate, &p.Votes)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Paper{}, false, nil
	}
	if err != nil {
		return models.Paper{}, false, fmt.Errorf("get paper by universal id: %w", err)
	}
	return p, true, nil
}

func (r *PaperRepo) ListPapersByUniversalIDs(ctx context.Context, universalIDs []string) ([]models.Paper, error) {
	if len(universalIDs) == 0 {
		return []models.Paper{}, nil
	}
	rows, err := r.q.Query(ctx, `
SELECT `+paperColumns+`
FROM papers
WHERE universal_id = ANY($1::text[])
ORDER BY universal_id ASC`, universalIDs)
	if err != nil {
		return nil, fmt.Errorf("list papers by universal ids: %w", err)
	}
	return collectPapers(rows, len(universalIDs))
}

func (r *PaperRepo) TopPapersByVotes(ctx context.Context, paperIDs []string, minDate *time.Time, limit int) ([]models.Paper, error) {
	if len(paperIDs) == 0 {
		return []models.Paper{}, nil
	}
	rows, err := r.q.Query(ctx, `
SELECT `+paperColumns+`
FROM papers
WHERE id = ANY($1::text[]::uuid[])
  AND ($2::timestamptz IS NULL OR publication_date >= $2::timestamptz)
ORDER BY votes DESC, universal_id ASC
LIMIT $3`, paperIDs, minDate, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("rank papers by votes: %w", err)
	}
	return collectPapers(rows, len(paperIDs))
}

func (r *PaperRepo) ListPapersWithoutEmbedding(ctx context.Context, afterUniversalID string, limit int) ([]models.Paper, error) {
	rows, err := r.q.Query(ctx, `
SELECT `+paperColumns+`
FROM papers p
WHERE p.universal_id > $1
  AND NOT EXISTS (SELECT 1 FROM paper_abstract_embeddings e WHERE e.paper_id = p.id)
ORDER BY p.universal_id ASC
LIMIT $2`, afterUniversalID, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("list papers without embedding: %w", err)
	}
	return collectPapers(rows, 0)
}

func (r *PaperRepo) ListPublicationDates(ctx context.Context) ([]models.PaperDate, error) {
	rows, err := r.q.Query(ctx, `SELECT universal_id, publication_date FROM papers ORDER BY universal_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list publication dates: %w", err)
	}
	defer rows.Close()
	out := make([]models.PaperDate, 0)
	for rows.Next() {
		var d models.PaperDate
		if err := rows.Scan(&d.UniversalID, &d.PublicationDate); err != nil {
			return nil, fmt.Errorf("scan publication date: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate publication dates: %w", err)
	}
	return out, nil
}

func (r *PaperRepo) UpdatePublicationDate(ctx context.Context, universalID string, date time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx, `UPDATE papers SET publication_date=$2 WHERE universal_id=$1`, universalID, date)
	if err != nil {
		return false, fmt.Errorf("update publication date: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PaperRepo) DeletePaperByUniversalID(ctx context.Context, universalID string) (bool, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM papers WHERE universal_id=$1`, universalID)
	if err != nil {
		return false, fmt.Errorf("delete paper: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func collectPapers(rows pgx.Rows, capHint int) ([]models.Paper, error) {
	defer rows.Close()
	out := make([]models.Paper, 0, capHint)
	for rows.Next() {
		var p models.Paper
		if err := rows.Scan(&p.ID, &p.UniversalID, &p.Title, &p.Abstract, &p.PublicationDate, &p.Votes); err != nil {
			return nil, fmt.Errorf("scan paper: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate papers: %w", err)
	}
	return out, nil
}

// limitArg maps a non-positive limit to NULL, which LIMIT treats as unbounded.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
