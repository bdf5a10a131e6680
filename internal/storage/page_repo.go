package storage

import (
	"context"
	"errors"
	"fmt"

	"papersearch/internal/models"

	"github.com/jackc/pgx/v5"
)

type PageRepo struct {
	q Querier
}

func NewPageRepo(q Querier) *PageRepo {
	return &PageRepo{q: q}
}

func (r *PageRepo) InsertPages(ctx context.Context, pages []models.PaperPage) error {
	for _, p := range pages {
		_, err := r.q.Exec(ctx, `
INSERT INTO paper_pages (id, paper_id, page_number, text)
VALUES ($1::uuid, $2::uuid, $3, $4)`,
			p.ID, p.PaperID, p.PageNumber, p.Text,
		)
		if err != nil {
			return fmt.Errorf("insert page %d of %s: %w", p.PageNumber, p.PaperID, err)
		}
	}
	return nil
}

func (r *PageRepo) MatchingPaperIDs(ctx context.Context, q TokenQuery, limit int) ([]string, error) {
	rows, err := r.q.Query(ctx, `
SELECT DISTINCT paper_id::text
FROM paper_pages
WHERE text_search_vector @@ to_tsquery('english', $1)
LIMIT $2`, q.TSQuery(), limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("match paper ids: %w", err)
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan matching paper id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matching paper ids: %w", err)
	}
	return out, nil
}

func (r *PageRepo) MatchingPages(ctx context.Context, paperIDs []string, q TokenQuery) ([]models.PageText, error) {
	if len(paperIDs) == 0 {
		return []models.PageText{}, nil
	}
	rows, err := r.q.Query(ctx, `
SELECT paper_id::text, page_number, text
FROM paper_pages
WHERE paper_id = ANY($1::text[]::uuid[])
  AND text_search_vector @@ to_tsquery('english', $2)
ORDER BY paper_id, page_number ASC`, paperIDs, q.TSQuery())
	if err != nil {
		return nil, fmt.Errorf("list matching pages: %w", err)
	}
	return collectPageTexts(rows)
}

func (r *PageRepo) GetPage(ctx context.Context, universalID string, pageNumber int) (models.PageRef, bool, error) {
	var p models.PageRef
	err := r.q.QueryRow(ctx, `
SELECT pp.id::text, pp.paper_id::text, pp.page_number, pp.text
FROM paper_pages pp
JOIN papers p ON p.id = pp.paper_id
WHERE p.universal_id=$1 AND pp.page_number=$2`, universalID, pageNumber).
		Scan(&p.PageID, &p.PaperID, &p.PageNumber, &p.Text)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.PageRef{}, false, nil
	}
	if err != nil {
		return models.PageRef{}, false, fmt.Errorf("get page: %w", err)
	}
	return p, true, nil
}

func (r *PageRepo) ListPagesByPaper(ctx context.Context, paperID string) ([]models.PageText, error) {
	rows, err := r.q.Query(ctx, `
SELECT paper_id::text, page_number, text
FROM paper_pages
WHERE paper_id=$1::uuid
ORDER BY page_number ASC`, paperID)
	if err != nil {
		return nil, fmt.Errorf("list pages by paper: %w", err)
	}
	return collectPageTexts(rows)
}

func (r *PageRepo) CountPages(ctx context.Context, universalID string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `
SELECT COUNT(*)
FROM paper_pages pp
JOIN papers p ON p.id = pp.paper_id
WHERE p.universal_id=$1`, universalID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}
	return n, nil
}

func (r *PageRepo) ReindexPages(ctx context.Context, batch int) (int, error) {
	tag, err := r.q.Exec(ctx, `
UPDATE paper_pages
SET text_search_vector = to_tsvector('english', text)
WHERE id IN (
  SELECT id FROM paper_pages WHERE text_search_vector IS NULL LIMIT $1
)`, limitArg(batch))
	if err != nil {
		return 0, fmt.Errorf("reindex pages: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func collectPageTexts(rows pgx.Rows) ([]models.PageText, error) {
	defer rows.Close()
	out := make([]models.PageText, 0, 16)
	for rows.Next() {
		var p models.PageText
		if err := rows.Scan(&p.PaperID, &p.PageNumber, &p.Text); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return out, nil
}
