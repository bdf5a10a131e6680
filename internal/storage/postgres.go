package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"papersearch/internal/models"
	"papersearch/internal/vector"

	"github.com/jackc/pgx/v5"
)

// Postgres is the Store backed by pgx, tsvector/GIN and pgvector HNSW.
type Postgres struct {
	db         *DB
	papers     *PaperRepo
	pages      *PageRepo
	embeddings *EmbeddingRepo
}

var _ Store = (*Postgres)(nil)

func NewPostgres(db *DB) *Postgres {
	return &Postgres{
		db:         db,
		papers:     NewPaperRepo(db.Pool),
		pages:      NewPageRepo(db.Pool),
		embeddings: NewEmbeddingRepo(db.Pool),
	}
}

func (s *Postgres) Close() error {
	s.db.Close()
	return nil
}

func (s *Postgres) GetPaperByUniversalID(ctx context.Context, universalID string) (models.Paper, bool, error) {
	return s.papers.GetPaperByUniversalID(ctx, universalID)
}

func (s *Postgres) ListPapersByUniversalIDs(ctx context.Context, universalIDs []string) ([]models.Paper, error) {
	return s.papers.ListPapersByUniversalIDs(ctx, universalIDs)
}

func (s *Postgres) MatchingPaperIDs(ctx context.Context, q TokenQuery, limit int) ([]string, error) {
	return s.pages.MatchingPaperIDs(ctx, q, limit)
}

func (s *Postgres) TopPapersByVotes(ctx context.Context, paperIDs []string, minDate *time.Time, limit int) ([]models.Paper, error) {
	return s.papers.TopPapersByVotes(ctx, paperIDs, minDate, limit)
}

func (s *Postgres) MatchingPages(ctx context.Context, paperIDs []string, q TokenQuery) ([]models.PageText, error) {
	return s.pages.MatchingPages(ctx, paperIDs, q)
}

// WithRecall sets hnsw.ef_search local to a transaction, so the value is gone
// once the transaction ends regardless of outcome.
func (s *Postgres) WithRecall(ctx context.Context, efSearch int, fn func(VectorTx) error) error {
	return s.db.InTx(ctx, func(tx pgx.Tx) error {
		if efSearch > 0 {
			if _, err := tx.Exec(ctx, `SELECT set_config('hnsw.ef_search', $1, true)`, strconv.Itoa(efSearch)); err != nil {
				return fmt.Errorf("set hnsw.ef_search: %w", err)
			}
		}
		return fn(&pgVectorTx{
			searcher: vector.NewSearcher(tx),
			papers:   NewPaperRepo(tx),
		})
	})
}

type pgVectorTx struct {
	searcher *vector.Searcher
	papers   *PaperRepo
}

func (t *pgVectorTx) NearestEmbeddings(ctx context.Context, vec []float32, k int) ([]models.Neighbor, error) {
	return t.searcher.Nearest(ctx, vec, k)
}

func (t *pgVectorTx) TopPapersByVotes(ctx context.Context, paperIDs []string, minDate *time.Time, limit int) ([]models.Paper, error) {
	return t.papers.TopPapersByVotes(ctx, paperIDs, minDate, limit)
}

func (s *Postgres) GetPage(ctx context.Context, universalID string, pageNumber int) (models.PageRef, bool, error) {
	return s.pages.GetPage(ctx, universalID, pageNumber)
}

func (s *Postgres) GetFullPaper(ctx context.Context, universalID string) (models.FullPaper, bool, error) {
	p, ok, err := s.papers.GetPaperByUniversalID(ctx, universalID)
	if err != nil || !ok {
		return models.FullPaper{}, ok, err
	}
	pages, err := s.pages.ListPagesByPaper(ctx, p.ID)
	if err != nil {
		return models.FullPaper{}, false, err
	}
	return models.FullPaper{Title: p.Title, UniversalID: p.UniversalID, Pages: pages}, true, nil
}

func (s *Postgres) GetPaperAbstract(ctx context.Context, universalID string) (models.PaperAbstract, bool, error) {
	p, ok, err := s.papers.GetPaperByUniversalID(ctx, universalID)
	if err != nil || !ok {
		return models.PaperAbstract{}, ok, err
	}
	return models.PaperAbstract{ID: p.ID, Title: p.Title, Abstract: p.Abstract, UniversalID: p.UniversalID}, true, nil
}

func (s *Postgres) CountPages(ctx context.Context, universalID string) (int, error) {
	return s.pages.CountPages(ctx, universalID)
}

func (s *Postgres) CreatePapersWithPages(ctx context.Context, papers []NewPaper) ([]models.Paper, error) {
	out := make([]models.Paper, 0, len(papers))
	if len(papers) == 0 {
		return out, nil
	}
	err := s.db.InTx(ctx, func(tx pgx.Tx) error {
		paperRepo, pageRepo := NewPaperRepo(tx), NewPageRepo(tx)
		for _, np := range papers {
			p, pages, err := np.Materialize()
			if err != nil {
				return err
			}
			if err := paperRepo.InsertPaper(ctx, p); err != nil {
				return err
			}
			if err := pageRepo.InsertPages(ctx, pages); err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create papers with pages: %w", err)
	}
	return out, nil
}

func (s *Postgres) InsertAbstractEmbedding(ctx context.Context, paperID string, vec []float32) (bool, error) {
	return s.embeddings.Insert(ctx, paperID, vec)
}

func (s *Postgres) ListPapersWithoutEmbedding(ctx context.Context, afterUniversalID string, limit int) ([]models.Paper, error) {
	return s.papers.ListPapersWithoutEmbedding(ctx, afterUniversalID, limit)
}

func (s *Postgres) ListPublicationDates(ctx context.Context) ([]models.PaperDate, error) {
	return s.papers.ListPublicationDates(ctx)
}

func (s *Postgres) UpdatePublicationDate(ctx context.Context, universalID string, date time.Time) (bool, error) {
	return s.papers.UpdatePublicationDate(ctx, universalID, date)
}

func (s *Postgres) DeletePaperByUniversalID(ctx context.Context, universalID string) (bool, error) {
	return s.papers.DeletePaperByUniversalID(ctx, universalID)
}

func (s *Postgres) ReindexPages(ctx context.Context, batch int) (int, error) {
	return s.pages.ReindexPages(ctx, batch)
}
