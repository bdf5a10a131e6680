// Package sqlite implements the corpus store on an embedded SQLite database.
// Lexical matching uses an FTS5 table kept in sync with paper_pages by
// triggers. Nearest-neighbour search is an exhaustive cosine scan over the
// half-precision copies, which is exact, so the recall setting has no effect.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"papersearch/internal/models"
	"papersearch/internal/storage"
	"papersearch/internal/vector"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const paperColumns = `id, universal_id, title, abstract, publication_date, votes`

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single writer; every statement, including those inside a transaction,
	// shares this connection.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// FTSQuery quotes each token as an FTS5 string and ANDs them together so that
// punctuation in user input is never read as query syntax.
func FTSQuery(q storage.TokenQuery) string {
	parts := make([]string, 0, len(q))
	for _, tok := range q {
		parts = append(parts, `"`+strings.ReplaceAll(tok, `"`, `""`)+`"`)
	}
	return strings.Join(parts, " AND ")
}

func (s *Store) GetPaperByUniversalID(ctx context.Context, universalID string) (models.Paper, bool, error) {
	return getPaper(ctx, s.db, universalID)
}

func getPaper(ctx context.Context, q querier, universalID string) (models.Paper, bool, error) {
	row := q.QueryRowContext(ctx, `SELECT `+paperColumns+` FROM papers WHERE universal_id = ?`, universalID)
	p, err := scanPaper(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Paper{}, false, nil
	}
	if err != nil {
		return models.Paper{}, false, fmt.Errorf("get paper by universal id: %w", err)
	}
	return p, true, nil
}

func (s *Store) ListPapersByUniversalIDs(ctx context.Context, universalIDs []string) ([]models.Paper, error) {
	if len(universalIDs) == 0 {
		return []models.Paper{}, nil
	}
	ids, err := json.Marshal(universalIDs)
	if err != nil {
		return nil, fmt.Errorf("encode universal ids: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT `+paperColumns+`
FROM papers
WHERE universal_id IN (SELECT value FROM json_each(?))
ORDER BY universal_id ASC`, string(ids))
	if err != nil {
		return nil, fmt.Errorf("list papers by universal ids: %w", err)
	}
	return collectPapers(rows)
}

func (s *Store) MatchingPaperIDs(ctx context.Context, q storage.TokenQuery, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT DISTINCT p.paper_id
FROM paper_pages_fts f
JOIN paper_pages p ON p.seq = f.rowid
WHERE paper_pages_fts MATCH ?
LIMIT ?`, FTSQuery(q), limitArg(limit))
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

func (s *Store) TopPapersByVotes(ctx context.Context, paperIDs []string, minDate *time.Time, limit int) ([]models.Paper, error) {
	return topPapersByVotes(ctx, s.db, paperIDs, minDate, limit)
}

func topPapersByVotes(ctx context.Context, q querier, paperIDs []string, minDate *time.Time, limit int) ([]models.Paper, error) {
	if len(paperIDs) == 0 {
		return []models.Paper{}, nil
	}
	ids, err := json.Marshal(paperIDs)
	if err != nil {
		return nil, fmt.Errorf("encode paper ids: %w", err)
	}
	var since any
	if minDate != nil {
		since = minDate.Unix()
	}
	rows, err := q.QueryContext(ctx, `
SELECT `+paperColumns+`
FROM papers
WHERE id IN (SELECT value FROM json_each(?))
  AND (? IS NULL OR publication_date >= ?)
ORDER BY votes DESC, universal_id ASC
LIMIT ?`, string(ids), since, since, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("rank papers by votes: %w", err)
	}
	return collectPapers(rows)
}

func (s *Store) MatchingPages(ctx context.Context, paperIDs []string, q storage.TokenQuery) ([]models.PageText, error) {
	if len(paperIDs) == 0 {
		return []models.PageText{}, nil
	}
	ids, err := json.Marshal(paperIDs)
	if err != nil {
		return nil, fmt.Errorf("encode paper ids: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT p.paper_id, p.page_number, p.text
FROM paper_pages_fts f
JOIN paper_pages p ON p.seq = f.rowid
WHERE paper_pages_fts MATCH ?
  AND p.paper_id IN (SELECT value FROM json_each(?))
ORDER BY p.paper_id, p.page_number ASC`, FTSQuery(q), string(ids))
	if err != nil {
		return nil, fmt.Errorf("list matching pages: %w", err)
	}
	return collectPageTexts(rows)
}

// WithRecall runs fn in a read transaction. efSearch is accepted and ignored
// because the scan is exhaustive.
func (s *Store) WithRecall(ctx context.Context, _ int, fn func(storage.VectorTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(&vectorTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type vectorTx struct {
	q querier
}

func (t *vectorTx) NearestEmbeddings(ctx context.Context, vec []float32, k int) ([]models.Neighbor, error) {
	if err := vector.Validate(vec); err != nil {
		return nil, err
	}
	// Compare in the same precision as the stored copies.
	query, err := vector.DecodeHalf(vector.EncodeHalf(vec))
	if err != nil {
		return nil, err
	}
	rows, err := t.q.QueryContext(ctx, `SELECT paper_id, abstract_embedding_half FROM paper_abstract_embeddings`)
	if err != nil {
		return nil, fmt.Errorf("query nearest embeddings: %w", err)
	}
	defer rows.Close()
	out := make([]models.Neighbor, 0, 64)
	for rows.Next() {
		var (
			paperID string
			blob    []byte
		)
		if err := rows.Scan(&paperID, &blob); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		stored, err := vector.DecodeHalf(blob)
		if err != nil {
			return nil, fmt.Errorf("decode embedding of %s: %w", paperID, err)
		}
		out = append(out, models.Neighbor{PaperID: paperID, Distance: vector.CosineDistance(query, stored)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].PaperID < out[j].PaperID
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (t *vectorTx) TopPapersByVotes(ctx context.Context, paperIDs []string, minDate *time.Time, limit int) ([]models.Paper, error) {
	return topPapersByVotes(ctx, t.q, paperIDs, minDate, limit)
}

func (s *Store) GetPage(ctx context.Context, universalID string, pageNumber int) (models.PageRef, bool, error) {
	var p models.PageRef
	err := s.db.QueryRowContext(ctx, `
SELECT pp.id, pp.paper_id, pp.page_number, pp.text
FROM paper_pages pp
JOIN papers p ON p.id = pp.paper_id
WHERE p.universal_id = ? AND pp.page_number = ?`, universalID, pageNumber).
		Scan(&p.PageID, &p.PaperID, &p.PageNumber, &p.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PageRef{}, false, nil
	}
	if err != nil {
		return models.PageRef{}, false, fmt.Errorf("get page: %w", err)
	}
	return p, true, nil
}

func (s *Store) GetFullPaper(ctx context.Context, universalID string) (models.FullPaper, bool, error) {
	p, ok, err := getPaper(ctx, s.db, universalID)
	if err != nil || !ok {
		return models.FullPaper{}, ok, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT paper_id, page_number, text
FROM paper_pages
WHERE paper_id = ?
ORDER BY page_number ASC`, p.ID)
	if err != nil {
		return models.FullPaper{}, false, fmt.Errorf("list pages by paper: %w", err)
	}
	pages, err := collectPageTexts(rows)
	if err != nil {
		return models.FullPaper{}, false, err
	}
	return models.FullPaper{Title: p.Title, UniversalID: p.UniversalID, Pages: pages}, true, nil
}

func (s *Store) GetPaperAbstract(ctx context.Context, universalID string) (models.PaperAbstract, bool, error) {
	p, ok, err := getPaper(ctx, s.db, universalID)
	if err != nil || !ok {
		return models.PaperAbstract{}, ok, err
	}
	return models.PaperAbstract{ID: p.ID, Title: p.Title, Abstract: p.Abstract, UniversalID: p.UniversalID}, true, nil
}

func (s *Store) CountPages(ctx context.Context, universalID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM paper_pages pp
JOIN papers p ON p.id = pp.paper_id
WHERE p.universal_id = ?`, universalID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}
	return n, nil
}

func (s *Store) CreatePapersWithPages(ctx context.Context, papers []storage.NewPaper) ([]models.Paper, error) {
	out := make([]models.Paper, 0, len(papers))
	if len(papers) == 0 {
		return out, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create papers tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	for _, np := range papers {
		p, pages, err := np.Materialize()
		if err != nil {
			return nil, fmt.Errorf("create papers with pages: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO papers (id, universal_id, title, abstract, publication_date, votes)
VALUES (?, ?, ?, ?, ?, ?)`, p.ID, p.UniversalID, p.Title, p.Abstract, p.PublicationDate.Unix(), p.Votes)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("insert paper %s: %w", p.UniversalID, storage.ErrDuplicate)
			}
			return nil, fmt.Errorf("insert paper: %w", err)
		}
		for _, pg := range pages {
			_, err := tx.ExecContext(ctx, `
INSERT INTO paper_pages (id, paper_id, page_number, text)
VALUES (?, ?, ?, ?)`, pg.ID, pg.PaperID, pg.PageNumber, pg.Text)
			if err != nil {
				return nil, fmt.Errorf("insert page %d of %s: %w", pg.PageNumber, p.UniversalID, err)
			}
		}
		out = append(out, p)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create papers tx: %w", err)
	}
	return out, nil
}

func (s *Store) InsertAbstractEmbedding(ctx context.Context, paperID string, vec []float32) (bool, error) {
	if err := vector.Validate(vec); err != nil {
		return false, fmt.Errorf("insert abstract embedding: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return false, fmt.Errorf("new embedding id: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO paper_abstract_embeddings (id, paper_id, abstract_embedding, abstract_embedding_half)
VALUES (?, ?, ?, ?)
ON CONFLICT (paper_id) DO NOTHING`, id.String(), paperID, vector.EncodeFloat32(vec), vector.EncodeHalf(vec))
	if err != nil {
		return false, fmt.Errorf("insert abstract embedding: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert abstract embedding: %w", err)
	}
	return n > 0, nil
}

func (s *Store) ListPapersWithoutEmbedding(ctx context.Context, afterUniversalID string, limit int) ([]models.Paper, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+paperColumns+`
FROM papers p
WHERE p.universal_id > ?
  AND NOT EXISTS (SELECT 1 FROM paper_abstract_embeddings e WHERE e.paper_id = p.id)
ORDER BY p.universal_id ASC
LIMIT ?`, afterUniversalID, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("list papers without embedding: %w", err)
	}
	return collectPapers(rows)
}

func (s *Store) ListPublicationDates(ctx context.Context) ([]models.PaperDate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT universal_id, publication_date FROM papers ORDER BY universal_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list publication dates: %w", err)
	}
	defer rows.Close()
	out := make([]models.PaperDate, 0)
	for rows.Next() {
		var (
			d  models.PaperDate
			ts int64
		)
		if err := rows.Scan(&d.UniversalID, &ts); err != nil {
			return nil, fmt.Errorf("scan publication date: %w", err)
		}
		d.PublicationDate = time.Unix(ts, 0).UTC()
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate publication dates: %w", err)
	}
	return out, nil
}

func (s *Store) UpdatePublicationDate(ctx context.Context, universalID string, date time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE papers SET publication_date = ? WHERE universal_id = ?`, date.Unix(), universalID)
	if err != nil {
		return false, fmt.Errorf("update publication date: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update publication date: %w", err)
	}
	return n > 0, nil
}

func (s *Store) DeletePaperByUniversalID(ctx context.Context, universalID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM papers WHERE universal_id = ?`, universalID)
	if err != nil {
		return false, fmt.Errorf("delete paper: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete paper: %w", err)
	}
	return n > 0, nil
}

// ReindexPages rebuilds the FTS table from paper_pages. The triggers keep it
// current, so nothing is ever left pending and the count is always zero.
func (s *Store) ReindexPages(ctx context.Context, _ int) (int, error) {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO paper_pages_fts(paper_pages_fts) VALUES ('rebuild')`); err != nil {
		return 0, fmt.Errorf("rebuild page index: %w", err)
	}
	return 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaper(row rowScanner) (models.Paper, error) {
	var (
		p  models.Paper
		ts int64
	)
	if err := row.Scan(&p.ID, &p.UniversalID, &p.Title, &p.Abstract, &ts, &p.Votes); err != nil {
		return models.Paper{}, err
	}
	p.PublicationDate = time.Unix(ts, 0).UTC()
	return p, nil
}

func collectPapers(rows *sql.Rows) ([]models.Paper, error) {
	defer rows.Close()
	out := make([]models.Paper, 0)
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("scan paper: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate papers: %w", err)
	}
	return out, nil
}

func collectPageTexts(rows *sql.Rows) ([]models.PageText, error) {
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

// limitArg maps a non-positive limit to -1, which SQLite treats as unbounded.
func limitArg(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
