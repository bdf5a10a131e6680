package storage

import (
	"context"
	"strings"
	"time"

	"papersearch/internal/models"
)

// TokenQuery is a whitespace-tokenized keyword query. Each store renders it into
// its own predicate syntax; tokens are always sent as bound parameters.
type TokenQuery []string

func ParseTokenQuery(s string) TokenQuery {
	return TokenQuery(strings.Fields(s))
}

func (q TokenQuery) Empty() bool { return len(q) == 0 }

// TSQuery joins the tokens with the tsquery AND operator. Token contents are not
// escaped, so tsquery syntax inside a token reaches the parser unchanged.
func (q TokenQuery) TSQuery() string {
	return strings.Join(q, " & ")
}

// Reader is the read side used by the search stages.
type Reader interface {
	GetPaperByUniversalID(ctx context.Context, universalID string) (models.Paper, bool, error)
	ListPapersByUniversalIDs(ctx context.Context, universalIDs []string) ([]models.Paper, error)

	// MatchingPaperIDs returns distinct ids of papers with at least one page
	// matching every token. No ordering is applied. limit <= 0 means no cap.
	MatchingPaperIDs(ctx context.Context, q TokenQuery, limit int) ([]string, error)

	// TopPapersByVotes restricts to paperIDs, applies the optional date bound and
	// orders by votes descending. limit <= 0 means no cap.
	TopPapersByVotes(ctx context.Context, paperIDs []string, minDate *time.Time, limit int) ([]models.Paper, error)

	// MatchingPages returns matching pages of the given papers, grouped by paper
	// and ascending by page number within a paper.
	MatchingPages(ctx context.Context, paperIDs []string, q TokenQuery) ([]models.PageText, error)

	// WithRecall runs fn inside one session whose ANN recall parameter is set to
	// efSearch. The override never outlives the call.
	WithRecall(ctx context.Context, efSearch int, fn func(VectorTx) error) error
}

// VectorTx is the view of the store available inside a WithRecall session.
type VectorTx interface {
	NearestEmbeddings(ctx context.Context, vec []float32, k int) ([]models.Neighbor, error)
	TopPapersByVotes(ctx context.Context, paperIDs []string, minDate *time.Time, limit int) ([]models.Paper, error)
}

type PageReader interface {
	GetPage(ctx context.Context, universalID string, pageNumber int) (models.PageRef, bool, error)
	GetFullPaper(ctx context.Context, universalID string) (models.FullPaper, bool, error)
	GetPaperAbstract(ctx context.Context, universalID string) (models.PaperAbstract, bool, error)
	CountPages(ctx context.Context, universalID string) (int, error)
}

type Writer interface {
	// CreatePapersWithPages inserts every paper with its pages atomically.
	CreatePapersWithPages(ctx context.Context, papers []NewPaper) ([]models.Paper, error)
	// InsertAbstractEmbedding reports false when the paper already has one.
	InsertAbstractEmbedding(ctx context.Context, paperID string, vec []float32) (bool, error)
	// ListPapersWithoutEmbedding pages by universal id, strictly after afterUniversalID.
	ListPapersWithoutEmbedding(ctx context.Context, afterUniversalID string, limit int) ([]models.Paper, error)
	ListPublicationDates(ctx context.Context) ([]models.PaperDate, error)
	UpdatePublicationDate(ctx context.Context, universalID string, date time.Time) (bool, error)
	DeletePaperByUniversalID(ctx context.Context, universalID string) (bool, error)
	// ReindexPages recomputes missing lexical index values for up to batch
	// pages and returns how many were updated.
	ReindexPages(ctx context.Context, batch int) (int, error)
}

// Store is the full corpus store.
type Store interface {
	Reader
	PageReader
	Writer
	Close() error
}

type NewPaper struct {
	UniversalID     string
	Title           string
	Abstract        string
	PublicationDate time.Time
	Votes           int
	Pages           []string
}
