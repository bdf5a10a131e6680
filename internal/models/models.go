package models

import "time"

type Paper struct {
	ID              string    `json:"id"`
	UniversalID     string    `json:"universal_id"`
	Title           string    `json:"title"`
	Abstract        string    `json:"abstract"`
	PublicationDate time.Time `json:"publication_date"`
	Votes           int       `json:"votes"`
}

type PaperPage struct {
	ID         string `json:"id"`
	PaperID    string `json:"paper_id"`
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

type PaperAbstractEmbedding struct {
	ID        string    `json:"id"`
	PaperID   string    `json:"paper_id"`
	Embedding []float32 `json:"-"`
}

// PageText is a page row as returned by lexical page fetches.
type PageText struct {
	PaperID    string `json:"paper_id"`
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// Neighbor is one ANN hit; Distance is the cosine distance to the query.
type Neighbor struct {
	PaperID  string  `json:"paper_id"`
	Distance float64 `json:"distance"`
}

type Occurrence struct {
	PageNumber int    `json:"pageNumber"`
	Snippet    string `json:"snippet"`
}

type KeywordResult struct {
	UniversalID     string       `json:"universalId"`
	PaperTitle      string       `json:"paperTitle"`
	Votes           int          `json:"votes"`
	PublicationDate time.Time    `json:"publicationDate"`
	Occurrences     []Occurrence `json:"occurrences"`
}

type SimilarPaper struct {
	UniversalID        string    `json:"universalId"`
	Title              string    `json:"title"`
	Abstract           string    `json:"abstract"`
	PublicationDate    time.Time `json:"publicationDate"`
	Votes              int       `json:"votes"`
	SimilarityDistance float64   `json:"similarityDistance"`
}

type PageRef struct {
	PageID     string `json:"pageId"`
	PaperID    string `json:"paperId"`
	PageNumber int    `json:"pageNumber"`
	Text       string `json:"text"`
}

type FullPaper struct {
	Title       string     `json:"title"`
	UniversalID string     `json:"universalId"`
	Pages       []PageText `json:"pages"`
}

type PaperAbstract struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Abstract    string `json:"abstract"`
	UniversalID string `json:"universalId"`
}

type PaperDate struct {
	UniversalID     string    `json:"universal_id"`
	PublicationDate time.Time `json:"publication_date"`
}
