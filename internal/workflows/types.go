package workflows

import "papersearch/internal/activities"

type CorpusIngestInput struct {
	InputDir      string `json:"input_dir"`
	MaxConcurrent int    `json:"max_concurrent"`
}

type CorpusIngestProgress struct {
	InputDir string            `json:"input_dir"`
	Total    int               `json:"total"`
	Done     int               `json:"done"`
	Created  int               `json:"created"`
	Existing int               `json:"existing"`
	Failed   int               `json:"failed"`
	PerPaper map[string]string `json:"per_paper_status"`
}

type EmbeddingBackfillInput struct {
	BatchSize int `json:"batch_size"`
	// BatchesPerRun bounds the history of one run; zero means 200.
	BatchesPerRun int `json:"batches_per_run,omitempty"`
	// Progress is carried over from the previous run after continue-as-new.
	Progress EmbeddingBackfillProgress `json:"progress"`
}

type EmbeddingBackfillProgress struct {
	Batches  int    `json:"batches"`
	Seen     int    `json:"seen"`
	Inserted int    `json:"inserted"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
	Cursor   string `json:"cursor,omitempty"`
}

type PublicationDateRepairInput struct {
	DryRun bool `json:"dry_run"`
}

type PublicationDateRepairResult = activities.DateRepairReport

type SearchIndexBackfillInput struct {
	BatchSize int `json:"batch_size"`
}

type SearchIndexBackfillProgress struct {
	Batches int `json:"batches"`
	Updated int `json:"updated"`
}
