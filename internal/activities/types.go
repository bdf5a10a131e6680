package activities

type ListPDFsInput struct {
	InputDir string `json:"input_dir"`
}

type ListPDFsOutput struct {
	Paths []string `json:"paths"`
}

// PaperRef is the slice of a paper the embedding backfill needs.
type PaperRef struct {
	ID          string `json:"id"`
	UniversalID string `json:"universal_id"`
	Abstract    string `json:"abstract"`
}

type ListPapersWithoutEmbeddingInput struct {
	AfterUniversalID string `json:"after_universal_id"`
	Limit            int    `json:"limit"`
}

type ListPapersWithoutEmbeddingOutput struct {
	Papers []PaperRef `json:"papers"`
	// Next is the cursor for the following page; empty when this page was short.
	Next string `json:"next,omitempty"`
}

type EmbedAbstractsInput struct {
	Papers []PaperRef `json:"papers"`
}

type EmbedAbstractsOutput struct {
	Inserted  int      `json:"inserted"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
	Providers []string `json:"providers_used,omitempty"`
}

type RepairPublicationDatesInput struct {
	DryRun bool `json:"dry_run"`
}

// DateRepairReport counts how stored publication dates compare with the
// month encoded in each universal id.
type DateRepairReport struct {
	Total                  int  `json:"total"`
	InvalidFormat          int  `json:"invalid_format"`
	Mismatched             int  `json:"incorrect_date"`
	MoreThanThreeMonthsOff int  `json:"more_than_3_months_off"`
	Updated                int  `json:"updated"`
	Deleted                int  `json:"deleted"`
	Failed                 int  `json:"failed"`
	DryRun                 bool `json:"dry_run"`
}

type IngestPDFInput struct {
	Path string `json:"path"`
}

const (
	IngestStatusCreated = "created"
	IngestStatusExists  = "exists"
	IngestStatusFailed  = "failed"
)

type IngestPDFOutput struct {
	UniversalID string `json:"universal_id"`
	Status      string `json:"status"`
	Pages       int    `json:"pages"`
	Checksum    string `json:"checksum,omitempty"`
	FailReason  string `json:"fail_reason,omitempty"`
}

type ReindexPagesInput struct {
	BatchSize int `json:"batch_size"`
}

type ReindexPagesOutput struct {
	Updated int `json:"updated"`
}
