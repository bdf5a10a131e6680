package workflows

import (
	"path/filepath"
	"time"

	"papersearch/internal/activities"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetProgress = "GetProgress"

// Workflow id prefixes; at most one run of each job is active at a time.
const (
	IngestWorkflowID            = "corpus-ingest"
	EmbeddingBackfillWorkflowID = "embedding-backfill"
	DateRepairWorkflowID        = "publication-date-repair"
	SearchIndexWorkflowID       = "search-index-backfill"
)

func activityOptions(timeout time.Duration, attempts int32) workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    attempts,
		},
	}
}

// CorpusIngestWorkflow stores every PDF of a directory, a few at a time.
// One failing file does not stop the others.
func CorpusIngestWorkflow(ctx workflow.Context, input CorpusIngestInput) (CorpusIngestProgress, error) {
	progress := CorpusIngestProgress{InputDir: input.InputDir, PerPaper: map[string]string{}}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (CorpusIngestProgress, error) {
		return progress, nil
	}); err != nil {
		return progress, err
	}

	listCtx := workflow.WithActivityOptions(ctx, activityOptions(2*time.Minute, 3))
	var listOut activities.ListPDFsOutput
	if err := workflow.ExecuteActivity(listCtx, "ListPDFsActivity", activities.ListPDFsInput{InputDir: input.InputDir}).Get(ctx, &listOut); err != nil {
		return progress, err
	}
	paths := listOut.Paths
	progress.Total = len(paths)
	maxConcurrent := input.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}

	ingestCtx := workflow.WithActivityOptions(ctx, activityOptions(5*time.Minute, 2))
	for i := 0; i < len(paths); i += maxConcurrent {
		end := i + maxConcurrent
		if end > len(paths) {
			end = len(paths)
		}
		futures := make([]workflow.Future, 0, end-i)
		for _, path := range paths[i:end] {
			progress.PerPaper[filepath.Base(path)] = "processing"
			futures = append(futures, workflow.ExecuteActivity(ingestCtx, "IngestPDFActivity", activities.IngestPDFInput{Path: path}))
		}
		for idx, f := range futures {
			name := filepath.Base(paths[i+idx])
			var out activities.IngestPDFOutput
			progress.Done++
			if err := f.Get(ctx, &out); err != nil {
				progress.Failed++
				progress.PerPaper[name] = activities.IngestStatusFailed
				continue
			}
			switch out.Status {
			case activities.IngestStatusCreated:
				progress.Created++
			case activities.IngestStatusExists:
				progress.Existing++
			default:
				progress.Failed++
			}
			progress.PerPaper[name] = out.Status
		}
	}
	workflow.GetLogger(ctx).Info("corpus ingest finished",
		"total", progress.Total, "created", progress.Created, "existing", progress.Existing, "failed", progress.Failed)
	return progress, nil
}

const defaultBackfillBatchesPerRun = 200

// EmbeddingBackfillWorkflow walks papers without an abstract embedding in
// universal id order and embeds them batch by batch. Papers that fail are
// passed over by the cursor and picked up by the next run. After
// BatchesPerRun batches it continues as new with the cursor and totals.
func EmbeddingBackfillWorkflow(ctx workflow.Context, input EmbeddingBackfillInput) (EmbeddingBackfillProgress, error) {
	progress := input.Progress
	perRun := input.BatchesPerRun
	if perRun <= 0 {
		perRun = defaultBackfillBatchesPerRun
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (EmbeddingBackfillProgress, error) {
		return progress, nil
	}); err != nil {
		return progress, err
	}
	listCtx := workflow.WithActivityOptions(ctx, activityOptions(2*time.Minute, 3))
	embedCtx := workflow.WithActivityOptions(ctx, activityOptions(15*time.Minute, 3))

	for batches := 0; ; batches++ {
		if batches == perRun {
			next := input
			next.Progress = progress
			workflow.GetLogger(ctx).Info("embedding backfill continuing as new",
				"cursor", progress.Cursor, "batches", progress.Batches)
			return progress, workflow.NewContinueAsNewError(ctx, EmbeddingBackfillWorkflow, next)
		}
		var page activities.ListPapersWithoutEmbeddingOutput
		if err := workflow.ExecuteActivity(listCtx, "ListPapersWithoutEmbeddingActivity", activities.ListPapersWithoutEmbeddingInput{
			AfterUniversalID: progress.Cursor,
			Limit:            input.BatchSize,
		}).Get(ctx, &page); err != nil {
			return progress, err
		}
		if len(page.Papers) == 0 {
			break
		}
		var out activities.EmbedAbstractsOutput
		if err := workflow.ExecuteActivity(embedCtx, "EmbedAbstractsActivity", activities.EmbedAbstractsInput{Papers: page.Papers}).Get(ctx, &out); err != nil {
			return progress, err
		}
		progress.Batches++
		progress.Seen += len(page.Papers)
		progress.Inserted += out.Inserted
		progress.Skipped += out.Skipped
		progress.Failed += out.Failed
		if page.Next == "" {
			break
		}
		progress.Cursor = page.Next
	}
	return progress, nil
}

func PublicationDateRepairWorkflow(ctx workflow.Context, input PublicationDateRepairInput) (PublicationDateRepairResult, error) {
	ctx = workflow.WithActivityOptions(ctx, activityOptions(30*time.Minute, 2))
	var report activities.DateRepairReport
	err := workflow.ExecuteActivity(ctx, "RepairPublicationDatesActivity", activities.RepairPublicationDatesInput{DryRun: input.DryRun}).Get(ctx, &report)
	return report, err
}

// SearchIndexBackfillWorkflow fills missing lexical index values until a
// batch comes back empty.
func SearchIndexBackfillWorkflow(ctx workflow.Context, input SearchIndexBackfillInput) (SearchIndexBackfillProgress, error) {
	var progress SearchIndexBackfillProgress
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (SearchIndexBackfillProgress, error) {
		return progress, nil
	}); err != nil {
		return progress, err
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions(10*time.Minute, 3))
	for {
		var out activities.ReindexPagesOutput
		if err := workflow.ExecuteActivity(ctx, "ReindexPagesActivity", activities.ReindexPagesInput{BatchSize: input.BatchSize}).Get(ctx, &out); err != nil {
			return progress, err
		}
		progress.Batches++
		progress.Updated += out.Updated
		if out.Updated == 0 {
			return progress, nil
		}
	}
}
