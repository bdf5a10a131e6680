package workflows

import (
	"context"
	"errors"
	"testing"

	"papersearch/internal/activities"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func TestCorpusIngestWorkflow(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(CorpusIngestWorkflow)
	registerActivityName(env, "ListPDFsActivity", func(context.Context, activities.ListPDFsInput) (activities.ListPDFsOutput, error) {
		return activities.ListPDFsOutput{}, nil
	})
	registerActivityName(env, "IngestPDFActivity", func(context.Context, activities.IngestPDFInput) (activities.IngestPDFOutput, error) {
		return activities.IngestPDFOutput{}, nil
	})

	env.OnActivity("ListPDFsActivity", mock.Anything, activities.ListPDFsInput{InputDir: "/in"}).Return(activities.ListPDFsOutput{
		Paths: []string{"/in/2401.00001.pdf", "/in/2401.00002.pdf", "/in/2401.00003.pdf", "/in/scan.pdf"},
	}, nil)
	env.OnActivity("IngestPDFActivity", mock.Anything, activities.IngestPDFInput{Path: "/in/2401.00001.pdf"}).
		Return(activities.IngestPDFOutput{UniversalID: "2401.00001", Status: activities.IngestStatusCreated, Pages: 9}, nil)
	env.OnActivity("IngestPDFActivity", mock.Anything, activities.IngestPDFInput{Path: "/in/2401.00002.pdf"}).
		Return(activities.IngestPDFOutput{UniversalID: "2401.00002", Status: activities.IngestStatusExists}, nil)
	env.OnActivity("IngestPDFActivity", mock.Anything, activities.IngestPDFInput{Path: "/in/2401.00003.pdf"}).
		Return(activities.IngestPDFOutput{}, errors.New("open pdf: malformed"))
	env.OnActivity("IngestPDFActivity", mock.Anything, activities.IngestPDFInput{Path: "/in/scan.pdf"}).
		Return(activities.IngestPDFOutput{UniversalID: "scan", Status: activities.IngestStatusFailed, FailReason: "no text"}, nil)

	env.ExecuteWorkflow(CorpusIngestWorkflow, CorpusIngestInput{InputDir: "/in", MaxConcurrent: 2})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out CorpusIngestProgress
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, 4, out.Total)
	require.Equal(t, 4, out.Done)
	require.Equal(t, 1, out.Created)
	require.Equal(t, 1, out.Existing)
	require.Equal(t, 2, out.Failed)
	require.Equal(t, activities.IngestStatusFailed, out.PerPaper["2401.00003.pdf"])
	require.Equal(t, activities.IngestStatusCreated, out.PerPaper["2401.00001.pdf"])
}

func TestCorpusIngestWorkflowListFailure(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(CorpusIngestWorkflow)
	registerActivityName(env, "ListPDFsActivity", func(context.Context, activities.ListPDFsInput) (activities.ListPDFsOutput, error) {
		return activities.ListPDFsOutput{}, nil
	})
	env.OnActivity("ListPDFsActivity", mock.Anything, mock.Anything).Return(activities.ListPDFsOutput{}, errors.New("read input dir: no such file"))

	env.ExecuteWorkflow(CorpusIngestWorkflow, CorpusIngestInput{InputDir: "/missing"})
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
}

func TestEmbeddingBackfillWorkflowFollowsCursor(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(EmbeddingBackfillWorkflow)
	registerActivityName(env, "ListPapersWithoutEmbeddingActivity", func(context.Context, activities.ListPapersWithoutEmbeddingInput) (activities.ListPapersWithoutEmbeddingOutput, error) {
		return activities.ListPapersWithoutEmbeddingOutput{}, nil
	})
	registerActivityName(env, "EmbedAbstractsActivity", func(context.Context, activities.EmbedAbstractsInput) (activities.EmbedAbstractsOutput, error) {
		return activities.EmbedAbstractsOutput{}, nil
	})

	first := []activities.PaperRef{{ID: "p1", UniversalID: "a"}, {ID: "p2", UniversalID: "b"}}
	second := []activities.PaperRef{{ID: "p3", UniversalID: "c"}}
	env.OnActivity("ListPapersWithoutEmbeddingActivity", mock.Anything, activities.ListPapersWithoutEmbeddingInput{Limit: 2}).
		Return(activities.ListPapersWithoutEmbeddingOutput{Papers: first, Next: "b"}, nil)
	env.OnActivity("ListPapersWithoutEmbeddingActivity", mock.Anything, activities.ListPapersWithoutEmbeddingInput{AfterUniversalID: "b", Limit: 2}).
		Return(activities.ListPapersWithoutEmbeddingOutput{Papers: second}, nil)
	env.OnActivity("EmbedAbstractsActivity", mock.Anything, activities.EmbedAbstractsInput{Papers: first}).
		Return(activities.EmbedAbstractsOutput{Inserted: 1, Failed: 1}, nil)
	env.OnActivity("EmbedAbstractsActivity", mock.Anything, activities.EmbedAbstractsInput{Papers: second}).
		Return(activities.EmbedAbstractsOutput{Skipped: 1}, nil)

	env.ExecuteWorkflow(EmbeddingBackfillWorkflow, EmbeddingBackfillInput{BatchSize: 2})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out EmbeddingBackfillProgress
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, EmbeddingBackfillProgress{Batches: 2, Seen: 3, Inserted: 1, Skipped: 1, Failed: 1, Cursor: "b"}, out)
}

func TestEmbeddingBackfillWorkflowNothingToDo(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(EmbeddingBackfillWorkflow)
	registerActivityName(env, "ListPapersWithoutEmbeddingActivity", func(context.Context, activities.ListPapersWithoutEmbeddingInput) (activities.ListPapersWithoutEmbeddingOutput, error) {
		return activities.ListPapersWithoutEmbeddingOutput{}, nil
	})
	env.OnActivity("ListPapersWithoutEmbeddingActivity", mock.Anything, mock.Anything).Return(activities.ListPapersWithoutEmbeddingOutput{}, nil)

	env.ExecuteWorkflow(EmbeddingBackfillWorkflow, EmbeddingBackfillInput{})
	require.NoError(t, env.GetWorkflowError())
	var out EmbeddingBackfillProgress
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Zero(t, out.Batches)
}

func TestEmbeddingBackfillWorkflowContinuesAsNewWithCursor(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(EmbeddingBackfillWorkflow)
	registerActivityName(env, "ListPapersWithoutEmbeddingActivity", func(context.Context, activities.ListPapersWithoutEmbeddingInput) (activities.ListPapersWithoutEmbeddingOutput, error) {
		return activities.ListPapersWithoutEmbeddingOutput{}, nil
	})
	registerActivityName(env, "EmbedAbstractsActivity", func(context.Context, activities.EmbedAbstractsInput) (activities.EmbedAbstractsOutput, error) {
		return activities.EmbedAbstractsOutput{}, nil
	})

	first := []activities.PaperRef{{ID: "p1", UniversalID: "a"}, {ID: "p2", UniversalID: "b"}}
	env.OnActivity("ListPapersWithoutEmbeddingActivity", mock.Anything, activities.ListPapersWithoutEmbeddingInput{Limit: 2}).
		Return(activities.ListPapersWithoutEmbeddingOutput{Papers: first, Next: "b"}, nil).Once()
	env.OnActivity("EmbedAbstractsActivity", mock.Anything, activities.EmbedAbstractsInput{Papers: first}).
		Return(activities.EmbedAbstractsOutput{Inserted: 2}, nil).Once()

	env.ExecuteWorkflow(EmbeddingBackfillWorkflow, EmbeddingBackfillInput{BatchSize: 2, BatchesPerRun: 1})
	require.True(t, env.IsWorkflowCompleted())

	err := env.GetWorkflowError()
	require.True(t, workflow.IsContinueAsNewError(err))
	var can *workflow.ContinueAsNewError
	require.True(t, errors.As(err, &can))

	var next EmbeddingBackfillInput
	require.NoError(t, converter.GetDefaultDataConverter().FromPayloads(can.Input, &next))
	require.Equal(t, EmbeddingBackfillInput{
		BatchSize:     2,
		BatchesPerRun: 1,
		Progress:      EmbeddingBackfillProgress{Batches: 1, Seen: 2, Inserted: 2, Cursor: "b"},
	}, next)
	env.AssertExpectations(t)
}

func TestEmbeddingBackfillWorkflowResumesFromCarriedProgress(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(EmbeddingBackfillWorkflow)
	registerActivityName(env, "ListPapersWithoutEmbeddingActivity", func(context.Context, activities.ListPapersWithoutEmbeddingInput) (activities.ListPapersWithoutEmbeddingOutput, error) {
		return activities.ListPapersWithoutEmbeddingOutput{}, nil
	})
	registerActivityName(env, "EmbedAbstractsActivity", func(context.Context, activities.EmbedAbstractsInput) (activities.EmbedAbstractsOutput, error) {
		return activities.EmbedAbstractsOutput{}, nil
	})

	rest := []activities.PaperRef{{ID: "p3", UniversalID: "c"}}
	env.OnActivity("ListPapersWithoutEmbeddingActivity", mock.Anything, activities.ListPapersWithoutEmbeddingInput{AfterUniversalID: "b", Limit: 2}).
		Return(activities.ListPapersWithoutEmbeddingOutput{Papers: rest}, nil).Once()
	env.OnActivity("EmbedAbstractsActivity", mock.Anything, activities.EmbedAbstractsInput{Papers: rest}).
		Return(activities.EmbedAbstractsOutput{Inserted: 1}, nil).Once()

	env.ExecuteWorkflow(EmbeddingBackfillWorkflow, EmbeddingBackfillInput{
		BatchSize:     2,
		BatchesPerRun: 1,
		Progress:      EmbeddingBackfillProgress{Batches: 1, Seen: 2, Inserted: 2, Cursor: "b"},
	})
	require.NoError(t, env.GetWorkflowError())
	var out EmbeddingBackfillProgress
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, EmbeddingBackfillProgress{Batches: 2, Seen: 3, Inserted: 3, Cursor: "b"}, out)
}

func TestPublicationDateRepairWorkflow(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PublicationDateRepairWorkflow)
	registerActivityName(env, "RepairPublicationDatesActivity", func(context.Context, activities.RepairPublicationDatesInput) (activities.DateRepairReport, error) {
		return activities.DateRepairReport{}, nil
	})
	want := activities.DateRepairReport{Total: 10, InvalidFormat: 1, Mismatched: 3, MoreThanThreeMonthsOff: 1, Updated: 3, Deleted: 1}
	env.OnActivity("RepairPublicationDatesActivity", mock.Anything, activities.RepairPublicationDatesInput{}).Return(want, nil)

	env.ExecuteWorkflow(PublicationDateRepairWorkflow, PublicationDateRepairInput{})
	require.NoError(t, env.GetWorkflowError())
	var out PublicationDateRepairResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, want, out)
}

func TestSearchIndexBackfillWorkflowStopsOnEmptyBatch(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(SearchIndexBackfillWorkflow)
	registerActivityName(env, "ReindexPagesActivity", func(context.Context, activities.ReindexPagesInput) (activities.ReindexPagesOutput, error) {
		return activities.ReindexPagesOutput{}, nil
	})
	in := activities.ReindexPagesInput{BatchSize: 2000}
	env.OnActivity("ReindexPagesActivity", mock.Anything, in).Return(activities.ReindexPagesOutput{Updated: 2000}, nil).Once()
	env.OnActivity("ReindexPagesActivity", mock.Anything, in).Return(activities.ReindexPagesOutput{Updated: 15}, nil).Once()
	env.OnActivity("ReindexPagesActivity", mock.Anything, in).Return(activities.ReindexPagesOutput{}, nil).Once()

	env.ExecuteWorkflow(SearchIndexBackfillWorkflow, SearchIndexBackfillInput{BatchSize: 2000})
	require.NoError(t, env.GetWorkflowError())
	var out SearchIndexBackfillProgress
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, SearchIndexBackfillProgress{Batches: 3, Updated: 2015}, out)
}
