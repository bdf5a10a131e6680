package main

import (
	"fmt"
	"strings"

	"papersearch/internal/activities"
	"papersearch/internal/providers"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Load every <universal-id>.pdf in a directory",
	Long: `Reads each PDF in dir (default PAPERSEARCH_INGEST_DIR) and stores it with
its pages. Papers already present are skipped. Embeddings are not computed;
run the embedding backfill job afterwards.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

type ingestSummary struct {
	Created  int                          `json:"created"`
	Existing int                          `json:"existing"`
	Failed   int                          `json:"failed"`
	Papers   []activities.IngestPDFOutput `json:"papers"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	pm, err := providers.NewManager(rt.cfg)
	if err != nil {
		return err
	}
	acts := activities.NewWith(rt.cfg, rt.store, pm, rt.logger)

	var dir string
	if len(args) == 1 {
		dir = args[0]
	}
	listed, err := acts.ListPDFsActivity(ctx, activities.ListPDFsInput{InputDir: dir})
	if err != nil {
		return err
	}

	summary := ingestSummary{Papers: make([]activities.IngestPDFOutput, 0, len(listed.Paths))}
	var b strings.Builder
	for _, path := range listed.Paths {
		out, err := acts.IngestPDFActivity(ctx, activities.IngestPDFInput{Path: path})
		if err != nil {
			out.Status = activities.IngestStatusFailed
			out.FailReason = err.Error()
		}
		switch out.Status {
		case activities.IngestStatusCreated:
			summary.Created++
			fmt.Fprintf(&b, "created  %s (%d pages)\n", out.UniversalID, out.Pages)
		case activities.IngestStatusExists:
			summary.Existing++
			fmt.Fprintf(&b, "exists   %s\n", out.UniversalID)
		default:
			summary.Failed++
			fmt.Fprintf(&b, "failed   %s: %s\n", out.UniversalID, out.FailReason)
		}
		summary.Papers = append(summary.Papers, out)
	}
	fmt.Fprintf(&b, "\n%d created, %d existing, %d failed", summary.Created, summary.Existing, summary.Failed)
	return emit(cmd.OutOrStdout(), summary, b.String())
}
