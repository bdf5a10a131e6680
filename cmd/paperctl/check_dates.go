package main

import (
	"fmt"
	"strings"

	"papersearch/internal/activities"
	"papersearch/internal/providers"
	"papersearch/internal/util"

	"github.com/spf13/cobra"
)

var (
	checkDatesDryRun bool
	checkDatesReport string
)

var checkDatesCmd = &cobra.Command{
	Use:   "check-dates",
	Short: "Align publication dates with the month in each universal id",
	Long: `Compares every stored publication date with the year and month encoded in
the paper's universal id (YYMM.NNNNN). Mismatched dates are moved to the first
of the implied month; papers whose id has no valid month are deleted.`,
	Args: cobra.NoArgs,
	RunE: runCheckDates,
}

func init() {
	checkDatesCmd.Flags().BoolVar(&checkDatesDryRun, "dry-run", false, "Only count, do not modify the store")
	checkDatesCmd.Flags().StringVar(&checkDatesReport, "report", "", "Also write the report as JSON to this file")
	rootCmd.AddCommand(checkDatesCmd)
}

func runCheckDates(cmd *cobra.Command, _ []string) error {
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
	report, err := acts.RepairPublicationDatesActivity(ctx, activities.RepairPublicationDatesInput{DryRun: checkDatesDryRun})
	if err != nil {
		return err
	}
	if checkDatesReport != "" {
		if err := util.WriteJSONAtomic(checkDatesReport, report); err != nil {
			return err
		}
	}
	return emit(cmd.OutOrStdout(), report, formatDateReport(report))
}

func formatDateReport(r activities.DateRepairReport) string {
	rule := strings.Repeat("=", 80)
	var b strings.Builder
	fmt.Fprintf(&b, "Checked %d papers\n\n", r.Total)
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "FINAL COUNTS")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Invalid format: %d\n", r.InvalidFormat)
	fmt.Fprintf(&b, "Incorrect date: %d\n", r.Mismatched)
	fmt.Fprintf(&b, "More than 3 months off: %d\n", r.MoreThanThreeMonthsOff)
	switch {
	case r.DryRun:
		fmt.Fprintln(&b, "Dry run: no changes written")
	default:
		if r.Mismatched > 0 {
			fmt.Fprintf(&b, "Dates updated in database: %d\n", r.Updated)
		}
		if r.InvalidFormat > 0 {
			fmt.Fprintf(&b, "Papers deleted: %d\n", r.Deleted)
		}
		if r.Failed > 0 {
			fmt.Fprintf(&b, "Failed: %d\n", r.Failed)
		}
	}
	b.WriteString(rule)
	return b.String()
}
