package main

import (
	"strings"

	"papersearch/internal/bootstrap"
	"papersearch/internal/search"
	"papersearch/internal/util"

	"github.com/spf13/cobra"
)

var (
	keywordMaxPapers   int
	keywordMaxSnippets int
	keywordAfter       string
)

var keywordCmd = &cobra.Command{
	Use:   "keyword <query>...",
	Short: "Full-text search ranked by votes",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runKeyword,
}

func init() {
	keywordCmd.Flags().IntVarP(&keywordMaxPapers, "max-papers", "n", 10, "Maximum papers to return")
	keywordCmd.Flags().IntVar(&keywordMaxSnippets, "max-snippets", 10, "Maximum snippets per paper")
	keywordCmd.Flags().StringVar(&keywordAfter, "after", "", "Only papers published on or after this date (YYYY-MM-DD)")
	rootCmd.AddCommand(keywordCmd)
}

func runKeyword(cmd *cobra.Command, args []string) error {
	minDate, err := parseDateFlag(keywordAfter)
	if err != nil {
		return err
	}
	rt, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	engine, err := bootstrap.NewEngine(rt.store, rt.cfg, rt.logger)
	if err != nil {
		return err
	}
	query := strings.Join(args, " ")
	results, err := engine.SearchByKeyword(cmd.Context(), query, search.KeywordOptions{
		MaxPapers:           keywordMaxPapers,
		MaxSnippetsPerPaper: keywordMaxSnippets,
		MinPublicationDate:  minDate,
	})
	if err != nil {
		return err
	}
	return emit(cmd.OutOrStdout(), results, util.FormatKeywordResults(query, results))
}
