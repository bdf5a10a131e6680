package main

import (
	"errors"
	"fmt"
	"strings"

	"papersearch/internal/bootstrap"
	"papersearch/internal/providers"
	"papersearch/internal/search"
	"papersearch/internal/util"

	"github.com/spf13/cobra"
)

var (
	similarLimit int
	similarAfter string
	similarTo    string
)

var similarCmd = &cobra.Command{
	Use:   "similar [text]...",
	Short: "Find papers whose abstracts are nearest to a text or another paper",
	Long: `Embeds the given text and returns the nearest papers by abstract embedding.
With --to, the abstract of that paper is embedded instead.`,
	RunE: runSimilar,
}

func init() {
	similarCmd.Flags().IntVarP(&similarLimit, "limit", "n", 10, "Maximum papers to return")
	similarCmd.Flags().StringVar(&similarAfter, "after", "", "Only papers published on or after this date (YYYY-MM-DD)")
	similarCmd.Flags().StringVar(&similarTo, "to", "", "Universal id of a stored paper to use as the query")
	rootCmd.AddCommand(similarCmd)
}

func runSimilar(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	switch {
	case text == "" && similarTo == "":
		return errors.New("query text or --to is required")
	case text != "" && similarTo != "":
		return errors.New("query text and --to are mutually exclusive")
	}
	minDate, err := parseDateFlag(similarAfter)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	rt, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	if similarTo != "" {
		a, found, err := rt.store.GetPaperAbstract(ctx, similarTo)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("paper %s not found", similarTo)
		}
		text = a.Abstract
	}

	pm, err := providers.NewManager(rt.cfg)
	if err != nil {
		return err
	}
	pm.SetLogger(rt.logger)
	vec, err := pm.EmbedQuery(ctx, text)
	if err != nil {
		return fmt.Errorf("embed query: %w", err)
	}

	engine, err := bootstrap.NewEngine(rt.store, rt.cfg, rt.logger)
	if err != nil {
		return err
	}
	results, err := engine.SearchByEmbedding(ctx, vec, search.EmbeddingOptions{
		Limit:              similarLimit,
		MinPublicationDate: minDate,
	})
	if err != nil {
		return err
	}
	return emit(cmd.OutOrStdout(), results, util.FormatSimilarPapers(results))
}
