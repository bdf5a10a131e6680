package main

import (
	"fmt"
	"strconv"

	"papersearch/internal/util"

	"github.com/spf13/cobra"
)

var pageOut string

var pageCmd = &cobra.Command{
	Use:   "page <universal-id> <page-number>",
	Short: "Print one page of a paper",
	Args:  cobra.ExactArgs(2),
	RunE:  runPage,
}

func init() {
	pageCmd.Flags().StringVarP(&pageOut, "out", "o", "", "Write the full page text to this file")
	rootCmd.AddCommand(pageCmd)
}

func runPage(cmd *cobra.Command, args []string) error {
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 1 {
		return fmt.Errorf("invalid page number %q", args[1])
	}
	rt, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	page, found, err := rt.store.GetPage(cmd.Context(), args[0], n)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("page %d of %s not found", n, args[0])
	}
	if pageOut != "" {
		if err := util.WriteTextAtomic(pageOut, page.Text); err != nil {
			return err
		}
	}
	return emit(cmd.OutOrStdout(), page, util.FormatPage(args[0], page.PageNumber, page.Text))
}
