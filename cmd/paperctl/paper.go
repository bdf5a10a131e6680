package main

import (
	"fmt"
	"strings"

	"papersearch/internal/util"

	"github.com/spf13/cobra"
)

var paperOut string

var abstractCmd = &cobra.Command{
	Use:   "abstract <universal-id>",
	Short: "Print the title and abstract of a paper",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		a, found, err := rt.store.GetPaperAbstract(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("paper %s not found", args[0])
		}
		return emit(cmd.OutOrStdout(), a, util.FormatAbstract(a))
	},
}

var paperCmd = &cobra.Command{
	Use:   "paper <universal-id>",
	Short: "Print the full text of a paper",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		p, found, err := rt.store.GetFullPaper(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("paper %s not found", args[0])
		}
		if paperOut != "" {
			parts := make([]string, len(p.Pages))
			for i, pg := range p.Pages {
				parts[i] = pg.Text
			}
			if err := util.WriteTextAtomic(paperOut, strings.Join(parts, "\n\n")); err != nil {
				return err
			}
		}
		return emit(cmd.OutOrStdout(), p, util.FormatFullPaper(p))
	},
}

func init() {
	paperCmd.Flags().StringVarP(&paperOut, "out", "o", "", "Write the untruncated text to this file")
	rootCmd.AddCommand(abstractCmd)
	rootCmd.AddCommand(paperCmd)
}
