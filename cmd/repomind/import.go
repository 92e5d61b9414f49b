package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conorfennell/repomind/internal/sync"
)

var importCmd = &cobra.Command{
	Use:   "import <session-id>",
	Short: "Clone or pull a session's repository and import its Q:/A: cards",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		session, err := a.db.GetSession(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		result, err := sync.Import(cmd.Context(), a.db, session, sync.Options{
			ReposDir: a.cfg.Repos.Dir,
			Token:    a.cfg.GitHub.Token,
			Logger:   a.log,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Scanned %d files: %d cards parsed, %d new, %d removed.\n",
			result.Files, result.Parsed, result.Inserted, result.Orphaned)
		if len(result.Errors) > 0 {
			fmt.Fprintln(out, "\nErrors:")
			for _, e := range result.Errors {
				fmt.Fprintf(out, "- %s\n", e)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
