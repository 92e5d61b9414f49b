package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conorfennell/repomind/internal/domain"
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"session"},
	Short:   "Manage study sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List study sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		statusFlag, _ := cmd.Flags().GetString("status")
		var status domain.Status
		if statusFlag != "" {
			var err error
			if status, err = domain.ParseStatus(statusFlag); err != nil {
				return err
			}
		}

		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		sessions, err := a.db.ListSessions(cmd.Context(), status)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tTITLE\tREPOSITORY")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Status, truncate(s.Title, 40), s.RepositoryName)
		}
		return w.Flush()
	},
}

var sessionsCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a study session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := domain.SessionInput{Title: args[0]}
		in.Description, _ = cmd.Flags().GetString("description")
		in.RepositoryURL, _ = cmd.Flags().GetString("repo")
		if err := domain.Validate(in); err != nil {
			return err
		}

		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		session, err := a.db.InsertSession(cmd.Context(), in)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), session.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsCreateCmd)

	sessionsListCmd.Flags().String("status", "", "only list sessions with this status (active, archived, completed)")
	sessionsCreateCmd.Flags().StringP("description", "d", "", "session description")
	sessionsCreateCmd.Flags().StringP("repo", "r", "", "repository URL to import cards from")
}
