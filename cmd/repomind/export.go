package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/repomind/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export sessions, notes and cards as markdown or JSON",
	Example: `  repomind export > all.md
  repomind export --session 1f0c... --format json --output session.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		formatFlag, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		format, err := export.ParseFormat(formatFlag)
		if err != nil {
			return err
		}

		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		data, err := export.Collect(cmd.Context(), a.db, sessionID, time.Now())
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			defer f.Close()
			w = f
		}
		if err := export.Write(w, format, data); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		if output != "" {
			a.log.WithField("path", output).Info("export written")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("session", "s", "", "export a single session")
	exportCmd.Flags().StringP("format", "f", "markdown", "output format (markdown, json)")
	exportCmd.Flags().StringP("output", "o", "", "write to a file instead of stdout")
}
