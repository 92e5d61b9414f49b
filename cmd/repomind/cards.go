package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conorfennell/repomind/internal/domain"
	"github.com/conorfennell/repomind/internal/knol"
	"github.com/conorfennell/repomind/internal/parser"
	"github.com/conorfennell/repomind/internal/storage"
)

var cardsCmd = &cobra.Command{
	Use:   "cards",
	Short: "Manage flashcards",
}

var cardsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cards with their review accuracy",
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		tagID, _ := cmd.Flags().GetString("tag")

		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		cards, err := a.db.ListCards(cmd.Context(), storage.CardFilter{SessionID: sessionID, TagID: tagID})
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDIFFICULTY\tACCURACY\tQUESTION")
		for _, c := range cards {
			accuracy := "-"
			if pct, ok := c.Accuracy(); ok {
				accuracy = fmt.Sprintf("%d%% (%d)", pct, c.TimesReviewed)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.Difficulty, accuracy, truncate(c.Question, 60))
		}
		return w.Flush()
	},
}

var cardsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a card",
	RunE: func(cmd *cobra.Command, args []string) error {
		var in domain.CardInput
		in.SessionID, _ = cmd.Flags().GetString("session")
		in.Question, _ = cmd.Flags().GetString("question")
		in.Answer, _ = cmd.Flags().GetString("answer")
		in.Difficulty, _ = cmd.Flags().GetString("difficulty")
		if err := domain.Validate(in); err != nil {
			return err
		}
		difficulty, err := domain.ParseDifficulty(in.Difficulty)
		if err != nil {
			return err
		}

		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		card := &domain.Card{
			SessionID:  in.SessionID,
			Question:   in.Question,
			Answer:     in.Answer,
			Difficulty: difficulty,
		}
		if err := a.db.InsertCard(cmd.Context(), card); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), card.ID)
		return nil
	},
}

var cardsImportCmd = &cobra.Command{
	Use:   "import <file.md>...",
	Short: "Import Q:/A: cards from local markdown files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")

		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		inserted, skipped := 0, 0
		for _, path := range args {
			cards, err := parser.ParseFile(path)
			if err != nil {
				return err
			}
			for _, card := range cards {
				card.SessionID = sessionID
				card.Imported = true
				card.Hash = knol.Hash(card)
				existing, err := a.db.FindCardByHash(cmd.Context(), sessionID, card.Hash)
				if err != nil {
					return err
				}
				if existing != nil {
					skipped++
					continue
				}
				if err := a.db.InsertCard(cmd.Context(), &card); err != nil {
					return err
				}
				inserted++
			}
			a.log.WithField("file", path).WithField("cards", len(cards)).Debug("parsed file")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d cards, %d already present.\n", inserted, skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cardsCmd)
	cardsCmd.AddCommand(cardsListCmd, cardsAddCmd, cardsImportCmd)

	cardsListCmd.Flags().StringP("session", "s", "", "only list cards of this session")
	cardsListCmd.Flags().StringP("tag", "t", "", "only list cards with this tag")

	cardsAddCmd.Flags().StringP("session", "s", "", "session the card belongs to")
	cardsAddCmd.Flags().StringP("question", "q", "", "question text")
	cardsAddCmd.Flags().StringP("answer", "a", "", "answer text")
	cardsAddCmd.Flags().String("difficulty", "medium", "easy, medium or hard")
	_ = cardsAddCmd.MarkFlagRequired("question")
	_ = cardsAddCmd.MarkFlagRequired("answer")

	cardsImportCmd.Flags().StringP("session", "s", "", "session the cards belong to")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
