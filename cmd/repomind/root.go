package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/conorfennell/repomind/internal/config"
	"github.com/conorfennell/repomind/internal/storage"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "repomind",
	Short: "Study code repositories with notes and flashcards",
	Long: `RepoMind keeps study sessions, notes and question/answer cards for the
repositories you are learning, imports cards written as Q:/A: blocks in
markdown, and runs flashcard reviews in the terminal or over a JSON API.`,
	SilenceUsage: true,
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())
}

// app bundles what every subcommand needs.
type app struct {
	cfg *config.Config
	log *logrus.Logger
	db  *storage.DB
}

// setup loads configuration, builds the logger and opens the database.
func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := config.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	db, err := storage.Open(cfg.DB.Path)
	if err != nil {
		return nil, err
	}
	logger.WithField("path", cfg.DB.Path).Debug("database opened")
	return &app{cfg: cfg, log: logger, db: db}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.log.WithError(err).Warn("failed to close database")
	}
}
