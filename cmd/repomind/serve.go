package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conorfennell/repomind/internal/ai"
	"github.com/conorfennell/repomind/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the JSON API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		var assistant *ai.Assistant
		client, err := ai.NewAnthropicClient(ai.ClientConfig{
			APIKey:     a.cfg.AI.APIKey,
			Model:      a.cfg.AI.Model,
			BaseURL:    a.cfg.AI.BaseURL,
			MaxTokens:  a.cfg.AI.MaxTokens,
			MaxRetries: 2,
		})
		switch {
		case errors.Is(err, ai.ErrNotConfigured):
			a.log.Warn("no AI API key configured, AI endpoints are disabled")
		case err != nil:
			return err
		default:
			assistant = ai.NewAssistant(client, a.log)
		}

		srv := web.NewServer(a.db, web.Options{
			ReposDir:         a.cfg.Repos.Dir,
			GitHubToken:      a.cfg.GitHub.Token,
			WriteTimeout:     a.cfg.Review.WriteTimeout,
			StudyIdleTimeout: a.cfg.Review.StudyIdleTimeout,
			Assistant:        assistant,
			Logger:           a.log,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.Run(ctx, a.cfg.Server.Addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
