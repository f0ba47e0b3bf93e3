// Package cmd wires the askdocs CLI: an HTTP API server, a document
// indexer, and two terminal clients (one-shot ask and interactive chat)
// that talk to the running server.
package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "askdocs",
	Short: "askdocs is a document Q&A service with hybrid retrieval",
	Long: `askdocs indexes markdown and text documents into PostgreSQL with
pgvector embeddings and answers questions about them through an LLM,
citing the chunks it retrieved.

Running askdocs without a subcommand starts the interactive chat client.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

// Execute runs the root command. Called from main.
func Execute() error {
	// A missing .env is fine, the environment may already be set.
	_ = godotenv.Load()

	slog.SetDefault(initLogger())

	return rootCmd.Execute()
}

// initLogger builds the default logger. DEBUG (any value) enables
// debug-level output. Logs go to stderr so command output on stdout
// stays pipeable.
func initLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		opts.Level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
