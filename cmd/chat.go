package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/askdocs/askdocs/internal/client"
	"github.com/askdocs/askdocs/internal/config"
	"github.com/askdocs/askdocs/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat client",
	Long: `Start a terminal chat session against a running askdocs server.

The server address comes from ASKDOCS_SERVER_URL or the server_url
config key (default http://localhost:8000). Start the server first
with: askdocs serve`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	api := client.New(cfg.ServerURL)

	return tui.Run(ctx, api, tui.Options{
		TopK:         cfg.TopK,
		UseReranking: cfg.UseReranking,
	})
}
