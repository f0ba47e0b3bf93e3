package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/askdocs/askdocs/internal/client"
	"github.com/askdocs/askdocs/internal/config"
)

var (
	askTopK     int
	askNoRerank bool
	askSources  bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a one-shot question against a running server",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().IntVar(&askTopK, "top-k", 0, "number of sources to retrieve (default from config)")
	askCmd.Flags().BoolVar(&askNoRerank, "no-rerank", false, "disable LLM reranking of retrieved chunks")
	askCmd.Flags().BoolVar(&askSources, "sources", false, "print the retrieved sources after the answer")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question is empty")
	}

	topK := cfg.TopK
	if askTopK > 0 {
		topK = askTopK
	}
	useReranking := cfg.UseReranking
	if askNoRerank {
		useReranking = false
	}

	api := client.New(cfg.ServerURL)

	answer, err := api.Ask(cmd.Context(), question, topK, useReranking)
	if err != nil {
		return fmt.Errorf("asking %q: %w", question, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, answer.Response)

	if askSources && len(answer.Sources) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Sources:")
		for _, src := range answer.Sources {
			fmt.Fprintf(out, "  %s (chunk %s, score %.2f)\n", src.Filename, src.ChunkID, src.Score)
		}
	}

	return nil
}
