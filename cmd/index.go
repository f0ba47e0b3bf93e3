package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/askdocs/askdocs/internal/app"
	"github.com/askdocs/askdocs/internal/config"
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index documents into the knowledge base",
	Long: `Chunk, embed and store a file or a directory of markdown/text
documents. Re-indexing the same document replaces its chunks.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage indexed documents",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	RunE:  runDocsList,
}

var docsRemoveCmd = &cobra.Command{
	Use:   "remove [document-id]",
	Short: "Remove an indexed document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocsRemove,
}

func init() {
	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsRemoveCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(docsCmd)
}

// setupApp loads config and initializes the application for commands
// that talk to the database directly instead of going through the API.
func setupApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := checkRequiredEnv(); err != nil {
		return nil, err
	}

	a, err := app.Setup(ctx, cfg, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("initializing application: %w", err)
	}
	return a, nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	out := cmd.OutOrStdout()

	if !info.IsDir() {
		chunks, err := a.Indexer.AddFile(ctx, path, filepath.Dir(path))
		if err != nil {
			return fmt.Errorf("indexing %s: %w", path, err)
		}
		fmt.Fprintf(out, "Indexed %s (%d chunks)\n", filepath.Base(path), chunks)
		return nil
	}

	result, err := a.Indexer.AddDirectory(ctx, path)
	if err != nil {
		return fmt.Errorf("indexing %s: %w", path, err)
	}

	fmt.Fprintf(out, "Indexed %d files (%d chunks) in %s\n",
		result.FilesAdded, result.ChunksAdded, result.Duration.Round(10*time.Millisecond))
	if result.FilesSkipped > 0 {
		fmt.Fprintf(out, "Skipped %d files (unsupported extension)\n", result.FilesSkipped)
	}
	if result.FilesFailed > 0 {
		fmt.Fprintf(out, "Failed %d files, see logs\n", result.FilesFailed)
	}
	return nil
}

func runDocsList(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	docs, err := a.Knowledge.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(docs) == 0 {
		fmt.Fprintln(out, "No documents indexed. Run: askdocs index <path>")
		return nil
	}

	for _, doc := range docs {
		fmt.Fprintf(out, "%-40s %4d chunks  %s\n",
			doc.DocumentID, doc.Chunks, doc.IndexedAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(out, "\n%d documents\n", len(docs))
	return nil
}

func runDocsRemove(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	removed, err := a.Indexer.Remove(ctx, args[0])
	if err != nil {
		return fmt.Errorf("removing document %s: %w", args[0], err)
	}
	if removed == 0 {
		return fmt.Errorf("document %s not found", args[0])
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s (%d chunks)\n", args[0], removed)
	return nil
}
