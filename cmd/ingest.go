package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/siteguide/siteguide/internal/app"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Index local documents into the passage index",
	Long: `Ingest walks the documents directory (or the given directory),
chunks every supported file, and upserts the passages into the index.
Files matched by the directory's .gitignore are skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	dir := a.Config.DocumentsDir
	if len(args) == 1 {
		dir = args[0]
	}

	result, err := a.Ingester.Directory(ctx, dir)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", dir, err)
	}

	fmt.Printf("Ingested %d files (%d passages) in %s\n",
		result.FilesIngested, result.Passages, result.Duration.Round(10*time.Millisecond))
	if result.FilesSkipped > 0 {
		fmt.Printf("Skipped %d files (unsupported or ignored)\n", result.FilesSkipped)
	}
	if result.FilesFailed > 0 {
		fmt.Printf("Failed %d files, see logs\n", result.FilesFailed)
	}
	return nil
}
