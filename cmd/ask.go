package cmd

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/siteguide/siteguide/internal/app"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question from the command line",
	Long: `Ask answers a single question through the same pipeline the HTTP API
uses: index search first, live crawl fallback when nothing relevant is found.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	question := strings.Join(args, " ")
	resp, err := a.Orchestrator.Answer(ctx, question, nil)
	if err != nil {
		return fmt.Errorf("answering: %w", err)
	}

	fmt.Println(resp.Text)
	if len(resp.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, src := range resp.Sources {
			fmt.Printf("  - %s (offset %d)\n", src.Source, src.Offset)
		}
	}
	return nil
}
