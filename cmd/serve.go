package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/siteguide/siteguide/api"
	"github.com/siteguide/siteguide/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Serve runs the chat API: POST /chat answers questions, POST /upload
receives documents, and /health and /ready expose probes. The server shuts
down gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	a.Logger.Info("siteguide ready",
		"version", AppVersion,
		"model", a.Config.ModelName,
		"seeds", a.Config.Crawl.Seeds,
	)

	server := api.NewServer(a.Pool, a.Orchestrator, a.Config.DocumentsDir, a.Logger)
	return server.Run(ctx, a.Config.Addr)
}
