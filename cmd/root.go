// Package cmd implements the siteguide command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "siteguide",
	Short: "Siteguide - retrieval-augmented chat over a site's knowledge",
	Long: `Siteguide answers questions about an organization from its indexed
documents, falling back to a live crawl of its websites when the index has
nothing relevant.

Configuration is read from ~/.siteguide/config.yaml (or ./config.yaml) and
SITEGUIDE_* environment variables. GEMINI_API_KEY must be set.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
