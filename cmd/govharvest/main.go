// Package main provides the govharvest command line interface: bulk
// harvesting of Congress.gov and GovInfo listings with rate limiting,
// deduplication and resumable pagination.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "govharvest",
	Short: "Bulk harvester for U.S. government APIs",
	Long: `govharvest ingests paginated listings from api.congress.gov and
api.govinfo.gov within their rate quotas, skipping records whose content
has not changed since the last run and resuming interrupted walks from
persisted cursors.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
