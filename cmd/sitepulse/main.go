package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avenlon/sitepulse/cmd/sitepulse/commands"
	"github.com/avenlon/sitepulse/logger"
)

var rootCmd = &cobra.Command{
	Use:   "sitepulse",
	Short: "SitePulse - Site content maintenance and health scanning",
	Long: `SitePulse - Batch content maintenance for self-hosted sites.

SitePulse walks the site's content in bounded batches, refreshes per-post
maintenance metadata, and computes a content health score from what it finds.

Available commands:
  serve    - Start the HTTP server and scan scheduler
  scan     - Run a scan synchronously from the terminal
  history  - Inspect and prune the scan history ledger
  settings - Show or change daily scan settings
  db       - Manage the SitePulse database

Examples:
  sitepulse serve                      # Start server with daily scheduling
  sitepulse scan --post-types post     # Scan posts right now, wait for it
  sitepulse scan --dry-run             # Show what a scan would cover
  sitepulse history ls                 # List past scans, newest first
  sitepulse db stats                   # Show database statistics`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: sitepulse.toml in cwd)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON instead of console output")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.ScanCmd)
	rootCmd.AddCommand(commands.HistoryCmd)
	rootCmd.AddCommand(commands.SettingsCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
