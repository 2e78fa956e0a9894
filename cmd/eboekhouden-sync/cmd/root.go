// Package cmd provides CLI commands for eboekhouden-sync.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "eboekhouden-sync",
	Short: "Import e-Boekhouden mutations into a local ledger",
	Long: `eboekhouden-sync imports accounting mutations from the e-Boekhouden
REST API and turns them into journal entries, payment entries and
sales/purchase invoices.

It supports:
- Idempotent imports tracked in SQLite
- Ledger mapping files with suggestions for unmapped ledgers
- Payment allocation against open invoices
- Exporting the imported ledger to Beancount

Example:
  eboekhouden-sync mapping import ledger-mapping.yaml
  eboekhouden-sync import --from 2024-01-01 --to 2024-12-31
  eboekhouden-sync stats`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logLevel := slog.LevelInfo
		if debug || os.Getenv("DEBUG") == "true" {
			logLevel = slog.LevelDebug
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(mappingCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(watchCmd)
}

func getConfigFile() string {
	return cfgFile
}

// exitOnError logs err and exits with status 1.
func exitOnError(err error, msg string) {
	if err != nil {
		slog.Error(msg, "error", err)
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
		os.Exit(1)
	}
}
