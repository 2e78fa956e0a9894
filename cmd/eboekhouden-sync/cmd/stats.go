package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/verenigingen/eboekhouden-sync/pkg/db"
)

// statsCmd represents the stats command.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display import statistics",
	Long: `Display statistics about imported mutations.

Shows:
- Number of imported, skipped and failed mutations
- Imported documents per type
- Number of parties created from relations
- Last import and the last run

Example:
  eboekhouden-sync stats`,
	Run: runStats,
}

var statusLimit int

// statusCmd lists mutations that need attention.
var statusCmd = &cobra.Command{
	Use:   "status [failed|skipped|imported]",
	Short: "List mutations by import status",
	Long: `List mutations from the import history with their message.

Without an argument failed mutations are listed.

Example:
  eboekhouden-sync status
  eboekhouden-sync status skipped --limit 20`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{string(db.StatusFailed), string(db.StatusSkipped), string(db.StatusImported)},
	Run:       runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 50, "Maximum number of mutations to list")
}

func runStats(cmd *cobra.Command, args []string) {
	a := openApp()
	defer a.Close()

	ctx := context.Background()
	history := db.NewImportHistory(a.conn)

	stats, err := history.GetStats(ctx)
	exitOnError(err, "failed to get statistics")

	lastDate, err := history.GetMetadata(ctx, db.MetaLastImportDate)
	exitOnError(err, "failed to get last import date")

	lastRun, err := history.LastRun(ctx)
	exitOnError(err, "failed to get last run")

	fmt.Println("\n=== Import Statistics ===")
	fmt.Printf("Imported mutations: %d\n", stats.Imported)
	fmt.Printf("Skipped mutations:  %d\n", stats.Skipped)
	fmt.Printf("Failed mutations:   %d\n", stats.Failed)
	fmt.Printf("Parties:            %d\n", stats.TotalParties)

	docTypes := make([]string, 0, len(stats.ByDocument))
	for docType := range stats.ByDocument {
		docTypes = append(docTypes, docType)
	}
	sort.Strings(docTypes)
	for _, docType := range docTypes {
		fmt.Printf("  %-18s %d\n", docType+":", stats.ByDocument[docType])
	}

	if stats.LastImport.Valid {
		fmt.Printf("Last import:        %s\n", stats.LastImport.String)
	} else {
		fmt.Printf("Last import:        (never)\n")
	}
	if lastDate != "" {
		fmt.Printf("Imported up to:     %s\n", lastDate)
	}
	if lastRun != nil {
		fmt.Printf("Last run:           %s (%s, %d imported, %d skipped, %d failed)\n",
			lastRun.RunID, lastRun.FinishedAt.Format(time.RFC3339), lastRun.Imported, lastRun.Skipped, lastRun.Failed)
	}

	fmt.Println()

	slog.Debug("Statistics displayed successfully")
}

func runStatus(cmd *cobra.Command, args []string) {
	status := db.StatusFailed
	if len(args) == 1 {
		status = db.Status(args[0])
	}
	switch status {
	case db.StatusFailed, db.StatusSkipped, db.StatusImported:
	default:
		exitOnError(fmt.Errorf("unknown status %q", status), "invalid argument")
	}

	a := openApp()
	defer a.Close()

	records, err := db.NewImportHistory(a.conn).ListByStatus(context.Background(), status, statusLimit)
	exitOnError(err, "failed to list import history")

	if len(records) == 0 {
		fmt.Printf("No %s mutations\n", status)
		return
	}

	for _, r := range records {
		target := r.Message
		if r.DocumentName != "" {
			target = fmt.Sprintf("%s %s", r.DocumentType, r.DocumentName)
			if r.Message != "" {
				target += ": " + r.Message
			}
		}
		fmt.Printf("%-10d %s  type %d  %10s  attempts %d  %s\n",
			r.MutationID, r.MutationDate, r.MutationType, r.Amount, r.Attempts, target)
	}
}
